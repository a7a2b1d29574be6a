package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/starcourier/starcourier/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	var events bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the game as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []mcp.Option
			if events {
				opts = append(opts, mcp.WithGameEvents())
			}
			srv := mcp.New(a.game, a.client, a.achievements, version, opts...)
			return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&events, "events", false, "send notifications/game_event for every session change")
	return cmd
}
