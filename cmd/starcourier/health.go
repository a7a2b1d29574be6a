package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/starcourier/starcourier/pkg/api"
)

func newHealthCmd(configPath *string) *cobra.Command {
	var (
		wait     bool
		attempts int
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the game service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if wait {
				if err := a.client.WaitForServer(cmd.Context(), attempts, delay); err != nil {
					return err
				}
			}
			h, err := a.client.CheckHealth(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (version %s, %s)\n",
				a.client.BaseURL(), h.Status, h.Version, h.Environment)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the service to come up first")
	cmd.Flags().IntVar(&attempts, "attempts", api.DefaultWaitAttempts, "probes before giving up with --wait")
	cmd.Flags().DurationVar(&delay, "delay", api.DefaultWaitDelay, "pause between probes with --wait")
	return cmd
}
