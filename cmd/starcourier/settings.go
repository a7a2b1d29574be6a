package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSettingsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted UI settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			data, err := json.MarshalIndent(a.settings.Get(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	var (
		disable  bool
		interval time.Duration
	)
	autosaveCmd := &cobra.Command{
		Use:   "set-autosave",
		Short: "Enable or disable auto-save and set its interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.settings.SetAutoSave(cmd.Context(), !disable, interval); err != nil {
				return err
			}
			p := a.settings.Get().Settings
			fmt.Fprintf(cmd.OutOrStdout(), "Auto-save enabled=%t every %s\n", p.AutoSaveEnabled, p.AutoSavePeriod())
			return nil
		},
	}
	autosaveCmd.Flags().BoolVar(&disable, "off", false, "disable auto-save")
	autosaveCmd.Flags().DurationVar(&interval, "interval", 0, "auto-save interval (unchanged when 0)")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore factory settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.settings.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings reset.")
			return nil
		},
	}

	cmd.AddCommand(showCmd, autosaveCmd, resetCmd)
	return cmd
}
