package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/starcourier/starcourier/pkg/config"
)

var version = "dev"

func main() {
	// A missing .env is fine; the environment and config file still apply.
	_ = godotenv.Load()

	var configPath string
	root := &cobra.Command{
		Use:           "starcourier",
		Short:         "StarCourier: a terminal client for the StarCourier story service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to config file")

	root.AddCommand(
		newPlayCmd(&configPath),
		newSavesCmd(&configPath),
		newHealthCmd(&configPath),
		newSettingsCmd(&configPath),
		newMCPCmd(&configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
