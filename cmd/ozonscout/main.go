// Package main is the entry point for the ozonscout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "ozonscout",
		Short:         "Ozon product listing scraper and cache",
		Long:          `ozonscout resolves an Ozon product link to its name, scrapes similar listings and the top product's details, and caches the aggregate for a week.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(serveCmd(&envFile))
	cmd.AddCommand(botCmd(&envFile))
	cmd.AddCommand(searchCmd(&envFile))
	cmd.AddCommand(migrateCmd(&envFile))

	return cmd
}
