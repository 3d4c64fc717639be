package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/ozonscout/backend/internal/domain"
	"github.com/spf13/cobra"
)

func searchCmd(envFile *string) *cobra.Command {
	var (
		sortMode string
		nameOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search <product-url>",
		Short: "Run one search and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := domain.ParseSortMode(sortMode)
			if err != nil {
				return err
			}
			return runSearch(cmd.OutOrStdout(), *envFile, args[0], mode, nameOnly)
		},
	}

	cmd.Flags().StringVar(&sortMode, "sort", "score", "Sort mode: score, new, price, rating")
	cmd.Flags().BoolVar(&nameOnly, "name-only", false, "Only resolve the product name")

	return cmd
}

func runSearch(out io.Writer, envFile, productURL string, mode domain.SortMode, nameOnly bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var result any
	if nameOnly {
		result, err = a.service.ResolveName(ctx, productURL)
	} else {
		result, err = a.service.Search(ctx, productURL, mode)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	return writeJSON(out, result)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
