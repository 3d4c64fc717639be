package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ozonscout/backend/internal/delivery/telegram"
	"github.com/ozonscout/backend/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func botCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot with long polling",
		Long: `Run the Telegram bot with long polling.

Requires OZONSCOUT_BOT_TOKEN. OZONSCOUT_BOT_SORT_TIMEOUT and OZONSCOUT_BOT_FEEDBACK_TIMEOUT
control how long the bot waits for a sort choice and before asking for a rating.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(*envFile)
		},
	}
}

func runBot(envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.Bot.Validate(); err != nil {
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

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return fmt.Errorf("connect to telegram: %w", err)
	}
	logger.Info("bot authorized", zap.String("username", api.Self.UserName), zap.String("version", version))

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)
	defer api.StopReceivingUpdates()

	bot := telegram.NewBot(api, a.service, telegram.NewSessionStore(), telegram.Config{
		SortTimeout:     cfg.Bot.SortTimeout,
		FeedbackTimeout: cfg.Bot.FeedbackTimeout,
		DefaultSort:     domain.SortPrice,
	}, logger)

	if err := bot.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	logger.Info("bot stopped")
	return nil
}
