package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/markdave123-py/smartdoc/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Handle SIGINT/SIGTERM for graceful shutdown
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		application, err := app.NewApp(ctx, cfg, logger)
		if err != nil {
			logger.Error("startup failed", zap.Error(err))
			return err
		}
		defer application.Close()

		logger.Info("SmartDoc is running",
			zap.String("provider", cfg.LLMProvider),
			zap.Int("page_limit", cfg.PageLimit),
		)
		if err := application.Run(ctx); err != nil {
			logger.Error("server stopped", zap.Error(err))
			return err
		}
		logger.Info("shut down cleanly")
		return nil
	},
}
