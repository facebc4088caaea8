package main

import (
	"context"
	"os"
	"time"

	"feeledger/internal/cli"
	"feeledger/internal/log"
	"feeledger/internal/services"
)

// overdue-worker runs the overdue sweep on its own, for deployments where
// several API replicas share one database.
func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentOverdue)

	logger.Info("Starting overdue-worker", "interval", cfg.OverdueInterval, "sqlite_db", cfg.SQLiteDBPath)

	res := cli.OpenLedger(context.Background(), logger, cfg)
	processor := services.NewOverdueProcessor(res.Ledger.Repo, services.OverdueProcessorConfig{Interval: cfg.OverdueInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Error("Overdue processor shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start overdue processor", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
