package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"feeledger/internal/cli"
	apphttp "feeledger/internal/http"
	"feeledger/internal/log"
	"feeledger/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	res := cli.OpenLedger(context.Background(), logger, cfg)
	ledger := res.Ledger

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, apphttp.Services{
		Accounts:     ledger.Accounts,
		Catalog:      ledger.Catalog,
		Fees:         ledger.Fees,
		Transactions: ledger.Transactions,
		Reports:      ledger.Reports,
	}, ledger.Repo)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	overdue := services.NewOverdueProcessor(ledger.Repo, services.OverdueProcessorConfig{Interval: cfg.OverdueInterval})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := overdue.Stop(shutdownCtx); err != nil {
			logger.Error("Overdue processor shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	if err := overdue.Start(ctx); err != nil {
		logger.Error("Failed to start overdue processor", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting feeledger server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
