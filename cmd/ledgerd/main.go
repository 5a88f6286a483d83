// Package main is the entry point for the lottery ledger daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lottery-ledger/internal/config"
	"lottery-ledger/internal/handler"
	"lottery-ledger/internal/pkg/cache"
	"lottery-ledger/internal/pkg/db"
	"lottery-ledger/internal/pkg/events"
	"lottery-ledger/internal/pkg/lock"
	"lottery-ledger/internal/pkg/metrics"
	"lottery-ledger/internal/repository"
	"lottery-ledger/internal/service"
	"lottery-ledger/internal/worker"
)

func main() {
	// Configure zerolog before the config is read so load errors are readable
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(&cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	m := metrics.New()
	publisher := events.New(&cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close event publisher")
		}
	}()

	reportCache, err := cache.New(ctx, &cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect report cache")
	}
	defer reportCache.Close()

	// Validated by config.Load
	timezone, _ := cfg.Reports.Location()
	minDeposit, minWithdrawal, _ := cfg.Payments.Limits()

	store := repository.NewStore(pool.Pool, cfg.Ledger.MaxRetries)
	userLock := lock.New[uuid.UUID]()
	wallets := service.NewWalletService(store, userLock, cfg.Ledger.LockTimeout, m)
	bets := service.NewBetService(store, wallets, cfg.Checkout, m)
	settlement := service.NewSettlementService(store, wallets, publisher, m)
	payments := service.NewPaymentService(store, wallets, minDeposit, minWithdrawal, publisher, m)
	reports := service.NewReportService(store, timezone, reportCache)

	if len(cfg.Admin.IDs) == 0 {
		log.Warn().Msg("No admin.ids configured, admin write endpoints will refuse every request")
	}
	reportHandler := handler.NewReportHandler(reports, wallets, timezone)
	adminHandler := handler.NewAdminHandler(settlement, payments, bets, cfg.IsAdmin)
	srv := m.StartServer(cfg.Metrics.Addr, pool.HealthCheck, reportHandler.Routes, adminHandler.Routes)

	resumer := worker.NewResumer(settlement, cfg.Settlement.ResumeInterval)
	resumer.Start(ctx)

	log.Info().
		Str("metrics_addr", cfg.Metrics.Addr).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("cache", cfg.Cache.Enabled).
		Bool("enforce_price_table", cfg.Checkout.EnforcePriceTable).
		Int("admins", len(cfg.Admin.IDs)).
		Msg("Ledger is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	resumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown failed")
	}

	pool.LogStats()
	log.Info().Msg("Ledger stopped gracefully")
}

// setupLogger applies the configured level and output format.
func setupLogger(cfg *config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
