package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ict-dashboard/config"
	"ict-dashboard/internal/api"
	"ict-dashboard/internal/logging"
	"ict-dashboard/internal/market"
	"ict-dashboard/internal/paper"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
	})
	logger.Info().Msg("Starting ICT dashboard")

	// Redis backs the paper ledger; the app still runs without it.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).
			Msg("Redis unavailable, paper ledger will not persist")
		rdb = nil
	}
	cancel()

	client := market.NewClient(cfg.Binance.APIKey, cfg.Binance.SecretKey, logger)

	ledger := paper.NewLedger(rdb, cfg.Paper.InitialBalance, logger)
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ledger.Load(loadCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore paper ledger state")
	}
	loadCancel()

	server := api.NewServer(cfg, client, ledger, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	logger.Info().Msg("Stopped")
}
