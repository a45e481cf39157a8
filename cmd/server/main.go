// Package main is the entry point of the hrpfolio server.
//
// The server keeps daily candles of a crypto universe in sync with Binance,
// computes Hierarchical Risk Parity allocations on demand, runs backtests and,
// when enabled, rebalances a spot account towards the latest allocation.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/hrpfolio/internal/config"
	"github.com/aristath/hrpfolio/internal/di"
	"github.com/aristath/hrpfolio/internal/scheduler"
	"github.com/aristath/hrpfolio/internal/server"
	"github.com/aristath/hrpfolio/internal/version"
	"github.com/aristath/hrpfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Str("version", version.Version).
		Str("commit", version.GitCommit).
		Msg("Starting hrpfolio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	sched := scheduler.New(log)
	jobs, err := di.RegisterJobs(container, cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	if cfg.Trading.Enabled {
		log.Warn().Bool("testnet", cfg.Binance.Testnet).Msg("Live trading enabled")
	}

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		System:  server.NewSystemHandlers(log, cfg.DataDir, container.DB, sched, jobs.All()),
		Modules: container.Handlers(cfg, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	if container.PriceStream != nil {
		go container.PriceStream.Run(ctx)
		log.Info().Msg("Price stream started")
	}

	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs.
	sched.Stop()

	log.Info().Msg("Server stopped")
}
