package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/hrpfolio/internal/clients/binance"
	"github.com/aristath/hrpfolio/internal/config"
	"github.com/aristath/hrpfolio/internal/domain"
	"github.com/aristath/hrpfolio/internal/modules/allocation"
	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/features"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/marketdata"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/internal/modules/trading"
	"github.com/aristath/hrpfolio/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.HistoryDB == nil {
		return fmt.Errorf("repositories must be initialized first")
	}

	linkage, err := optimization.ParseLinkage(cfg.Linkage)
	if err != nil {
		return fmt.Errorf("invalid linkage: %w", err)
	}
	symbols := cfg.Symbols()

	// Clients
	container.BinanceClient = binance.NewClient(binance.Config{
		APIKey:    cfg.Binance.APIKey,
		APISecret: cfg.Binance.APISecret,
		Testnet:   cfg.Binance.Testnet,
	}, log)
	container.Broker = binance.NewBrokerAdapter(container.BinanceClient)

	// A nil *PriceStream must not reach the executor as a non-nil interface.
	var prices domain.PriceSource
	if cfg.PriceStream {
		streamURL := binance.MainnetStreamURL
		if cfg.Binance.Testnet {
			streamURL = binance.TestnetStreamURL
		}
		container.PriceStream = binance.NewPriceStream(streamURL, symbols, log)
		prices = container.PriceStream
	}

	// Market data and history
	container.Loader = historical.NewLoader(container.HistoryDB, log)
	container.SyncService = marketdata.NewSyncService(container.BinanceClient, container.HistoryDB, symbols, cfg.BackfillDays, log)
	container.FeatureService = features.NewService(container.HistoryDB, log)

	// Allocation and research
	container.AllocationService = allocation.NewService(container.Loader, container.SnapshotRepo, allocation.Defaults{
		Symbols:      symbols,
		LookbackDays: cfg.LookbackDays,
		Linkage:      linkage,
	}, log)
	container.BacktestService = backtest.NewService(container.Loader, backtest.NewEngine(log), symbols, log)

	// Trading
	container.Planner = trading.NewPlanner(trading.PlannerConfig{
		QuoteAsset:  cfg.QuoteAsset,
		Universe:    symbols,
		MinNotional: cfg.Trading.MinNotional,
		CashBuffer:  cfg.Trading.CashBuffer,
	})
	container.Executor = trading.NewExecutor(container.Broker, prices, container.Planner, container.TradeRepo, log)

	// Backups
	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Bucket:          cfg.Backup.Bucket,
			Region:          cfg.Backup.Region,
			Endpoint:        cfg.Backup.Endpoint,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			[]reliability.Snapshotter{container.DB},
			store,
			cfg.Backup.Prefix,
			filepath.Join(cfg.DataDir, "backup-staging"),
			log,
		)
	}

	log.Info().
		Strs("symbols", symbols).
		Str("linkage", string(linkage)).
		Bool("price_stream", cfg.PriceStream).
		Bool("backups", cfg.Backup.Enabled()).
		Msg("Services initialized")
	return nil
}
