// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/hrpfolio/internal/clients/binance"
	"github.com/aristath/hrpfolio/internal/database"
	"github.com/aristath/hrpfolio/internal/modules/allocation"
	"github.com/aristath/hrpfolio/internal/modules/backtest"
	"github.com/aristath/hrpfolio/internal/modules/features"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/marketdata"
	"github.com/aristath/hrpfolio/internal/modules/trading"
	"github.com/aristath/hrpfolio/internal/reliability"
	"github.com/aristath/hrpfolio/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and shared by the server, the scheduler and the CLI.
type Container struct {
	// Database
	DB *database.DB

	// Clients
	BinanceClient *binance.Client
	Broker        *binance.BrokerAdapter
	PriceStream   *binance.PriceStream // nil unless streaming is enabled

	// Repositories
	HistoryDB    *historical.HistoryDB
	SnapshotRepo *allocation.Repository
	TradeRepo    *trading.TradeRepository

	// Services
	Loader            *historical.Loader
	SyncService       *marketdata.SyncService
	FeatureService    *features.Service
	AllocationService *allocation.Service
	BacktestService   *backtest.Service
	Planner           *trading.Planner
	Executor          *trading.Executor
	BackupService     *reliability.BackupService // nil unless a bucket is configured
}

// JobInstances holds the jobs that can be scheduled and triggered via the API
type JobInstances struct {
	SyncPrices       *scheduler.SyncPricesJob
	Rebalance        *scheduler.RebalanceJob // nil unless trading is enabled
	Backup           *reliability.BackupJob  // nil unless backups are enabled
	DailyMaintenance *reliability.DailyMaintenanceJob
}

// All returns the non-nil jobs.
func (j *JobInstances) All() []scheduler.Job {
	var jobs []scheduler.Job
	if j.SyncPrices != nil {
		jobs = append(jobs, j.SyncPrices)
	}
	if j.Rebalance != nil {
		jobs = append(jobs, j.Rebalance)
	}
	if j.Backup != nil {
		jobs = append(jobs, j.Backup)
	}
	if j.DailyMaintenance != nil {
		jobs = append(jobs, j.DailyMaintenance)
	}
	return jobs
}
