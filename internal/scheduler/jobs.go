package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/marketdata"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/aristath/hrpfolio/internal/modules/trading"
	"github.com/rs/zerolog"
)

// PriceSyncer defines the contract for the market data sync
// Used by scheduler to enable testing with mocks
type PriceSyncer interface {
	Sync(ctx context.Context) ([]marketdata.SyncResult, error)
}

// TargetProvider defines the contract for computing target weights
type TargetProvider interface {
	TargetWeights(ctx context.Context) (optimization.WeightVector, error)
}

// Rebalancer defines the contract for executing a rebalance
type Rebalancer interface {
	Rebalance(ctx context.Context, target optimization.WeightVector, dryRun bool) (*trading.RebalanceReport, error)
}

// SyncPricesJob downloads new daily candles
type SyncPricesJob struct {
	syncer  PriceSyncer
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncPricesJob creates a new SyncPricesJob
func NewSyncPricesJob(syncer PriceSyncer, log zerolog.Logger) *SyncPricesJob {
	return &SyncPricesJob{
		syncer:  syncer,
		timeout: 15 * time.Minute,
		log:     log.With().Str("job", "sync_prices").Logger(),
	}
}

// Name returns the job name
func (j *SyncPricesJob) Name() string {
	return "sync_prices"
}

// Run executes the sync prices job
func (j *SyncPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.syncer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("price sync failed: %w", err)
	}

	fetched := 0
	for _, r := range results {
		fetched += r.Fetched
	}
	j.log.Info().Int("symbols", len(results)).Int("candles", fetched).Msg("Price sync completed")
	return nil
}

// RebalanceJob computes a fresh allocation and trades towards it
type RebalanceJob struct {
	targets    TargetProvider
	rebalancer Rebalancer
	dryRun     bool
	timeout    time.Duration
	log        zerolog.Logger
}

// NewRebalanceJob creates a new RebalanceJob
func NewRebalanceJob(targets TargetProvider, rebalancer Rebalancer, dryRun bool, log zerolog.Logger) *RebalanceJob {
	return &RebalanceJob{
		targets:    targets,
		rebalancer: rebalancer,
		dryRun:     dryRun,
		timeout:    10 * time.Minute,
		log:        log.With().Str("job", "rebalance").Logger(),
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance"
}

// Run executes the rebalance job
func (j *RebalanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	target, err := j.targets.TargetWeights(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute target weights: %w", err)
	}

	report, err := j.rebalancer.Rebalance(ctx, target, j.dryRun)
	if err != nil {
		return fmt.Errorf("rebalance failed: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("rebalance finished with %d failed orders", report.Failed)
	}
	return nil
}
