package di

import (
	"fmt"

	"github.com/aristath/hrpfolio/internal/config"
	"github.com/aristath/hrpfolio/internal/reliability"
	"github.com/aristath/hrpfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// JobScheduler registers jobs on cron schedules.
type JobScheduler interface {
	AddJob(schedule string, job scheduler.Job) error
}

// RegisterJobs creates all jobs and registers them with the scheduler.
// Returns JobInstances for manual triggering via API
func RegisterJobs(container *Container, cfg *config.Config, sched JobScheduler, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		SyncPrices: scheduler.NewSyncPricesJob(container.SyncService, log),
		DailyMaintenance: reliability.NewDailyMaintenanceJob(
			[]reliability.MaintainedDB{container.DB},
			cfg.DataDir,
			log,
		),
	}
	if err := sched.AddJob(cfg.Schedules.Sync, instances.SyncPrices); err != nil {
		return nil, err
	}
	if err := sched.AddJob(cfg.Schedules.Maintenance, instances.DailyMaintenance); err != nil {
		return nil, err
	}

	// Scheduled rebalances only run against a configured account.
	if cfg.Trading.Enabled {
		instances.Rebalance = scheduler.NewRebalanceJob(container.AllocationService, container.Executor, false, log)
		if err := sched.AddJob(cfg.Schedules.Rebalance, instances.Rebalance); err != nil {
			return nil, err
		}
	}

	if container.BackupService != nil {
		instances.Backup = reliability.NewBackupJob(container.BackupService, cfg.Backup.Keep, log)
		if err := sched.AddJob(cfg.Schedules.Backup, instances.Backup); err != nil {
			return nil, err
		}
	}

	log.Info().Int("jobs", len(instances.All())).Msg("Jobs registered")
	return instances, nil
}
