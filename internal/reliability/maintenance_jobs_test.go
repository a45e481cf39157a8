package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenDB struct{}

func (brokenDB) Name() string { return "broken" }

func (brokenDB) HealthCheck(context.Context) error {
	return errors.New("database disk image is malformed")
}

func (brokenDB) WALCheckpoint(context.Context) error { return nil }

func usageWithFree(free uint64) func(string) (*disk.UsageStat, error) {
	return func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: free, UsedPercent: 50}, nil
	}
}

func TestDailyMaintenanceJob_Run(t *testing.T) {
	db := newFileDB(t)
	job := NewDailyMaintenanceJob([]MaintainedDB{db}, t.TempDir(), zerolog.Nop())
	job.diskUsage = usageWithFree(50 << 30)

	assert.Equal(t, "daily_maintenance", job.Name())
	require.NoError(t, job.Run())

	job.diskUsage = usageWithFree(1 << 30)
	assert.NoError(t, job.Run(), "low space only warns")

	job.diskUsage = usageWithFree(100 << 20)
	assert.ErrorContains(t, job.Run(), "GB free")
}

func TestDailyMaintenanceJob_FailsOnBrokenDatabase(t *testing.T) {
	job := NewDailyMaintenanceJob([]MaintainedDB{brokenDB{}}, t.TempDir(), zerolog.Nop())
	job.diskUsage = usageWithFree(50 << 30)

	assert.ErrorContains(t, job.Run(), "malformed")
}

func TestBackupJob_Run(t *testing.T) {
	db := newFileDB(t)
	store := newMemStore()
	svc := NewBackupService([]Snapshotter{db}, store, "", t.TempDir(), zerolog.Nop())
	job := NewBackupJob(svc, 3, zerolog.Nop())

	assert.Equal(t, "backup", job.Name())
	require.NoError(t, job.Run())
	assert.Len(t, store.objects, 1)
}
