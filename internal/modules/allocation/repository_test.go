package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/database"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepository_SaveAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	s := &Snapshot{
		Linkage:      optimization.LinkageWard,
		LookbackDays: 90,
		AsOf:         "2024-05-01",
		Periods:      89,
		Weights:      optimization.WeightVector{"BTCUSDT": 0.6, "ETHUSDT": 0.4, "USDCUSDT": 0},
		Order:        []string{"ETHUSDT", "BTCUSDT"},
		Excluded:     []string{"USDCUSDT"},
	}
	require.NoError(t, repo.Save(ctx, s))
	require.NotEmpty(t, s.ID)
	require.False(t, s.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Weights, got.Weights)
	assert.Equal(t, s.Order, got.Order)
	assert.Equal(t, s.Excluded, got.Excluded)
	assert.Equal(t, optimization.LinkageWard, got.Linkage)
	assert.Equal(t, 89, got.Periods)
	assert.Equal(t, "2024-05-01", got.AsOf)
	assert.Equal(t, s.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
}

func TestRepository_LatestAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &Snapshot{
			CreatedAt:    base.AddDate(0, 0, i),
			Linkage:      optimization.LinkageSingle,
			LookbackDays: 30 + i,
			Weights:      optimization.WeightVector{"BTCUSDT": 1},
			Order:        []string{"BTCUSDT"},
		}))
	}

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 32, latest.LookbackDays)
	assert.Equal(t, []string{}, latest.Excluded)

	list, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 32, list[0].LookbackDays)
	assert.Equal(t, 31, list[1].LookbackDays)
}

func TestRepository_GetByIDMissing(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
