package allocation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	returns  optimization.ReturnsMatrix
	err      error
	symbols  []string
	lookback int
}

func (l *stubLoader) LoadReturns(_ context.Context, symbols []string, lookback int, _ time.Time) (optimization.ReturnsMatrix, error) {
	l.symbols, l.lookback = symbols, lookback
	return l.returns, l.err
}

func twoAssetReturns() optimization.ReturnsMatrix {
	a := make([]float64, 40)
	b := make([]float64, 40)
	for i := range a {
		a[i] = 0.02 * math.Sin(float64(i))
		b[i] = 0.01 * math.Cos(float64(i)*1.7)
	}
	return optimization.ReturnsMatrix{
		Assets: []string{"BTCUSDT", "ETHUSDT"},
		Series: map[string][]float64{"BTCUSDT": a, "ETHUSDT": b},
	}
}

func TestService_ComputeSavesSnapshot(t *testing.T) {
	loader := &stubLoader{returns: twoAssetReturns()}
	repo := newTestRepository(t)
	svc := NewService(loader, repo, Defaults{Symbols: []string{"BTCUSDT", "ETHUSDT"}, LookbackDays: 60}, zerolog.Nop())

	snapshot, err := svc.Compute(context.Background(), ComputeRequest{Linkage: "average"})
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, loader.symbols)
	assert.Equal(t, 60, loader.lookback)
	assert.Equal(t, optimization.LinkageAverage, snapshot.Linkage)
	assert.InDelta(t, 1.0, snapshot.Weights.Sum(), 1e-9)
	assert.Greater(t, snapshot.Weights["ETHUSDT"], snapshot.Weights["BTCUSDT"], "lower variance gets more weight")

	latest, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot.ID, latest.ID)

	got, err := svc.Get(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Weights, got.Weights)
}

func TestService_ComputeKeepsSymbolsWithoutHistory(t *testing.T) {
	loader := &stubLoader{returns: twoAssetReturns()}
	repo := newTestRepository(t)
	svc := NewService(loader, repo, Defaults{LookbackDays: 60}, zerolog.Nop())

	snapshot, err := svc.Compute(context.Background(), ComputeRequest{Symbols: []string{"BTCUSDT", "NEWUSDT", "ETHUSDT"}})
	require.NoError(t, err)

	require.Len(t, snapshot.Weights, 3)
	assert.Contains(t, snapshot.Weights, "NEWUSDT")
	assert.Zero(t, snapshot.Weights["NEWUSDT"])
	assert.Equal(t, []string{"NEWUSDT"}, snapshot.Excluded)
	assert.InDelta(t, 1.0, snapshot.Weights.Sum(), 1e-9)

	got, err := svc.Get(context.Background(), snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Weights, got.Weights)
	assert.Equal(t, []string{"NEWUSDT"}, got.Excluded)
}

func TestService_ComputeErrors(t *testing.T) {
	repo := newTestRepository(t)

	svc := NewService(&stubLoader{returns: twoAssetReturns()}, repo, Defaults{LookbackDays: 60}, zerolog.Nop())
	_, err := svc.Compute(context.Background(), ComputeRequest{Linkage: "centroid"})
	assert.True(t, optimization.IsAllocationError(err))

	_, err = svc.Compute(context.Background(), ComputeRequest{LookbackDays: 1})
	assert.ErrorIs(t, err, optimization.ErrInsufficientData)

	svc = NewService(&stubLoader{err: errors.New("db locked")}, repo, Defaults{LookbackDays: 60}, zerolog.Nop())
	_, err = svc.Compute(context.Background(), ComputeRequest{})
	assert.ErrorContains(t, err, "db locked")

	flat := optimization.ReturnsMatrix{
		Assets: []string{"A", "B"},
		Series: map[string][]float64{"A": {0, 0, 0}, "B": {0, 0, 0}},
	}
	svc = NewService(&stubLoader{returns: flat}, repo, Defaults{LookbackDays: 60}, zerolog.Nop())
	_, err = svc.Compute(context.Background(), ComputeRequest{})
	assert.ErrorIs(t, err, optimization.ErrDegenerateMatrix)

	list, err := repo.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list, "failed computations are not stored")
}

func TestService_TargetWeights(t *testing.T) {
	svc := NewService(&stubLoader{returns: twoAssetReturns()}, newTestRepository(t), Defaults{LookbackDays: 30}, zerolog.Nop())
	weights, err := svc.TargetWeights(context.Background())
	require.NoError(t, err)
	assert.Len(t, weights, 2)
}
