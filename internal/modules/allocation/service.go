package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// ReturnsLoader loads the returns matrix for a window.
type ReturnsLoader interface {
	LoadReturns(ctx context.Context, symbols []string, lookbackDays int, asOf time.Time) (optimization.ReturnsMatrix, error)
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, s *Snapshot) error
	Latest(ctx context.Context) (*Snapshot, error)
	List(ctx context.Context, limit int) ([]Snapshot, error)
	GetByID(ctx context.Context, id string) (*Snapshot, error)
}

// Defaults used when a request leaves a field empty.
type Defaults struct {
	Symbols      []string
	LookbackDays int
	Linkage      optimization.Linkage
}

// Service computes HRP allocations from stored history.
type Service struct {
	loader   ReturnsLoader
	store    SnapshotStore
	defaults Defaults
	now      func() time.Time
	log      zerolog.Logger
}

// NewService creates a new allocation service
func NewService(loader ReturnsLoader, store SnapshotStore, defaults Defaults, log zerolog.Logger) *Service {
	if defaults.Linkage == "" {
		defaults.Linkage = optimization.DefaultLinkage
	}
	return &Service{
		loader:   loader,
		store:    store,
		defaults: defaults,
		now:      time.Now,
		log:      log.With().Str("service", "allocation").Logger(),
	}
}

// Compute loads returns, allocates and stores a snapshot.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (*Snapshot, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.defaults.Symbols
	}
	lookback := req.LookbackDays
	if lookback == 0 {
		lookback = s.defaults.LookbackDays
	}
	linkage := s.defaults.Linkage
	if req.Linkage != "" {
		parsed, err := optimization.ParseLinkage(req.Linkage)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", optimization.ErrInvalidReturns, err)
		}
		linkage = parsed
	}
	if lookback < 2 {
		return nil, fmt.Errorf("%w: lookback must be at least 2 days, got %d", optimization.ErrInsufficientData, lookback)
	}

	asOf := s.now().UTC()
	returns, err := s.loader.LoadReturns(ctx, symbols, lookback, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to load returns: %w", err)
	}

	alloc, err := optimization.NewHRPOptimizer(optimization.HRPOptions{Linkage: linkage}).AllocateDetailed(returns)
	if err != nil {
		s.log.Warn().Err(err).Strs("symbols", returns.Assets).Msg("HRP allocation failed")
		return nil, err
	}
	if len(returns.Assets) < len(symbols) {
		alloc.IncludeMissing(symbols...)
		s.log.Warn().Strs("excluded", alloc.Excluded).Msg("Symbols without usable history get zero weight")
	}

	snapshot := &Snapshot{
		Linkage:      linkage,
		LookbackDays: lookback,
		AsOf:         historical.FormatDate(asOf),
		Periods:      alloc.Periods,
		Weights:      alloc.Weights,
		Order:        alloc.Order,
		Excluded:     alloc.Excluded,
	}
	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save allocation snapshot: %w", err)
	}

	s.log.Info().
		Str("id", snapshot.ID).
		Str("linkage", string(linkage)).
		Int("assets", len(snapshot.Weights)).
		Int("periods", snapshot.Periods).
		Msg("Computed HRP allocation")
	return snapshot, nil
}

// Latest returns the most recent snapshot.
func (s *Service) Latest(ctx context.Context) (*Snapshot, error) {
	return s.store.Latest(ctx)
}

// List returns recent snapshots.
func (s *Service) List(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.store.List(ctx, limit)
}

// Get returns a snapshot by id.
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	return s.store.GetByID(ctx, id)
}

// TargetWeights computes a fresh allocation for the default universe and
// returns its weights. Used by the scheduled rebalance.
func (s *Service) TargetWeights(ctx context.Context) (optimization.WeightVector, error) {
	snapshot, err := s.Compute(ctx, ComputeRequest{})
	if err != nil {
		return nil, err
	}
	return snapshot.Weights, nil
}
