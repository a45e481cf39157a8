package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/rs/zerolog"
)

// SeriesLoader loads filled price series.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, symbols []string, since, until time.Time) (historical.TimeSeries, error)
}

// Request selects the universe and window of a stored-history backtest.
// Zero Start means two years before End; zero End means now.
type Request struct {
	Symbols []string  `json:"symbols"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Config
}

// Service runs backtests over stored history.
type Service struct {
	loader  SeriesLoader
	engine  *Engine
	symbols []string
	now     func() time.Time
	log     zerolog.Logger
}

// NewService creates a new backtest service
func NewService(loader SeriesLoader, engine *Engine, defaultSymbols []string, log zerolog.Logger) *Service {
	return &Service{
		loader:  loader,
		engine:  engine,
		symbols: defaultSymbols,
		now:     time.Now,
		log:     log.With().Str("service", "backtest").Logger(),
	}
}

// Run loads the requested window and runs the engine on it.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.symbols
	}
	end := req.End
	if end.IsZero() {
		end = s.now().UTC()
	}
	start := req.Start
	if start.IsZero() {
		start = end.AddDate(-2, 0, 0)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidConfig,
			historical.FormatDate(start), historical.FormatDate(end))
	}

	series, err := s.loader.LoadSeries(ctx, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load price series: %w", err)
	}

	s.log.Info().
		Strs("symbols", series.Symbols).
		Str("start", historical.FormatDate(start)).
		Str("end", historical.FormatDate(end)).
		Msg("Running backtest")

	return s.engine.Run(ctx, series, req.Config)
}
