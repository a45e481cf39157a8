package di

import (
	"github.com/aristath/hrpfolio/internal/config"
	allocationhandlers "github.com/aristath/hrpfolio/internal/modules/allocation/handlers"
	backtesthandlers "github.com/aristath/hrpfolio/internal/modules/backtest/handlers"
	featureshandlers "github.com/aristath/hrpfolio/internal/modules/features/handlers"
	historicalhandlers "github.com/aristath/hrpfolio/internal/modules/historical/handlers"
	marketdatahandlers "github.com/aristath/hrpfolio/internal/modules/marketdata/handlers"
	tradinghandlers "github.com/aristath/hrpfolio/internal/modules/trading/handlers"
	"github.com/aristath/hrpfolio/internal/server"
	"github.com/rs/zerolog"
)

// Handlers builds the HTTP handlers of every module.
func (c *Container) Handlers(cfg *config.Config, log zerolog.Logger) []server.RouteRegistrar {
	symbols := cfg.Symbols()
	return []server.RouteRegistrar{
		historicalhandlers.NewHandler(c.HistoryDB, c.Loader, log),
		marketdatahandlers.NewHandler(c.SyncService, log),
		featureshandlers.NewHandler(c.FeatureService, symbols, log),
		allocationhandlers.NewHandler(c.AllocationService, log),
		backtesthandlers.NewHandler(c.BacktestService, log),
		tradinghandlers.NewTradingHandlers(c.Executor, c.AllocationService, cfg.Trading.Enabled, log),
	}
}
