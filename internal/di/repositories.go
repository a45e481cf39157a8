package di

import (
	"fmt"

	"github.com/aristath/hrpfolio/internal/modules/allocation"
	"github.com/aristath/hrpfolio/internal/modules/historical"
	"github.com/aristath/hrpfolio/internal/modules/trading"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the container's database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.DB == nil {
		return fmt.Errorf("container database must be initialized first")
	}

	conn := container.DB.Conn()
	container.HistoryDB = historical.NewHistoryDB(conn, log)
	container.SnapshotRepo = allocation.NewRepository(conn, log)
	container.TradeRepo = trading.NewTradeRepository(conn, log)

	log.Info().Msg("Repositories initialized")
	return nil
}
