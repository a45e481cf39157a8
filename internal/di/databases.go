package di

import (
	"fmt"

	"github.com/aristath/hrpfolio/internal/config"
	"github.com/aristath/hrpfolio/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens hrpfolio.db and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// hrpfolio.db holds candles, allocation snapshots and the trade ledger.
	// The ledger profile fsyncs every write.
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "hrpfolio",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schemas: %w", err)
	}
	container.DB = db

	log.Info().Str("path", db.Path()).Msg("Database initialized")
	return container, nil
}
