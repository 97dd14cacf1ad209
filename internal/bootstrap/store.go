package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/channel-analyzer/internal/config"
	"github.com/jonesrussell/channel-analyzer/internal/database"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
	"github.com/jonesrussell/channel-analyzer/internal/store"
)

// SetupStore creates the configured job store backend.
func SetupStore(cfg *config.Config, log logger.Logger) (store.JobStore, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Info("using in-memory job store")
		return store.NewMemoryStore(), nil
	case "postgres":
		db, err := database.New(&cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("database connection: %w", err)
		}
		return store.NewPostgresStore(db.DB()), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
