// Package bootstrap handles application initialization and lifecycle
// management for the channel-analyzer service.
package bootstrap

import (
	"fmt"

	"github.com/jonesrussell/channel-analyzer/internal/logger"
)

const version = "dev"

// Start initializes and runs the channel-analyzer service.
func Start() error {
	// Phase 1: config and logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: job store
	st, err := SetupStore(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to set up job store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("failed to close job store", logger.Error(closeErr))
		}
	}()

	// Phase 3: event publisher (optional)
	publisher := SetupEventPublisher(cfg, log)

	// Phase 4: pipeline + HTTP server
	app := SetupApp(cfg, st, publisher, log)

	if runErr := app.Run(); runErr != nil {
		log.Error("server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("server exited")
	return nil
}
