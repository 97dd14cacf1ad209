// Package database manages the PostgreSQL connection for the service.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/jonesrussell/channel-analyzer/internal/config"
	"github.com/jonesrussell/channel-analyzer/internal/logger"
)

const pingTimeout = 5 * time.Second

// DB wraps the sql handle with pool configuration applied.
type DB struct {
	db *sql.DB
}

// New opens and verifies a PostgreSQL connection.
func New(cfg *config.DatabaseConfig, log logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime.Std())

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info("database connected",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
		logger.String("database", cfg.Name))
	return &DB{db: db}, nil
}

// DB exposes the underlying handle.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}
