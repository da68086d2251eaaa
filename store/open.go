// Package store opens the configured commission repository.
package store

import (
	"context"
	"fmt"

	"github.com/brokerdesk/commission-engine/commission"
	"github.com/brokerdesk/commission-engine/config"
	"github.com/brokerdesk/commission-engine/store/postgres"
	"github.com/brokerdesk/commission-engine/store/sqlite"
)

// Store is a repository that owns a connection.
type Store interface {
	commission.Repository
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the database named by cfg.Driver.
func Open(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(postgres.DSN(cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password, cfg.SSLMode))
		if err != nil {
			return nil, fmt.Errorf("open postgres %s@%s: %w", cfg.Name, cfg.Host, err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
