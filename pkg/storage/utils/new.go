// Package storageutils picks a storage driver from configuration.
package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// PostgresDSN selects PostgreSQL when set.
	PostgresDSN string

	// SQLitePath selects SQLite when set and PostgresDSN is empty.
	SQLitePath string

	Logger *slog.Logger
}

// NewDriver opens the configured driver, falling back to in-memory storage.
func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	switch {
	case o.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		o.Logger.Info("using PostgreSQL storage")
		return driver, nil

	case o.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		o.Logger.Info("using SQLite storage", "path", o.SQLitePath)
		return driver, nil
	}

	o.Logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}
