// Package history stores finished import runs.
//
// Three stores implement core.RunStore: an in-process MemoryStore, a
// PostgresStore on a pgx pool, and a SQLiteStore for single-host installs.
// Open picks one from configuration.
package history

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.HistoryConfig) (core.RunStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return OpenPostgres(ctx, cfg)
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}
