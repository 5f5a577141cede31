package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/b3factor/backend/internal/contracts"
	"github.com/wonny/b3factor/backend/pkg/config"
	"github.com/wonny/b3factor/backend/pkg/database"
	"github.com/wonny/b3factor/backend/pkg/logger"
)

// Open returns the output store selected by OUTPUT_STORE. db may be nil for
// the parquet store.
// ⭐ SSOT: output store selection
func Open(cfg *config.Config, db *database.DB, log *logger.Logger) (contracts.Store, error) {
	switch cfg.Pipeline.OutputStore {
	case config.StoreParquet:
		return NewParquetStore(cfg.Pipeline.OutputDir(), log)
	case config.StorePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store requires a database connection")
		}
		return NewPostgresStore(db.Pool, log), nil
	default:
		return nil, fmt.Errorf("unknown output store %q", cfg.Pipeline.OutputStore)
	}
}

// WithStore opens a store, runs fn with it and closes it on every exit path,
// panics included. A close error is joined to the error of fn.
func WithStore(ctx context.Context, cfg *config.Config, db *database.DB, log *logger.Logger, fn func(contracts.Store) error) (err error) {
	store, err := Open(cfg, db, log)
	if err != nil {
		return err
	}
	return Scoped(ctx, store, fn)
}

// Scoped runs fn with an already opened store and closes it afterwards
func Scoped(ctx context.Context, store contracts.Store, fn func(contracts.Store) error) (err error) {
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(store)
}
