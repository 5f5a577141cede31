package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/b3factor/backend/pkg/config"
)

// PipelineTables lists every table the pipeline reads or writes
var PipelineTables = []string{
	"market.statement_facts",
	"market.daily_prices",
	"market.index_prices",
	"market.cdi_rates",
	"output.indicators",
	"output.premiums",
	"output.backtest_runs",
	"output.backtest_rows",
	"audit.data_quality_snapshots",
}

// DB owns the pgx pool shared by the input source, the output store and the
// quality repository
// ⭐ SSOT: database connections are created only in this package
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the pool and pings it
// ⭐ SSOT: the only caller of pgxpool.NewWithConfig()
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Beginner starts transactions (*pgxpool.Pool, *pgx.Conn, pgx.Tx)
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn in one transaction, committing when fn returns nil and
// rolling back otherwise. op labels the returned error.
func WithTx(ctx context.Context, b Beginner, op string, fn func(tx pgx.Tx) error) error {
	if err := pgx.BeginFunc(ctx, b, fn); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Replace swaps the rows of table matched by where (a condition over args,
// e.g. "name = $1") for rows, in one transaction. Readers never see a
// partially replaced table.
func Replace(ctx context.Context, b Beginner, table pgx.Identifier, columns []string, rows [][]interface{}, where string, args ...interface{}) (int64, error) {
	var copied int64
	err := WithTx(ctx, b, "replace "+table.Sanitize(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, replaceDeleteSQL(table, where), args...); err != nil {
			return err
		}
		n, err := tx.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
		copied = n
		return err
	})
	return copied, err
}

func replaceDeleteSQL(table pgx.Identifier, where string) string {
	if strings.TrimSpace(where) == "" {
		return "DELETE FROM " + table.Sanitize()
	}
	return "DELETE FROM " + table.Sanitize() + " WHERE " + where
}

// HealthStatus is the db-check report
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	ResponseTime  time.Duration `json:"response_time"`
	MissingTables []string      `json:"missing_tables,omitempty"`
	MaxConns      int32         `json:"max_conns"`
	TotalConns    int32         `json:"total_conns"`
	IdleConns     int32         `json:"idle_conns"`
	AcquireCount  int64         `json:"acquire_count"`
}

// HealthCheck pings the database and verifies the pipeline tables exist.
// Missing tables make the status unhealthy without returning an error.
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		return &HealthStatus{}, fmt.Errorf("ping database: %w", err)
	}
	status := &HealthStatus{ResponseTime: time.Since(start)}

	for _, table := range PipelineTables {
		var exists bool
		if err := db.Pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
			return status, fmt.Errorf("check table %s: %w", table, err)
		}
		if !exists {
			status.MissingTables = append(status.MissingTables, table)
		}
	}

	stats := db.Pool.Stat()
	status.MaxConns = stats.MaxConns()
	status.TotalConns = stats.TotalConns()
	status.IdleConns = stats.IdleConns()
	status.AcquireCount = stats.AcquireCount()
	status.Healthy = len(status.MissingTables) == 0
	return status, nil
}
