package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/b3factor/backend/pkg/config"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := New(context.Background(), &config.Config{
		Database: config.DatabaseConfig{
			URL:             url,
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

// txRecorder counts Begin calls and fails them on demand
type txRecorder struct {
	begins int
	err    error
}

func (r *txRecorder) Begin(ctx context.Context) (pgx.Tx, error) {
	r.begins++
	return nil, r.err
}

func TestWithTx_BeginErrorIsLabeled(t *testing.T) {
	boom := errors.New("connection refused")
	rec := &txRecorder{err: boom}

	called := false
	err := WithTx(context.Background(), rec, "save cdi rates", func(tx pgx.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save cdi rates")
	assert.False(t, called)
	assert.Equal(t, 1, rec.begins)
}

func TestReplace_BeginErrorNamesTable(t *testing.T) {
	rec := &txRecorder{err: errors.New("down")}

	n, err := Replace(context.Background(), rec,
		pgx.Identifier{"output", "indicators"},
		[]string{"name", "trade_date", "ticker", "value"},
		nil, "name = $1", "roe")

	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), `replace "output"."indicators"`)
}

func TestReplaceDeleteSQL(t *testing.T) {
	table := pgx.Identifier{"output", "premiums"}

	assert.Equal(t,
		`DELETE FROM "output"."premiums" WHERE strategy = $1 AND liquidity_floor = $2`,
		replaceDeleteSQL(table, "strategy = $1 AND liquidity_floor = $2"))
	assert.Equal(t, `DELETE FROM "output"."premiums"`, replaceDeleteSQL(table, " "))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), &config.Config{
		Database: config.DatabaseConfig{URL: "invalid://url", MaxConns: 4, MinConns: 1},
	})
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := testDB(t)

	status, err := db.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), status.MaxConns)
	assert.Equal(t, len(status.MissingTables) == 0, status.Healthy)
}

func TestReplace_SwapsRows(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	conn, err := db.Pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, `CREATE TEMP TABLE replace_rows (name text, v int)`)
	require.NoError(t, err)

	table := pgx.Identifier{"replace_rows"}
	cols := []string{"name", "v"}

	_, err = Replace(ctx, conn.Conn(), table, cols, [][]interface{}{{"roe", 1}, {"roe", 2}, {"roa", 9}}, "name = $1", "roe")
	require.NoError(t, err)
	n, err := Replace(ctx, conn.Conn(), table, cols, [][]interface{}{{"roe", 3}}, "name = $1", "roe")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var count, sum int
	require.NoError(t, conn.QueryRow(ctx, `SELECT count(*), coalesce(sum(v), 0) FROM replace_rows`).Scan(&count, &sum))
	assert.Equal(t, 2, count)
	assert.Equal(t, 12, sum)
}
