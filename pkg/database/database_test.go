package database

import (
	"context"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("in-memory pool is pinned to one connection", func(t *testing.T) {
		db, err := New(ctx, WithMaxOpenConns(10))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		assert.Equal(t, 1, db.Stats().MaxOpenConnections)

		_, err = db.ExecContext(ctx, `CREATE TABLE t (id INTEGER)`)
		require.NoError(t, err)
		var n int
		require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n))
		assert.Equal(t, 0, n)
	})

	t.Run("file database keeps pool settings", func(t *testing.T) {
		dsn := t.TempDir() + "/esg.db"
		db, err := New(ctx, WithDataSource(dsn), WithMaxOpenConns(4))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		assert.Equal(t, 4, db.Stats().MaxOpenConnections)

		var mode string
		require.NoError(t, db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&mode))
		assert.Equal(t, "wal", mode)
		var busy int
		require.NoError(t, db.QueryRowContext(ctx, `PRAGMA busy_timeout`).Scan(&busy))
		assert.Equal(t, 5000, busy)
	})

	t.Run("empty driver", func(t *testing.T) {
		_, err := New(ctx, WithDriver(""))
		assert.ErrorContains(t, err, "driver cannot be empty")
	})

	t.Run("empty data source", func(t *testing.T) {
		_, err := New(ctx, WithDataSource(""))
		assert.ErrorContains(t, err, "data source cannot be empty")
	})

	t.Run("unknown driver exhausts retries", func(t *testing.T) {
		_, err := New(ctx, WithDriver("nope"), WithRetry(2, time.Millisecond))
		assert.ErrorContains(t, err, "after 2 attempts")
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New(cctx, WithDriver("nope"), WithRetry(5, time.Hour))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:./data/esg.db?_busy_timeout=5000&_journal_mode=WAL",
		sqliteDSN("./data/esg.db", 5*time.Second))
	assert.Equal(t, "file:esg.db?cache=shared&_journal_mode=WAL", sqliteDSN("file:esg.db?cache=shared", 0))
	assert.Equal(t, ":memory:", sqliteDSN(":memory:", time.Second))
	assert.Equal(t, "esg.db?_busy_timeout=100", sqliteDSN("esg.db?_busy_timeout=100", time.Second))
}

func TestIsMemory(t *testing.T) {
	assert.True(t, IsMemory(":memory:"))
	assert.True(t, IsMemory("file:esg?mode=memory&cache=shared"))
	assert.False(t, IsMemory("/var/lib/esg/esg.db"))
}
