// Package database opens the SQL pool that backs the record store.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	sqliteDriver = "sqlite3"
	memoryDSN    = ":memory:"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Logger          *zap.Logger
}

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = d }
}

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = d }
}

// WithBusyTimeout sets how long a SQLite file database waits on a locked writer
// before returning SQLITE_BUSY. Zero leaves the driver default.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *Options) { o.BusyTimeout = d }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// WithLogger reports failed connection attempts.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// IsMemory reports whether dsn names a private in-memory SQLite database.
func IsMemory(dsn string) bool {
	return strings.HasPrefix(dsn, memoryDSN) || strings.Contains(dsn, "mode=memory")
}

// sqliteDSN turns a plain SQLite path into a URI carrying the busy timeout and WAL
// journal, so dashboard reads do not block on the occasional writer.
func sqliteDSN(dsn string, busy time.Duration) string {
	if IsMemory(dsn) || strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	params := "_journal_mode=WAL"
	if busy > 0 {
		params = fmt.Sprintf("_busy_timeout=%d&%s", busy.Milliseconds(), params)
	}
	return dsn + sep + params
}

func (o *Options) validate() error {
	if o.Driver == "" {
		return errors.New("database driver cannot be empty")
	}
	if o.DataSource == "" {
		return errors.New("database data source cannot be empty")
	}
	if o.RetryAttempts < 1 {
		o.RetryAttempts = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Driver != sqliteDriver {
		return nil
	}
	if IsMemory(o.DataSource) {
		// Every connection to :memory: is a separate database.
		o.MaxOpenConns = 1
		o.MaxIdleConns = 1
		o.ConnMaxLifetime = 0
		o.ConnMaxIdleTime = 0
		return nil
	}
	o.DataSource = sqliteDSN(o.DataSource, o.BusyTimeout)
	return nil
}

func (o *Options) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(o.Driver, o.DataSource)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// New opens a connection pool and pings it, retrying with linear backoff.
func New(ctx context.Context, opts ...Option) (*sql.DB, error) {
	options := &Options{
		Driver:          sqliteDriver,
		DataSource:      memoryDSN,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		BusyTimeout:     5 * time.Second,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; attempt <= options.RetryAttempts; attempt++ {
		var db *sql.DB
		if db, err = options.open(ctx); err == nil {
			return db, nil
		}
		options.Logger.Warn("database connection attempt failed",
			zap.String("driver", options.Driver),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == options.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to database: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * options.RetryDelay):
		}
	}

	return nil, fmt.Errorf("connect to database after %d attempts: %w", options.RetryAttempts, err)
}
