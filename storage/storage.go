// Package storage opens the catalog database, runs its migrations and loads
// the demo fixtures.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/catalog"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

const defaultPingTimeout = 5 * time.Second

// Driver names a supported database.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// DriverFor picks the driver from the DSN scheme.
func DriverFor(dsn string) Driver {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Options configure Open. They double as the persistence client config.
type Options struct {
	DSN    string
	Logger storefront.Logger
	// Debug logs every query at debug level.
	Debug       bool
	PingTimeout time.Duration
}

// GetDebug is false: query logging is installed by Open so it goes through
// the storefront logger.
func (o Options) GetDebug() bool { return false }

func (o Options) GetDriver() string {
	if DriverFor(o.DSN) == DriverPostgres {
		return "postgres"
	}
	return sqliteshim.ShimName
}

func (o Options) GetServer() string { return strings.TrimSpace(o.DSN) }

func (o Options) GetPingTimeout() time.Duration {
	if o.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return o.PingTimeout
}

func (o Options) GetOtelIdentifier() string { return "" }

// Storage owns the catalog database.
type Storage struct {
	client *persistence.Client
	logger storefront.Logger
}

func init() {
	for _, model := range catalog.Models() {
		persistence.RegisterModel(model)
	}
}

// Open connects to the database named by the DSN and registers the catalog
// migrations and fixtures.
func Open(ctx context.Context, opts Options) (*Storage, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("storage: database DSN is required")
	}
	logger := storefront.NormalizeLogger(opts.Logger)

	sqldb, err := sql.Open(opts.GetDriver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", DriverFor(dsn), err)
	}

	var dialect schema.Dialect = sqlitedialect.New()
	if DriverFor(dsn) == DriverPostgres {
		dialect = pgdialect.New()
	} else if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// every connection to an in-memory database is a new database
		sqldb.SetMaxOpenConns(1)
	}

	client, err := persistence.New(opts, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}
	client.SetLogger(logger)

	client.DB().AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(opts.Debug),
		bundebug.WithVerbose(true),
		bundebug.WithWriter(queryWriter{logger: logger}),
	))

	pingCtx, cancel := context.WithTimeout(ctx, opts.GetPingTimeout())
	defer cancel()
	if err := client.DB().PingContext(pingCtx); err != nil {
		_ = client.DB().Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	migrations, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	client.RegisterFixtures(fixturesFS)

	return &Storage{client: client, logger: logger}, nil
}

// DB is the underlying bun handle.
func (s *Storage) DB() *bun.DB {
	return s.client.DB()
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.client.DB().Close()
}

// Migrate brings the schema up to date. Running it twice is a no-op.
func (s *Storage) Migrate(ctx context.Context) error {
	if err := s.client.ValidateDialects(ctx); err != nil {
		return fmt.Errorf("storage: validate migrations: %w", err)
	}
	if err := s.client.Migrate(ctx); err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	if report := s.client.Report(); report != nil && !report.IsZero() {
		s.logger.Info("migrations applied", "report", report.String())
	}
	return nil
}

// Seed loads the demo fixtures when the paintings table is empty and reports
// how many paintings were inserted.
func (s *Storage) Seed(ctx context.Context) (int, error) {
	before, err := s.countPaintings(ctx)
	if err != nil {
		return 0, err
	}
	if before > 0 {
		return 0, nil
	}

	if err := s.client.Seed(ctx); err != nil {
		return 0, fmt.Errorf("storage: seed: %w", err)
	}
	return s.countPaintings(ctx)
}

// Ping checks the connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.DB().PingContext(ctx)
}

func (s *Storage) countPaintings(ctx context.Context) (int, error) {
	n, err := s.client.DB().NewSelect().Model((*catalog.Painting)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: count paintings: %w", err)
	}
	return n, nil
}

// queryWriter feeds bundebug output into the storefront logger.
type queryWriter struct {
	logger storefront.Logger
}

func (w queryWriter) Write(p []byte) (int, error) {
	if line := strings.TrimSpace(string(p)); line != "" {
		w.logger.Debug("sql", "query", line)
	}
	return len(p), nil
}
