package storage

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-storefront/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func TestDriverFor(t *testing.T) {
	assert.Equal(t, DriverPostgres, DriverFor("postgres://u:p@localhost/db"))
	assert.Equal(t, DriverPostgres, DriverFor(" PostgreSQL://localhost/db"))
	assert.Equal(t, DriverSQLite, DriverFor("file:storefront.db?cache=shared"))
	assert.Equal(t, DriverSQLite, DriverFor(":memory:"))
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOptionsAsPersistenceConfig(t *testing.T) {
	opts := Options{DSN: " postgres://u:p@localhost/db ", Debug: true}
	assert.Equal(t, "postgres", opts.GetDriver())
	assert.Equal(t, "postgres://u:p@localhost/db", opts.GetServer())
	assert.Equal(t, defaultPingTimeout, opts.GetPingTimeout())
	assert.False(t, opts.GetDebug(), "query logging goes through bundebug")

	opts = Options{DSN: ":memory:", PingTimeout: time.Second}
	assert.Equal(t, sqliteshim.ShimName, opts.GetDriver())
	assert.Equal(t, time.Second, opts.GetPingTimeout())
}

func TestMigrateAndSeed(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, Options{DSN: "file::memory:?cache=shared"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx), "migrate is idempotent")

	n, err := store.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = store.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seed skips a populated catalog")

	items, total, err := catalog.NewPaintings(store.DB()).ListPage(ctx, catalog.Page{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, items, total)
	assert.Equal(t, "Misty Mountains at Dawn", items[0].Title)

	reserved, err := catalog.NewPaintings(store.DB()).GetByItemNumber(ctx, "cap-100003-qng")
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusReserved, reserved.Status)
	assert.Equal(t, []string{"gongbi"}, reserved.ArtisticStyles)

	require.NoError(t, store.Ping(ctx))
}

func TestQueryWriterLogsThroughLogger(t *testing.T) {
	logger := &captureLogger{}
	w := queryWriter{logger: logger}

	n, err := w.Write([]byte("SELECT 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	_, _ = w.Write([]byte("  \n"))

	assert.Equal(t, []string{"SELECT 1"}, logger.queries)
}

type captureLogger struct {
	queries []string
}

func (l *captureLogger) Debug(msg string, args ...any) {
	if len(args) == 2 {
		l.queries = append(l.queries, args[1].(string))
	}
}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Error(string, ...any) {}
