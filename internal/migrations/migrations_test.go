package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitMigrationCreatesOrderTables(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(data)
	for _, table := range []string{"products", "shipping_methods", "orders", "order_items"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
}

func TestOutboxMigrationRelaxesItemPrice(t *testing.T) {
	data, err := fs.ReadFile(files, "sql/000002_outbox_and_line_totals.up.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS outbox_events")
	assert.Contains(t, sql, "CHECK (price >= 0)")
	assert.Contains(t, sql, "CHECK (total_price > 0)")
}
