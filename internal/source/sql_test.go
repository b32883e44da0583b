package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/costlens/internal/ingest"
)

func newTestSQLite(t *testing.T, query string) *SQL {
	t.Helper()
	src, err := OpenSQLite(filepath.Join(t.TempDir(), "costs.db"), query)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	_, err = src.db.Exec(`CREATE TABLE costs (date TEXT NOT NULL, entity TEXT NOT NULL, cost REAL NOT NULL)`)
	require.NoError(t, err)
	_, err = src.db.Exec(`INSERT INTO costs (date, entity, cost) VALUES
		('2024-01-01', 'WebApp', 100.5),
		('2024-01-02', 'WebApp', 110),
		('2024-01-02', 'DB', 40),
		('2024-01-05', 'DB', 45)`)
	require.NoError(t, err)
	return src
}

func TestSQLFetch(t *testing.T) {
	src := newTestSQLite(t, "")
	assert.Equal(t, "sqlite", src.Name())

	table, err := src.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "entity", "cost"}, table.Columns)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"2024-01-01", "WebApp", "100.5"}, table.Rows[0])

	canon, err := ingest.Normalize(context.Background(), table, ingest.DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 295.5, canon.TotalCost(), 1e-9)
}

func TestSQLFetchBounds(t *testing.T) {
	src := newTestSQLite(t, "")
	table, err := src.Fetch(context.Background(), Query{
		From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2)
}

func TestSQLCustomQueryAndFailure(t *testing.T) {
	src := newTestSQLite(t, `SELECT date AS UsageDate, entity AS Application, cost * 2 AS Cost FROM costs WHERE date BETWEEN ? AND ?`)
	table, err := src.Fetch(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"UsageDate", "Application", "Cost"}, table.Columns)
	assert.Equal(t, "201", table.Rows[0][2])

	bad := NewSQL(src.db, "SELECT * FROM nowhere WHERE 1 = ? AND 2 = ?")
	_, err = bad.Fetch(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
