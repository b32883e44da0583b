package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rshade/costlens/internal/ingest"
)

// DefaultSQLQuery expects a costs table with date, entity and cost columns.
// The two placeholders receive the From and To dates as YYYY-MM-DD.
const DefaultSQLQuery = `SELECT date, entity, cost FROM costs WHERE date >= ? AND date <= ? ORDER BY date, entity`

// Open-ended bounds bound to the query placeholders.
const (
	sqlMinDate = "0001-01-01"
	sqlMaxDate = "9999-12-31"
)

// SQL runs a query against a database/sql handle.
type SQL struct {
	db    *sql.DB
	query string
}

// OpenSQLite opens the SQLite database at path. An empty query selects
// DefaultSQLQuery.
func OpenSQLite(path, query string) (*SQL, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if _, err = db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: configure: %w", err)
	}
	return NewSQL(db, query), nil
}

// NewSQL wraps an open handle.
func NewSQL(db *sql.DB, query string) *SQL {
	if query == "" {
		query = DefaultSQLQuery
	}
	return &SQL{db: db, query: query}
}

// Name implements Source.
func (s *SQL) Name() string { return "sqlite" }

// Close closes the database handle.
func (s *SQL) Close() error { return s.db.Close() }

// Fetch implements Source. Column names come from the result set.
func (s *SQL) Fetch(ctx context.Context, q Query) (ingest.RawTable, error) {
	from, to := sqlMinDate, sqlMaxDate
	if !q.From.IsZero() {
		from = q.From.UTC().Format("2006-01-02")
	}
	if !q.To.IsZero() {
		to = q.To.UTC().Format("2006-01-02")
	}

	rows, err := s.db.QueryContext(ctx, s.query, from, to)
	if err != nil {
		return ingest.RawTable{}, fail(s.Name(), fmt.Errorf("query: %w", err))
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return ingest.RawTable{}, fail(s.Name(), err)
	}
	table := ingest.RawTable{Columns: cols}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err = rows.Scan(ptrs...); err != nil {
			return ingest.RawTable{}, fail(s.Name(), fmt.Errorf("scan: %w", err))
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = sqlCell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return ingest.RawTable{}, fail(s.Name(), err)
	}
	return table, nil
}

func sqlCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format("2006-01-02")
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
