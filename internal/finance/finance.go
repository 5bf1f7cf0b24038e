// Package finance gives the SQL agent and the login flow access to the
// finance database: table discovery, schema descriptions with sample rows,
// and ad-hoc queries rendered as text.
package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/soyeahso/finchat/internal/logging"
)

const (
	sampleRows    = 3
	maxResultRows = 200
)

// Options controls how the finance database is opened.
type Options struct {
	// ReadOnly opens the file with mode=ro. The chat path always sets it;
	// only seeding needs write access.
	ReadOnly bool
}

// DB is a handle on the finance database.
type DB struct {
	sql  *sql.DB
	log  *logging.Logger
	path string
}

// Open connects to the finance database at path. Use ":memory:" in tests.
func Open(path string, opts Options, log *logging.Logger) (*DB, error) {
	dsn := path
	inMemory := path == ":memory:"
	if opts.ReadOnly && !inMemory {
		dsn = "file:" + path + "?mode=ro"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening finance db: %w", err)
	}
	if inMemory {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to finance db %s: %w", path, err)
	}

	db := &DB{sql: sqlDB, log: log.Sub("finance"), path: path}
	db.log.Info().Str("path", path).Bool("readOnly", opts.ReadOnly).Msg("finance database opened")
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.sql.Close()
}

// SQL returns the underlying *sql.DB.
func (db *DB) SQL() *sql.DB {
	return db.sql
}

// Tables lists the user tables in name order.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.sql.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableInfo describes each named table with its CREATE statement followed by
// a few sample rows. Unknown table names are an error.
func (db *DB) TableInfo(ctx context.Context, tables []string) (string, error) {
	var b strings.Builder
	for i, table := range tables {
		table = strings.TrimSpace(table)

		var ddl string
		err := db.sql.QueryRowContext(ctx,
			`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&ddl)
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("table %q not found in database", table)
		}
		if err != nil {
			return "", fmt.Errorf("reading schema for %s: %w", table, err)
		}

		sample, err := db.query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRows), sampleRows)
		if err != nil {
			return "", fmt.Errorf("sampling %s: %w", table, err)
		}

		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(ddl))
		fmt.Fprintf(&b, "\n\n/*\n%d rows from %s table:\n%s*/", sampleRows, table, sample.text("\t"))
	}
	return b.String(), nil
}

// Run executes query and renders the result set as a pipe separated table.
// Result sets longer than maxResultRows are cut off with a note.
func (db *DB) Run(ctx context.Context, query string) (string, error) {
	start := time.Now()
	res, err := db.query(ctx, query, maxResultRows)
	if err != nil {
		db.log.Debug().Err(err).Str("query", query).Msg("query failed")
		return "", err
	}
	db.log.Debug().
		Str("query", query).
		Int("rows", len(res.rows)).
		Dur("duration", time.Since(start)).
		Msg("query executed")

	if len(res.rows) == 0 {
		return "(no rows)", nil
	}
	out := res.text(" | ")
	if res.truncated {
		out += fmt.Sprintf("(truncated to %d rows)\n", maxResultRows)
	}
	return out, nil
}

type resultSet struct {
	columns   []string
	rows      [][]string
	truncated bool
}

func (r resultSet) text(sep string) string {
	var b strings.Builder
	b.WriteString(strings.Join(r.columns, sep))
	b.WriteByte('\n')
	for _, row := range r.rows {
		b.WriteString(strings.Join(row, sep))
		b.WriteByte('\n')
	}
	return b.String()
}

func (db *DB) query(ctx context.Context, query string, limit int) (resultSet, error) {
	rows, err := db.sql.QueryContext(ctx, query)
	if err != nil {
		return resultSet{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return resultSet{}, err
	}

	res := resultSet{columns: cols}
	for rows.Next() {
		if len(res.rows) == limit {
			res.truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return resultSet{}, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		res.rows = append(res.rows, row)
	}
	return res, rows.Err()
}

// formatValue renders one cell. Floats go through decimal so that amounts
// print exactly to the cent instead of in binary float notation.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return decimal.NewFromInt(x).String()
	case float64:
		d := decimal.NewFromFloat(x)
		if d.IsInteger() {
			return d.String()
		}
		return d.StringFixed(2)
	case []byte:
		return string(x)
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		if x.Equal(x.Truncate(24 * time.Hour)) {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.DateTime)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
