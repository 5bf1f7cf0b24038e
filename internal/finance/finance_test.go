package finance

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/finchat/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func seededDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:", Options{}, silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.SeedDemo(context.Background()))
	return db
}

func TestTables(t *testing.T) {
	db := seededDB(t)

	tables, err := db.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"actual_tb_data",
		"actual_timesheet_data",
		"departments",
		"employee",
		"employees",
		"main_accounts",
		"non_payroll_budget",
		"payroll_budget",
		"projects",
	}, tables)
}

func TestSeedDemo_Idempotent(t *testing.T) {
	db := seededDB(t)
	require.NoError(t, db.SeedDemo(context.Background()))

	var n int
	require.NoError(t, db.SQL().QueryRow("SELECT COUNT(*) FROM employee").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestTableInfo(t *testing.T) {
	db := seededDB(t)

	info, err := db.TableInfo(context.Background(), []string{"employee", " departments "})
	require.NoError(t, err)
	assert.Contains(t, info, "CREATE TABLE employee")
	assert.Contains(t, info, "3 rows from employee table:")
	assert.Contains(t, info, "position_number\tname\temail_id")
	assert.Contains(t, info, "P-1001\tAlice Smith\talice@example.com")
	assert.Contains(t, info, "CREATE TABLE departments")
}

func TestTableInfo_UnknownTable(t *testing.T) {
	db := seededDB(t)

	_, err := db.TableInfo(context.Background(), []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" not found`)
}

func TestRun(t *testing.T) {
	db := seededDB(t)

	out, err := db.Run(context.Background(),
		"SELECT name, email_id FROM employee WHERE position_number = 'P-1001'")
	require.NoError(t, err)
	assert.Equal(t, "name | email_id\nAlice Smith | alice@example.com\n", out)
}

func TestRun_DecimalAmounts(t *testing.T) {
	db := seededDB(t)

	out, err := db.Run(context.Background(),
		"SELECT SUM(amount) AS total FROM actual_tb_data WHERE department = 'Finance'")
	require.NoError(t, err)
	assert.Equal(t, "total\n4340.24\n", out)
}

func TestRun_NoRows(t *testing.T) {
	db := seededDB(t)

	out, err := db.Run(context.Background(), "SELECT * FROM employee WHERE 1 = 0")
	require.NoError(t, err)
	assert.Equal(t, "(no rows)", out)
}

func TestRun_BadQuery(t *testing.T) {
	db := seededDB(t)

	_, err := db.Run(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestRun_Truncates(t *testing.T) {
	db := seededDB(t)

	out, err := db.Run(context.Background(),
		"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i + 1 FROM n WHERE i < 500) SELECT i FROM n")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, maxResultRows+2)
	assert.Equal(t, "(truncated to 200 rows)", lines[len(lines)-1])
}

func TestOpen_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finance.db")

	rw, err := Open(path, Options{}, silentLog())
	require.NoError(t, err)
	require.NoError(t, rw.SeedDemo(context.Background()))
	require.NoError(t, rw.Close())

	ro, err := Open(path, Options{ReadOnly: true}, silentLog())
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Run(context.Background(), "SELECT COUNT(*) FROM employee")
	require.NoError(t, err)

	_, err = ro.SQL().Exec("DELETE FROM employee")
	assert.Error(t, err)
}

func TestOpen_ReadOnlyMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.db"), Options{ReadOnly: true}, silentLog())
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{int64(42), "42"},
		{float64(1200), "1200"},
		{1340.25, "1340.25"},
		{0.1 + 0.2, "0.30"},
		{[]byte("raw"), "raw"},
		{"text", "text"},
		{true, "1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in), "formatValue(%v)", tt.in)
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"employee"`, quoteIdent("employee"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
