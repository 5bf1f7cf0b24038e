package finance

import (
	"context"
	"fmt"
	"strings"
)

var months = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

func monthColumns() string {
	cols := make([]string, len(months))
	for i, m := range months {
		cols[i] = m + " REAL NOT NULL DEFAULT 0"
	}
	return strings.Join(cols, ",\n\t\t")
}

// demoSchema mirrors the layout the chat prompt describes: two budget tables
// with monthly columns, two actuals tables, and the mapping tables.
func demoSchema() string {
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS employee (
		position_number TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		email_id        TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payroll_budget (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		position_number TEXT NOT NULL,
		email_id        TEXT NOT NULL,
		department      TEXT NOT NULL,
		%[1]s
	);

	CREATE TABLE IF NOT EXISTS non_payroll_budget (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		main_account TEXT NOT NULL,
		department   TEXT NOT NULL,
		%[1]s
	);

	CREATE TABLE IF NOT EXISTS actual_tb_data (
		id                             INTEGER PRIMARY KEY AUTOINCREMENT,
		posting_date                   TEXT NOT NULL,
		main_account                   TEXT NOT NULL,
		department                     TEXT NOT NULL,
		vendor                         TEXT,
		po_number                      TEXT,
		description                    TEXT,
		amount                         REAL NOT NULL,
		amount_in_transaction_currency REAL NOT NULL,
		currency                       TEXT NOT NULL DEFAULT 'USD'
	);

	CREATE TABLE IF NOT EXISTS actual_timesheet_data (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		position_number TEXT NOT NULL,
		department      TEXT NOT NULL,
		project         TEXT NOT NULL,
		work_date       TEXT NOT NULL,
		days            REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS main_accounts (
		account_code TEXT PRIMARY KEY,
		account_name TEXT NOT NULL,
		category     TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS departments (
		department_code TEXT PRIMARY KEY,
		department_name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		project_code TEXT PRIMARY KEY,
		project_name TEXT NOT NULL,
		department   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		position_number TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		department      TEXT NOT NULL,
		grade           TEXT
	);
	`, monthColumns())
}

// Demo users: Alice and Bob can log in; Carol has an employee row but no
// payroll_budget row, so her login is rejected.
const demoData = `
	INSERT INTO employee VALUES
		('P-1001', 'Alice Smith', 'alice@example.com'),
		('P-1002', 'Bob Jones',   'bob@example.com'),
		('P-1003', 'Carol White', 'carol@example.com');

	INSERT INTO employees VALUES
		('P-1001', 'Alice Smith', 'Finance',   'G7'),
		('P-1002', 'Bob Jones',   'Marketing', 'G6'),
		('P-1003', 'Carol White', 'Finance',   'G5');

	INSERT INTO departments VALUES
		('FIN', 'Finance'),
		('MKT', 'Marketing');

	INSERT INTO main_accounts VALUES
		('6100', 'Travel',         'Operating'),
		('6200', 'Software',       'Operating'),
		('6300', 'Advertising',    'Operating'),
		('5000', 'Salaries',       'Payroll');

	INSERT INTO projects VALUES
		('PRJ-CLOSE', 'Quarter Close', 'Finance'),
		('PRJ-LAUNCH', 'Spring Launch', 'Marketing');

	INSERT INTO payroll_budget (position_number, email_id, department, jan, feb, mar) VALUES
		('P-1001', 'alice@example.com', 'Finance',   8500, 8500, 8500),
		('P-1002', 'bob@example.com',   'Marketing', 7200, 7200, 7350.5);

	INSERT INTO non_payroll_budget (main_account, department, jan, feb, mar) VALUES
		('6100', 'Finance',   1200, 1200, 1500),
		('6200', 'Finance',   3000, 3000, 3000),
		('6300', 'Marketing', 9000, 12000, 15000);

	INSERT INTO actual_tb_data (posting_date, main_account, department, vendor, po_number, description, amount, amount_in_transaction_currency, currency) VALUES
		('2025-01-14', '6100', 'Finance',   'SkyAir',     'PO-5001', 'Audit travel',      1340.25, 1340.25, 'USD'),
		('2025-02-03', '6200', 'Finance',   'LedgerSoft', 'PO-5002', 'Annual licence',    2999.99, 2999.99, 'USD'),
		('2025-02-20', '6300', 'Marketing', 'AdWorks',    'PO-6001', 'Search campaign',  11250.00, 10380.00, 'EUR');

	INSERT INTO actual_timesheet_data (position_number, department, project, work_date, days) VALUES
		('P-1001', 'Finance',   'PRJ-CLOSE',  '2025-01-31', 5),
		('P-1002', 'Marketing', 'PRJ-LAUNCH', '2025-02-28', 3.5);
`

// SeedDemo creates the demo finance schema and fills it with a handful of
// rows. It is a no-op when the employee table already has data.
func (db *DB) SeedDemo(ctx context.Context) error {
	if _, err := db.sql.ExecContext(ctx, demoSchema()); err != nil {
		return fmt.Errorf("creating demo schema: %w", err)
	}

	var existing int
	if err := db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM employee`).Scan(&existing); err != nil {
		return fmt.Errorf("checking demo data: %w", err)
	}
	if existing > 0 {
		db.log.Info().Int("employees", existing).Msg("finance database already has data, skipping seed")
		return nil
	}

	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, demoData); err != nil {
		return fmt.Errorf("inserting demo data: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	db.log.Info().Str("path", db.path).Msg("demo finance data seeded")
	return nil
}
