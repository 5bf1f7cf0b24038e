package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SQLDatabase is what the SQL tools need from the finance database.
type SQLDatabase interface {
	Tables(ctx context.Context) ([]string, error)
	TableInfo(ctx context.Context, tables []string) (string, error)
	Run(ctx context.Context, query string) (string, error)
}

// SQLTools returns the three database tools bound to db.
func SQLTools(db SQLDatabase) []Tool {
	return []Tool{
		&listTablesTool{db: db},
		&schemaTool{db: db},
		&queryTool{db: db},
	}
}

type listTablesTool struct{ db SQLDatabase }

func (t *listTablesTool) Name() string { return "sql_db_list_tables" }
func (t *listTablesTool) Description() string {
	return "Returns a comma-separated list of the tables in the database. Call this first."
}
func (t *listTablesTool) InputSchema() string { return `{"type":"object","properties":{}}` }

func (t *listTablesTool) Execute(ctx context.Context, _ string) (string, error) {
	tables, err := t.db.Tables(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(tables, ", "), nil
}

type schemaTool struct{ db SQLDatabase }

func (t *schemaTool) Name() string { return "sql_db_schema" }
func (t *schemaTool) Description() string {
	return "Returns the schema and sample rows for the given tables. " +
		"Check the tables exist with sql_db_list_tables first. " +
		"Example input: {\"table_names\": \"payroll_budget, actual_timesheet_data\"}"
}
func (t *schemaTool) InputSchema() string {
	return `{"type":"object","properties":{"table_names":{"type":"string","description":"comma-separated table names"}},"required":["table_names"]}`
}

func (t *schemaTool) Execute(ctx context.Context, input string) (string, error) {
	var in struct {
		TableNames string `json:"table_names"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}

	var tables []string
	for _, name := range strings.Split(in.TableNames, ",") {
		if name = strings.TrimSpace(name); name != "" {
			tables = append(tables, name)
		}
	}
	if len(tables) == 0 {
		return "", errors.New("table_names is required")
	}
	return t.db.TableInfo(ctx, tables)
}

type queryTool struct{ db SQLDatabase }

func (t *queryTool) Name() string { return "sql_db_query" }
func (t *queryTool) Description() string {
	return "Executes a SQLite query and returns the result rows. " +
		"If the query is wrong an error is returned; rewrite the query and try again. " +
		"If a column is unknown, use sql_db_schema to look up the correct columns."
}
func (t *queryTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`
}

func (t *queryTool) Execute(ctx context.Context, input string) (string, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := decodeInput(input, &in); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Query) == "" {
		return "", errors.New("query is required")
	}
	return t.db.Run(ctx, in.Query)
}

func decodeInput(input string, v any) error {
	input = strings.TrimSpace(input)
	if input == "" || input == "null" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}
