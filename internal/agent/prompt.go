package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/finchat/internal/domain"
)

// PromptInput is everything the per-message instruction text is built from.
type PromptInput struct {
	Username   string
	Department string
	History    []domain.Turn
	Query      string
}

const rolePreamble = `You are an assistant helping users analyze and calculate data from a financial database.
Always remember:
- The current user is %s from the %s department.`

const schemaGuide = `DATABASE SCHEMA:
- non_payroll_budget: Budget data by account/department with monthly columns
- payroll_budget: Employee salary budgets with monthly allocations
- actual_tb_data: Trial balance with actual expenses, vendors, PO numbers
- actual_timesheet_data: Employee timesheet entries with days and projects
- Mapping tables: main_accounts, departments, projects, employees

ANALYSIS GUIDELINES:
- For Department Expense Analysis → compare non_payroll_budget vs actual_tb_data
- For Timesheet Analysis → compare payroll_budget vs actual_timesheet_data
- For expenses/costs/transactions → use ` + "`actual_tb_data`" + `
- For payroll/salaries → use ` + "`actual_timesheet_data`" + `
- Provide specific numbers, percentages, insights, and recommendations
- Never hallucinate, always query the DB directly`

const scopingRules = `SCOPING RULES:
- If the user asks a generic question (e.g., "What is the total expense?"), assume they mean their own department: %s.
- Do NOT show results for all departments unless the user explicitly asks for "all departments" or specifies another department name.
- Always default filtering and aggregation to the user's department unless overridden by explicit user instructions.`

// BuildPrompt renders the instruction text handed to the agent for one
// message: role, user and department, schema guide, scoping rules, the
// conversation so far, and the query itself.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, rolePreamble, in.Username, in.Department)
	b.WriteString("\n\n")
	b.WriteString(schemaGuide)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, scopingRules, in.Department)
	b.WriteString("\n\n")

	b.WriteString("Conversation History:\n")
	b.WriteString(FormatHistory(in.History))
	b.WriteString("\n\n")

	b.WriteString("User query: ")
	b.WriteString(in.Query)
	b.WriteString("\n")
	return b.String()
}

// FormatHistory renders turns as "Role: content" lines, oldest first.
func FormatHistory(turns []domain.Turn) string {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Role.Label() + ": " + t.Message
	}
	return strings.Join(lines, "\n")
}

// BuildAgentSystemPrompt is the system instruction for the SQL agent loop.
// It explains the tool-call protocol and lists the available tools.
func BuildAgentSystemPrompt(tools []ToolDef, topK int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current date: %s\n\n", time.Now().Format(time.DateOnly))

	b.WriteString("You are an agent designed to interact with a SQLite database.\n")
	b.WriteString("Given an input question, create a syntactically correct SQLite query to run, " +
		"then look at the results of the query and return the answer.\n")
	fmt.Fprintf(&b, "Unless the user asks for a specific number of examples, limit your query to at most %d results.\n", topK)
	b.WriteString("Only ask for the relevant columns, never all the columns of a table.\n")
	b.WriteString("Do not make any DML statements (INSERT, UPDATE, DELETE, DROP etc.) to the database.\n")
	b.WriteString("Always look at the tables first, then query the schema of the most relevant tables.\n")
	b.WriteString("If the question does not seem related to the database, say you don't know.\n")

	if len(tools) > 0 {
		b.WriteString("\n## Available Tools\n\n")
		b.WriteString("Call a tool by outputting a fenced code block with the language tag `tool_call`:\n\n")
		b.WriteString("```tool_call\n{\"tool\": \"tool_name\", \"input\": {\"param\": \"value\"}}\n```\n\n")
		b.WriteString("The result is sent back to you. You may call several tools before giving your final answer. " +
			"The final answer must not contain a tool_call block.\n\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "### %s\n%s\n", t.Name, t.Description)
			if t.InputSchema != "" {
				fmt.Fprintf(&b, "Input schema: %s\n", t.InputSchema)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
