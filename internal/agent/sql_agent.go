package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/finchat/internal/llm"
	"github.com/soyeahso/finchat/internal/logging"
)

// ErrIterationLimit is returned when the model keeps calling tools past the
// configured number of rounds.
var ErrIterationLimit = errors.New("agent stopped due to iteration limit")

// SQLAgentConfig configures the SQL agent.
type SQLAgentConfig struct {
	MaxIterations int
	MaxTokens     int
	Temperature   *float64
	TopK          int // row limit suggested to the model
}

// SQLAgent answers natural-language questions by letting an LLM explore and
// query the finance database through tools.
type SQLAgent struct {
	cfg    SQLAgentConfig
	client llm.Client
	tools  *ToolRegistry
	system string
	log    *logging.Logger
}

// NewSQLAgent creates a SQL agent driving client with the given tools.
func NewSQLAgent(cfg SQLAgentConfig, client llm.Client, tools *ToolRegistry, log *logging.Logger) *SQLAgent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	return &SQLAgent{
		cfg:    cfg,
		client: client,
		tools:  tools,
		system: BuildAgentSystemPrompt(tools.Definitions(), cfg.TopK),
		log:    log.Sub("agent.sql"),
	}
}

// Run answers prompt. Tool round trips are kept in a scratch transcript that
// is discarded when Run returns.
func (a *SQLAgent) Run(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	var usage llm.Usage
	for i := 0; i < a.cfg.MaxIterations; i++ {
		resp, err := a.client.Complete(ctx, llm.CompletionRequest{
			System:      a.system,
			Messages:    messages,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: a.cfg.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("LLM completion: %w", err)
		}
		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens

		calls := parseToolCalls(resp.Content)
		if len(calls) == 0 {
			answer := stripToolCalls(resp.Content, a.log)
			a.log.Info().
				Str("model", resp.Model).
				Int("iterations", i+1).
				Int("inputTokens", usage.InputTokens).
				Int("outputTokens", usage.OutputTokens).
				Dur("duration", time.Since(start)).
				Msg("answer generated")
			return answer, nil
		}

		a.log.Debug().Int("toolCalls", len(calls)).Int("iteration", i+1).Msg("executing tool calls")
		results := a.executeToolCalls(ctx, calls)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: formatToolResults(results)},
		)
	}

	a.log.Warn().Int("maxIterations", a.cfg.MaxIterations).Msg("iteration limit reached")
	return "", ErrIterationLimit
}

// toolCall is a parsed tool invocation from the LLM response.
type toolCall struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// toolResult holds the output from executing a tool.
type toolResult struct {
	Tool   string
	Output string
	Err    error
}

// toolCallRe matches ```tool_call\n{...}\n``` blocks in LLM output.
var toolCallRe = regexp.MustCompile("(?s)```tool_call\\s*\n(\\{.*?\\})\n\\s*```")

// xmlFuncCallRe matches <function_calls>...</function_calls> blocks some
// models emit instead of the fenced form.
var xmlFuncCallRe = regexp.MustCompile(`(?s)<function_calls>.*?</function_calls>`)

// blankLineCollapseRe collapses 3+ consecutive newlines to a single blank line.
var blankLineCollapseRe = regexp.MustCompile(`\n{3,}`)

// parseToolCalls extracts tool_call blocks from LLM response text.
func parseToolCalls(text string) []toolCall {
	var calls []toolCall
	for _, match := range toolCallRe.FindAllStringSubmatch(text, -1) {
		var tc toolCall
		if err := json.Unmarshal([]byte(match[1]), &tc); err != nil {
			continue
		}
		if tc.Tool != "" {
			calls = append(calls, tc)
		}
	}
	return calls
}

// executeToolCalls runs each tool in order. Failures become results so the
// model can see the error and correct itself.
func (a *SQLAgent) executeToolCalls(ctx context.Context, calls []toolCall) []toolResult {
	results := make([]toolResult, 0, len(calls))
	for _, tc := range calls {
		tool, ok := a.tools.Get(tc.Tool)
		if !ok {
			results = append(results, toolResult{Tool: tc.Tool, Err: fmt.Errorf("unknown tool: %s", tc.Tool)})
			continue
		}

		output, err := tool.Execute(ctx, string(tc.Input))
		if err != nil {
			a.log.Debug().Str("tool", tc.Tool).Err(err).Msg("tool failed")
		}
		results = append(results, toolResult{Tool: tc.Tool, Output: output, Err: err})
	}
	return results
}

// formatToolResults renders tool execution results for the LLM.
func formatToolResults(results []toolResult) string {
	var b strings.Builder
	b.WriteString("Tool execution results:\n\n")
	for _, r := range results {
		fmt.Fprintf(&b, "### %s\n", r.Tool)
		if r.Err != nil {
			fmt.Fprintf(&b, "Error: %s\n", r.Err)
		} else {
			b.WriteString(r.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToolCalls removes tool-call blocks from a final answer, leaving the
// surrounding text.
func stripToolCalls(text string, log *logging.Logger) string {
	cleaned := toolCallRe.ReplaceAllString(text, "\n\n")

	if log != nil {
		for _, m := range xmlFuncCallRe.FindAllString(cleaned, -1) {
			log.Info().Str("xml", m).Msg("stripped XML function_calls from LLM response")
		}
	}
	cleaned = xmlFuncCallRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")

	return strings.TrimSpace(cleaned)
}
