// Package agent turns one chat message into an answer: it restores the
// session's identity and recent history, builds the instruction text, runs
// the SQL agent, and records both sides of the exchange.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/hooks"
	"github.com/soyeahso/finchat/internal/logging"
)

// NoResponse is the answer recorded when the agent returns nothing.
const NoResponse = "⚠️ No response from agent."

// ErrorPrefix starts the answer recorded when the agent fails.
const ErrorPrefix = "Error processing query: "

// Agent answers a fully assembled instruction text.
type Agent interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// Memory is the session memory the dispatcher reads and appends to.
type Memory interface {
	CreateSession() string
	LookupIdentity(ctx context.Context, sessionID string) (domain.Binding, bool, error)
	LoadHistory(ctx context.Context, sessionID string) ([]domain.Turn, error)
	AppendTurn(ctx context.Context, sessionID string, role domain.Role, kind domain.TurnKind, message string, fallback domain.Binding) (domain.Turn, error)
}

// Dispatch stages, used in StageError and log fields.
const (
	StageSession       = "session_resolve"
	StageHistory       = "history_load"
	StagePersistQuery  = "persist_query"
	StagePersistAnswer = "persist_answer"
)

// StageError reports a storage failure and the dispatch stage it stopped at.
// Nothing after the failing stage ran.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Reply is the outcome of one dispatched message.
type Reply struct {
	Response  string          `json:"response"`
	SessionID string          `json:"sessionId"`
	Kind      domain.TurnKind `json:"kind"`
	Duration  time.Duration   `json:"duration"`
}

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	// HistoryWindow is how many prior turns go into the prompt.
	HistoryWindow int
}

// Dispatcher runs the per-message pipeline. It holds no per-session state;
// everything it needs comes from Memory on each call.
type Dispatcher struct {
	memory Memory
	agent  Agent
	hooks  *hooks.Manager
	window int
	log    *logging.Logger
}

// NewDispatcher creates a dispatcher. hooks may be nil.
func NewDispatcher(memory Memory, agent Agent, hm *hooks.Manager, cfg DispatcherConfig, log *logging.Logger) *Dispatcher {
	window := cfg.HistoryWindow
	if window < 0 {
		window = 0
	}
	return &Dispatcher{
		memory: memory,
		agent:  agent,
		hooks:  hm,
		window: window,
		log:    log.Sub("dispatch"),
	}
}

// Dispatch answers query within sessionID. An empty sessionID starts a new,
// unbound session. Agent failures are answered and persisted like any other
// reply (Kind TurnError); only storage failures return an error.
func (d *Dispatcher) Dispatch(ctx context.Context, query, sessionID string) (*Reply, error) {
	start := time.Now()

	binding := domain.UnknownBinding()
	if sessionID == "" {
		sessionID = d.memory.CreateSession()
		d.log.Debug().Str("sessionId", sessionID).Msg("started unbound session")
	} else {
		b, found, err := d.memory.LookupIdentity(ctx, sessionID)
		if err != nil {
			return nil, d.fail(StageSession, sessionID, err)
		}
		if found {
			binding = b
		}
	}
	log := d.log.With("sessionId", sessionID)

	turns, err := d.memory.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, d.fail(StageHistory, sessionID, err)
	}
	if n := len(turns); n > d.window {
		turns = turns[n-d.window:]
	}

	prompt := BuildPrompt(PromptInput{
		Username:   binding.Username,
		Department: binding.Department,
		History:    turns,
		Query:      query,
	})

	if _, err := d.memory.AppendTurn(ctx, sessionID, domain.RoleUser, domain.TurnNormal, query, domain.UnknownBinding()); err != nil {
		return nil, d.fail(StagePersistQuery, sessionID, err)
	}

	event := map[string]any{
		"sessionId":  sessionID,
		"user":       binding.Username,
		"department": binding.Department,
		"query":      query,
	}
	d.hooks.Emit(ctx, hooks.EventTurnReceived, event)
	d.hooks.Emit(ctx, hooks.EventBeforeAgentRun, event)

	log.Info().
		Str("user", binding.Username).
		Int("historyTurns", len(turns)).
		Msg("running agent")

	kind := domain.TurnNormal
	answer, err := d.agent.Run(ctx, prompt)
	switch {
	case err != nil:
		kind = domain.TurnError
		answer = ErrorPrefix + err.Error()
		log.Warn().Err(err).Msg("agent failed")
		d.hooks.EmitAsync(ctx, hooks.EventAgentFailed, withField(event, "error", err.Error()))
	case answer == "":
		answer = NoResponse
	}

	// The answer is recorded even if the caller gave up while the agent ran.
	persistCtx := context.WithoutCancel(ctx)
	if _, err := d.memory.AppendTurn(persistCtx, sessionID, domain.RoleAssistant, kind, answer, domain.UnknownBinding()); err != nil {
		return nil, d.fail(StagePersistAnswer, sessionID, err)
	}

	reply := &Reply{
		Response:  answer,
		SessionID: sessionID,
		Kind:      kind,
		Duration:  time.Since(start),
	}
	if kind == domain.TurnNormal {
		d.hooks.EmitAsync(ctx, hooks.EventAfterAgentRun, withField(event, "durationMs", reply.Duration.Milliseconds()))
	}

	log.Info().Str("kind", string(kind)).Dur("duration", reply.Duration).Msg("message dispatched")
	return reply, nil
}

func (d *Dispatcher) fail(stage, sessionID string, err error) error {
	d.log.Error().Err(err).Str("stage", stage).Str("sessionId", sessionID).Msg("dispatch failed")
	return &StageError{Stage: stage, Err: err}
}

func withField(m map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}
