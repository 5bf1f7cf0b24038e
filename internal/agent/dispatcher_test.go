package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/hooks"
	"github.com/soyeahso/finchat/internal/logging"
	"github.com/soyeahso/finchat/internal/store"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// fakeAgent records the prompts it receives and replies with a fixed answer.
type fakeAgent struct {
	prompts []string
	answer  string
	err     error
	run     func(ctx context.Context) (string, error)
}

func (f *fakeAgent) Run(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.run != nil {
		return f.run(ctx)
	}
	return f.answer, f.err
}

func testMemory(t *testing.T) *store.MemoryStore {
	t.Helper()
	db, err := store.Open(":memory:", silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewMemoryStore(db)
}

func boundSession(t *testing.T, mem *store.MemoryStore, user, dept string) string {
	t.Helper()
	id := mem.CreateSession()
	require.NoError(t, mem.BindIdentity(context.Background(), id, domain.RoleUser, domain.Binding{Username: user, Department: dept}))
	return id
}

func historySection(prompt string) string {
	_, rest, ok := strings.Cut(prompt, "Conversation History:\n")
	if !ok {
		return ""
	}
	section, _, _ := strings.Cut(rest, "\n\nUser query:")
	return section
}

func TestDispatch_BoundUser(t *testing.T) {
	mem := testMemory(t)
	ag := &fakeAgent{answer: "Finance spent 4340.24 this quarter."}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())
	ctx := context.Background()

	sid := boundSession(t, mem, "Alice Smith", "Finance")

	reply, err := d.Dispatch(ctx, "What is the total expense?", sid)
	require.NoError(t, err)
	assert.Equal(t, "Finance spent 4340.24 this quarter.", reply.Response)
	assert.Equal(t, sid, reply.SessionID)
	assert.Equal(t, domain.TurnNormal, reply.Kind)

	require.Len(t, ag.prompts, 1)
	prompt := ag.prompts[0]
	assert.Contains(t, prompt, "The current user is Alice Smith from the Finance department.")
	assert.Contains(t, prompt, "assume they mean their own department: Finance.")
	assert.Contains(t, prompt, "User query: What is the total expense?")
	assert.Empty(t, historySection(prompt))

	turns, err := mem.LoadHistory(ctx, sid)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "What is the total expense?", turns[0].Message)
	assert.Equal(t, "Alice Smith", turns[0].User)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "Finance", turns[1].Department)
}

func TestDispatch_HistoryWindow(t *testing.T) {
	mem := testMemory(t)
	ag := &fakeAgent{answer: "ok"}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())
	ctx := context.Background()

	sid := boundSession(t, mem, "Alice Smith", "Finance")
	for i := range 15 {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		_, err := mem.AppendTurn(ctx, sid, role, domain.TurnNormal, fmt.Sprintf("turn-%02d", i), domain.UnknownBinding())
		require.NoError(t, err)
	}

	_, err := d.Dispatch(ctx, "latest question", sid)
	require.NoError(t, err)

	history := historySection(ag.prompts[0])
	lines := strings.Split(history, "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "Assistant: turn-05", lines[0])
	assert.Equal(t, "User: turn-14", lines[9])
	assert.NotContains(t, history, "turn-04")
	assert.NotContains(t, history, "latest question")
}

func TestDispatch_AgentFailure(t *testing.T) {
	mem := testMemory(t)
	ag := &fakeAgent{err: errors.New("boom")}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())
	ctx := context.Background()

	sid := boundSession(t, mem, "Alice Smith", "Finance")

	reply, err := d.Dispatch(ctx, "q", sid)
	require.NoError(t, err)
	assert.Equal(t, "Error processing query: boom", reply.Response)
	assert.Equal(t, domain.TurnError, reply.Kind)

	turns, err := mem.LoadHistory(ctx, sid)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	last := turns[len(turns)-1]
	assert.Equal(t, domain.RoleAssistant, last.Role)
	assert.Equal(t, domain.TurnError, last.Kind)
	assert.Equal(t, "Error processing query: boom", last.Message)
}

func TestDispatch_EmptyAnswer(t *testing.T) {
	mem := testMemory(t)
	d := NewDispatcher(mem, &fakeAgent{}, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())

	reply, err := d.Dispatch(context.Background(), "q", boundSession(t, mem, "Bob", "Marketing"))
	require.NoError(t, err)
	assert.Equal(t, NoResponse, reply.Response)
	assert.Equal(t, domain.TurnNormal, reply.Kind)
}

func TestDispatch_NoSessionStartsUnbound(t *testing.T) {
	mem := testMemory(t)
	ag := &fakeAgent{answer: "hi"}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())
	ctx := context.Background()

	reply, err := d.Dispatch(ctx, "hello", "")
	require.NoError(t, err)
	require.NotEmpty(t, reply.SessionID)
	assert.Contains(t, ag.prompts[0], "The current user is Unknown from the Unknown department.")

	turns, err := mem.LoadHistory(ctx, reply.SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	for _, turn := range turns {
		assert.Equal(t, domain.Unknown, turn.User)
		assert.Equal(t, domain.Unknown, turn.Department)
	}
}

func TestDispatch_UnboundSessionID(t *testing.T) {
	mem := testMemory(t)
	ag := &fakeAgent{answer: "hi"}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())

	reply, err := d.Dispatch(context.Background(), "hello", "never-bound")
	require.NoError(t, err)
	assert.Equal(t, "never-bound", reply.SessionID)
	assert.Contains(t, ag.prompts[0], "The current user is Unknown from the Unknown department.")
}

func TestDispatch_CancelledDuringAgentStillPersists(t *testing.T) {
	mem := testMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	ag := &fakeAgent{run: func(ctx context.Context) (string, error) {
		cancel()
		return "", ctx.Err()
	}}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())
	sid := boundSession(t, mem, "Alice Smith", "Finance")

	reply, err := d.Dispatch(ctx, "slow question", sid)
	require.NoError(t, err)
	assert.Equal(t, "Error processing query: context canceled", reply.Response)

	turns, err := mem.LoadHistory(context.Background(), sid)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

// brokenMemory fails LoadHistory and counts appends.
type brokenMemory struct {
	*store.MemoryStore
	appends int
}

func (b *brokenMemory) LoadHistory(context.Context, string) ([]domain.Turn, error) {
	return nil, errors.New("database is locked")
}

func (b *brokenMemory) AppendTurn(ctx context.Context, sessionID string, role domain.Role, kind domain.TurnKind, message string, fallback domain.Binding) (domain.Turn, error) {
	b.appends++
	return b.MemoryStore.AppendTurn(ctx, sessionID, role, kind, message, fallback)
}

func TestDispatch_StorageFailureNamesStage(t *testing.T) {
	mem := &brokenMemory{MemoryStore: testMemory(t)}
	ag := &fakeAgent{answer: "unused"}
	d := NewDispatcher(mem, ag, nil, DispatcherConfig{HistoryWindow: 10}, silentLog())

	reply, err := d.Dispatch(context.Background(), "q", "s")
	assert.Nil(t, reply)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageHistory, stageErr.Stage)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, ag.prompts)
	assert.Zero(t, mem.appends)
}

func TestDispatch_Hooks(t *testing.T) {
	mem := testMemory(t)
	hm := hooks.NewManager(silentLog())
	d := NewDispatcher(mem, &fakeAgent{answer: "ok"}, hm, DispatcherConfig{HistoryWindow: 10}, silentLog())

	var seen []string
	record := func(_ context.Context, p hooks.Payload) error {
		seen = append(seen, p.Event)
		assert.Equal(t, "Bob Jones", p.Data["user"])
		return nil
	}
	hm.On(hooks.EventTurnReceived, "test", record)
	hm.On(hooks.EventBeforeAgentRun, "test", record)

	_, err := d.Dispatch(context.Background(), "q", boundSession(t, mem, "Bob Jones", "Marketing"))
	require.NoError(t, err)
	assert.Equal(t, []string{hooks.EventTurnReceived, hooks.EventBeforeAgentRun}, seen)
}

func TestStageError(t *testing.T) {
	inner := errors.New("disk full")
	err := &StageError{Stage: StagePersistQuery, Err: inner}
	assert.Equal(t, "persist_query: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}
