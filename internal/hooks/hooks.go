// Package hooks lets operators observe finchat's login, dispatch, and
// gateway lifecycle. Handlers are Go funcs or configured shell commands.
package hooks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/finchat/internal/logging"
)

// Event names for the hook system.
const (
	EventLoginSucceeded = "login_succeeded"
	EventLoginRejected  = "login_rejected"
	EventTurnReceived   = "turn_received"
	EventBeforeAgentRun = "before_agent_run"
	EventAfterAgentRun  = "after_agent_run"
	EventAgentFailed    = "agent_failed"
	EventGatewayStart   = "gateway_start"
	EventGatewayStop    = "gateway_stop"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventLoginSucceeded,
	EventLoginRejected,
	EventTurnReceived,
	EventBeforeAgentRun,
	EventAfterAgentRun,
	EventAgentFailed,
	EventGatewayStart,
	EventGatewayStop,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one event. A returned error is logged and never stops
// the remaining handlers or the operation that emitted the event.
type Handler func(ctx context.Context, p Payload) error

// Manager holds handler registrations and dispatches events to them.
// The zero value is not usable; a nil *Manager ignores every call.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event under name.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Off removes every handler registered as name for the event.
func (m *Manager) Off(event, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.handlers[event][:0:0]
	for _, h := range m.handlers[event] {
		if h.name != name {
			kept = append(kept, h)
		}
	}
	m.handlers[event] = kept
}

// Emit runs the event's handlers one after another in registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}
	p := Payload{Event: event, Time: time.Now().UTC(), Data: data}
	for _, h := range handlers {
		m.call(ctx, h, p)
	}
}

// EmitAsync starts every handler in its own goroutine and returns at once.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}
	handlers := m.snapshot(event)
	if len(handlers) == 0 {
		return
	}
	p := Payload{Event: event, Time: time.Now().UTC(), Data: data}
	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		go m.call(ctx, h, p)
	}
}

func (m *Manager) snapshot(event string) []namedHandler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]namedHandler(nil), m.handlers[event]...)
}

func (m *Manager) call(ctx context.Context, h namedHandler, p Payload) {
	if err := h.handler(ctx, p); err != nil {
		m.log.Warn().
			Err(err).
			Str("event", p.Event).
			Str("handler", h.name).
			Msg("hook handler error")
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}

// Events returns the events that have at least one handler.
func (m *Manager) Events() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []string
	for _, event := range AllEvents {
		if len(m.handlers[event]) > 0 {
			events = append(events, event)
		}
	}
	for event, handlers := range m.handlers {
		if len(handlers) > 0 && !slices.Contains(AllEvents, event) {
			events = append(events, event)
		}
	}
	return events
}
