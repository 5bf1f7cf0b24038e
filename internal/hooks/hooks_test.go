package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/finchat/internal/logging"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func noop(context.Context, Payload) error { return nil }

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventLoginSucceeded, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventLoginSucceeded, map[string]any{"email": "alice@example.com"})
	assert.Equal(t, EventLoginSucceeded, got.Event)
	assert.Equal(t, "alice@example.com", got.Data["email"])
	assert.False(t, got.Time.IsZero())
}

func TestManager_Emit_RegistrationOrder(t *testing.T) {
	m := testManager()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		m.On(EventTurnReceived, name, func(_ context.Context, _ Payload) error {
			order = append(order, name)
			return nil
		})
	}

	m.Emit(context.Background(), EventTurnReceived, nil)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestManager_Emit_HandlerErrorDoesNotStopOthers(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventAgentFailed, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventAgentFailed, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventAgentFailed, nil)
	assert.True(t, secondCalled)
}

func TestManager_Emit_NoHandlers(t *testing.T) {
	m := testManager()
	m.Emit(context.Background(), EventGatewayStop, nil)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.Emit(context.Background(), EventGatewayStart, nil)
	m.EmitAsync(context.Background(), EventGatewayStart, nil)
}

func TestManager_Off(t *testing.T) {
	m := testManager()

	var calls int
	m.On(EventGatewayStart, "removable", func(_ context.Context, _ Payload) error {
		calls++
		return nil
	})
	m.On(EventGatewayStart, "kept", noop)

	m.Emit(context.Background(), EventGatewayStart, nil)
	m.Off(EventGatewayStart, "removable")
	m.Emit(context.Background(), EventGatewayStart, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, m.Count(EventGatewayStart))
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		m.On(EventAfterAgentRun, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			wg.Done()
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.EmitAsync(ctx, EventAfterAgentRun, nil)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestManager_Events(t *testing.T) {
	m := testManager()

	m.On(EventGatewayStart, "h1", noop)
	m.On(EventLoginRejected, "h2", noop)
	m.On("custom", "h3", noop)

	assert.Equal(t, []string{EventLoginRejected, EventGatewayStart, "custom"}, m.Events())
}

func TestAllEvents(t *testing.T) {
	require.Len(t, AllEvents, 8)
	assert.Contains(t, AllEvents, EventLoginSucceeded)
	assert.Contains(t, AllEvents, EventGatewayStop)
}
