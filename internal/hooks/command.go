package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/finchat/internal/config"
)

// DefaultCommandTimeout bounds a hook command that sets no timeout.
const DefaultCommandTimeout = 5 * time.Second

// CommandHandler returns a Handler that runs entry.Command through /bin/sh.
// The payload is written to the command's stdin as JSON and the event name
// is exported as FINCHAT_HOOK_EVENT.
func CommandHandler(entry config.HookEntry) Handler {
	timeout := DefaultCommandTimeout
	if entry.Timeout > 0 {
		timeout = time.Duration(entry.Timeout) * time.Millisecond
	}

	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", entry.Command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(os.Environ(), "FINCHAT_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		cmd.WaitDelay = time.Second

		if err := cmd.Run(); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("hook %q timed out after %s", entry.Command, timeout)
			}
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook %q: %w: %s", entry.Command, err, msg)
			}
			return fmt.Errorf("hook %q: %w", entry.Command, err)
		}
		return nil
	}
}

// Register wires the shell commands from the hooks config section into m and
// returns how many were registered.
func Register(m *Manager, cfg config.HooksConfig) int {
	bindings := []struct {
		event   string
		entries []config.HookEntry
	}{
		{EventLoginSucceeded, cfg.LoginSucceeded},
		{EventLoginRejected, cfg.LoginRejected},
		{EventAfterAgentRun, cfg.AfterAgentRun},
		{EventAgentFailed, cfg.AgentFailed},
		{EventGatewayStart, cfg.GatewayStart},
		{EventGatewayStop, cfg.GatewayStop},
	}

	n := 0
	for _, b := range bindings {
		for i, entry := range b.entries {
			if entry.Command == "" {
				continue
			}
			m.On(b.event, fmt.Sprintf("config:%s[%d]", b.event, i), CommandHandler(entry))
			n++
		}
	}
	return n
}
