// Package auth implements finchat's login: credentials are checked against
// the finance database and a successful login yields a bound chat session.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/hooks"
	"github.com/soyeahso/finchat/internal/logging"
)

// ErrLoginRejected is returned when the credentials do not identify a user
// with a department. Callers match it with errors.Is.
var ErrLoginRejected = errors.New("login rejected")

// IdentityResolver looks up employees and departments.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, email, name string) (domain.Identity, bool, error)
	ResolveDepartment(ctx context.Context, email string) (domain.DepartmentAssignment, bool, error)
}

// SessionBinder creates sessions and records who they belong to.
type SessionBinder interface {
	CreateSession() string
	BindIdentity(ctx context.Context, sessionID string, role domain.Role, b domain.Binding) error
}

// Authenticator runs the login flow.
type Authenticator struct {
	identities IdentityResolver
	sessions   SessionBinder
	hooks      *hooks.Manager
	log        *logging.Logger
}

// New creates an Authenticator. hooks may be nil.
func New(identities IdentityResolver, sessions SessionBinder, hm *hooks.Manager, log *logging.Logger) *Authenticator {
	return &Authenticator{
		identities: identities,
		sessions:   sessions,
		hooks:      hm,
		log:        log.Sub("auth"),
	}
}

// Login resolves (email, name) to an employee and their department, then
// creates a session bound to that user. Nothing is stored unless both
// lookups succeed.
func (a *Authenticator) Login(ctx context.Context, email, name string) (*domain.AuthenticatedUser, error) {
	id, found, err := a.identities.ResolveIdentity(ctx, email, name)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !found {
		return nil, a.reject(ctx, email, "unknown email or name")
	}

	// The department is keyed by the email as typed, not the trimmed one.
	dept, found, err := a.identities.ResolveDepartment(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !found {
		return nil, a.reject(ctx, email, "no department assignment")
	}

	sessionID := a.sessions.CreateSession()
	binding := domain.Binding{Username: id.Name, Department: dept.Department}
	if err := a.sessions.BindIdentity(ctx, sessionID, domain.RoleUser, binding); err != nil {
		return nil, fmt.Errorf("login: binding session: %w", err)
	}

	user := &domain.AuthenticatedUser{
		Email:          id.Email,
		PositionNumber: id.PositionNumber,
		Name:           id.Name,
		Department:     dept.Department,
		SessionID:      sessionID,
	}

	a.log.Info().
		Str("email", user.Email).
		Str("department", user.Department).
		Str("sessionId", sessionID).
		Msg("login succeeded")
	a.hooks.EmitAsync(ctx, hooks.EventLoginSucceeded, map[string]any{
		"email":      user.Email,
		"name":       user.Name,
		"department": user.Department,
		"sessionId":  sessionID,
	})
	return user, nil
}

func (a *Authenticator) reject(ctx context.Context, email, reason string) error {
	a.log.Warn().Str("email", email).Str("reason", reason).Msg("login rejected")
	a.hooks.EmitAsync(ctx, hooks.EventLoginRejected, map[string]any{
		"email":  email,
		"reason": reason,
	})
	return fmt.Errorf("%w: %s", ErrLoginRejected, reason)
}
