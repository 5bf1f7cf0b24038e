package domain

import (
	"strings"
	"time"
)

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the role as it appears in prompt history lines ("User", "Assistant").
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// TurnKind separates genuine answers from error text stored in history.
type TurnKind string

const (
	TurnNormal TurnKind = "normal"
	TurnError  TurnKind = "error"
)

// Turn is one persisted message in a session's history. Turns are append-only;
// ID is assigned by storage and orders a session's turns.
type Turn struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	Role       Role      `json:"role"`
	Kind       TurnKind  `json:"kind"`
	User       string    `json:"user"`
	Department string    `json:"department"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SessionSummary describes a stored session for listings.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	Username     string    `json:"username"`
	Department   string    `json:"department"`
	Turns        int       `json:"turns"`
	LastActivity time.Time `json:"lastActivity,omitempty"`
}
