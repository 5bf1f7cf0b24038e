package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/soyeahso/finchat/internal/domain"
)

// AppendTurn persists one conversation turn. The session's binding supplies
// the user and department columns; when the session is unbound, fallback is
// recorded instead. The lookup and the insert share a transaction.
func (s *MemoryStore) AppendTurn(
	ctx context.Context,
	sessionID string,
	role domain.Role,
	kind domain.TurnKind,
	message string,
	fallback domain.Binding,
) (domain.Turn, error) {
	if kind == "" {
		kind = domain.TurnNormal
	}

	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	binding, found, err := lookupBinding(ctx, tx, sessionID)
	if err != nil {
		return domain.Turn{}, err
	}
	if !found {
		binding = fallback
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_memory_user (session_id, role, "user", department, message, kind, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, string(role), binding.Username, binding.Department, message, string(kind),
		now.Format(time.DateTime),
	)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("inserting turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Turn{}, fmt.Errorf("reading turn id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Turn{}, fmt.Errorf("commit append: %w", err)
	}

	return domain.Turn{
		ID:         id,
		SessionID:  sessionID,
		Role:       role,
		Kind:       kind,
		User:       binding.Username,
		Department: binding.Department,
		Message:    message,
		CreatedAt:  now,
	}, nil
}

// LoadHistory returns every turn of a session in insertion order. It does not
// truncate; callers apply their own window.
func (s *MemoryStore) LoadHistory(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.sql.QueryContext(ctx,
		`SELECT id, session_id, role, kind, "user", department, message, created_at
		 FROM conversation_memory_user WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t                              domain.Turn
			kind                           string
			role, user, dept, msg, created sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &kind, &user, &dept, &msg, &created); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		t.Role = domain.Role(role.String)
		t.Kind = domain.TurnKind(kind)
		t.User = user.String
		t.Department = dept.String
		t.Message = msg.String
		t.CreatedAt = parseTime(created.String)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// sortByActivity orders sessions newest first; sessions without turns sort last.
func sortByActivity(s []domain.SessionSummary) {
	slices.SortStableFunc(s, func(a, b domain.SessionSummary) int {
		return b.LastActivity.Compare(a.LastActivity)
	})
}
