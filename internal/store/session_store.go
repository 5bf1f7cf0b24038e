package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/finchat/internal/domain"
)

// MemoryStore implements session binding and conversation history on top of
// the memory database. Every method is its own unit of work.
type MemoryStore struct {
	db *DB
}

// NewMemoryStore creates a MemoryStore backed by the given DB.
func NewMemoryStore(db *DB) *MemoryStore {
	return &MemoryStore{db: db}
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateSession returns a fresh, unguessable session id. Nothing is stored
// until the session is bound or a turn is appended.
func (s *MemoryStore) CreateSession() string {
	return uuid.New().String()
}

// BindIdentity records the user and department a session acts for. Binding
// the same session twice appends a second row; lookups keep returning the
// first one.
func (s *MemoryStore) BindIdentity(ctx context.Context, sessionID string, role domain.Role, b domain.Binding) error {
	tx, err := s.db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bind: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_user_details WHERE session_id = ?`, sessionID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("checking binding: %w", err)
	}
	if existing > 0 {
		s.db.log.Warn().
			Str("sessionId", sessionID).
			Int("existing", existing).
			Msg("session already bound; earliest binding stays in effect")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_user_details (session_id, role, "user", department) VALUES (?, ?, ?, ?)`,
		sessionID, string(role), b.Username, b.Department,
	); err != nil {
		return fmt.Errorf("inserting binding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bind: %w", err)
	}

	s.db.log.Debug().Str("sessionId", sessionID).Str("user", b.Username).Msg("session bound")
	return nil
}

// LookupIdentity returns the session's earliest binding. A session with no
// binding yields found=false and a nil error.
func (s *MemoryStore) LookupIdentity(ctx context.Context, sessionID string) (domain.Binding, bool, error) {
	return lookupBinding(ctx, s.db.sql, sessionID)
}

func lookupBinding(ctx context.Context, q rowQuerier, sessionID string) (domain.Binding, bool, error) {
	var user, dept sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT "user", department FROM memory_user_details WHERE session_id = ? ORDER BY id LIMIT 1`,
		sessionID,
	).Scan(&user, &dept)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Binding{}, false, nil
	}
	if err != nil {
		return domain.Binding{}, false, fmt.Errorf("looking up binding: %w", err)
	}
	return domain.Binding{Username: user.String, Department: dept.String}, true, nil
}

// ListSessions summarises every session that has a binding or at least one
// turn, most recently active first.
func (s *MemoryStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT ids.session_id,
			(SELECT "user" FROM memory_user_details b WHERE b.session_id = ids.session_id ORDER BY b.id LIMIT 1),
			(SELECT department FROM memory_user_details b WHERE b.session_id = ids.session_id ORDER BY b.id LIMIT 1),
			(SELECT COUNT(*) FROM conversation_memory_user t WHERE t.session_id = ids.session_id),
			(SELECT MAX(created_at) FROM conversation_memory_user t WHERE t.session_id = ids.session_id)
		FROM (
			SELECT session_id FROM memory_user_details
			UNION
			SELECT session_id FROM conversation_memory_user
		) ids
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var (
			sum          domain.SessionSummary
			user, dept   sql.NullString
			lastActivity sql.NullString
		)
		if err := rows.Scan(&sum.SessionID, &user, &dept, &sum.Turns, &lastActivity); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sum.Username = user.String
		sum.Department = dept.String
		if !user.Valid {
			sum.Username = domain.Unknown
			sum.Department = domain.Unknown
		}
		sum.LastActivity = parseTime(lastActivity.String)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByActivity(out)
	return out, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.DateTime, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
