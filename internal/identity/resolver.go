// Package identity resolves login credentials against the finance database.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/soyeahso/finchat/internal/domain"
	"github.com/soyeahso/finchat/internal/logging"
)

// Resolver looks up employees and their departments. It only reads.
type Resolver struct {
	db  *sql.DB
	log *logging.Logger
}

// NewResolver creates a Resolver over the finance database.
func NewResolver(db *sql.DB, log *logging.Logger) *Resolver {
	return &Resolver{db: db, log: log.Sub("identity")}
}

// ResolveIdentity finds the employee whose email and name both match exactly,
// after surrounding whitespace is trimmed from each. A miss returns
// found=false with a nil error.
func (r *Resolver) ResolveIdentity(ctx context.Context, email, name string) (domain.Identity, bool, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)

	var (
		id       domain.Identity
		position sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT position_number, name, email_id FROM employee WHERE email_id = ? AND name = ? LIMIT 1`,
		email, name,
	).Scan(&position, &id.Name, &id.Email)
	if errors.Is(err, sql.ErrNoRows) {
		r.log.Debug().Str("email", email).Msg("no matching employee")
		return domain.Identity{}, false, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("resolving identity: %w", err)
	}
	id.PositionNumber = position.String
	return id, true, nil
}

// ResolveDepartment finds the department assigned to email in the payroll
// budget. The email is matched exactly as given, without trimming.
func (r *Resolver) ResolveDepartment(ctx context.Context, email string) (domain.DepartmentAssignment, bool, error) {
	var dept sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT department FROM payroll_budget WHERE email_id = ? LIMIT 1`, email,
	).Scan(&dept)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DepartmentAssignment{}, false, nil
	}
	if err != nil {
		return domain.DepartmentAssignment{}, false, fmt.Errorf("resolving department: %w", err)
	}
	return domain.DepartmentAssignment{Email: email, Department: dept.String}, true, nil
}
