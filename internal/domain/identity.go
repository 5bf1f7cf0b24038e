// Package domain holds the finchat data model shared by the stores, the
// dispatcher, and the chat transport.
package domain

// Unknown is recorded in place of a username or department that could not be
// resolved for a session.
const Unknown = "Unknown"

// Identity is a business user resolvable from login credentials. It is read
// from the finance database and never written by finchat.
type Identity struct {
	PositionNumber string `json:"positionNumber"`
	Name           string `json:"name"`
	Email          string `json:"email"`
}

// DepartmentAssignment maps an email to a department label.
type DepartmentAssignment struct {
	Email      string `json:"email"`
	Department string `json:"department"`
}

// Binding associates a session with the user and department it acts for.
type Binding struct {
	Username   string `json:"username"`
	Department string `json:"department"`
}

// UnknownBinding is the binding used when a session has none recorded.
func UnknownBinding() Binding {
	return Binding{Username: Unknown, Department: Unknown}
}

// AuthenticatedUser is returned by a successful login.
type AuthenticatedUser struct {
	Email          string `json:"email"`
	PositionNumber string `json:"positionNumber"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	SessionID      string `json:"sessionId"`
}
