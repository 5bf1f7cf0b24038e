package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownBinding(t *testing.T) {
	b := UnknownBinding()
	assert.Equal(t, "Unknown", b.Username)
	assert.Equal(t, "Unknown", b.Department)
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", RoleUser.Label())
	assert.Equal(t, "Assistant", RoleAssistant.Label())
	assert.Equal(t, "", Role("").Label())
}

func TestAuthenticatedUserJSON(t *testing.T) {
	u := AuthenticatedUser{
		Email:          "a@x.com",
		PositionNumber: "P-100",
		Name:           "Alice",
		Department:     "Finance",
		SessionID:      "sess-1",
	}
	data, err := json.Marshal(u)
	require.NoError(t, err)

	raw := string(data)
	for _, key := range []string{`"email"`, `"positionNumber"`, `"name"`, `"department"`, `"sessionId"`} {
		assert.Contains(t, raw, key)
	}
}
