package gateway

import (
	"encoding/json"
	"testing"

	"github.com/soyeahso/finchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	frame, err := NewRequest("req-1", "chat.send", ChatSendParams{Message: "hello"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeRequest, frame.Type)
	assert.Equal(t, "req-1", frame.ID)
	assert.Equal(t, "chat.send", frame.Method)
	assert.JSONEq(t, `{"message":"hello"}`, string(frame.Params))
}

func TestNewResponse(t *testing.T) {
	frame, err := NewResponse("req-1", map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, FrameTypeResponse, frame.Type)
	require.NotNil(t, frame.OK)
	assert.True(t, *frame.OK)
	assert.Nil(t, frame.Error)
	assert.JSONEq(t, `{"status":"ok"}`, string(frame.Payload))
}

func TestNewErrorResponse(t *testing.T) {
	frame := NewErrorResponse("req-1", ErrorShape{
		Code:    "unauthorized",
		Message: "invalid email or name",
	})

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"res","id":"req-1","ok":false,"error":{"code":"unauthorized","message":"invalid email or name"}}`,
		string(data))
}

func TestNewEvent(t *testing.T) {
	frame, err := NewEvent(EventChatStart, ChatReply{Response: WelcomeMessage, SessionID: "s1", Kind: "normal"}, 42)
	require.NoError(t, err)

	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, "chat.start", frame.Event)
	assert.Equal(t, int64(42), frame.Seq)

	var reply ChatReply
	require.NoError(t, json.Unmarshal(frame.Payload, &reply))
	assert.Equal(t, "👋 Hi I am your **Finance Chatbot**. You can ask me about finance.", reply.Response)
}

func TestConnectParamsWireShape(t *testing.T) {
	raw := `{"minProtocol":1,"maxProtocol":1,"client":{"id":"cli","version":"1","platform":"linux"},
		"auth":{"email":"alice@example.com","name":"Alice Smith"}}`

	var p ConnectParams
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	require.NotNil(t, p.Auth)
	assert.Equal(t, "alice@example.com", p.Auth.Email)
	assert.Equal(t, "Alice Smith", p.Auth.Name)

	data, err := json.Marshal(ConnectParams{MinProtocol: 1, MaxProtocol: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"auth"`)
}

func TestHelloOKCarriesUser(t *testing.T) {
	hello := HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: "dev", ConnID: "conn-1"},
		User: domain.AuthenticatedUser{
			Email:          "alice@example.com",
			PositionNumber: "P-1001",
			Name:           "Alice Smith",
			Department:     "Finance",
			SessionID:      "s1",
		},
	}

	data, err := json.Marshal(hello)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	user := m["user"].(map[string]any)
	assert.Equal(t, "P-1001", user["positionNumber"])
	assert.Equal(t, "Finance", user["department"])
	assert.Equal(t, "s1", user["sessionId"])
}

func TestErrorShapeOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(ErrorShape{Code: "bad_request", Message: "missing params"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "details")
	assert.NotContains(t, string(data), "retryable")
	assert.NotContains(t, string(data), "retryAfterMs")
}
