package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, status int, body string, inspect func(r *http.Request, req geminiAPIRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req geminiAPIRequest
		assert.NoError(t, json.Unmarshal(raw, &req))
		if inspect != nil {
			inspect(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiComplete(t *testing.T) {
	zero := 0.0
	srv := geminiServer(t, http.StatusOK, `{
		"candidates": [{"content": {"role": "model", "parts": [{"text": "Hello "}, {"text": "Alice"}]}, "finishReason": "STOP"}],
		"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3}
	}`, func(r *http.Request, req geminiAPIRequest) {
		assert.Equal(t, "/models/gemini-2.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))

		if assert.NotNil(t, req.SystemInstruction) {
			assert.Equal(t, "be brief", req.SystemInstruction.Parts[0].Text)
		}
		var roles []string
		for _, c := range req.Contents {
			roles = append(roles, c.Role)
		}
		assert.Equal(t, []string{"user", "model", "user"}, roles)
		if assert.NotNil(t, req.GenerationConfig.Temperature) {
			assert.Equal(t, 0.0, *req.GenerationConfig.Temperature)
		}
	})

	g := NewGeminiAPIClient("secret", "gemini-2.5-flash", WithBaseURL(srv.URL+"/"))
	resp, err := g.Complete(context.Background(), CompletionRequest{
		Model:  "gemini-2.5-pro",
		System: "be brief",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "who am I?"},
		},
		Temperature: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", resp.Content)
	assert.Equal(t, "STOP", resp.StopReason)
	assert.Equal(t, "gemini-2.5-pro", resp.Model)
	assert.Equal(t, Usage{InputTokens: 12, OutputTokens: 3}, resp.Usage)
}

func TestGeminiComplete_DefaultModelAndMergedTurns(t *testing.T) {
	srv := geminiServer(t, http.StatusOK,
		`{"candidates": [{"content": {"parts": [{"text": "ok"}]}}]}`,
		func(r *http.Request, req geminiAPIRequest) {
			assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
			if assert.Len(t, req.Contents, 1) {
				assert.Len(t, req.Contents[0].Parts, 2)
			}
			assert.Nil(t, req.GenerationConfig.Temperature)
		})

	g := NewGeminiAPIClient("k", "gemini-2.5-flash", WithBaseURL(srv.URL))
	_, err := g.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "a"}, {Role: RoleUser, Content: "b"}},
	})
	require.NoError(t, err)
}

func TestGeminiComplete_HTTPError(t *testing.T) {
	srv := geminiServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "Quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`, nil)

	g := NewGeminiAPIClient("k", "m", WithBaseURL(srv.URL))
	_, err := g.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.Code)
	assert.Equal(t, "RESOURCE_EXHAUSTED: Quota exceeded", provErr.Message)
}

func TestGeminiComplete_Blocked(t *testing.T) {
	srv := geminiServer(t, http.StatusOK, `{"promptFeedback": {"blockReason": "SAFETY"}}`, nil)

	g := NewGeminiAPIClient("k", "m", WithBaseURL(srv.URL))
	_, err := g.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorContains(t, err, "prompt blocked: SAFETY")
}

func TestGeminiName(t *testing.T) {
	assert.Equal(t, "gemini", NewGeminiAPIClient("k", "m").Name())
}

func TestAPIErrorMessage_RawBody(t *testing.T) {
	assert.Equal(t, "upstream exploded", apiErrorMessage([]byte(" upstream exploded\n")))
}
