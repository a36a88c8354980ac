package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	aferrors "agentflow/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIClientComplete(t *testing.T) {
	var gotReq map[string]any
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"brief\": \"hi\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	seed := int64(7)
	client := NewOpenAIClient("test-model", Config{APIKey: "test-key", BaseURL: server.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{
		System:      "sys",
		User:        "user",
		Temperature: 0.7,
		Seed:        &seed,
		MaxTokens:   256,
		JSONOnly:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"brief": "hi"}`, resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	assert.Equal(t, "test-model", gotReq["model"])
	assert.EqualValues(t, 7, gotReq["seed"])
	assert.EqualValues(t, 256, gotReq["max_tokens"])
	assert.Equal(t, map[string]any{"type": "json_object"}, gotReq["response_format"])
	messages := gotReq["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIClientRateLimit(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	})

	client := NewOpenAIClient("m", Config{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
	require.Error(t, err)

	assert.True(t, aferrors.IsTransient(err))
	assert.Equal(t, 12, aferrors.RetryAfterHint(err))
}

func TestOpenAIClientAuthFailure(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`unauthorized`))
	})

	client := NewOpenAIClient("m", Config{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
	require.Error(t, err)
	assert.True(t, aferrors.IsPermanent(err))
}

func TestOpenAIClientServerError(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	client := NewOpenAIClient("m", Config{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
	require.Error(t, err)
	assert.True(t, aferrors.IsTransient(err))
}

func TestOpenAIClientMalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no choices", `{"choices": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			client := NewOpenAIClient("m", Config{BaseURL: server.URL})
			_, err := client.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
			require.Error(t, err)
			assert.True(t, aferrors.IsPermanent(err), "malformed envelopes must not be retried")
		})
	}
}

func TestOpenAIClientRejectsEmptyPrompt(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the endpoint for an empty prompt")
	})

	client := NewOpenAIClient("m", Config{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{System: "  ", User: ""})
	require.Error(t, err)
	assert.True(t, aferrors.IsPermanent(err))
	assert.Contains(t, err.Error(), "prompt must not be empty")
}

func TestWrapRequestErrorContextCanceled(t *testing.T) {
	assert.Equal(t, context.Canceled, wrapRequestError(context.Canceled))
}

func TestMapHTTPErrorBadRequest(t *testing.T) {
	err := mapHTTPError(400, []byte("bad request"), nil)
	assert.True(t, aferrors.IsPermanent(err))
}
