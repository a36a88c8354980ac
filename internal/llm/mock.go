package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Respond receives the request
// and the per-client call index (starting at 0) and returns the raw text the
// fake model produces.
type MockClient struct {
	ModelName string
	Respond   func(req CompletionRequest, call int) (string, error)

	mu    sync.Mutex
	calls []CompletionRequest
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	content, err := m.Respond(req, call)
	if err != nil {
		return nil, err
	}
	return &CompletionResponse{Content: content, StopReason: "stop"}, nil
}

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.calls...)
}
