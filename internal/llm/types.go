package llm

import "context"

// Client is the single capability the pipeline needs from a model backend.
// Implementations normalize responses to text and failures to the typed
// errors in internal/errors; they never retry.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// Config carries the transport-level settings for an HTTP-based client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout int // seconds; 0 means the default
	Headers map[string]string
}

// CompletionRequest describes one chat completion round.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	Seed        *int64
	MaxTokens   int
	// JSONOnly asks the endpoint for a JSON-object response where supported.
	JSONOnly bool
}

// TokenUsage reports the endpoint's token accounting for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the normalized result of a completion call.
type CompletionResponse struct {
	Content    string
	StopReason string
	Usage      TokenUsage
}
