package flow

import (
	"context"
	"errors"

	"agentflow/internal/config"
	apperrors "agentflow/internal/errors"
	"agentflow/internal/llm"
	"agentflow/internal/logging"
	"agentflow/internal/model"
	"agentflow/internal/prompt"
	"agentflow/internal/schema"
)

// caller invokes one role against the gateway and enforces its response
// shape. Gateway-level transient failures are retried with backoff inside
// RetryWithResult; shape violations get a fresh attempt with a corrective
// note appended, up to maxRetries extra attempts.
type caller struct {
	client     llm.Client
	retryCfg   apperrors.RetryConfig
	maxRetries int
	temp       float64
	seed       *int64
	maxTokens  int
	logger     logging.Logger
}

func newCaller(client llm.Client, cfg config.RunConfig, logger logging.Logger) *caller {
	return &caller{
		client:     client,
		retryCfg:   apperrors.DefaultRetryConfig(),
		maxRetries: cfg.MaxRetries,
		temp:       cfg.Temperature,
		seed:       cfg.Seed,
		maxTokens:  cfg.MaxTokens,
		logger:     logger,
	}
}

// invoke runs one role invocation to completion. check, when non-nil, runs
// semantic validation on the parsed object; a *schema.ParseError return
// counts as a shape violation and triggers a corrective re-ask.
func (c *caller) invoke(ctx context.Context, role model.Role, p prompt.Prompt, shape schema.Shape, check func(map[string]any) error) (map[string]any, error) {
	cur := p
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("role %s: re-asking after shape violation (attempt %d/%d): %v",
				role, attempt+1, c.maxRetries+1, lastErr)
		}

		req := llm.CompletionRequest{
			System:      cur.System,
			User:        cur.User,
			Temperature: c.temp,
			Seed:        c.seed,
			MaxTokens:   c.maxTokens,
			JSONOnly:    true,
		}
		resp, err := apperrors.RetryWithResult(ctx, c.retryCfg, c.logger,
			func(ctx context.Context) (*llm.CompletionResponse, error) {
				return c.client.Complete(ctx, req)
			})
		if err != nil {
			reason := model.FailureGateway
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reason = model.FailureCancelled
			}
			return nil, &model.RoleFailure{Role: role, Reason: reason, Err: err}
		}

		parsed, perr := schema.Parse(resp.Content, shape)
		if perr == nil && check != nil {
			perr = check(parsed)
		}
		if perr == nil {
			return parsed, nil
		}
		if _, ok := schema.IsParseError(perr); !ok {
			return nil, &model.RoleFailure{Role: role, Reason: model.FailureParseExhausted, Err: perr}
		}
		lastErr = perr
		cur = p.WithCorrection(perr)
	}
	return nil, &model.RoleFailure{Role: role, Reason: model.FailureParseExhausted, Err: lastErr}
}
