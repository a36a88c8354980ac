package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	aferrors "agentflow/internal/errors"
)

// wrapRequestError classifies transport-level failures from the HTTP round
// trip. Context cancellation passes through untouched so callers can tell
// deliberate cancellation apart from network trouble.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return aferrors.NewTransientError(err, "request timed out")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return aferrors.NewTransientError(err, "network timeout")
	}

	return aferrors.NewTransientError(err, fmt.Sprintf("transport error: %v", err))
}

// mapHTTPError converts a non-2xx endpoint response into a typed error.
// 429 and 5xx are transient; auth and client errors are permanent.
func mapHTTPError(statusCode int, body []byte, header http.Header) error {
	detail := strings.TrimSpace(string(body))
	if len(detail) > 512 {
		detail = detail[:512]
	}
	base := fmt.Errorf("HTTP %d: %s", statusCode, detail)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &aferrors.TransientError{
			Err:        base,
			StatusCode: statusCode,
			RetryAfter: parseRetryAfter(header),
			Message:    "rate limit reached",
		}
	case statusCode >= 500:
		return &aferrors.TransientError{
			Err:        base,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("server error (%d)", statusCode),
		}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &aferrors.PermanentError{
			Err:        base,
			StatusCode: statusCode,
			Message:    "authentication failed; check the API key configuration",
		}
	default:
		return &aferrors.PermanentError{
			Err:        base,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("request rejected (%d)", statusCode),
		}
	}
}

// errEmptyPrompt rejects a completion request with no prompt text at all.
// Nothing to ask means nothing to retry.
func errEmptyPrompt() error {
	return aferrors.NewPermanentError(nil, "prompt must not be empty")
}

// errMalformedEnvelope marks endpoint responses that are not a usable
// chat-completion envelope. Never retried: the endpoint itself is broken.
func errMalformedEnvelope(reason string) error {
	return aferrors.NewPermanentError(
		fmt.Errorf("malformed endpoint response: %s", reason),
		"endpoint returned an unusable response envelope",
	)
}

func parseRetryAfter(header http.Header) int {
	if header == nil {
		return 0
	}
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
