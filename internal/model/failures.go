package model

import "fmt"

// Role failure reasons.
const (
	FailureParseExhausted = "parse-retries-exhausted"
	FailureGateway        = "gateway"
	FailureCancelled      = "cancelled"
)

// RoleFailure wraps the last error after a role invocation gave up.
type RoleFailure struct {
	Role   Role
	Reason string
	Err    error
}

func (f *RoleFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("role %s failed (%s): %v", f.Role, f.Reason, f.Err)
	}
	return fmt.Sprintf("role %s failed (%s)", f.Role, f.Reason)
}

func (f *RoleFailure) Unwrap() error {
	return f.Err
}

// PhaseFailure aborts a phase: quorum not met, or a single-invocation
// phase's role failure.
type PhaseFailure struct {
	Phase  Phase
	Reason string
	Err    error
}

func (f *PhaseFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("phase %s failed: %s: %v", f.Phase, f.Reason, f.Err)
	}
	return fmt.Sprintf("phase %s failed: %s", f.Phase, f.Reason)
}

func (f *PhaseFailure) Unwrap() error {
	return f.Err
}
