package core

import "fmt"

// APIError is a non-retryable response from the remote API, surfaced with
// the HTTP status and the best available message from the body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("human pages api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("human pages api: HTTP %d: %s", e.Status, e.Message)
}

// PaymentRequiredError reports a 402 the client could not satisfy, either
// because no payment capability is configured or the operator declined.
type PaymentRequiredError struct {
	Reason string
	Option *PaymentOption
}

func (e *PaymentRequiredError) Error() string {
	msg := "payment required: " + e.Reason
	if e.Option != nil && e.Option.MaxAmountRequired != "" {
		msg += fmt.Sprintf(" (amount %s on %s)", e.Option.MaxAmountRequired, e.Option.Network)
	}
	return msg
}

// ActivationError means the agent registration has not completed its
// out-of-band activation step. Distinguished from generic 403s so callers
// can show remediation instead of a permissions failure.
type ActivationError struct {
	AgentStatus AgentStatus
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("agent is not active (status %s): complete social verification at your Human Pages profile, then retry", e.AgentStatus)
}

// WaitTimeoutError reports that a wait for a specific event on a specific
// job exceeded its deadline.
type WaitTimeoutError struct {
	JobID string
	Kind  EventKind
}

func (e *WaitTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %q event on job %s", e.Kind, e.JobID)
}

// RejectedError is the explicit terminal negative outcome of an acceptance
// wait. It is never a timeout: the human declined the offer.
type RejectedError struct {
	JobID string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("job %s was rejected by the human", e.JobID)
}
