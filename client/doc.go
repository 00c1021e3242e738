// Package client implements the resilient Human Pages API client: JSON
// requests authenticated with a static per-agent key, a fixed escalating
// backoff for transient failures, and the payment-required interception
// protocol that pauses a 402 response to obtain and attach a payment
// authorization before a single retry.
//
// Client errors (4xx) are never retried, since repeating them cannot change the
// outcome. A 403 carrying the agent-not-active code is translated into a
// dedicated ActivationError so callers can surface remediation instead of a
// generic permissions failure.
package client
