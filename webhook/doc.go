// Package webhook implements the push-notification receiver: an HTTP
// endpoint that authenticates signed Human Pages notifications and
// publishes them to the event bus, plus an unauthenticated health probe.
//
// Signatures are hex-encoded HMAC-SHA256 over the exact raw request body,
// compared in constant time. The receiver acknowledges with 200 as soon as
// the event is published; it never waits for the orchestrator to consume
// it.
package webhook
