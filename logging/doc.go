// Package logging provides a minimal logging interface and adapters for
// hirewire.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that every component uses for observability. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewConsoleLogger for colourized operator-facing output (tint)
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// The design intentionally keeps the interface minimal so callers can plug
// any structured logger.
package logging
