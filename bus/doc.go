// Package bus implements the in-process event bus used when push delivery
// is active: an orchestrator registers a waiter for one (job, kind) pair
// and the webhook receiver publishes events into it.
//
// Two maps back the bus. Waiters hold at most one pending registration per
// key; the buffer retains the most recent unclaimed event per key so a
// notification that arrives before anyone is waiting is never lost. Both
// are guarded by a single mutex; publish only ever targets one waiter, so
// no finer-grained locking is needed.
package bus
