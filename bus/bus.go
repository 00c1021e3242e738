package bus

import (
	"context"
	"sync"
	"time"

	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
)

// key correlates events with waiters: one job, one event kind.
type key struct {
	jobID string
	kind  core.EventKind
}

// waiter is a pending registration. The channel has capacity one and is
// written to exactly once, by the publisher that claims the waiter.
type waiter struct {
	ch chan core.Event
}

// Bus routes published events to registered waiters and buffers events that
// arrive unobserved. Safe for concurrent use.
type Bus struct {
	logger   logging.Logger
	mu       sync.Mutex
	waiters  map[key]*waiter
	buffered map[key]core.Event
}

// New constructs an empty Bus. A nil logger is replaced with a NoOpLogger.
func New(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Bus{
		logger:   logger,
		waiters:  make(map[key]*waiter),
		buffered: make(map[key]core.Event),
	}
}

// Register waits for an event matching (jobID, kind). If a matching event
// was already buffered it is consumed and returned immediately. Otherwise
// Register blocks until a matching Publish, the timeout, or ctx
// cancellation, whichever happens first. On timeout the waiter is removed
// so a late-arriving event falls through to buffering instead of resolving
// a dead registration.
//
// At most one registration per (jobID, kind) may be active at a time; a
// concurrent second registration on the same key is a caller error.
func (b *Bus) Register(ctx context.Context, jobID string, kind core.EventKind, timeout time.Duration) (core.Event, error) {
	k := key{jobID: jobID, kind: kind}

	b.mu.Lock()
	if ev, ok := b.buffered[k]; ok {
		delete(b.buffered, k)
		b.mu.Unlock()
		b.logger.Debug("bus: resolved from buffer", "job_id", jobID, "event", string(kind))
		return ev, nil
	}
	w := &waiter{ch: make(chan core.Event, 1)}
	b.waiters[k] = w
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-w.ch:
		return ev, nil
	case <-timer.C:
		if ev, ok := b.abandon(k, w); ok {
			return ev, nil
		}
		return core.Event{}, &core.WaitTimeoutError{JobID: jobID, Kind: kind}
	case <-ctx.Done():
		if ev, ok := b.abandon(k, w); ok {
			return ev, nil
		}
		return core.Event{}, ctx.Err()
	}
}

// abandon removes the waiter unless a publisher claimed it first. When the
// race was lost the already-delivered event is returned so it is not
// dropped.
func (b *Bus) abandon(k key, w *waiter) (core.Event, bool) {
	b.mu.Lock()
	if b.waiters[k] == w {
		delete(b.waiters, k)
		b.mu.Unlock()
		return core.Event{}, false
	}
	b.mu.Unlock()
	select {
	case ev := <-w.ch:
		return ev, true
	default:
		return core.Event{}, false
	}
}

// Publish delivers the event to a registered waiter, or buffers it when no
// waiter is present. Only the most recent unclaimed event per key is
// retained.
func (b *Bus) Publish(ev core.Event) {
	k := key{jobID: ev.JobID, kind: ev.Kind}

	b.mu.Lock()
	if w, ok := b.waiters[k]; ok {
		delete(b.waiters, k)
		b.mu.Unlock()
		w.ch <- ev
		b.logger.Debug("bus: delivered to waiter", "job_id", ev.JobID, "event", string(ev.Kind))
		return
	}
	b.buffered[k] = ev
	b.mu.Unlock()
	b.logger.Debug("bus: buffered event", "job_id", ev.JobID, "event", string(ev.Kind))
}
