package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/human-pages-ai/hirewire/client"
	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
)

// DefaultInterval is the sleep between poll ticks.
const DefaultInterval = 5 * time.Second

// MessageHandler is invoked for every not-yet-known inbound message, one at
// a time; the watcher waits for it to return before touching the next
// message or starting the next tick.
type MessageHandler func(ctx context.Context, msg core.Message) error

// Options configure a Watcher.
type Options struct {
	// Interval between ticks. Defaults to DefaultInterval.
	Interval time.Duration

	// Logger for tick-level visibility. Defaults to NoOp.
	Logger logging.Logger
}

// Watcher polls job status and messages through the API client.
type Watcher struct {
	client   *client.Client
	interval time.Duration
	logger   logging.Logger
}

// NewWatcher constructs a Watcher around the given client.
func NewWatcher(c *client.Client, optFns ...func(o *Options)) *Watcher {
	opts := Options{Interval: DefaultInterval, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Watcher{client: c, interval: opts.Interval, logger: opts.Logger}
}

// WaitFor polls until the job reaches the status announced by targetKind,
// returning the synthesized event. While waiting, every counterparty
// message whose id is not in known is recorded there and handed to
// onMessage (when non-nil), sequentially. Waiting for acceptance fails
// immediately with RejectedError when a rejection is observed: a rejected
// job can never become accepted. Deadline expiry yields WaitTimeoutError.
func (w *Watcher) WaitFor(ctx context.Context, jobID string, targetKind core.EventKind, known core.KnownMessages, onMessage MessageHandler, timeout time.Duration) (core.Event, error) {
	deadline := time.Now().Add(timeout)
	w.logger.Info("polling for event", "job_id", jobID, "event", string(targetKind), "interval", w.interval)

	for {
		if time.Now().After(deadline) {
			return core.Event{}, &core.WaitTimeoutError{JobID: jobID, Kind: targetKind}
		}

		job, err := w.client.GetJob(ctx, jobID)
		if err != nil {
			return core.Event{}, fmt.Errorf("poll job %s: %w", jobID, err)
		}

		if kind, ok := core.StatusEventKind(job.Status); ok && kind == targetKind {
			w.logger.Info("target status reached", "job_id", jobID, "status", string(job.Status))
			return core.EventFromJob(kind, job), nil
		}
		if targetKind == core.EventAccepted && job.Status == core.StatusRejected {
			return core.Event{}, &core.RejectedError{JobID: jobID}
		}

		if onMessage != nil {
			w.checkMessages(ctx, jobID, known, onMessage)
		}

		sleep := w.interval
		if remaining := time.Until(deadline); remaining < sleep {
			sleep = remaining
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return core.Event{}, ctx.Err()
		}
	}
}

// checkMessages fetches the message list and hands unseen counterparty
// messages to the handler. Fetch errors are swallowed: the next tick
// retries, and a flaky message endpoint must not abort a status wait.
func (w *Watcher) checkMessages(ctx context.Context, jobID string, known core.KnownMessages, onMessage MessageHandler) {
	msgs, err := w.client.ListMessages(ctx, jobID)
	if err != nil {
		w.logger.Warn("message fetch failed, retrying next tick", "job_id", jobID, "error", err)
		return
	}
	for _, msg := range msgs {
		if msg.SenderType != core.SenderHuman || known.Has(msg.ID) {
			continue
		}
		known.Add(msg.ID)
		w.logger.Info("new message from human", "job_id", jobID, "message_id", msg.ID)
		if err := onMessage(ctx, msg); err != nil {
			w.logger.Warn("message handler failed", "job_id", jobID, "message_id", msg.ID, "error", err)
		}
	}
}
