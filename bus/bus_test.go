package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
)

func testEvent(jobID string, kind core.EventKind) core.Event {
	return core.Event{
		Kind:      kind,
		JobID:     jobID,
		Status:    core.StatusAccepted,
		Timestamp: time.Now().UTC(),
		Data:      core.EventData{Title: "Translate a document", PriceUSDC: 25},
	}
}

func TestRegister_ConsumesBufferedEvent(t *testing.T) {
	b := New(logging.NoOpLogger{})
	want := testEvent("job-1", core.EventAccepted)
	b.Publish(want)

	got, err := b.Register(context.Background(), "job-1", core.EventAccepted, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// at-most-once: the buffer entry is gone, a second register times out
	_, err = b.Register(context.Background(), "job-1", core.EventAccepted, 20*time.Millisecond)
	var te *core.WaitTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "job-1", te.JobID)
	assert.Equal(t, core.EventAccepted, te.Kind)
}

func TestRegister_ResolvedByLaterPublish(t *testing.T) {
	b := New(nil)
	want := testEvent("job-2", core.EventCompleted)

	done := make(chan struct{})
	var got core.Event
	var err error
	go func() {
		defer close(done)
		got, err = b.Register(context.Background(), "job-2", core.EventCompleted, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish(want)
	<-done

	require.NoError(t, err)
	assert.Equal(t, want, got)

	// resolved live, so nothing was buffered
	b.mu.Lock()
	assert.Empty(t, b.buffered)
	b.mu.Unlock()
}

func TestRegister_TimeoutThenPublishBuffers(t *testing.T) {
	b := New(nil)

	_, err := b.Register(context.Background(), "job-3", core.EventPaid, 10*time.Millisecond)
	var te *core.WaitTimeoutError
	require.ErrorAs(t, err, &te)

	// the dead waiter must not swallow a late event
	want := testEvent("job-3", core.EventPaid)
	b.Publish(want)

	got, err := b.Register(context.Background(), "job-3", core.EventPaid, time.Second)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPublish_OverwritesStaleBufferedEvent(t *testing.T) {
	b := New(nil)
	stale := testEvent("job-4", core.EventMessage)
	stale.Data.Message = &core.Message{ID: "m1", Content: "old"}
	fresh := testEvent("job-4", core.EventMessage)
	fresh.Data.Message = &core.Message{ID: "m2", Content: "new"}

	b.Publish(stale)
	b.Publish(fresh)

	got, err := b.Register(context.Background(), "job-4", core.EventMessage, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "m2", got.Data.Message.ID)
}

func TestRegister_ContextCancellation(t *testing.T) {
	b := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.Register(ctx, "job-5", core.EventAccepted, time.Minute)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("register did not honor cancellation")
	}
}

func TestRegister_KeyIsolation(t *testing.T) {
	b := New(nil)
	b.Publish(testEvent("job-6", core.EventAccepted))

	// same job, different kind must not match
	_, err := b.Register(context.Background(), "job-6", core.EventCompleted, 20*time.Millisecond)
	var te *core.WaitTimeoutError
	require.ErrorAs(t, err, &te)

	// different job, same kind must not match
	_, err = b.Register(context.Background(), "job-7", core.EventAccepted, 20*time.Millisecond)
	require.ErrorAs(t, err, &te)
}
