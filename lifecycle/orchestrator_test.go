package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/human-pages-ai/hirewire/bus"
	"github.com/human-pages-ai/hirewire/client"
	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/internal/testutil"
	"github.com/human-pages-ai/hirewire/logging"
	"github.com/human-pages-ai/hirewire/poll"
)

const payAddr = "0x00112233445566778899aabbccddeeff00112233"

func newEnv(t *testing.T, apiKey string) (*testutil.FakeAPI, *client.Client) {
	t.Helper()
	api := testutil.NewFakeAPI()
	api.Humans["human-1"] = core.Human{
		ID: "human-1", Name: "Dana", Bio: "Translator", WalletAddress: payAddr, RateUSDC: 20,
	}
	srv := api.Server()
	t.Cleanup(srv.Close)
	c := client.New(apiKey, func(o *client.Options) {
		o.BaseURL = srv.URL
		o.Backoff = nil
	})
	return api, c
}

// pollOrch builds an orchestrator in poll mode with a fast tick.
func pollOrch(c *client.Client, optFns ...func(o *Options)) *Orchestrator {
	fns := append([]func(o *Options){func(o *Options) {
		o.Watcher = poll.NewWatcher(c, func(po *poll.Options) {
			po.Interval = 10 * time.Millisecond
		})
		o.WaitTimeout = 2 * time.Second
	}}, optFns...)
	return New(c, fns...)
}

func seedJob(api *testutil.FakeAPI, id string, status core.JobStatus) core.Job {
	job := core.Job{
		ID: id, Status: status,
		Title: "Translate a document", Description: "EN to DE, two pages",
		PriceUSDC: 25, HumanID: "human-1", HumanName: "Dana",
	}
	api.Jobs[id] = job
	return job
}

type payment struct {
	amount float64
	to     string
}

type stubPayer struct {
	balance float64
	payErr  error

	mu   sync.Mutex
	paid []payment
}

func (p *stubPayer) Balance(context.Context) (float64, error) { return p.balance, nil }

func (p *stubPayer) Pay(_ context.Context, amount float64, to string) (string, error) {
	if p.payErr != nil {
		return "", p.payErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, payment{amount: amount, to: to})
	return "0xdeadbeef", nil
}

func (p *stubPayer) payments() []payment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]payment(nil), p.paid...)
}

func alwaysConfirm() core.Confirmer {
	return core.ConfirmerFunc(func(context.Context, string) (bool, error) { return true, nil })
}

func waitForJob(t *testing.T, api *testutil.FakeAPI) string {
	t.Helper()
	require.Eventually(t, func() bool { return len(api.JobIDs()) == 1 }, 2*time.Second, 5*time.Millisecond)
	return api.JobIDs()[0]
}

func TestRun_FullLifecyclePollMode(t *testing.T) {
	api, c := newEnv(t, "test-key")
	payer := &stubPayer{balance: 100}
	o := pollOrch(c, func(o *Options) {
		o.Payer = payer
		o.Confirmer = alwaysConfirm()
	})

	var (
		job    core.Job
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		job, runErr = o.Run(context.Background(), "human-1", "Translate a document", "EN to DE, two pages", 25)
	}()

	jobID := waitForJob(t, api)
	api.ScriptStatuses(jobID, core.StatusAccepted)

	// payment marks the acceptance phase done, then release the work
	require.Eventually(t, func() bool {
		_, ok := api.PaidTx(jobID)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
	api.ScriptStatuses(jobID, core.StatusCompleted)

	<-done
	require.NoError(t, runErr)
	assert.Equal(t, core.StatusReviewed, job.Status)

	tx, ok := api.PaidTx(jobID)
	require.True(t, ok)
	assert.Equal(t, "0xdeadbeef", tx)
	require.Len(t, payer.payments(), 1)
	assert.Equal(t, 25.0, payer.payments()[0].amount)
	assert.Equal(t, payAddr, payer.payments()[0].to)

	reviews := api.Reviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, jobID, reviews[0].JobID)
	assert.Equal(t, DefaultRating, reviews[0].Rating)

	// intro plus coordination at minimum
	assert.GreaterOrEqual(t, len(api.SentMessages(jobID)), 2)
}

func TestResume_RejectionSurfacesAsRejectedError(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusPending)
	api.ScriptStatuses("job-1", core.StatusPending, core.StatusRejected)

	o := pollOrch(c)
	_, err := o.Resume(context.Background(), "job-1")

	var rejErr *core.RejectedError
	require.ErrorAs(t, err, &rejErr)
	assert.Equal(t, "job-1", rejErr.JobID)
	assert.Empty(t, api.Reviews())
}

func TestResume_FromPaidSkipsPayment(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusPaid)
	api.ScriptStatuses("job-1", core.StatusPaid, core.StatusCompleted)

	payer := &stubPayer{balance: 100}
	o := pollOrch(c, func(o *Options) {
		o.Payer = payer
		o.Confirmer = alwaysConfirm()
	})

	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReviewed, job.Status)
	assert.Empty(t, payer.payments())
	_, ok := api.PaidTx("job-1")
	assert.False(t, ok)
	require.Len(t, api.Reviews(), 1)
}

func TestResume_TerminalJobReturnsImmediately(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusRejected)

	o := pollOrch(c)
	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusRejected, job.Status)
	assert.Equal(t, 1, api.FetchCount("job-1"))
}

func TestResume_PaymentFailureIsNonFatal(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusAccepted)
	api.ScriptStatuses("job-1", core.StatusAccepted, core.StatusCompleted)

	payer := &stubPayer{balance: 100, payErr: errors.New("rpc node unreachable")}
	o := pollOrch(c, func(o *Options) {
		o.Payer = payer
		o.Confirmer = alwaysConfirm()
	})

	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReviewed, job.Status)
	_, ok := api.PaidTx("job-1")
	assert.False(t, ok)
	require.Len(t, api.Reviews(), 1)
}

func TestResume_NoPayerSkipsPayment(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusAccepted)
	api.ScriptStatuses("job-1", core.StatusAccepted, core.StatusCompleted)

	o := pollOrch(c)
	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReviewed, job.Status)
	_, ok := api.PaidTx("job-1")
	assert.False(t, ok)
}

func TestResume_NoConfirmerRefusesPayment(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusAccepted)
	api.ScriptStatuses("job-1", core.StatusAccepted, core.StatusCompleted)

	payer := &stubPayer{balance: 100}
	o := pollOrch(c, func(o *Options) { o.Payer = payer })

	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReviewed, job.Status)
	assert.Empty(t, payer.payments())
}

func TestResume_MessageHistoryNotReanswered(t *testing.T) {
	api, c := newEnv(t, "test-key")
	seedJob(api, "job-1", core.StatusPending)
	api.AddMessage("job-1", core.SenderHuman, "hello, is this offer real?")
	api.ScriptStatuses("job-1", core.StatusPending, core.StatusPending, core.StatusAccepted, core.StatusCompleted)

	o := pollOrch(c)
	job, err := o.Resume(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusReviewed, job.Status)

	// only the coordination message, no reply to the pre-existing one
	require.Len(t, api.SentMessages("job-1"), 1)
	assert.Contains(t, api.SentMessages("job-1")[0].Content, "accepting")
}

func TestRun_PushMode_RepliesAndCompletes(t *testing.T) {
	api, c := newEnv(t, "test-key")
	b := bus.New(logging.NoOpLogger{})
	o := New(c, func(o *Options) {
		o.Bus = b
		o.WaitTimeout = 2 * time.Second
	})

	var (
		job    core.Job
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		job, runErr = o.Run(context.Background(), "human-1", "Translate a document", "EN to DE, two pages", 25)
	}()

	jobID := waitForJob(t, api)

	// inbound question ahead of acceptance gets a reply while waiting
	msg := api.AddMessage(jobID, core.SenderHuman, "When do you need this done?")
	b.Publish(core.Event{
		Kind: core.EventMessage, JobID: jobID, Status: core.StatusPending,
		Timestamp: time.Now().UTC(),
		Data:      core.EventData{Message: &msg},
	})
	require.Eventually(t, func() bool {
		return len(api.SentMessages(jobID)) >= 2 // intro + reply
	}, 2*time.Second, 5*time.Millisecond)

	b.Publish(core.Event{
		Kind: core.EventAccepted, JobID: jobID, Status: core.StatusAccepted,
		Timestamp: time.Now().UTC(),
		Data:      core.EventData{Title: "Translate a document", PriceUSDC: 25, HumanID: "human-1", HumanName: "Dana"},
	})
	require.Eventually(t, func() bool {
		return len(api.SentMessages(jobID)) >= 3 // coordination sent
	}, 2*time.Second, 5*time.Millisecond)

	// the buffer holds this even if the completion waiter is not up yet
	b.Publish(core.Event{
		Kind: core.EventCompleted, JobID: jobID, Status: core.StatusCompleted,
		Timestamp: time.Now().UTC(),
	})

	<-done
	require.NoError(t, runErr)
	assert.Equal(t, core.StatusReviewed, job.Status)
	assert.Equal(t, 0, api.FetchCount(jobID))
	require.Len(t, api.Reviews(), 1)
}

func TestRun_PushMode_Rejection(t *testing.T) {
	api, c := newEnv(t, "test-key")
	b := bus.New(logging.NoOpLogger{})
	o := New(c, func(o *Options) {
		o.Bus = b
		o.WaitTimeout = 2 * time.Second
	})

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, runErr = o.Run(context.Background(), "human-1", "Translate a document", "EN to DE, two pages", 25)
	}()

	jobID := waitForJob(t, api)
	b.Publish(core.Event{
		Kind: core.EventRejected, JobID: jobID, Status: core.StatusRejected,
		Timestamp: time.Now().UTC(),
	})

	<-done
	var rejErr *core.RejectedError
	require.ErrorAs(t, runErr, &rejErr)
	assert.Equal(t, jobID, rejErr.JobID)
	assert.Empty(t, api.Reviews())
}

func TestRun_RegistersAgentWhenNoKey(t *testing.T) {
	api, c := newEnv(t, "")
	var got core.Agent
	o := pollOrch(c, func(o *Options) {
		o.OnCredentials = func(a core.Agent) { got = a }
	})

	// unknown human aborts the run right after activation
	_, err := o.Run(context.Background(), "missing-human", "t", "d", 1)
	require.Error(t, err)

	assert.NotEmpty(t, got.APIKey)
	assert.Equal(t, got.APIKey, c.APIKey())
	assert.Empty(t, api.JobIDs())
}

func TestRun_InactiveAgentFailsWithActivationError(t *testing.T) {
	api, c := newEnv(t, "test-key")
	api.Agent.Status = core.AgentPendingVerification

	o := pollOrch(c)
	_, err := o.Run(context.Background(), "human-1", "t", "d", 1)

	var actErr *core.ActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, core.AgentPendingVerification, actErr.AgentStatus)
	assert.Empty(t, api.JobIDs())
}

func TestRun_WaitTimeout(t *testing.T) {
	api, c := newEnv(t, "test-key")
	o := pollOrch(c, func(o *Options) { o.WaitTimeout = 50 * time.Millisecond })

	_, err := o.Run(context.Background(), "human-1", "t", "d", 1)

	var toErr *core.WaitTimeoutError
	require.ErrorAs(t, err, &toErr)
	assert.Equal(t, core.EventAccepted, toErr.Kind)
	assert.Empty(t, api.Reviews())
}
