package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/human-pages-ai/hirewire/bus"
	"github.com/human-pages-ai/hirewire/client"
	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
	"github.com/human-pages-ai/hirewire/poll"
	"github.com/human-pages-ai/hirewire/reply"
	"github.com/human-pages-ai/hirewire/wallet"
)

const (
	// DefaultWaitTimeout bounds each waiting phase, not the whole run.
	DefaultWaitTimeout = 24 * time.Hour

	// DefaultRating is submitted when the operator does not set one.
	DefaultRating = 5
)

const (
	defaultReviewComment    = "Great work, delivered as agreed. Thank you!"
	defaultAgentName        = "hirewire-agent"
	defaultAgentDescription = "Automated agent hiring humans through Human Pages."
)

// Options configure an Orchestrator.
type Options struct {
	// Bus switches delivery to push mode: waiting phases register with the
	// bus instead of polling. Nil means poll mode.
	Bus *bus.Bus

	// Watcher used in poll mode. A default one is built around the client
	// when nil and no Bus is set.
	Watcher *poll.Watcher

	// Payer settles the ACCEPTED phase. Nil skips payment entirely.
	Payer core.Payer

	// Confirmer approves each outgoing payment. Nil declines everything,
	// so funds never move without an explicit operator hook.
	Confirmer core.Confirmer

	// Replier generates reply text for inbound messages. Defaults to the
	// deterministic static replier.
	Replier core.Replier

	// Logger for run-level visibility. Defaults to NoOp.
	Logger logging.Logger

	// WaitTimeout bounds each waiting phase. Defaults to DefaultWaitTimeout.
	WaitTimeout time.Duration

	// Rating and ReviewComment are submitted in the review phase.
	Rating        int
	ReviewComment string

	// FallbackPayAddress is used when the human profile carries no wallet.
	FallbackPayAddress string

	// SkipAddressValidation disables the recipient address format check,
	// for networks with other address shapes.
	SkipAddressValidation bool

	// OnCredentials is invoked once when Run registers a new agent, so the
	// operator can persist the issued API key.
	OnCredentials func(agent core.Agent)

	// AgentName and AgentDescription are used when Run registers an agent.
	AgentName        string
	AgentDescription string
}

// Orchestrator executes the job lifecycle against the remote API. The
// remote service owns all status transitions; the orchestrator only reacts
// to them and performs the agent-side actions each phase requires.
type Orchestrator struct {
	client *client.Client
	opts   Options
	logger logging.Logger
}

// New constructs an Orchestrator around the given API client.
func New(c *client.Client, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Replier:          reply.NewStatic(),
		Logger:           logging.NoOpLogger{},
		WaitTimeout:      DefaultWaitTimeout,
		Rating:           DefaultRating,
		ReviewComment:    defaultReviewComment,
		AgentName:        defaultAgentName,
		AgentDescription: defaultAgentDescription,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Bus == nil && opts.Watcher == nil {
		opts.Watcher = poll.NewWatcher(c, func(o *poll.Options) {
			o.Logger = opts.Logger
		})
	}
	return &Orchestrator{client: c, opts: opts, logger: opts.Logger}
}

// run is the mutable state of one lifecycle invocation. It is owned by a
// single goroutine; the push-mode message loop is joined before any step
// returns, so no field needs locking.
type run struct {
	o     *Orchestrator
	job   core.Job
	human core.Human

	haveHuman bool
	known     core.KnownMessages
}

// Run creates a new job for the given human and drives it to a terminal
// status. The returned job carries the last status reached; a rejection
// surfaces as *core.RejectedError, an expired waiting phase as
// *core.WaitTimeoutError.
func (o *Orchestrator) Run(ctx context.Context, humanID, title, description string, priceUSDC float64) (core.Job, error) {
	if err := o.ensureActive(ctx); err != nil {
		return core.Job{}, err
	}

	human, err := o.client.GetHuman(ctx, humanID)
	if err != nil {
		return core.Job{}, fmt.Errorf("fetch human %s: %w", humanID, err)
	}

	job, err := o.client.CreateJob(ctx, humanID, title, description, priceUSDC)
	if err != nil {
		return core.Job{}, fmt.Errorf("create job: %w", err)
	}
	o.logger.Info("job created", "job", job.ID, "human", human.Name, "price_usdc", priceUSDC)

	r := &run{o: o, job: job, human: human, haveHuman: true, known: core.KnownMessages{}}
	if sent, err := o.client.SendMessage(ctx, job.ID, introText(job)); err != nil {
		o.logger.Warn("intro message failed", "job", job.ID, "error", err)
	} else {
		r.known.Add(sent.ID)
	}

	return o.drive(ctx, r)
}

// Resume picks up an existing job at whatever status the remote API
// reports. Terminal jobs return immediately. Message history is loaded into
// the known set so old messages are not re-answered.
func (o *Orchestrator) Resume(ctx context.Context, jobID string) (core.Job, error) {
	job, err := o.client.GetJob(ctx, jobID)
	if err != nil {
		return core.Job{}, fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		o.logger.Info("job already terminal", "job", job.ID, "status", job.Status)
		return job, nil
	}

	r := &run{o: o, job: job, known: core.KnownMessages{}}
	if job.HumanID != "" {
		if human, err := o.client.GetHuman(ctx, job.HumanID); err != nil {
			o.logger.Warn("human profile unavailable on resume", "human", job.HumanID, "error", err)
		} else {
			r.human = human
			r.haveHuman = true
		}
	}
	if msgs, err := o.client.ListMessages(ctx, jobID); err != nil {
		o.logger.Warn("message history unavailable on resume", "job", jobID, "error", err)
	} else {
		for _, m := range msgs {
			r.known.Add(m.ID)
		}
	}

	o.logger.Info("resuming job", "job", job.ID, "status", job.Status)
	return o.drive(ctx, r)
}

// ensureActive registers the agent if the client has no API key yet, then
// requires ACTIVE status before any job work starts.
func (o *Orchestrator) ensureActive(ctx context.Context) error {
	if o.client.APIKey() == "" {
		agent, err := o.client.RegisterAgent(ctx, o.opts.AgentName, o.opts.AgentDescription)
		if err != nil {
			return fmt.Errorf("register agent: %w", err)
		}
		o.logger.Info("agent registered", "agent", agent.ID, "status", agent.Status)
		if o.opts.OnCredentials != nil {
			o.opts.OnCredentials(agent)
		}
	}

	agent, err := o.client.GetAgent(ctx)
	if err != nil {
		return fmt.Errorf("fetch agent profile: %w", err)
	}
	if agent.Status != core.AgentActive {
		return &core.ActivationError{AgentStatus: agent.Status}
	}
	return nil
}

// drive loops over the phase table until a terminal status is reached or a
// step fails. Each step performs its phase's side effects and returns the
// status to continue from.
func (o *Orchestrator) drive(ctx context.Context, r *run) (core.Job, error) {
	steps := map[core.JobStatus]func(context.Context) (core.JobStatus, error){
		core.StatusPending:   r.awaitAcceptance,
		core.StatusAccepted:  r.settlePayment,
		core.StatusPaid:      r.awaitCompletion,
		core.StatusCompleted: r.submitReview,
	}

	status := r.job.Status.Normalize()
	for !status.Terminal() {
		step, ok := steps[status]
		if !ok {
			return r.job, fmt.Errorf("job %s: unexpected status %q", r.job.ID, status)
		}
		next, err := step(ctx)
		if err != nil {
			return r.job, err
		}
		status = next
		r.job.Status = status
	}
	return r.job, nil
}

// awaitAcceptance blocks until the human accepts or rejects the offer,
// replying to messages in the meantime. On acceptance the shared contact
// details are taken from the event payload, falling back to a profile
// refetch, and a coordination message opens the working conversation.
func (r *run) awaitAcceptance(ctx context.Context) (core.JobStatus, error) {
	o := r.o
	o.logger.Info("waiting for acceptance", "job", r.job.ID)

	ev, err := r.waitEvent(ctx, core.EventAccepted)
	if err != nil {
		return "", err
	}
	r.absorb(ev)
	o.logger.Info("job accepted", "job", r.job.ID, "human", r.job.HumanName)

	if contact := r.acceptanceContact(ctx, ev); contact != nil && !contact.Empty() {
		o.logger.Info("contact details shared", "job", r.job.ID)
	}

	if sent, err := o.client.SendMessage(ctx, r.job.ID, coordinationText(r.job)); err != nil {
		o.logger.Warn("coordination message failed", "job", r.job.ID, "error", err)
	} else {
		r.known.Add(sent.ID)
	}
	return core.StatusAccepted, nil
}

// settlePayment attempts the USDC transfer and records it with the API.
// Every failure in here is advisory: the human may deliver regardless, so
// the run continues to the completion wait no matter what.
func (r *run) settlePayment(ctx context.Context) (core.JobStatus, error) {
	o := r.o
	if o.opts.Payer == nil {
		o.logger.Info("no payer configured, skipping payment", "job", r.job.ID)
		return core.StatusPaid, nil
	}
	if err := r.pay(ctx); err != nil {
		o.logger.Error("payment failed, continuing without it", "job", r.job.ID, "error", err)
	}
	return core.StatusPaid, nil
}

func (r *run) pay(ctx context.Context) error {
	o := r.o

	if err := wallet.CheckFunds(ctx, o.opts.Payer, r.job.PriceUSDC); err != nil {
		return err
	}

	var human core.Human
	if r.haveHuman {
		human = r.human
	}
	to, err := wallet.ResolveRecipient(human, o.opts.FallbackPayAddress, o.opts.SkipAddressValidation)
	if err != nil {
		return err
	}

	if o.opts.Confirmer == nil {
		return errors.New("no confirmer configured, refusing unattended payment")
	}
	prompt := fmt.Sprintf("Send %.2f USDC to %s for job %s?", r.job.PriceUSDC, to, r.job.ID)
	ok, err := o.opts.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm payment: %w", err)
	}
	if !ok {
		return errors.New("payment declined by operator")
	}

	tx, err := o.opts.Payer.Pay(ctx, r.job.PriceUSDC, to)
	if err != nil {
		return fmt.Errorf("send payment: %w", err)
	}
	o.logger.Info("payment sent", "job", r.job.ID, "tx", tx, "to", to)

	if _, err := o.client.MarkJobPaid(ctx, r.job.ID, tx); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	return nil
}

// awaitCompletion blocks until the human marks the work done, replying to
// messages in the meantime.
func (r *run) awaitCompletion(ctx context.Context) (core.JobStatus, error) {
	r.o.logger.Info("waiting for completion", "job", r.job.ID)

	ev, err := r.waitEvent(ctx, core.EventCompleted)
	if err != nil {
		return "", err
	}
	r.absorb(ev)
	r.o.logger.Info("job completed", "job", r.job.ID)
	return core.StatusCompleted, nil
}

// submitReview closes the loop with a rating. Review failure is fatal: the
// job is done but the run did not finish its own last obligation.
func (r *run) submitReview(ctx context.Context) (core.JobStatus, error) {
	o := r.o
	if err := o.client.ReviewJob(ctx, r.job.ID, o.opts.Rating, o.opts.ReviewComment); err != nil {
		return "", fmt.Errorf("review job %s: %w", r.job.ID, err)
	}
	o.logger.Info("review submitted", "job", r.job.ID, "rating", o.opts.Rating)
	return core.StatusReviewed, nil
}

// waitEvent blocks until the target event arrives, dispatching inbound
// messages to the reply pipeline while waiting. Push mode when a bus is
// configured, poll mode otherwise.
func (r *run) waitEvent(ctx context.Context, target core.EventKind) (core.Event, error) {
	if r.o.opts.Bus == nil {
		return r.o.opts.Watcher.WaitFor(ctx, r.job.ID, target, r.known, r.handleMessage, r.o.opts.WaitTimeout)
	}
	return r.pushWait(ctx, target)
}

// pushWait registers bus waiters for the target kind, for rejection when
// acceptance is awaited, and runs a loop consuming message events. The
// message loop is joined before returning so the known set is never
// touched concurrently with the next step.
func (r *run) pushWait(ctx context.Context, target core.EventKind) (core.Event, error) {
	o := r.o
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		ev  core.Event
		err error
	}
	results := make(chan outcome, 2)

	go func() {
		ev, err := o.opts.Bus.Register(waitCtx, r.job.ID, target, o.opts.WaitTimeout)
		results <- outcome{ev, err}
	}()

	if target == core.EventAccepted {
		go func() {
			ev, err := o.opts.Bus.Register(waitCtx, r.job.ID, core.EventRejected, o.opts.WaitTimeout)
			if err != nil {
				// timeout or cancellation of the rejection waiter is not
				// an outcome, the target waiter reports those
				return
			}
			results <- outcome{ev, &core.RejectedError{JobID: r.job.ID}}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			ev, err := o.opts.Bus.Register(waitCtx, r.job.ID, core.EventMessage, o.opts.WaitTimeout)
			if err != nil {
				return
			}
			msg := ev.Data.Message
			if msg == nil || msg.SenderType != core.SenderHuman || r.known.Has(msg.ID) {
				continue
			}
			r.known.Add(msg.ID)
			if err := r.handleMessage(waitCtx, *msg); err != nil {
				o.logger.Warn("message handler failed", "job", r.job.ID, "error", err)
			}
		}
	}()

	res := <-results
	cancel()
	wg.Wait()
	return res.ev, res.err
}

// handleMessage generates and sends a reply to one inbound human message.
// Replier failures degrade to the deterministic fallback so the human
// always gets an answer; only the send itself can fail the handler.
func (r *run) handleMessage(ctx context.Context, msg core.Message) error {
	o := r.o
	o.logger.Info("message received", "job", r.job.ID, "from", msg.SenderName)

	text, err := o.opts.Replier.Reply(ctx, r.job, msg)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			o.logger.Warn("replier failed, using fallback", "job", r.job.ID, "error", err)
		}
		text = reply.FallbackText(r.job, msg)
	}

	sent, err := o.client.SendMessage(ctx, r.job.ID, text)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	r.known.Add(sent.ID)
	return nil
}

// absorb copies the denormalized payload of a status event into the run's
// job copy, so resumed runs fill in fields the initial fetch lacked.
func (r *run) absorb(ev core.Event) {
	if ev.Data.Title != "" {
		r.job.Title = ev.Data.Title
	}
	if ev.Data.Description != "" {
		r.job.Description = ev.Data.Description
	}
	if ev.Data.PriceUSDC > 0 {
		r.job.PriceUSDC = ev.Data.PriceUSDC
	}
	if ev.Data.HumanID != "" {
		r.job.HumanID = ev.Data.HumanID
	}
	if ev.Data.HumanName != "" {
		r.job.HumanName = ev.Data.HumanName
	}
}

// acceptanceContact extracts contact details from the acceptance payload,
// refetching the profile when the payload carries none. Absence is fine,
// coordination continues through job messages either way.
func (r *run) acceptanceContact(ctx context.Context, ev core.Event) *core.Contact {
	if ev.Data.Contact != nil {
		return ev.Data.Contact
	}
	if r.job.HumanID == "" {
		return nil
	}
	human, err := r.o.client.GetHuman(ctx, r.job.HumanID)
	if err != nil {
		r.o.logger.Debug("profile refetch for contact failed", "job", r.job.ID, "error", err)
		return nil
	}
	r.human = human
	r.haveHuman = true
	return human.Contact
}

func introText(job core.Job) string {
	return fmt.Sprintf(
		"Hi! I'm an automated agent and I'd like to hire you for %q: %s. The offer is %.2f USDC, paid up front once you accept. Let me know if anything is unclear!",
		job.Title, job.Description, job.PriceUSDC,
	)
}

func coordinationText(job core.Job) string {
	return fmt.Sprintf(
		"Great, thanks for accepting %q! I'll send the payment next. Message me here any time, I'll reply promptly. Please mark the job complete when you're done.",
		job.Title,
	)
}
