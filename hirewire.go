// Package hirewire provides a high-level façade over the Human Pages job
// engine, enabling an automated agent to hire a human for a task with a
// single call. Most applications interact with this package by:
//  1. Creating an Engine via New() or NewFromConfig()
//  2. Calling Hire() to create and drive a job to its terminal status, or
//     Resume() to pick an interrupted job back up
//
// The façade delegates the state machine to lifecycle.Orchestrator while
// keeping setup concise. Without a webhook secret the engine polls; with
// one it runs a webhook server for the duration of the call and reacts to
// pushed events instead. All defaults are safe for local development;
// production deployments typically supply a Payer, a Confirmer and a
// structured logger.
package hirewire

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/human-pages-ai/hirewire/bus"
	"github.com/human-pages-ai/hirewire/client"
	"github.com/human-pages-ai/hirewire/config"
	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/lifecycle"
	"github.com/human-pages-ai/hirewire/logging"
	"github.com/human-pages-ai/hirewire/poll"
	"github.com/human-pages-ai/hirewire/webhook"
)

// Options configures the Engine instance.
type Options struct {
	// BaseURL overrides the Human Pages API endpoint.
	BaseURL string

	// WebhookSecret enables push delivery. When set, Hire and Resume run a
	// webhook server for the duration of the call and wait on pushed
	// events instead of polling.
	WebhookSecret string

	// WebhookAddr is the push server listen address.
	WebhookAddr string

	// PollInterval between status checks in poll mode.
	PollInterval time.Duration

	// WaitTimeout bounds each waiting lifecycle phase.
	WaitTimeout time.Duration

	// Payer settles the payment phase. Nil skips payment.
	Payer core.Payer

	// Confirmer approves outgoing payments, including ones demanded
	// mid-request by the API. Nil declines everything.
	Confirmer core.Confirmer

	// Signer produces payment authorizations for API requests answered
	// with 402.
	Signer core.PaymentSigner

	// Replier generates message replies. Defaults to the static replier.
	Replier core.Replier

	// FallbackPayAddress receives payment when the human profile carries
	// no wallet address.
	FallbackPayAddress string

	// SkipAddressValidation disables the recipient address format check.
	SkipAddressValidation bool

	// OnCredentials receives the agent record after a fresh registration.
	OnCredentials func(agent core.Agent)

	// AgentName and AgentDescription are used when registering an agent.
	AgentName        string
	AgentDescription string

	// Rating and ReviewComment are submitted in the review phase.
	Rating        int
	ReviewComment string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Engine is the high-level façade aggregating the API client, the delivery
// mechanism and the lifecycle orchestrator.
type Engine struct {
	opts   Options
	client *client.Client
	logger logging.Logger
}

// New creates a new Engine with optional overrides. An empty apiKey makes
// the first Hire register a fresh agent.
func New(apiKey string, optFns ...func(o *Options)) *Engine {
	opts := Options{
		WebhookAddr:  config.DefaultWebhookAddr,
		PollInterval: poll.DefaultInterval,
		WaitTimeout:  lifecycle.DefaultWaitTimeout,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := client.New(apiKey, func(o *client.Options) {
		if opts.BaseURL != "" {
			o.BaseURL = opts.BaseURL
		}
		o.Signer = opts.Signer
		o.Confirmer = opts.Confirmer
		o.Logger = opts.Logger
	})

	return &Engine{opts: opts, client: c, logger: opts.Logger}
}

// NewFromConfig creates an Engine from environment configuration, with
// optional overrides applied on top.
func NewFromConfig(cfg config.Config, optFns ...func(o *Options)) *Engine {
	fns := append([]func(o *Options){func(o *Options) {
		o.BaseURL = cfg.BaseURL
		o.WebhookSecret = cfg.WebhookSecret
		o.WebhookAddr = cfg.WebhookAddr
		o.PollInterval = cfg.PollInterval
		o.WaitTimeout = cfg.WaitTimeout
		o.FallbackPayAddress = cfg.PaymentAddress
	}}, optFns...)
	return New(cfg.APIKey, fns...)
}

// Client exposes the underlying API client for calls outside the managed
// lifecycle.
func (e *Engine) Client() *client.Client { return e.client }

// SearchHumans finds humans matching the query.
func (e *Engine) SearchHumans(ctx context.Context, query string) ([]core.Human, error) {
	return e.client.SearchHumans(ctx, query)
}

// GetJob fetches the current remote state of a job.
func (e *Engine) GetJob(ctx context.Context, id string) (core.Job, error) {
	return e.client.GetJob(ctx, id)
}

// Hire creates a job for the given human and drives it to a terminal
// status. It blocks until the job is reviewed, rejected, or a waiting
// phase times out.
func (e *Engine) Hire(ctx context.Context, humanID, title, description string, priceUSDC float64) (core.Job, error) {
	return e.execute(ctx, func(ctx context.Context, o *lifecycle.Orchestrator) (core.Job, error) {
		return o.Run(ctx, humanID, title, description, priceUSDC)
	})
}

// Resume picks an existing job back up from whatever status the remote API
// reports, surviving process restarts.
func (e *Engine) Resume(ctx context.Context, jobID string) (core.Job, error) {
	return e.execute(ctx, func(ctx context.Context, o *lifecycle.Orchestrator) (core.Job, error) {
		return o.Resume(ctx, jobID)
	})
}

// execute runs one lifecycle invocation, bringing up the webhook server
// around it in push mode.
func (e *Engine) execute(ctx context.Context, fn func(context.Context, *lifecycle.Orchestrator) (core.Job, error)) (core.Job, error) {
	if e.opts.WebhookSecret == "" {
		return fn(ctx, e.orchestrator(nil))
	}

	b := bus.New(e.logger)
	recv, err := webhook.NewReceiver(e.opts.WebhookSecret, b, e.logger)
	if err != nil {
		return core.Job{}, err
	}
	srv := webhook.NewServer(e.opts.WebhookAddr, recv, e.logger)

	var job core.Job
	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopSrv := context.WithCancel(gctx)
	defer stopSrv()

	g.Go(func() error {
		return srv.Run(srvCtx)
	})
	g.Go(func() error {
		defer stopSrv()
		var runErr error
		job, runErr = fn(gctx, e.orchestrator(b))
		return runErr
	})

	if err := g.Wait(); err != nil {
		return job, err
	}
	return job, nil
}

func (e *Engine) orchestrator(b *bus.Bus) *lifecycle.Orchestrator {
	return lifecycle.New(e.client, func(o *lifecycle.Options) {
		o.Bus = b
		if b == nil {
			o.Watcher = poll.NewWatcher(e.client, func(po *poll.Options) {
				po.Interval = e.opts.PollInterval
				po.Logger = e.logger
			})
		}
		o.Payer = e.opts.Payer
		o.Confirmer = e.opts.Confirmer
		if e.opts.Replier != nil {
			o.Replier = e.opts.Replier
		}
		o.Logger = e.logger
		o.WaitTimeout = e.opts.WaitTimeout
		if e.opts.Rating != 0 {
			o.Rating = e.opts.Rating
		}
		if e.opts.ReviewComment != "" {
			o.ReviewComment = e.opts.ReviewComment
		}
		o.FallbackPayAddress = e.opts.FallbackPayAddress
		o.SkipAddressValidation = e.opts.SkipAddressValidation
		o.OnCredentials = e.opts.OnCredentials
		if e.opts.AgentName != "" {
			o.AgentName = e.opts.AgentName
		}
		if e.opts.AgentDescription != "" {
			o.AgentDescription = e.opts.AgentDescription
		}
	})
}
