// Package anthropic provides a core.Replier backed by the Anthropic
// Messages API, degrading to the deterministic fallback on any failure.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
	"github.com/human-pages-ai/hirewire/reply"
)

// Options configure the Anthropic replier (model id, max tokens,
// temperature, API key).
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Replier wraps the Anthropic Messages API behind core.Replier.
type Replier struct {
	client *anthropic.Client
	opts   Options
}

// NewReplier creates a replier using the official client.
func NewReplier(optFns ...func(o *Options)) *Replier {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Replier{client: &client, opts: opts}
}

// NewReplierFromClient creates a replier from an existing client.
func NewReplierFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Replier {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Replier{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   256,
		Logger:      logging.NoOpLogger{},
	}
}

// Reply implements core.Replier.
func (r *Replier) Reply(ctx context.Context, job core.Job, msg core.Message) (string, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       r.opts.Model,
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt(job)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
		},
	})
	if err != nil {
		if r.opts.Logger != nil {
			r.opts.Logger.Warn("anthropic reply failed, using fallback", "error", err)
		}
		return reply.FallbackText(job, msg), nil
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return reply.FallbackText(job, msg), nil
	}
	return out, nil
}

func systemPrompt(job core.Job) string {
	return fmt.Sprintf(
		"You are an automated agent that hired a human through Human Pages for the job %q (%s, %.2f USDC). "+
			"Answer the human's message briefly and concretely. Do not promise anything beyond the job description.",
		job.Title, job.Description, job.PriceUSDC)
}

var _ core.Replier = (*Replier)(nil)
