// Package openai provides a core.Replier backed by the OpenAI Chat
// Completions API. Any API failure degrades to the deterministic fallback
// so a conversation is never stalled by a model outage.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
	"github.com/human-pages-ai/hirewire/reply"
)

// Options configure the OpenAI replier. Fields mirror a minimal subset of
// Chat Completion parameters; extend via functional options without
// breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	Logger              logging.Logger
}

// Replier wraps the OpenAI Chat Completions API behind core.Replier.
type Replier struct {
	client *openai.Client
	opts   Options
}

// NewReplier creates a replier using the official client (API key from the
// environment).
func NewReplier(optFns ...func(o *Options)) *Replier {
	client := openai.NewClient()
	return NewReplierFromClient(&client, optFns...)
}

// NewReplierFromClient creates a replier from an existing client.
func NewReplierFromClient(client *openai.Client, optFns ...func(o *Options)) *Replier {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 256,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Replier{client: client, opts: opts}
}

// Reply implements core.Replier.
func (r *Replier) Reply(ctx context.Context, job core.Job, msg core.Message) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               r.opts.Model,
		Temperature:         openai.Float(r.opts.Temperature),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(job)),
			openai.UserMessage(msg.Content),
		},
	})
	if err != nil {
		r.opts.Logger.Warn("openai reply failed, using fallback", "error", err)
		return reply.FallbackText(job, msg), nil
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return reply.FallbackText(job, msg), nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func systemPrompt(job core.Job) string {
	return fmt.Sprintf(
		"You are an automated agent that hired a human through Human Pages for the job %q (%s, %.2f USDC). "+
			"Answer the human's message briefly and concretely. Do not promise anything beyond the job description.",
		job.Title, job.Description, job.PriceUSDC)
}

var _ core.Replier = (*Replier)(nil)
