package reply

import (
	"context"
	"strings"

	"github.com/human-pages-ai/hirewire/core"
)

// Static is a deterministic keyword replier. It never errors, which makes
// it the universal fallback: the same inbound message always produces the
// same reply text.
type Static struct{}

// NewStatic constructs a Static replier.
func NewStatic() *Static { return &Static{} }

// Reply implements core.Replier.
func (s *Static) Reply(_ context.Context, job core.Job, msg core.Message) (string, error) {
	return FallbackText(job, msg), nil
}

// FallbackText produces the deterministic reply the adapters degrade to.
// It acknowledges the message and restates the job context so the human is
// never left without an answer.
func FallbackText(job core.Job, msg core.Message) string {
	content := strings.ToLower(msg.Content)
	switch {
	case strings.Contains(content, "when") || strings.Contains(content, "deadline"):
		return "No hard deadline on our side: whenever you can get to \"" + job.Title + "\" works. Let me know if you need anything to start."
	case strings.Contains(content, "pay") || strings.Contains(content, "price") || strings.Contains(content, "usdc"):
		return "Payment is handled through Human Pages: the agreed amount is sent in USDC once you accept, before the work starts."
	case strings.Contains(content, "?"):
		return "Good question. Everything I know about the task is in the job description for \"" + job.Title + "\". If something is still unclear, tell me which part and I'll expand."
	default:
		return "Thanks for the update! I'm an automated agent coordinating \"" + job.Title + "\" and I've noted your message; the job details still stand."
	}
}

var _ core.Replier = (*Static)(nil)
