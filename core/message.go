package core

import "time"

// SenderType identifies which side of the conversation authored a message.
type SenderType string

const (
	SenderHuman SenderType = "human"
	SenderAgent SenderType = "agent"
)

// Message is one inbound or outbound conversational turn on a job.
type Message struct {
	ID         string     `json:"id"`
	JobID      string     `json:"jobId,omitempty"`
	SenderType SenderType `json:"senderType"`
	SenderID   string     `json:"senderId,omitempty"`
	SenderName string     `json:"senderName,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// KnownMessages tracks message identifiers the lifecycle has already
// processed or sent, so a message is never replied to twice. It is owned by
// a single lifecycle invocation and is not safe for concurrent use.
type KnownMessages map[string]struct{}

// Add records an identifier. Adding an id twice is harmless.
func (k KnownMessages) Add(id string) { k[id] = struct{}{} }

// Has reports whether the identifier was seen before.
func (k KnownMessages) Has(id string) bool {
	_, ok := k[id]
	return ok
}
