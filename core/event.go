package core

import "time"

// EventKind classifies a notification: a job status change or a new
// inbound message.
type EventKind string

const (
	EventAccepted  EventKind = "accepted"
	EventRejected  EventKind = "rejected"
	EventPaid      EventKind = "paid"
	EventCompleted EventKind = "completed"
	EventMessage   EventKind = "message"
)

// StatusEventKind returns the event kind announcing a transition into the
// given status. Not every status has one (PENDING is the starting point,
// REVIEWED is produced by the engine itself).
func StatusEventKind(s JobStatus) (EventKind, bool) {
	switch s.Normalize() {
	case StatusAccepted:
		return EventAccepted, true
	case StatusRejected:
		return EventRejected, true
	case StatusPaid:
		return EventPaid, true
	case StatusCompleted:
		return EventCompleted, true
	default:
		return "", false
	}
}

// EventData is the denormalized payload attached to every event. The wire
// shape is shared by pushed notifications and events the poll watcher
// synthesizes from a status diff, so consumers never learn the delivery
// mode. Contact and Message are optional variants.
type EventData struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PriceUSDC   float64  `json:"priceUsdc"`
	HumanID     string   `json:"humanId"`
	HumanName   string   `json:"humanName,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
	Message     *Message `json:"message,omitempty"`
}

// Event is a normalized notification that a job changed status or received
// a message. Events are ephemeral: consumed at most once by a waiter, or
// retained in the bus buffer until one registers.
type Event struct {
	Kind      EventKind `json:"event"`
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// EventFromJob synthesizes the event a push notification would have carried
// for the job's current status, denormalizing the job fields into the
// payload.
func EventFromJob(kind EventKind, job Job) Event {
	return Event{
		Kind:      kind,
		JobID:     job.ID,
		Status:    job.Status.Normalize(),
		Timestamp: time.Now().UTC(),
		Data: EventData{
			Title:       job.Title,
			Description: job.Description,
			PriceUSDC:   job.PriceUSDC,
			HumanID:     job.HumanID,
			HumanName:   job.HumanName,
		},
	}
}
