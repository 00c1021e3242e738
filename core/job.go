package core

import "github.com/google/uuid"

// JobStatus enumerates the remote-authoritative status sequence of a job.
// The remote service owns transitions; the engine never mutates a job
// locally, it only observes.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusAccepted  JobStatus = "ACCEPTED"
	StatusRejected  JobStatus = "REJECTED"
	StatusPaid      JobStatus = "PAID"
	StatusCompleted JobStatus = "COMPLETED"
	StatusReviewed  JobStatus = "REVIEWED"
)

// Normalize maps wire aliases onto the canonical status set. The API emits
// "OFFERED" for a job the human has not acted on yet; the engine treats it
// as PENDING everywhere.
func (s JobStatus) Normalize() JobStatus {
	if s == "OFFERED" {
		return StatusPending
	}
	return s
}

// Terminal reports whether no further lifecycle phase can follow s.
func (s JobStatus) Terminal() bool {
	return s == StatusRejected || s == StatusReviewed
}

// Job is the engine's transient, possibly stale copy of the remote job
// entity. It is released when the lifecycle invocation returns.
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PriceUSDC   float64   `json:"priceUsdc"`
	HumanID     string    `json:"humanId"`
	HumanName   string    `json:"humanName,omitempty"`
}

// Contact carries the optional out-of-band contact channels a human may
// share once a job is accepted. All fields are optional.
type Contact struct {
	Email    string `json:"email,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

// Empty reports whether no contact channel is present.
func (c Contact) Empty() bool {
	return c.Email == "" && c.Telegram == "" && c.WhatsApp == "" && c.Signal == ""
}

// Human is a counterparty profile as returned by the remote API.
type Human struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Bio           string   `json:"bio,omitempty"`
	Skills        []string `json:"skills,omitempty"`
	Contact       *Contact `json:"contact,omitempty"`
	WalletAddress string   `json:"walletAddress,omitempty"`
	RateUSDC      float64  `json:"rateUsdc,omitempty"`
}

// AgentStatus enumerates activation states of the caller's own registration.
type AgentStatus string

const (
	AgentActive              AgentStatus = "ACTIVE"
	AgentPendingVerification AgentStatus = "PENDING_VERIFICATION"
	AgentSuspended           AgentStatus = "SUSPENDED"
)

// Agent is the caller's registration record. APIKey is only populated in
// the response to a fresh registration.
type Agent struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	APIKey string      `json:"apiKey,omitempty"`
	Status AgentStatus `json:"status"`
}

// NewID generates a unique identifier for locally created records.
func NewID() string { return uuid.NewString() }
