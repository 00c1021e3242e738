package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/human-pages-ai/hirewire/core"
)

// Review records a submitted job review.
type Review struct {
	JobID   string
	Rating  int
	Comment string
}

// FakeAPI is an in-memory stand-in for the remote Human Pages service.
// Tests preload jobs, humans and scripted status sequences, then point a
// client at Server().URL. All methods are safe for concurrent use.
type FakeAPI struct {
	mu sync.Mutex

	Agent  core.Agent
	Humans map[string]core.Human
	Jobs   map[string]core.Job

	// statusScript, when set for a job, overrides the job's status on each
	// successive fetch, sticking at the final entry.
	statusScript map[string][]core.JobStatus
	fetches      map[string]int

	messages     map[string][]core.Message
	sent         map[string][]core.Message
	paid         map[string]string
	reviews      []Review
	failMessages map[string]int
}

// NewFakeAPI returns an empty fake with an active agent.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Agent:        core.Agent{ID: "agent-1", Name: "test-agent", Status: core.AgentActive},
		Humans:       make(map[string]core.Human),
		Jobs:         make(map[string]core.Job),
		statusScript: make(map[string][]core.JobStatus),
		fetches:      make(map[string]int),
		messages:     make(map[string][]core.Message),
		sent:         make(map[string][]core.Message),
		paid:         make(map[string]string),
		failMessages: make(map[string]int),
	}
}

// Server starts an httptest server; callers own the Close.
func (f *FakeAPI) Server() *httptest.Server {
	return httptest.NewServer(f.handler())
}

// ScriptStatuses programs the status returned by successive fetches of the
// job. The last entry repeats once the script is exhausted.
func (f *FakeAPI) ScriptStatuses(jobID string, statuses ...core.JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusScript[jobID] = statuses
}

// AddMessage appends an inbound message to the job's history and returns it.
func (f *FakeAPI) AddMessage(jobID string, sender core.SenderType, content string) core.Message {
	msg := core.Message{
		ID:         uuid.NewString(),
		JobID:      jobID,
		SenderType: sender,
		SenderName: "Ada",
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[jobID] = append(f.messages[jobID], msg)
	return msg
}

// JobIDs returns the ids of all known jobs, in no particular order.
func (f *FakeAPI) JobIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.Jobs))
	for id := range f.Jobs {
		ids = append(ids, id)
	}
	return ids
}

// FetchCount reports how many times the job's status was fetched.
func (f *FakeAPI) FetchCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[jobID]
}

// SentMessages returns messages posted by the agent under test.
func (f *FakeAPI) SentMessages(jobID string) []core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Message(nil), f.sent[jobID]...)
}

// PaidTx returns the transaction hash reported for the job, if any.
func (f *FakeAPI) PaidTx(jobID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.paid[jobID]
	return tx, ok
}

// Reviews returns all submitted reviews.
func (f *FakeAPI) Reviews() []Review {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Review(nil), f.reviews...)
}

func (f *FakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents/register", f.handleRegister)
	mux.HandleFunc("GET /agents/me", f.handleAgent)
	mux.HandleFunc("GET /humans", f.handleSearchHumans)
	mux.HandleFunc("GET /humans/{id}", f.handleGetHuman)
	mux.HandleFunc("POST /jobs", f.handleCreateJob)
	mux.HandleFunc("GET /jobs/{id}", f.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}/pay", f.handlePay)
	mux.HandleFunc("POST /jobs/{id}/review", f.handleReview)
	mux.HandleFunc("GET /jobs/{id}/messages", f.handleListMessages)
	mux.HandleFunc("POST /jobs/{id}/messages", f.handleSendMessage)
	return mux
}

func (f *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct{ Name, Description string }
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.Agent.Name = body.Name
	if f.Agent.APIKey == "" {
		f.Agent.APIKey = "hp_" + uuid.NewString()
	}
	agent := f.Agent
	f.mu.Unlock()
	respond(w, http.StatusCreated, agent)
}

func (f *FakeAPI) handleAgent(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	agent := f.Agent
	agent.APIKey = ""
	f.mu.Unlock()
	respond(w, http.StatusOK, agent)
}

func (f *FakeAPI) handleSearchHumans(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(r.URL.Query().Get("query"))
	f.mu.Lock()
	var out []core.Human
	for _, h := range f.Humans {
		if query == "" || strings.Contains(strings.ToLower(h.Bio), query) || strings.Contains(strings.ToLower(h.Name), query) {
			out = append(out, h)
		}
	}
	f.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (f *FakeAPI) handleGetHuman(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	h, ok := f.Humans[r.PathValue("id")]
	f.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "human not found")
		return
	}
	respond(w, http.StatusOK, h)
}

func (f *FakeAPI) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HumanID     string  `json:"humanId"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		PriceUSDC   float64 `json:"priceUsdc"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed body")
		return
	}
	f.mu.Lock()
	human := f.Humans[body.HumanID]
	job := core.Job{
		ID:          uuid.NewString(),
		Status:      core.StatusPending,
		Title:       body.Title,
		Description: body.Description,
		PriceUSDC:   body.PriceUSDC,
		HumanID:     body.HumanID,
		HumanName:   human.Name,
	}
	f.Jobs[job.ID] = job
	f.mu.Unlock()
	respond(w, http.StatusCreated, job)
}

func (f *FakeAPI) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	job, ok := f.Jobs[id]
	if ok {
		f.fetches[id]++
		if script := f.statusScript[id]; len(script) > 0 {
			idx := f.fetches[id] - 1
			if idx >= len(script) {
				idx = len(script) - 1
			}
			job.Status = script[idx]
			f.Jobs[id] = job
		}
	}
	f.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

func (f *FakeAPI) handlePay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		TxHash string `json:"txHash"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	job, ok := f.Jobs[id]
	if ok {
		f.paid[id] = body.TxHash
		job.Status = core.StatusPaid
		f.Jobs[id] = job
	}
	f.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

func (f *FakeAPI) handleReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	job, ok := f.Jobs[id]
	if ok {
		job.Status = core.StatusReviewed
		f.Jobs[id] = job
		f.reviews = append(f.reviews, Review{JobID: id, Rating: body.Rating, Comment: body.Comment})
	}
	f.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respond(w, http.StatusOK, job)
}

// FailMessagesOnce makes the next n message-list fetches for the job
// answer 400, simulating a flaky endpoint.
func (f *FakeAPI) FailMessagesOnce(jobID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failMessages[jobID] = n
}

func (f *FakeAPI) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f.mu.Lock()
	if f.failMessages[id] > 0 {
		f.failMessages[id]--
		f.mu.Unlock()
		respondError(w, http.StatusBadRequest, "message listing unavailable")
		return
	}
	msgs := append([]core.Message(nil), f.messages[id]...)
	f.mu.Unlock()
	respond(w, http.StatusOK, msgs)
}

func (f *FakeAPI) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed body")
		return
	}
	msg := core.Message{
		ID:         uuid.NewString(),
		JobID:      id,
		SenderType: core.SenderAgent,
		Content:    body.Content,
		CreatedAt:  time.Now().UTC(),
	}
	f.mu.Lock()
	f.messages[id] = append(f.messages[id], msg)
	f.sent[id] = append(f.sent[id], msg)
	f.mu.Unlock()
	respond(w, http.StatusCreated, msg)
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
