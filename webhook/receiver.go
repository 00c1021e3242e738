package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/human-pages-ai/hirewire/bus"
	"github.com/human-pages-ai/hirewire/core"
	"github.com/human-pages-ai/hirewire/logging"
)

// Receiver verifies and publishes inbound notifications. It serves two
// routes: POST /webhook and GET /health.
type Receiver struct {
	secret string
	bus    *bus.Bus
	logger logging.Logger
}

// NewReceiver constructs a Receiver. The secret must satisfy
// ValidateSecret; a nil logger is replaced with a NoOpLogger.
func NewReceiver(secret string, b *bus.Bus, logger logging.Logger) (*Receiver, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Receiver{secret: secret, bus: b, logger: logger}, nil
}

// Handler returns the http.Handler exposing the webhook and health routes.
func (r *Receiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", r.handleWebhook)
	mux.HandleFunc("GET /health", r.handleHealth)
	return mux
}

func (r *Receiver) handleWebhook(w http.ResponseWriter, req *http.Request) {
	sig := req.Header.Get(SignatureHeader)
	if sig == "" {
		r.logger.Warn("webhook: missing signature header")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing signature"})
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if !Verify(r.secret, body, sig) {
		r.logger.Warn("webhook: signature mismatch")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var ev core.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		r.logger.Warn("webhook: malformed payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}
	ev.Status = ev.Status.Normalize()

	// Acknowledge immediately; consumption happens on the waiter's side.
	r.bus.Publish(ev)
	r.logger.Info("webhook: event received", "job_id", ev.JobID, "event", string(ev.Kind))
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (r *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
