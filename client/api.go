package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/human-pages-ai/hirewire/core"
)

// RegisterAgent creates a new agent registration. The response carries the
// freshly minted API key; it is also installed on the client, but callers
// are responsible for persisting it.
func (c *Client) RegisterAgent(ctx context.Context, name, description string) (core.Agent, error) {
	body := map[string]string{"name": name, "description": description}
	raw, err := c.Call(ctx, http.MethodPost, "/agents/register", body, nil)
	if err != nil {
		return core.Agent{}, err
	}
	var agent core.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return core.Agent{}, fmt.Errorf("decode agent: %w", err)
	}
	if agent.APIKey != "" {
		c.SetAPIKey(agent.APIKey)
	}
	return agent, nil
}

// GetAgent fetches the caller's own registration, including its activation
// status.
func (c *Client) GetAgent(ctx context.Context) (core.Agent, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/agents/me", nil, nil)
	if err != nil {
		return core.Agent{}, err
	}
	var agent core.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return core.Agent{}, fmt.Errorf("decode agent: %w", err)
	}
	return agent, nil
}

// SearchHumans returns counterparty profiles matching the query.
func (c *Client) SearchHumans(ctx context.Context, query string) ([]core.Human, error) {
	q := url.Values{}
	if query != "" {
		q.Set("query", query)
	}
	raw, err := c.Call(ctx, http.MethodGet, "/humans", nil, q)
	if err != nil {
		return nil, err
	}
	var humans []core.Human
	if err := json.Unmarshal(raw, &humans); err != nil {
		return nil, fmt.Errorf("decode humans: %w", err)
	}
	return humans, nil
}

// GetHuman fetches a single counterparty profile.
func (c *Client) GetHuman(ctx context.Context, id string) (core.Human, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/humans/"+id, nil, nil)
	if err != nil {
		return core.Human{}, err
	}
	var human core.Human
	if err := json.Unmarshal(raw, &human); err != nil {
		return core.Human{}, fmt.Errorf("decode human: %w", err)
	}
	return human, nil
}

// CreateJob offers a job to the given human.
func (c *Client) CreateJob(ctx context.Context, humanID, title, description string, priceUSDC float64) (core.Job, error) {
	body := map[string]any{
		"humanId":     humanID,
		"title":       title,
		"description": description,
		"priceUsdc":   priceUSDC,
	}
	raw, err := c.Call(ctx, http.MethodPost, "/jobs", body, nil)
	if err != nil {
		return core.Job{}, err
	}
	return decodeJob(raw)
}

// GetJob fetches the authoritative state of a job.
func (c *Client) GetJob(ctx context.Context, id string) (core.Job, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/jobs/"+id, nil, nil)
	if err != nil {
		return core.Job{}, err
	}
	return decodeJob(raw)
}

// MarkJobPaid reports a completed on-chain transfer for the job.
func (c *Client) MarkJobPaid(ctx context.Context, id, txHash string) (core.Job, error) {
	raw, err := c.Call(ctx, http.MethodPost, "/jobs/"+id+"/pay", map[string]string{"txHash": txHash}, nil)
	if err != nil {
		return core.Job{}, err
	}
	return decodeJob(raw)
}

// ReviewJob submits the final rating and comment, closing the lifecycle.
func (c *Client) ReviewJob(ctx context.Context, id string, rating int, comment string) error {
	body := map[string]any{"rating": rating, "comment": comment}
	_, err := c.Call(ctx, http.MethodPost, "/jobs/"+id+"/review", body, nil)
	return err
}

// SendMessage posts a conversational message on the job.
func (c *Client) SendMessage(ctx context.Context, jobID, content string) (core.Message, error) {
	raw, err := c.Call(ctx, http.MethodPost, "/jobs/"+jobID+"/messages", map[string]string{"content": content}, nil)
	if err != nil {
		return core.Message{}, err
	}
	var msg core.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return core.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the full message history of the job, oldest first.
func (c *Client) ListMessages(ctx context.Context, jobID string) ([]core.Message, error) {
	raw, err := c.Call(ctx, http.MethodGet, "/jobs/"+jobID+"/messages", nil, nil)
	if err != nil {
		return nil, err
	}
	var msgs []core.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return msgs, nil
}

func decodeJob(raw json.RawMessage) (core.Job, error) {
	var job core.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return core.Job{}, fmt.Errorf("decode job: %w", err)
	}
	job.Status = job.Status.Normalize()
	return job, nil
}
