package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/human-pages-ai/hirewire/core"
)

// fastBackoff keeps retry tests quick while preserving the schedule shape.
var fastBackoff = []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond}

func newTestClient(srv *httptest.Server, optFns ...func(o *Options)) *Client {
	fns := append([]func(o *Options){func(o *Options) {
		o.BaseURL = srv.URL
		o.Backoff = fastBackoff
	}}, optFns...)
	return New("test-key", fns...)
}

type stubSigner struct {
	payload string
	err     error
	calls   int32
}

func (s *stubSigner) SignPayment(_ context.Context, _ core.PaymentOption) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.payload, s.err
}

func alwaysConfirm(_ context.Context, _ string) (bool, error) { return true, nil }
func neverConfirm(_ context.Context, _ string) (bool, error)  { return false, nil }

func TestCall_RetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	raw, err := c.Call(context.Background(), http.MethodGet, "/jobs/j1", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))
}

func TestCall_ExhaustsBackoffSchedule(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":"upstream down"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Call(context.Background(), http.MethodGet, "/jobs/j1", nil, nil)
	require.Error(t, err)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	// initial attempt plus one per backoff step
	assert.EqualValues(t, len(fastBackoff)+1, atomic.LoadInt32(&hits))
}

func TestCall_ClientErrorFailsImmediately(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, `{"error":"no such job"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	start := time.Now()
	_, err := c.Call(context.Background(), http.MethodGet, "/jobs/missing", nil, nil)
	elapsed := time.Since(start)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such job", apiErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Less(t, elapsed, 100*time.Millisecond, "a 4xx must not wait out a backoff delay")
}

func TestCall_ActivationErrorDistinguished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":"AGENT_NOT_ACTIVE","agentStatus":"PENDING_VERIFICATION","error":"agent not active"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Call(context.Background(), http.MethodGet, "/agents/me", nil, nil)

	var actErr *core.ActivationError
	require.ErrorAs(t, err, &actErr)
	assert.Equal(t, core.AgentPendingVerification, actErr.AgentStatus)
}

func TestCall_GenericForbiddenStaysAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not your job"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Call(context.Background(), http.MethodGet, "/jobs/j9", nil, nil)

	var actErr *core.ActivationError
	assert.False(t, errors.As(err, &actErr))
	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestCall_PaymentRequiredFlow(t *testing.T) {
	const body402 = `{"error":"payment required","accepts":[{"scheme":"exact","network":"base","payTo":"0xabc","maxAmountRequired":"0.10"}]}`
	var paidHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("X-Payment"); h != "" {
			paidHeader.Store(h)
			w.Write([]byte(`{"premium":true}`))
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(body402))
	}))
	defer srv.Close()

	signer := &stubSigner{payload: "signed-authorization-P"}
	c := newTestClient(srv, func(o *Options) {
		o.Signer = signer
		o.Confirmer = core.ConfirmerFunc(alwaysConfirm)
	})

	raw, err := c.Call(context.Background(), http.MethodGet, "/humans/h1", nil, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"premium":true}`, string(raw))
	assert.Equal(t, "signed-authorization-P", paidHeader.Load())
	assert.EqualValues(t, 1, atomic.LoadInt32(&signer.calls))
}

func TestCall_PaymentRequiredWithoutSigner(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"accepts":[{"scheme":"exact","network":"base","payTo":"0xabc","maxAmountRequired":"0.10"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Call(context.Background(), http.MethodGet, "/humans/h1", nil, nil)

	var payErr *core.PaymentRequiredError
	require.ErrorAs(t, err, &payErr)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "no paid retry without a signer")
}

func TestCall_PaymentRequiredDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"accepts":[{"scheme":"exact","network":"base","payTo":"0xabc","maxAmountRequired":"0.10"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, func(o *Options) {
		o.Signer = &stubSigner{payload: "p"}
		o.Confirmer = core.ConfirmerFunc(neverConfirm)
	})
	_, err := c.Call(context.Background(), http.MethodGet, "/humans/h1", nil, nil)

	var payErr *core.PaymentRequiredError
	require.ErrorAs(t, err, &payErr)
}

func TestCall_PaymentRequiredWithoutOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"payment required"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, func(o *Options) {
		o.Signer = &stubSigner{payload: "p"}
		o.Confirmer = core.ConfirmerFunc(alwaysConfirm)
	})
	_, err := c.Call(context.Background(), http.MethodGet, "/humans/h1", nil, nil)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
}

func TestCall_AttachesAuthHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.Call(context.Background(), http.MethodGet, "/agents/me", nil, nil)
	require.NoError(t, err)
}
