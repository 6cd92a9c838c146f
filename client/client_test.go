package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pithecene-io/crossflow/types"
)

const okBody = `{
	"ai_logs": [
		{"Cycle": 1, "Phase Sequence": "1. North", "Queue": 3, "Cycle Loss": 12.5},
		null,
		{"Cycle": 2, "Phase Sequence": "2. South", "Queue": 5, "Cycle Loss": 7.5}
	],
	"fx_logs": [
		{"Cycle": 1, "Phase Sequence": "1. North", "Queue": 9, "Cycle Loss": 20},
		{"Cycle": 2, "Phase Sequence": "2. South", "Queue": 11, "Cycle Loss": 20}
	]
}`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Timeout: timeout})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestRun_Success(t *testing.T) {
	var received map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal request: %v", err)
		}
		_, _ = io.WriteString(w, okBody)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL, time.Second)
	res, err := c.Run(t.Context(), types.DefaultSimConfig())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(res.Run.Adaptive) != 2 || len(res.Run.Fixed) != 2 {
		t.Fatalf("lengths = %d/%d, want 2/2", len(res.Run.Adaptive), len(res.Run.Fixed))
	}
	if res.Stats.AdaptiveDropped != 1 {
		t.Errorf("AdaptiveDropped = %d, want 1", res.Stats.AdaptiveDropped)
	}
	if received["total_cycles"] != float64(50) {
		t.Errorf("total_cycles = %v, want 50", received["total_cycles"])
	}
	if _, ok := received["arrivals_per_min"]; !ok {
		t.Error("extended payload missing arrivals_per_min")
	}
}

func TestRun_ServiceErrorField(t *testing.T) {
	ts := serve(t, http.StatusOK, `{"error": "Lanes must be positive", "ai_logs": [], "fx_logs": []}`)

	_, err := newClient(t, ts.URL, time.Second).Run(t.Context(), types.DefaultSimConfig())
	if !errors.Is(err, types.ErrServiceError) {
		t.Fatalf("err = %v, want ErrServiceError", err)
	}
	if err.Error() != "Lanes must be positive" {
		t.Errorf("message = %q, want service message verbatim", err.Error())
	}
}

func TestRun_NonSuccessStatus(t *testing.T) {
	ts := serve(t, http.StatusInternalServerError, `{"detail": "boom"}`)

	_, err := newClient(t, ts.URL, time.Second).Run(t.Context(), types.DefaultSimConfig())
	if !errors.Is(err, types.ErrServiceError) {
		t.Fatalf("err = %v, want ErrServiceError", err)
	}
	if err.Error() != types.GenericServiceMessage {
		t.Errorf("message = %q, want %q", err.Error(), types.GenericServiceMessage)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("cause = %v, want StatusError 500", errors.Unwrap(err))
	}
}

func TestRun_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"html body", http.StatusOK, "<html>oops</html>"},
		{"html on 502", http.StatusBadGateway, "<html>Bad Gateway</html>"},
		{"missing ai_logs", http.StatusOK, `{"fx_logs": []}`},
		{"fx_logs not array", http.StatusOK, `{"ai_logs": [], "fx_logs": "none"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := serve(t, tt.status, tt.body)
			_, err := newClient(t, ts.URL, time.Second).Run(t.Context(), types.DefaultSimConfig())
			if !errors.Is(err, types.ErrMalformedResponse) {
				t.Fatalf("err = %v, want ErrMalformedResponse", err)
			}
			if err.Error() != types.MalformedMessage {
				t.Errorf("message = %q, parse details must not leak", err.Error())
			}
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer ts.Close()
	defer close(release)

	c := newClient(t, ts.URL, 50*time.Millisecond)
	start := time.Now()
	res, err := c.Run(t.Context(), types.DefaultSimConfig())

	if res != nil {
		t.Error("expected no result on timeout")
	}
	if !errors.Is(err, types.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if err.Error() != types.TimeoutMessage {
		t.Errorf("message = %q", err.Error())
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestRun_ParentCancelIsNotRunError(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := newClient(t, ts.URL, 10*time.Second).Run(ctx, types.DefaultSimConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if types.ErrorKind(err) != nil {
		t.Errorf("cancellation classified as %v", types.ErrorKind(err))
	}
}

func TestRun_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	_, err := newClient(t, url, time.Second).Run(t.Context(), types.DefaultSimConfig())
	if !errors.Is(err, types.ErrServiceError) {
		t.Fatalf("err = %v, want ErrServiceError", err)
	}
	if err.Error() != UnreachableMessage {
		t.Errorf("message = %q", err.Error())
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		_, _ = io.WriteString(w, `{"status": "SUCCESS! The engine is live!"}`)
	}))
	defer ts.Close()

	status, err := newClient(t, ts.URL, time.Second).Ping(t.Context())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if status != "SUCCESS! The engine is live!" {
		t.Errorf("status = %q", status)
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.URL() != DefaultURL || c.Timeout() != DefaultTimeout {
		t.Errorf("defaults = %q/%v", c.URL(), c.Timeout())
	}
	if _, err := New(Config{Timeout: -time.Second}); err == nil {
		t.Error("expected error for negative timeout")
	}
}
