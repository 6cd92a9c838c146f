package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/crossflow/clock"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/types"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	return msg
}

func TestHub_BroadcastsBatchAndFinished(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.Batch(replay.Batch{
		Generation: 2,
		From:       0,
		To:         1,
		Adaptive:   []types.LogEntry{{Cycle: 1, PhaseSequence: "1. North", CycleLoss: 3}},
		Fixed:      []types.LogEntry{{Cycle: 1, PhaseSequence: "1. North", CycleLoss: 4}},
		Totals:     metrics.Totals{AdaptiveLoss: 3, FixedLoss: 4, GainPercent: 25, Entries: 1},
	})
	hub.Finished(replay.Terminal{
		Generation: 2,
		State:      replay.StateErrored,
		Err:        types.NewEmissionError(errors.New("bad loss")),
	})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		if msg["type"] != TypeBatch || msg["generation"] != float64(2) {
			t.Errorf("first message = %v, want batch generation 2", msg)
		}
		batch, ok := msg["batch"].(map[string]any)
		if !ok {
			t.Fatalf("batch = %T, want object", msg["batch"])
		}
		totals := batch["totals"].(map[string]any)
		if totals["gain_percent"] != float64(25) {
			t.Errorf("gain_percent = %v, want 25", totals["gain_percent"])
		}

		msg = readMessage(t, conn)
		if msg["type"] != TypeFinished {
			t.Errorf("second message type = %v, want finished", msg["type"])
		}
		finished := msg["finished"].(map[string]any)
		if finished["state"] != "errored" {
			t.Errorf("state = %v, want errored", finished["state"])
		}
		if !strings.Contains(finished["error"].(string), "bad loss") {
			t.Errorf("error = %v, want cause text", finished["error"])
		}
	}
}

func TestHub_NewClientReceivesLatest(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Finished(replay.Terminal{Generation: 1, State: replay.StateCompleted})

	conn := dial(t, srv)
	msg := readMessage(t, conn)
	if msg["type"] != TypeFinished || msg["generation"] != float64(1) {
		t.Errorf("latest = %v, want finished generation 1", msg)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients is a no-op.
	hub.Batch(replay.Batch{Generation: 1})
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after Close, want 0", hub.ClientCount())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestHub_AsSchedulerPresenter(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	entries := []types.LogEntry{
		{Cycle: 1, PhaseSequence: "1. North", CycleLoss: 5},
		{Cycle: 1, PhaseSequence: "2. South", CycleLoss: 5},
	}
	s := replay.New(clock.NewReal(), replay.Config{Interval: time.Millisecond, BatchSize: 4}, hub, nil)
	gen := s.Start(&types.RunResult{Adaptive: entries, Fixed: entries})

	msg := readMessage(t, conn)
	if msg["type"] != TypeBatch || msg["generation"] != float64(gen) {
		t.Errorf("first message = %v, want batch of generation %d", msg, gen)
	}
	msg = readMessage(t, conn)
	if msg["type"] != TypeFinished {
		t.Errorf("second message type = %v, want finished", msg["type"])
	}
	if state := msg["finished"].(map[string]any)["state"]; state != "completed" {
		t.Errorf("state = %v, want completed", state)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", NewHub(nil)) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
