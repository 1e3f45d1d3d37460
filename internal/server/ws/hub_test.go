package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn drives the client pumps in memory.
type fakeConn struct {
	mu        sync.Mutex
	frames    [][]byte
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 8),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.incoming:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                  {}
func (c *fakeConn) SetReadDeadline(time.Time) error     { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error    { return nil }
func (c *fakeConn) SetPongHandler(func(string) error)   {}
func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) frame(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

func (c *fakeConn) waitFrames(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.frameCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("frames got=%d want>=%d", c.frameCount(), n)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubBroadcastsOutcomesToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub("monitor", testLogger())
	go hub.Run(ctx)

	conn := newFakeConn()
	hub.registerClient(conn)

	// Connect snapshot arrives first.
	conn.waitFrames(t, 1)
	var status envelope
	if err := json.Unmarshal(conn.frame(0), &status); err != nil {
		t.Fatalf("decode status frame: %v", err)
	}
	if status.Type != "engine_status" {
		t.Fatalf("first frame type got=%s", status.Type)
	}

	if err := hub.Notify(ctx, "executed", "cycle executed", "net_usd=2.10"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	conn.waitFrames(t, 2)

	var outcome struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(conn.frame(1), &outcome); err != nil {
		t.Fatalf("decode outcome frame: %v", err)
	}
	if outcome.Type != "cycle_outcome" || outcome.Payload["event"] != "executed" {
		t.Fatalf("outcome frame got=%+v", outcome)
	}
}

func TestHubRespectsUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub("monitor", testLogger())
	go hub.Run(ctx)

	conn := newFakeConn()
	hub.registerClient(conn)
	conn.waitFrames(t, 1)

	conn.incoming <- []byte(`{"action":"unsubscribe","channels":["outcomes"]}`)

	// Give the read pump time to apply the change, then publish on both
	// channels. Only the status frame should arrive.
	time.Sleep(50 * time.Millisecond)
	hub.Publish("outcomes", "cycle_outcome", map[string]string{"event": "executed"})
	hub.Publish("status", "engine_status", map[string]string{"state": "idle"})

	conn.waitFrames(t, 2)
	time.Sleep(50 * time.Millisecond)
	if got := conn.frameCount(); got != 2 {
		t.Fatalf("frames got=%d want=2", got)
	}

	var last envelope
	if err := json.Unmarshal(conn.frame(1), &last); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if last.Type != "engine_status" {
		t.Fatalf("last frame type got=%s", last.Type)
	}
}
