package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camposer/agentrelay/internal/bus"
)

func dialWS(t *testing.T, hub *eventHub) *websocket.Conn {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", hub.handleWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventHubDeliversFrames(t *testing.T) {
	hub := newEventHub()
	conn := dialWS(t, hub)

	waitForClients(t, hub, 1)
	hub.broadcast(bus.Event{Name: "batch.dispatched", Payload: map[string]any{"agent_id": "a1"}})

	var frame wsEvent
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Event != "batch.dispatched" {
		t.Errorf("event = %q", frame.Event)
	}
}

func TestEventHubConcurrentBroadcasts(t *testing.T) {
	hub := newEventHub()
	conn := dialWS(t, hub)
	waitForClients(t, hub, 1)

	// Total frames fit the send buffer, so even a stalled pump cannot
	// overflow the queue and the client must receive every frame.
	const writers, perWriter = 8, wsSendBuffer/8

	received := make(chan struct{}, writers*perWriter)
	go func() {
		for {
			var frame wsEvent
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				hub.broadcast(bus.Event{Name: "batch.dispatched"})
			}
		}()
	}
	wg.Wait()

	// A write race would corrupt the stream and fail the reads.
	got := 0
	deadline := time.After(3 * time.Second)
	for got < writers*perWriter {
		select {
		case <-received:
			got++
		case <-deadline:
			t.Fatalf("received %d of %d frames", got, writers*perWriter)
		}
	}
}

func TestEventHubDropsSlowClient(t *testing.T) {
	hub := newEventHub()
	dialWS(t, hub)
	waitForClients(t, hub, 1)

	// Never read from the client, and use payloads large enough to fill the
	// socket buffers so the write pump stalls. Once the send queue is
	// full the client must be dropped instead of blocking broadcasts.
	payload := strings.Repeat("x", 256*1024)
	for i := 0; i < wsSendBuffer+20; i++ {
		hub.broadcast(bus.Event{Name: "batch.dispatched", Payload: payload})
	}
	waitForClients(t, hub, 0)
}

func waitForClients(t *testing.T, hub *eventHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.Lock()
		n := len(hub.clients)
		hub.mu.Unlock()
		if n == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d", want)
}
