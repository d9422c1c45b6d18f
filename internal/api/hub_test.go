package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tabscan/tabscan/internal/models"
)

func testItem(owner string, version int64) models.Item {
	return models.Item{
		ID:            "item-1",
		TransactionID: "board-a",
		Name:          "Latte",
		Cost:          decimal.RequireFromString("5.00"),
		Quantity:      1,
		Owner:         owner,
		Version:       version,
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()

	ch, unsub := hub.Subscribe("board-a")
	defer unsub()

	hub.ItemChanged("board-a", testItem("alice", 1))

	select {
	case data := <-ch:
		var event ItemEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("failed to decode event: %v", err)
		}
		if event.Type != "item_changed" {
			t.Errorf("type = %q, want item_changed", event.Type)
		}
		if event.Item.Owner != "alice" {
			t.Errorf("owner = %q, want alice", event.Item.Owner)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHubBoardIsolation(t *testing.T) {
	hub := NewHub()

	chA, unsubA := hub.Subscribe("board-a")
	defer unsubA()
	chB, unsubB := hub.Subscribe("board-b")
	defer unsubB()

	hub.ItemChanged("board-a", testItem("alice", 1))

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("board-a subscriber missed its event")
	}

	select {
	case <-chB:
		t.Fatal("board-b subscriber received another board's event")
	default:
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()

	_, unsub := hub.Subscribe("board-a")
	if got := hub.ClientCount("board-a"); got != 1 {
		t.Fatalf("ClientCount = %d, want 1", got)
	}

	unsub()
	if got := hub.ClientCount("board-a"); got != 0 {
		t.Errorf("ClientCount after unsubscribe = %d, want 0", got)
	}

	// Calling again must not panic or double-close.
	unsub()

	// Broadcasting to a board with no subscribers is a no-op.
	hub.ItemChanged("board-a", testItem("alice", 1))
}

func TestHubEvictsOverrunSubscriber(t *testing.T) {
	hub := NewHub()

	// Never read from this subscriber. Once its buffer overflows it can
	// no longer converge from incremental events, so the hub must cut it
	// off (forcing a reconnect and snapshot re-read) rather than silently
	// skipping events, and must never block the publisher.
	ch, unsub := hub.Subscribe("board-a")
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.ItemChanged("board-a", testItem("alice", int64(i+1)))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}

	if got := hub.ClientCount("board-a"); got != 0 {
		t.Errorf("ClientCount = %d, want overrun subscriber evicted", got)
	}

	// The buffered events remain readable and the channel then reports
	// closed, ending the stream.
	delivered := 0
	for {
		if _, ok := <-ch; !ok {
			break
		}
		delivered++
		if delivered > 100 {
			t.Fatal("channel never closed")
		}
	}
	if delivered == 0 {
		t.Error("expected the buffered events to remain readable")
	}
}

func TestHubDropsStaleVersions(t *testing.T) {
	hub := NewHub()

	ch, unsub := hub.Subscribe("board-a")
	defer unsub()

	// A notification for an older commit arriving after a newer one must
	// not be delivered: the viewer would end on the stale owner.
	hub.ItemChanged("board-a", testItem("bob", 2))
	hub.ItemChanged("board-a", testItem("", 1))
	hub.ItemChanged("board-a", testItem("bob", 2)) // duplicate, also dropped

	var got []ItemEvent
	for {
		select {
		case data := <-ch:
			var event ItemEvent
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("failed to decode event: %v", err)
			}
			got = append(got, event)
			continue
		default:
		}
		break
	}

	if len(got) != 1 {
		t.Fatalf("delivered %d events, want only the newest commit", len(got))
	}
	if got[0].Item.Owner != "bob" || got[0].Item.Version != 2 {
		t.Errorf("delivered owner=%q version=%d, want bob at version 2", got[0].Item.Owner, got[0].Item.Version)
	}
}

func TestServeSSE(t *testing.T) {
	hub := NewHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSSE(w, r, "board-a")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}

	// Wait for the stream to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("board-a") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.ItemChanged("board-a", testItem("alice", 1))

	scanner := bufio.NewScanner(resp.Body)
	var frame string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			frame = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if frame == "" {
		t.Fatalf("no data frame received: %v", scanner.Err())
	}

	var event ItemEvent
	if err := json.Unmarshal([]byte(frame), &event); err != nil {
		t.Fatalf("failed to decode frame %q: %v", frame, err)
	}
	if event.Type != "item_changed" || event.Item.Owner != "alice" {
		t.Errorf("event = %+v, want alice's item change", event)
	}

	resp.Body.Close()
	for time.Now().Before(deadline) {
		if hub.ClientCount("board-a") == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("subscriber still registered after disconnect")
}
