package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/tabscan/tabscan/internal/models"
)

// ItemEvent is the wire payload for one item-ownership change. It carries
// the full updated item plus its store version, so viewers overwrite their
// local copy, re-run the allocation computation, and can discard any event
// older than what they already hold.
type ItemEvent struct {
	Type string      `json:"type"` // "item_changed"
	Item models.Item `json:"item"`
}

// subscriber is one open viewer stream. close is safe to call from both the
// hub (overrun eviction) and the viewer's own unsubscribe.
type subscriber struct {
	ch   chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Hub fans item-ownership events out to the open viewers of each board.
// Subscribers are keyed by share id; a viewer of one board never sees
// another board's events.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*subscriber]struct{}

	// versions holds the highest broadcast version per item, per board.
	// The store bumps an item's version inside the owner-changing
	// statement, so publishers racing to notify are ordered by it: an
	// event at or below the recorded version lost to a later commit and
	// must not go out after it.
	versions map[string]map[string]int64
}

// NewHub creates an empty broadcast hub.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]map[*subscriber]struct{}),
		versions: make(map[string]map[string]int64),
	}
}

// ItemChanged broadcasts an updated item to every subscriber of its board.
// Per-item delivery is monotone in commit order: stale notifications are
// dropped at the gate, so a viewer never observes an item go backwards.
// A subscriber whose buffer is full has fallen too far behind to converge
// from incremental events; it is disconnected so its client reconnects and
// re-reads the board snapshot instead of holding stale state.
func (h *Hub) ItemChanged(transactionID string, item models.Item) {
	data, err := json.Marshal(ItemEvent{Type: "item_changed", Item: item})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seen := h.versions[transactionID]
	if seen == nil {
		seen = make(map[string]int64)
		h.versions[transactionID] = seen
	}
	if item.Version <= seen[item.ID] {
		return
	}
	seen[item.ID] = item.Version

	for sub := range h.clients[transactionID] {
		select {
		case sub.ch <- data:
		default:
			h.evict(transactionID, sub)
		}
	}
}

// Subscribe registers a new viewer of the given board. Returns the event
// channel and an unsubscribe func that is safe to call more than once.
// The channel is closed by unsubscribe or when the hub evicts the viewer
// for falling behind.
func (h *Hub) Subscribe(transactionID string) (chan []byte, func()) {
	sub := &subscriber{ch: make(chan []byte, 32)}

	h.mu.Lock()
	if h.clients[transactionID] == nil {
		h.clients[transactionID] = make(map[*subscriber]struct{})
	}
	h.clients[transactionID][sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		h.evict(transactionID, sub)
		h.mu.Unlock()
	}
}

// evict removes a subscriber and closes its channel. Caller holds h.mu.
func (h *Hub) evict(transactionID string, sub *subscriber) {
	if set, ok := h.clients[transactionID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.clients, transactionID)
			delete(h.versions, transactionID)
		}
	}
	sub.close()
}

// ClientCount returns the number of open viewers of a board.
func (h *Hub) ClientCount(transactionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[transactionID])
}

// ServeSSE streams board events to one viewer via Server-Sent Events.
// SSE instead of WebSocket: simpler, and plays well with HTTP/2. The stream
// ends when the client hangs up or the hub evicts it; browsers auto-reconnect
// EventSource streams and the UI re-fetches the board snapshot on reconnect.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, transactionID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ch, unsub := h.Subscribe(transactionID)
	defer unsub()

	for {
		select {
		case <-r.Context().Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
