package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one request notification.
type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON object
}

const (
	defaultCapacity   = 100
	subscriberBacklog = 64
)

// Hub fans request notifications out to live subscribers and keeps the most
// recent ones in memory so reconnecting clients can catch up. Nothing is
// persisted.
type Hub struct {
	nextID atomic.Int64

	mu     sync.Mutex
	recent ring
	subs   map[int]chan Event
	subSeq int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Hub{
		recent: ring{buf: make([]Event, capacity)},
		subs:   make(map[int]chan Event),
	}
}

// Publish records an event and delivers it to every subscriber that has room.
// data is marshalled to JSON; unmarshalable data becomes {}.
func (h *Hub) Publish(eventType string, data any) {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		ID:   h.nextID.Add(1),
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent.push(ev)
	for _, ch := range h.subs {
		// Slow subscribers miss events rather than stall dispatch.
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a live subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.subSeq
	h.subSeq++
	ch := make(chan Event, subscriberBacklog)
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Since returns retained events with ID > lastID, oldest first.
func (h *Hub) Since(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recent.since(lastID)
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ring is a fixed-size buffer that overwrites its oldest entry when full.
type ring struct {
	buf   []Event
	start int
	size  int
}

func (r *ring) push(ev Event) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ev
		r.size++
		return
	}
	r.buf[r.start] = ev
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(lastID int64) []Event {
	out := make([]Event, 0, r.size)
	for i := 0; i < r.size; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}
