package events

import "sync"

// RingBuffer keeps the most recent events for late subscribers and the
// /events endpoint. Once full, each Add overwrites the oldest event.
type RingBuffer struct {
	mu    sync.RWMutex
	slots []Event
	head  int // index of the oldest event
	n     int
}

func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{slots: make([]Event, size)}
}

func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.n < len(rb.slots) {
		rb.slots[(rb.head+rb.n)%len(rb.slots)] = e
		rb.n++
		return
	}
	rb.slots[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.slots)
}

// Snapshot returns the buffered events, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0, nil)
}

// Last returns up to n of the newest events accepted by keep, oldest
// first. n <= 0 means no limit; a nil keep accepts everything.
func (rb *RingBuffer) Last(n int, keep func(Event) bool) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	out := make([]Event, 0, rb.n)
	for i := 0; i < rb.n; i++ {
		e := rb.slots[(rb.head+i)%len(rb.slots)]
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	if n > 0 && n < len(out) {
		out = out[len(out)-n:]
	}
	return out
}

// Clear drops all buffered events.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	clear(rb.slots)
	rb.head, rb.n = 0, 0
}
