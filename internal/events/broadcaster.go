package events

import (
	"strings"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how far a subscriber may lag before events are
// dropped for it.
const subscriberBuffer = 64

// Subscriber receives emitted events until it is unsubscribed.
type Subscriber chan Event

type broadcaster struct {
	mu   sync.RWMutex
	subs map[Subscriber][]string // name prefixes; empty means all events
}

var (
	subscribers = &broadcaster{subs: make(map[Subscriber][]string)}
	dropped     atomic.Uint64
)

// Subscribe registers a subscriber for events whose name starts with one
// of prefixes ("graph.", "element."). No prefixes subscribes to all.
func Subscribe(prefixes ...string) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	subscribers.mu.Lock()
	subscribers.subs[ch] = prefixes
	subscribers.mu.Unlock()
	return ch
}

// Unsubscribe removes sub and closes it. Subscribers already closed by
// CloseAllSubscribers are ignored.
func Unsubscribe(sub Subscriber) {
	subscribers.mu.Lock()
	defer subscribers.mu.Unlock()
	if _, ok := subscribers.subs[sub]; !ok {
		return
	}
	delete(subscribers.subs, sub)
	close(sub)
}

// broadcast never blocks Emit: a subscriber with a full buffer misses e.
func broadcast(e Event) {
	subscribers.mu.RLock()
	defer subscribers.mu.RUnlock()

	for sub, prefixes := range subscribers.subs {
		if !Matches(e.Name, prefixes) {
			continue
		}
		select {
		case sub <- e:
		default:
			dropped.Add(1)
		}
	}
}

// Matches reports whether name starts with any of prefixes. An empty
// prefix list matches every name.
func Matches(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	subscribers.mu.RLock()
	defer subscribers.mu.RUnlock()
	return len(subscribers.subs)
}

// Dropped returns how many events slow subscribers have missed.
func Dropped() uint64 {
	return dropped.Load()
}

// RecentEvents returns up to n of the newest buffered events matching
// prefixes, oldest first. n <= 0 returns all of them.
func RecentEvents(n int, prefixes ...string) []Event {
	return buffer.Last(n, func(e Event) bool { return Matches(e.Name, prefixes) })
}

// CloseAllSubscribers closes and removes every subscriber. Called on shutdown.
func CloseAllSubscribers() {
	subscribers.mu.Lock()
	defer subscribers.mu.Unlock()

	for sub := range subscribers.subs {
		close(sub)
		delete(subscribers.subs, sub)
	}
}
