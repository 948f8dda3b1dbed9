package events

import (
	"sync"
	"sync/atomic"
	"time"
)

type sinkEntry struct {
	ts     time.Time
	level  string
	name   string
	msg    string
	fields map[string]interface{}
}

var sinkDropped atomic.Uint64

// AsyncSink hands events to a wrapped Sink from one writer goroutine, so
// Emit never waits on a database. When the queue is full the event is
// dropped and counted.
type AsyncSink struct {
	next  Sink
	queue chan sinkEntry
	done  chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewAsyncSink starts a writer for next with room for size queued events.
func NewAsyncSink(next Sink, size int) *AsyncSink {
	if size <= 0 {
		size = 1024
	}
	a := &AsyncSink{
		next:  next,
		queue: make(chan sinkEntry, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for e := range a.queue {
		if err := a.next.Append(e.ts, e.level, e.name, e.msg, e.fields); err != nil {
			sinkFailed(err)
		}
	}
}

// Append queues the event. It never blocks.
func (a *AsyncSink) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.drop()
		return nil
	}
	select {
	case a.queue <- sinkEntry{ts: ts, level: level, name: event, msg: msg, fields: fields}:
	default:
		a.drop()
	}
	return nil
}

func (a *AsyncSink) drop() {
	a.dropped.Add(1)
	sinkDropped.Add(1)
}

// Dropped returns how many events this sink discarded.
func (a *AsyncSink) Dropped() uint64 {
	return a.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are written.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}

// SinkDropped returns how many events every AsyncSink has discarded since
// startup.
func SinkDropped() uint64 {
	return sinkDropped.Load()
}
