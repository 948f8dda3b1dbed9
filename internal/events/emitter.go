package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var buffer = NewRingBuffer(256)

// Sink persists events outside the process, e.g. the postgres event table.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error
}

var (
	sink          Sink
	output        io.Writer
	sinkMu        sync.RWMutex
	sinkErrLogged bool

	total atomic.Uint64
)

// SetSink sets where events are persisted. nil disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrLogged = false
	sinkMu.Unlock()
}

// SetOutput sets a writer receiving every event as one JSON line.
func SetOutput(w io.Writer) {
	sinkMu.Lock()
	output = w
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	total.Add(1)
	broadcast(e)

	sinkMu.RLock()
	s, w := sink, output
	sinkMu.RUnlock()

	if s != nil {
		if err := s.Append(ts, level, name, msg, fields); err != nil {
			sinkFailed(err)
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	if w != nil {
		w.Write(append(b, '\n'))
	}

	return b, nil
}

// sinkFailed reports the first sink failure since SetSink as a
// system.error. The event goes to the buffer directly: going through Emit
// would hit the failing sink again.
func sinkFailed(err error) {
	sinkMu.Lock()
	first := !sinkErrLogged
	sinkErrLogged = true
	sinkMu.Unlock()
	if !first {
		return
	}
	errEvent := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "event sink append failed",
		Fields:    map[string]interface{}{"error": err.Error()},
	}
	buffer.Add(errEvent)
	broadcast(errEvent)
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() uint64 {
	return total.Load()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
