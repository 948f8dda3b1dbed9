package orchestrator

import "time"

// ElementState is the lifecycle state of an entity.
type ElementState string

const (
	ElementActive    ElementState = "active"
	ElementReleasing ElementState = "releasing"
	ElementInactive  ElementState = "inactive"
)

// Frame is the snapshot published after every tick. It is never mutated
// once published.
type Frame struct {
	Seq    uint64                  `json:"seq"`
	Time   time.Duration           `json:"time"`
	Values map[string]any          `json:"values"`
	Active map[string]bool         `json:"active"`
	States map[string]ElementState `json:"states"`
}

// Value returns the published value of a parameter.
func (f *Frame) Value(entityID, paramID string) (any, bool) {
	v, ok := f.Values[ParameterKey(entityID, paramID)]
	return v, ok
}

// Stats are runtime counters exported on /metrics.
type Stats struct {
	Ticks         uint64
	Overruns      uint64
	EditsApplied  uint64
	EditsRejected uint64
	InvalidGraphs int
	Entities      int
	Parameters    int
	LastTick      time.Duration
}
