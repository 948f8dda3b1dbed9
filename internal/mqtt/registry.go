package mqtt

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/SentientFX/internal/config"
)

// Source is one topic filter feeding a subtree of the state document.
type Source struct {
	ID         string
	Topic      string // MQTT filter, may end in + or # wildcards
	Path       string // state path the filter's wildcard levels hang under
	StaleAfter time.Duration
	LastSeen   time.Time
	Messages   uint64
	Stale      bool
}

// SourceRegistry tracks the configured sources and when each last spoke.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]*Source
	order   []string
}

// NewSourceRegistry creates a new empty registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make(map[string]*Source),
	}
}

// NewSourceRegistryFromConfig registers every configured source. A source
// counts as seen at now so it gets a full stale window after startup.
func NewSourceRegistryFromConfig(cfgs []config.SourceConfig, now time.Time) (*SourceRegistry, error) {
	r := NewSourceRegistry()
	for _, c := range cfgs {
		stale, err := c.Stale()
		if err != nil {
			return nil, err
		}
		if err := r.Register(&Source{
			ID:         c.ID,
			Topic:      c.Topic,
			Path:       c.Path,
			StaleAfter: stale,
			LastSeen:   now,
		}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds src. Sources without a path write under their id.
func (r *SourceRegistry) Register(src *Source) error {
	if err := ValidateFilter(src.Topic); err != nil {
		return fmt.Errorf("source %s: %w", src.ID, err)
	}
	cpy := *src
	if cpy.Path == "" {
		cpy.Path = cpy.ID
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[cpy.ID]; ok {
		return fmt.Errorf("source already registered: %s", cpy.ID)
	}
	r.sources[cpy.ID] = &cpy
	r.order = append(r.order, cpy.ID)
	return nil
}

// Get returns a copy of the source, or nil if not found.
func (r *SourceRegistry) Get(id string) *Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if src, ok := r.sources[id]; ok {
		cpy := *src
		return &cpy
	}
	return nil
}

// All returns copies of every source in registration order.
func (r *SourceRegistry) All() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Source, 0, len(r.order))
	for _, id := range r.order {
		cpy := *r.sources[id]
		result = append(result, &cpy)
	}
	return result
}

// Seen records a message from id at now. recovered is true when the
// source had been flagged stale.
func (r *SourceRegistry) Seen(id string, now time.Time) (recovered bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src, ok := r.sources[id]
	if !ok {
		return false
	}
	src.LastSeen = now
	src.Messages++
	recovered = src.Stale
	src.Stale = false
	return recovered
}

// MarkStale flags every source silent for longer than its window and
// returns the ones that just went stale.
func (r *SourceRegistry) MarkStale(now time.Time) []*Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Source
	for _, id := range r.order {
		src := r.sources[id]
		if src.Stale || now.Sub(src.LastSeen) <= src.StaleAfter {
			continue
		}
		src.Stale = true
		cpy := *src
		out = append(out, &cpy)
	}
	return out
}

// ValidateFilter checks an MQTT topic filter: # only as the last level,
// wildcards only as whole levels.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("empty topic filter")
	}
	levels := strings.Split(filter, "/")
	for i, l := range levels {
		switch {
		case l == "#" && i != len(levels)-1:
			return fmt.Errorf("topic filter %q: # must be the last level", filter)
		case l != "#" && l != "+" && strings.ContainsAny(l, "#+"):
			return fmt.Errorf("topic filter %q: wildcard inside level %q", filter, l)
		}
	}
	return nil
}

// MatchTopic reports whether topic matches filter and returns the topic
// levels covered by wildcards.
func MatchTopic(filter, topic string) (rest []string, ok bool) {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, l := range f {
		switch {
		case l == "#":
			return append(rest, t[i:]...), true
		case i >= len(t):
			return nil, false
		case l == "+":
			rest = append(rest, t[i])
		case l != t[i]:
			return nil, false
		}
	}
	if len(t) != len(f) {
		return nil, false
	}
	return rest, true
}
