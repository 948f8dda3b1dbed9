package mqtt

import (
	"sync"
	"time"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/state"
)

// Monitor flags sources that have gone quiet. A stale source keeps its
// last values in the store; conditions can test _sources.<id>.stale to
// react to it.
type Monitor struct {
	registry *SourceRegistry
	store    *state.Store
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a staleness monitor and clears the stale flag of
// every registered source.
func NewMonitor(registry *SourceRegistry, store *state.Store) *Monitor {
	for _, src := range registry.All() {
		_ = store.Set(staleFlagPath(src.ID), src.Stale)
	}
	return &Monitor{
		registry: registry,
		store:    store,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.checkLoop(checkInterval)
}

// Stop stops the background check loop. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) checkLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkStale()
		}
	}
}

func (m *Monitor) checkStale() {
	for _, src := range m.registry.MarkStale(m.now()) {
		_ = m.store.Set(staleFlagPath(src.ID), true)
		events.Emit("warn", "state.source_stale", "no messages within stale window", map[string]interface{}{
			"source_id":   src.ID,
			"topic":       src.Topic,
			"last_seen":   src.LastSeen.Format(time.RFC3339),
			"stale_after": src.StaleAfter.Seconds(),
		})
	}
}

// StaleSources returns the ids of sources currently flagged stale.
func (m *Monitor) StaleSources() []string {
	var ids []string
	for _, src := range m.registry.All() {
		if src.Stale {
			ids = append(ids, src.ID)
		}
	}
	return ids
}
