// Package storage selects the persistence backend named in engine.yaml.
package storage

import (
	"context"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/orchestrator"
	"github.com/AaronLay10/SentientFX/internal/storage/postgres"
	"github.com/AaronLay10/SentientFX/internal/storage/sqlite"
)

// Store keeps scene documents and the event log.
type Store interface {
	orchestrator.SceneStore
	events.Sink
	// SceneIDs lists the stored scenes in alphabetical order.
	SceneIDs(ctx context.Context) ([]string, error)
	// RecentEvents returns up to limit of the newest persisted events,
	// oldest first.
	RecentEvents(ctx context.Context, limit int) ([]events.Event, error)
	Close() error
}

var (
	_ Store = (*postgres.Client)(nil)
	_ Store = (*sqlite.Store)(nil)
)

// Open connects to the backend for driver. An empty driver means no
// persistence and returns a nil Store.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "":
		return nil, nil
	case "postgres":
		c, err := postgres.New(dsn)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "sqlite":
		s, err := sqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %q", driver)
	}
}
