// Package postgres stores scene documents and the event log in Postgres.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/SentientFX/internal/events"
)

// Client manages the Postgres connection for scene and event storage.
type Client struct {
	db *sql.DB
}

// New connects to dsn and creates the tables if needed.
func New(dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{db: db}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			scene_id   TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_scene_id ON events(scene_id);

		CREATE TABLE IF NOT EXISTS scenes (
			scene_id   TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			document   JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS engine_settings (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database. The scene_id field, when
// present, is copied into its own column.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var scenePtr *string
	if id, ok := fields["scene_id"].(string); ok && id != "" {
		scenePtr = &id
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, scene_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, scenePtr)
	return err
}

// ClampLimit bounds a query limit to [1, 10000], defaulting to 200.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

// RecentEvents returns up to limit of the newest stored events, oldest
// first.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]events.Event, error) {
	query := `
		SELECT ts, level, event, msg, fields
		FROM events
		ORDER BY ts DESC, event_id DESC
		LIMIT $1
	`
	rows, err := c.db.QueryContext(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var ts time.Time
		var msg sql.NullString
		var fieldsJSON []byte

		if err := rows.Scan(&ts, &e.Level, &e.Name, &msg, &fieldsJSON); err != nil {
			return nil, err
		}
		e.Timestamp = ts.UTC().Format(time.RFC3339Nano)
		e.Message = msg.String
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// SaveScene stores a scene document, replacing any previous version.
func (c *Client) SaveScene(ctx context.Context, id, name string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("scene %s: document is not JSON", id)
	}
	query := `
		INSERT INTO scenes (scene_id, name, document, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scene_id) DO UPDATE
		SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = now()
	`
	_, err := c.db.ExecContext(ctx, query, id, name, data)
	return err
}

// LoadScene returns the document stored under id.
func (c *Client) LoadScene(ctx context.Context, id string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT document FROM scenes WHERE scene_id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SceneIDs returns the stored scene ids in alphabetical order.
func (c *Client) SceneIDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT scene_id FROM scenes ORDER BY scene_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetActiveScene marks id as the scene restored on startup.
func (c *Client) SetActiveScene(ctx context.Context, id string) error {
	query := `
		INSERT INTO engine_settings (key, value) VALUES ('active_scene', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`
	_, err := c.db.ExecContext(ctx, query, id)
	return err
}

// ActiveScene returns the id of the active scene, or "" when none is set.
func (c *Client) ActiveScene(ctx context.Context) (string, error) {
	var id string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM engine_settings WHERE key = 'active_scene'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
