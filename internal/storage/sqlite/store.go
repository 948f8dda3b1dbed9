// Package sqlite stores scene documents and the event log in an embedded
// SQLite database, for single-box installs without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AaronLay10/SentientFX/internal/events"
)

//go:embed schema.sql
var schemaSQL string

// Store is a SQLite-backed SceneStore and event sink.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	// One writer at a time; also keeps a :memory: database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveScene stores a scene document, replacing any previous version.
func (s *Store) SaveScene(ctx context.Context, id, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenes (scene_id, name, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (scene_id) DO UPDATE
		SET name = excluded.name, document = excluded.document, updated_at = excluded.updated_at
	`, id, name, string(data), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("save scene %s: %w", id, err)
	}
	return nil
}

// LoadScene returns the document stored under id.
func (s *Store) LoadScene(ctx context.Context, id string) ([]byte, bool, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM scenes WHERE scene_id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load scene %s: %w", id, err)
	}
	return []byte(doc), true, nil
}

// SceneIDs returns the stored scene ids in alphabetical order.
func (s *Store) SceneIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT scene_id FROM scenes ORDER BY scene_id`)
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
func (s *Store) SetActiveScene(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_settings (key, value) VALUES ('active_scene', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, id)
	return err
}

// ActiveScene returns the id of the active scene, or "" when none is set.
func (s *Store) ActiveScene(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM engine_settings WHERE key = 'active_scene'`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Append inserts an event.
func (s *Store) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	var msgCol sql.NullString
	if msg != "" {
		msgCol = sql.NullString{String: msg, Valid: true}
	}
	_, err := s.db.Exec(`INSERT INTO events (ts, level, event, msg, fields) VALUES (?, ?, ?, ?, ?)`,
		ts.UTC().UnixMilli(), level, event, msgCol, fieldsJSON)
	return err
}

// RecentEvents returns up to limit of the newest stored events, oldest
// first. A limit <= 0 means 200.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, level, event, msg, fields FROM events
		ORDER BY ts DESC, event_id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var ms int64
		var msg, fields sql.NullString
		if err := rows.Scan(&ms, &e.Level, &e.Name, &msg, &fields); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
		e.Message = msg.String
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields: %w", err)
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
