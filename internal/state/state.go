// Package state holds the live external state that conditions and binding
// graphs read. State is a single JSON document addressed with gjson paths
// ("room.sensors.temp"); writers replace values and readers take immutable
// snapshots.
package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrInvalidDocument = errors.New("state document is not valid JSON")

// Provider resolves a path into external state. ok is false when the path
// is absent. A JSON null resolves to (KindAny, nil, true).
type Provider interface {
	ResolvePath(path string) (kind value.Kind, v any, ok bool)
}

// Versioned is implemented by providers that can tell whether anything
// changed since a previous read.
type Versioned interface {
	Version() uint64
}

// Store is the mutable state document. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	doc     []byte
	version uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{doc: []byte("{}")}
}

// Set writes v at path.
func (s *Store) Set(path string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := sjson.SetBytes(s.doc, path, v)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.commit(doc)
	return nil
}

// SetRaw writes raw JSON at path.
func (s *Store) SetRaw(path string, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("set %s: %w", path, ErrInvalidDocument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := sjson.SetRawBytes(s.doc, path, raw)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.commit(doc)
	return nil
}

// Delete removes path. Deleting an absent path is not an error.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !gjson.GetBytes(s.doc, path).Exists() {
		return nil
	}
	doc, err := sjson.DeleteBytes(s.doc, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.commit(doc)
	return nil
}

// Replace swaps the whole document.
func (s *Store) Replace(doc []byte) error {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return ErrInvalidDocument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(append([]byte(nil), doc...))
	return nil
}

func (s *Store) commit(doc []byte) {
	s.doc = doc
	s.version++
}

// Version increments on every successful write.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns an immutable view of the current document.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// sjson never mutates its input in place, so the slice can be shared.
	return &Snapshot{doc: s.doc, version: s.version}
}

// ResolvePath reads from the live document.
func (s *Store) ResolvePath(path string) (value.Kind, any, bool) {
	return s.Snapshot().ResolvePath(path)
}

// Snapshot is a read-only copy of the state at one version.
type Snapshot struct {
	doc     []byte
	version uint64
}

func (sn *Snapshot) Version() uint64 { return sn.version }

// JSON returns the raw document.
func (sn *Snapshot) JSON() []byte { return sn.doc }

// ResolvePath looks up path in the snapshot.
func (sn *Snapshot) ResolvePath(path string) (value.Kind, any, bool) {
	if path == "" {
		return "", nil, false
	}
	r := gjson.GetBytes(sn.doc, path)
	if !r.Exists() {
		return "", nil, false
	}
	return FromResult(r)
}

// FromResult converts a gjson result into a typed value. Objects shaped
// like a color, vector or rect become that kind; other objects and arrays
// are returned as KindAny.
func FromResult(r gjson.Result) (value.Kind, any, bool) {
	switch r.Type {
	case gjson.Null:
		return value.KindAny, nil, true
	case gjson.False:
		return value.KindBool, false, true
	case gjson.True:
		return value.KindBool, true, true
	case gjson.Number:
		return value.KindFloat, r.Float(), true
	case gjson.String:
		return value.KindString, r.String(), true
	}
	if r.IsObject() {
		if v, err := value.DecodeAny([]byte(r.Raw)); err == nil {
			if k, ok := value.KindOf(v); ok {
				return k, v, true
			}
		}
	}
	return value.KindAny, r.Value(), true
}

// Map is a fixed provider keyed by full path, handy for tests and for
// sampling scenes offline.
type Map map[string]any

// ResolvePath implements Provider.
func (m Map) ResolvePath(path string) (value.Kind, any, bool) {
	v, ok := m[path]
	if !ok {
		return "", nil, false
	}
	if v == nil {
		return value.KindAny, nil, true
	}
	if k, ok := value.KindOf(v); ok {
		return k, v, true
	}
	return value.KindAny, v, true
}
