package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/property"
	"github.com/AaronLay10/SentientFX/internal/timeline"
)

// SceneVersion is the only scene document version understood.
const SceneVersion = 1

// SceneDocument is the stored form of a Scene.
type SceneDocument struct {
	Version  int              `json:"version"`
	ID       string           `json:"id"`
	Name     string           `json:"name,omitempty"`
	Entities []EntityDocument `json:"entities"`
}

// EntityDocument is the stored form of an Entity and its subtree.
type EntityDocument struct {
	ID         string              `json:"id"`
	Name       string              `json:"name,omitempty"`
	Timeline   timeline.Document   `json:"timeline"`
	Condition  *condition.Document `json:"condition,omitempty"`
	Parameters []property.Document `json:"parameters,omitempty"`
	Children   []EntityDocument    `json:"children,omitempty"`
}

// EntityError is a load failure of one entity. Its subtree is not loaded.
type EntityError struct {
	Entity string
	Err    error
}

func (e EntityError) Error() string { return fmt.Sprintf("entity %s: %v", e.Entity, e.Err) }
func (e EntityError) Unwrap() error { return e.Err }

// LoadError lists the entities rejected while building a scene. The rest
// of the scene is still usable.
type LoadError struct {
	SceneID  string
	Entities []EntityError
}

func (e *LoadError) Error() string {
	parts := make([]string, len(e.Entities))
	for i, ee := range e.Entities {
		parts[i] = ee.Error()
	}
	return fmt.Sprintf("scene %s: %d entities rejected: %s", e.SceneID, len(e.Entities), strings.Join(parts, "; "))
}

func (e *LoadError) Unwrap() []error {
	out := make([]error, len(e.Entities))
	for i := range e.Entities {
		out[i] = e.Entities[i]
	}
	return out
}

// LoadSceneFile reads a scene document from a JSON or YAML file.
func LoadSceneFile(path string) (*SceneDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	return DecodeScene(data)
}

// DecodeScene parses a scene document. Input starting with '{' is read as
// JSON, anything else as YAML.
func DecodeScene(data []byte) (*SceneDocument, error) {
	raw, err := ToJSON(data)
	if err != nil {
		return nil, err
	}
	var doc SceneDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse scene document: %w", err)
	}
	if doc.Version != SceneVersion {
		return nil, fmt.Errorf("unsupported scene version: %d", doc.Version)
	}
	return &doc, nil
}

// ToJSON converts a YAML document to JSON. JSON input is returned as is.
func ToJSON(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse scene YAML: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert scene YAML: %w", err)
	}
	return raw, nil
}

// ToYAML renders a JSON document as YAML.
func ToYAML(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return yaml.Marshal(v)
}

// BuildScene turns a document into a Scene. Entities that fail to load are
// dropped with their subtree and reported through a *LoadError alongside
// the partial scene. Repairs (missing ids, re-sorted keyframes, dropped
// links) are returned in repairs.
func BuildScene(doc *SceneDocument, im condition.Importer) (s *Scene, repairs []error, err error) {
	if doc.Version != SceneVersion {
		return nil, nil, fmt.Errorf("unsupported scene version: %d", doc.Version)
	}
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
		repairs = append(repairs, fmt.Errorf("scene id missing, assigned %s", id))
	}
	s = NewScene(id, doc.Name)
	b := &sceneBuilder{scene: s, importer: im}
	for i := range doc.Entities {
		b.add("", &doc.Entities[i])
	}
	repairs = append(repairs, b.repairs...)
	if len(b.rejected) > 0 {
		return s, repairs, &LoadError{SceneID: id, Entities: b.rejected}
	}
	return s, repairs, nil
}

type sceneBuilder struct {
	scene    *Scene
	importer condition.Importer
	repairs  []error
	rejected []EntityError
}

func (b *sceneBuilder) add(parentID string, ed *EntityDocument) {
	e, err := b.entity(ed)
	if err == nil {
		err = b.scene.Add(parentID, e)
	}
	if err != nil {
		b.rejected = append(b.rejected, EntityError{Entity: ed.ID, Err: err})
		return
	}
	for i := range ed.Children {
		b.add(e.ID, &ed.Children[i])
	}
}

func (b *sceneBuilder) entity(ed *EntityDocument) (*Entity, error) {
	id := ed.ID
	if id == "" {
		id = uuid.NewString()
		b.repairs = append(b.repairs, fmt.Errorf("entity %q: id missing, assigned %s", ed.Name, id))
	}
	tl, err := timeline.Import(ed.Timeline)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	e := NewEntity(id, ed.Name, tl)
	if ed.Condition != nil {
		cond, dropped, err := b.importer.Import(*ed.Condition)
		if err != nil {
			return nil, fmt.Errorf("condition: %w", err)
		}
		for _, d := range dropped {
			b.repairs = append(b.repairs, fmt.Errorf("entity %s condition: %w", id, d))
		}
		e.Condition = cond
	}
	for _, pd := range ed.Parameters {
		if pd.ID == "" {
			pd.ID = uuid.NewString()
			b.repairs = append(b.repairs, fmt.Errorf("entity %s: parameter id missing, assigned %s", id, pd.ID))
		}
		p, fixes, err := property.Import(pd, id, b.importer)
		if err != nil {
			return nil, err
		}
		for _, f := range fixes {
			b.repairs = append(b.repairs, fmt.Errorf("entity %s: %w", id, f))
		}
		if err := e.AddParameter(p); err != nil {
			return nil, err
		}
	}
	timeline.BackfillMain(&e.Timeline, e.Tracks()...)
	return e, nil
}

// ExportScene converts s to its document.
func ExportScene(s *Scene) (*SceneDocument, error) {
	doc := &SceneDocument{Version: SceneVersion, ID: s.ID, Name: s.Name}
	for _, e := range s.roots {
		ed, err := exportEntity(e)
		if err != nil {
			return nil, err
		}
		doc.Entities = append(doc.Entities, ed)
	}
	return doc, nil
}

func exportEntity(e *Entity) (EntityDocument, error) {
	ed := EntityDocument{ID: e.ID, Name: e.Name, Timeline: timeline.Export(e.Timeline)}
	if e.Condition != nil {
		cd, err := condition.Export(e.Condition)
		if err != nil {
			return EntityDocument{}, fmt.Errorf("entity %s condition: %w", e.ID, err)
		}
		ed.Condition = &cd
	}
	for _, p := range e.params {
		pd, err := property.Export(p)
		if err != nil {
			return EntityDocument{}, fmt.Errorf("entity %s: %w", e.ID, err)
		}
		ed.Parameters = append(ed.Parameters, pd)
	}
	for _, c := range e.children {
		cd, err := exportEntity(c)
		if err != nil {
			return EntityDocument{}, err
		}
		ed.Children = append(ed.Children, cd)
	}
	return ed, nil
}

// LoadEntityErrors returns the per-entity failures carried by err, if any.
func LoadEntityErrors(err error) []EntityError {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Entities
	}
	return nil
}
