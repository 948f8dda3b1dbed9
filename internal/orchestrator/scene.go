package orchestrator

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/property"
	"github.com/AaronLay10/SentientFX/internal/timeline"
)

var (
	ErrDuplicateEntity    = errors.New("duplicate entity id")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrDuplicateParameter = errors.New("duplicate parameter id")
	ErrUnknownParameter   = errors.New("unknown parameter")
)

// Scene is the tree of entities animated by a Runtime.
// Entities are visited parent first, siblings in insertion order.
type Scene struct {
	ID   string
	Name string

	roots []*Entity
	index map[string]*Entity
}

// Entity is one element of the scene: a timeline, the parameters animated
// along it and an optional condition that gates whether it is active.
type Entity struct {
	ID        string
	Name      string
	Timeline  timeline.Timeline
	Playhead  timeline.Playhead
	Condition condition.Node

	parent   *Entity
	children []*Entity
	params   []*property.Parameter
	state    ElementState
}

// NewScene creates an empty scene.
func NewScene(id, name string) *Scene {
	return &Scene{ID: id, Name: name, index: make(map[string]*Entity)}
}

// NewEntity creates an entity. Entities start active.
func NewEntity(id, name string, tl timeline.Timeline) *Entity {
	return &Entity{ID: id, Name: name, Timeline: tl, state: ElementActive}
}

func (e *Entity) Parent() *Entity                   { return e.parent }
func (e *Entity) Children() []*Entity               { return e.children }
func (e *Entity) Parameters() []*property.Parameter { return e.params }
func (e *Entity) State() ElementState               { return e.state }

// Active reports whether the entity is shown this frame.
func (e *Entity) Active() bool { return e.state != ElementInactive }

// Parameter returns the parameter with the given id.
func (e *Entity) Parameter(id string) (*property.Parameter, bool) {
	for _, p := range e.params {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// AddParameter appends p. Parameter ids are unique within an entity.
func (e *Entity) AddParameter(p *property.Parameter) error {
	if _, ok := e.Parameter(p.ID); ok {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateParameter, e.ID, p.ID)
	}
	p.Entity = e.ID
	e.params = append(e.params, p)
	return nil
}

// RemoveParameter drops the parameter with the given id.
func (e *Entity) RemoveParameter(id string) error {
	for i, p := range e.params {
		if p.ID == id {
			e.params = append(e.params[:i], e.params[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", ErrUnknownParameter, e.ID, id)
}

// Tracks returns the keyframe tracks of all parameters.
func (e *Entity) Tracks() []*timeline.Track {
	out := make([]*timeline.Track, 0, len(e.params))
	for _, p := range e.params {
		out = append(out, p.Track())
	}
	return out
}

// Add inserts e under the entity parentID, or as a root when parentID is
// empty. e must not already belong to a scene.
func (s *Scene) Add(parentID string, e *Entity) error {
	if e.ID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownEntity)
	}
	var dup error
	walk([]*Entity{e}, func(x *Entity) bool {
		if _, ok := s.index[x.ID]; ok && dup == nil {
			dup = fmt.Errorf("%w: %s", ErrDuplicateEntity, x.ID)
		}
		return dup == nil
	})
	if dup != nil {
		return dup
	}
	if parentID == "" {
		e.parent = nil
		s.roots = append(s.roots, e)
	} else {
		parent, ok := s.index[parentID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, parentID)
		}
		e.parent = parent
		parent.children = append(parent.children, e)
	}
	walk([]*Entity{e}, func(x *Entity) bool {
		s.index[x.ID] = x
		return true
	})
	return nil
}

// Remove detaches the entity and its subtree.
func (s *Scene) Remove(id string) error {
	e, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
	}
	if e.parent == nil {
		s.roots = without(s.roots, e)
	} else {
		e.parent.children = without(e.parent.children, e)
	}
	walk([]*Entity{e}, func(x *Entity) bool {
		delete(s.index, x.ID)
		return true
	})
	e.parent = nil
	return nil
}

// Entity returns the entity with the given id.
func (s *Scene) Entity(id string) (*Entity, bool) {
	e, ok := s.index[id]
	return e, ok
}

// Roots returns the top-level entities.
func (s *Scene) Roots() []*Entity { return s.roots }

// Len returns the number of entities in the scene.
func (s *Scene) Len() int { return len(s.index) }

// Walk visits entities parent first. Returning false from fn skips the
// entity's children.
func (s *Scene) Walk(fn func(*Entity) bool) {
	walk(s.roots, fn)
}

// Parameter finds a parameter by entity and parameter id.
func (s *Scene) Parameter(entityID, paramID string) (*property.Parameter, error) {
	e, ok := s.index[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	p, ok := e.Parameter(paramID)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownParameter, entityID, paramID)
	}
	return p, nil
}

// ParameterKey is the key of a parameter in a published Frame.
func ParameterKey(entityID, paramID string) string {
	return entityID + "/" + paramID
}

func walk(list []*Entity, fn func(*Entity) bool) {
	for _, e := range list {
		if fn(e) {
			walk(e.children, fn)
		}
	}
}

func without(list []*Entity, e *Entity) []*Entity {
	for i, x := range list {
		if x == e {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
