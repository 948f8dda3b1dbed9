package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrUnknownNodeType = errors.New("unknown node type")

// Factory builds a node from its stored configuration. config may be empty.
type Factory func(config json.RawMessage) (Node, error)

// Registry maps node type ids to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the builtin node catalogue.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypeStatic, func(raw json.RawMessage) (Node, error) {
		var c staticConfig
		if err := decodeConfig(raw, &c); err != nil {
			return nil, err
		}
		v, err := value.Decode(c.Kind, c.Value)
		if err != nil {
			return nil, err
		}
		return NewStatic(c.Kind, v)
	})
	r.Register(TypeStatePath, func(raw json.RawMessage) (Node, error) {
		n := &StatePathNode{}
		if err := decodeConfig(raw, n); err != nil {
			return nil, err
		}
		if n.Kind == "" {
			n.Kind = value.KindAny
		}
		if !n.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", value.ErrUnregisteredKind, n.Kind)
		}
		return n, nil
	})
	r.Register(TypeTime, stateless(TimeNode{}))
	for _, op := range []string{TypeAdd, TypeSubtract, TypeMultiply, TypeDivide} {
		op := op
		r.Register(op, func(json.RawMessage) (Node, error) { return &ArithmeticNode{Op: op}, nil })
	}
	r.Register(TypeClamp, stateless(ClampNode{}))
	r.Register(TypeLerp, stateless(LerpNode{}))
	r.Register(TypeCompare, func(raw json.RawMessage) (Node, error) {
		n := &CompareNode{Op: "=="}
		if err := decodeConfig(raw, n); err != nil {
			return nil, err
		}
		switch n.Op {
		case "<", "<=", ">", ">=", "==", "!=":
			return n, nil
		}
		return nil, fmt.Errorf("unknown comparison %q", n.Op)
	})
	r.Register(TypeIf, kinded(func(k value.Kind) Node { return &IfNode{Kind: k} }))
	r.Register(TypeColorMix, stateless(ColorMixNode{}))
	r.Register(TypeColorBrightness, stateless(ColorBrightnessNode{}))
	r.Register(TypeExpression, func(raw json.RawMessage) (Node, error) {
		var c ExpressionNode
		if err := decodeConfig(raw, &c); err != nil {
			return nil, err
		}
		return NewExpression(c.Expr, c.Names...)
	})
	r.Register(TypeExit, kinded(func(k value.Kind) Node { return &ExitNode{Kind: k} }))
	return r
}

func stateless(n Node) Factory {
	return func(json.RawMessage) (Node, error) { return n, nil }
}

func kinded(build func(value.Kind) Node) Factory {
	return func(raw json.RawMessage) (Node, error) {
		var c struct {
			Kind value.Kind `json:"kind"`
		}
		if err := decodeConfig(raw, &c); err != nil {
			return nil, err
		}
		if c.Kind == "" {
			c.Kind = value.KindAny
		}
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", value.ErrUnregisteredKind, c.Kind)
		}
		return build(c.Kind), nil
	}
}

func decodeConfig(raw json.RawMessage, into any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("node config: %w", err)
	}
	return nil
}

// Register installs or replaces the factory for typ.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Create builds a node of type typ.
func (r *Registry) Create(typ string, config json.RawMessage) (Node, error) {
	r.mu.RLock()
	f, ok := r.factories[typ]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, typ)
	}
	n, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", typ, err)
	}
	return n, nil
}

// Types lists registered type ids in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var defaultRegistry = NewRegistry()

// Register installs a node type in the process-wide registry.
func Register(typ string, f Factory) { defaultRegistry.Register(typ, f) }

// Create builds a node from the process-wide registry.
func Create(typ string, config json.RawMessage) (Node, error) {
	return defaultRegistry.Create(typ, config)
}

// Types lists the node types of the process-wide registry.
func Types() []string { return defaultRegistry.Types() }
