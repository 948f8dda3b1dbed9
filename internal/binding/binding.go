// Package binding overrides a parameter's resolved value with the output
// of a dataflow graph.
package binding

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/value"
)

var (
	ErrUnknownMode   = errors.New("unknown binding mode")
	ErrExitKind      = errors.New("graph exit does not produce the bound kind")
	ErrBadBindTarget = errors.New("parameter has no such sub-property")
)

// Mode decides when a binding applies.
type Mode string

const (
	// Always applies the graph output every frame.
	Always Mode = "always"
	// Conditional applies only while Gate holds.
	Conditional Mode = "conditional"
)

// ParseMode validates s. The empty string means Always.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return Always, nil
	case Always, Conditional:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Binding ties one target of a parameter to a graph. Target is empty for
// the whole value, or a sub-property such as "r" or "width".
type Binding struct {
	Target  string
	Kind    value.Kind
	Mode    Mode
	Enabled bool
	Gate    condition.Node
	Graph   *graph.Graph

	everEnabled bool
}

// TargetKind returns the kind a binding on target of a parameter of kind
// parent produces.
func TargetKind(parent value.Kind, target string) (value.Kind, error) {
	if target == "" {
		return parent, nil
	}
	if !value.HasComponent(parent, target) {
		return "", fmt.Errorf("%w: %s.%s", ErrBadBindTarget, parent, target)
	}
	return value.KindFloat, nil
}

// New creates a disabled binding whose graph holds only an exit node.
func New(parent value.Kind, target string) (*Binding, error) {
	k, err := TargetKind(parent, target)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	exit := g.AddNode(&graph.ExitNode{Kind: k})
	if err := g.SetExit(graph.OutputRef{Node: exit}); err != nil {
		return nil, err
	}
	return &Binding{Target: target, Kind: k, Mode: Always, Graph: g}, nil
}

// ExitInput returns the input pin of the exit node, for wiring.
func (b *Binding) ExitInput() (graph.InputRef, bool) {
	exit, ok := b.Graph.Exit()
	if !ok {
		return graph.InputRef{}, false
	}
	return graph.InputRef{Node: exit.Node}, true
}

// Enable turns the binding on. It reports true the first time the binding
// is ever enabled.
func (b *Binding) Enable() (first bool) {
	first = !b.everEnabled
	b.Enabled = true
	b.everEnabled = true
	return first
}

// Disable turns the binding off.
func (b *Binding) Disable() { b.Enabled = false }

// Active reports whether the binding would apply this frame.
func (b *Binding) Active(ctx *graph.Context) bool {
	if !b.Enabled {
		return false
	}
	if b.Mode == Conditional && b.Gate != nil {
		return b.Gate.Evaluate(ctx)
	}
	return true
}

// Apply returns current overridden by the graph result. When the binding
// is inactive, or its graph has never produced a value, current is
// returned unchanged. A failing graph contributes its last good value and
// the failure is returned for reporting.
func (b *Binding) Apply(ctx *graph.Context, current any) (any, error) {
	if !b.Active(ctx) {
		return current, nil
	}
	v, err := b.Graph.Run(ctx)
	if _, ok := b.Graph.ExitValue(); !ok {
		return current, err
	}
	cv, ok := value.Coerce(v, b.Kind)
	if !ok {
		return current, fmt.Errorf("%w: %T for %s", ErrExitKind, v, b.Kind)
	}
	if b.Target == "" {
		return cv, err
	}
	out, cerr := value.WithComponent(current, b.Target, cv.(float64))
	if cerr != nil {
		return current, cerr
	}
	return out, err
}
