// Package condition evaluates the boolean trees that gate scene elements.
// A tree is made of groups combining their children with a boolean
// operator and predicates comparing a path in external state against an
// operand. Lookups that fail never raise; they make the predicate false.
package condition

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrUnknownBoolOp = errors.New("unknown boolean operator")

// BoolOp combines the results of a group's children.
type BoolOp string

const (
	// And holds when every child holds. An empty And group holds.
	And BoolOp = "and"
	// Or holds when any child holds. An empty Or group does not.
	Or BoolOp = "or"
	// AndNot holds when no child holds. An empty AndNot group holds.
	AndNot BoolOp = "and_not"
	// OrNot holds when any child does not hold. An empty OrNot group does not.
	OrNot BoolOp = "or_not"
)

// ParseBoolOp validates s. The empty string means And.
func ParseBoolOp(s string) (BoolOp, error) {
	switch op := BoolOp(s); op {
	case "":
		return And, nil
	case And, Or, AndNot, OrNot:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBoolOp, s)
}

// Node is a group or a predicate.
type Node interface {
	Evaluate(ctx *graph.Context) bool
}

// Group combines its children with Op. Children are evaluated in order and
// evaluation stops once the result is known.
type Group struct {
	Op       BoolOp
	Children []Node
}

// NewGroup creates a group.
func NewGroup(op BoolOp, children ...Node) *Group {
	return &Group{Op: op, Children: children}
}

// Add appends a child.
func (g *Group) Add(n Node) { g.Children = append(g.Children, n) }

// Remove deletes the child at index i.
func (g *Group) Remove(i int) error {
	if i < 0 || i >= len(g.Children) {
		return fmt.Errorf("no child at index %d", i)
	}
	g.Children = append(g.Children[:i], g.Children[i+1:]...)
	return nil
}

func (g *Group) Evaluate(ctx *graph.Context) bool {
	switch g.Op {
	case Or:
		for _, c := range g.Children {
			if c.Evaluate(ctx) {
				return true
			}
		}
		return false
	case AndNot:
		for _, c := range g.Children {
			if c.Evaluate(ctx) {
				return false
			}
		}
		return true
	case OrNot:
		for _, c := range g.Children {
			if !c.Evaluate(ctx) {
				return true
			}
		}
		return false
	default:
		for _, c := range g.Children {
			if !c.Evaluate(ctx) {
				return false
			}
		}
		return true
	}
}

// Operand supplies the right-hand side of a predicate.
type Operand interface {
	Resolve(ctx *graph.Context) (value.Kind, any, bool)
}

// Static is a literal operand.
type Static struct {
	Value any
}

func (s Static) Resolve(*graph.Context) (value.Kind, any, bool) {
	if s.Value == nil {
		return value.KindAny, nil, true
	}
	k, ok := value.KindOf(s.Value)
	if !ok {
		k = value.KindAny
	}
	return k, s.Value, true
}

// Path reads another location of external state.
type Path struct {
	Path string
}

func (p Path) Resolve(ctx *graph.Context) (value.Kind, any, bool) {
	if ctx == nil || ctx.State == nil {
		return "", nil, false
	}
	return ctx.State.ResolvePath(p.Path)
}

// Graph uses the exit value of a dataflow graph. A graph that has never
// produced a value, or whose last evaluation failed without a previous
// good value, resolves as absent.
type Graph struct {
	Graph *graph.Graph
}

func (o Graph) Resolve(ctx *graph.Context) (value.Kind, any, bool) {
	if o.Graph == nil {
		return "", nil, false
	}
	v, err := o.Graph.Run(ctx)
	if err != nil {
		if _, ok := o.Graph.ExitValue(); !ok {
			return "", nil, false
		}
	}
	k, ok := value.KindOf(v)
	if !ok {
		k = value.KindAny
	}
	return k, v, true
}

// Predicate compares the state at Left with Right using Operator. Unary
// operators ignore Right.
type Predicate struct {
	Left     string
	Operator string
	Right    Operand

	op *Operator
	fn func(left, right Value) bool
}

// NewPredicate resolves the operator from the default registry.
func NewPredicate(left, operator string, right Operand) (*Predicate, error) {
	return DefaultOperators.Predicate(left, operator, right)
}

func (p *Predicate) Evaluate(ctx *graph.Context) bool {
	if p.op == nil || p.fn == nil || ctx == nil || ctx.State == nil {
		return false
	}
	lk, lv, lok := ctx.State.ResolvePath(p.Left)
	if p.op.Unary {
		return p.fn(Value{Kind: lk, V: lv, Present: lok}, Value{})
	}
	if !lok || lv == nil || p.Right == nil {
		return false
	}
	rk, rv, rok := p.Right.Resolve(ctx)
	if !rok || rv == nil {
		return false
	}
	return p.fn(Value{Kind: lk, V: lv, Present: true}, Value{Kind: rk, V: rv, Present: true})
}

// EvaluateNode evaluates n against a state provider at time zero.
func EvaluateNode(n Node, provider state.Provider) bool {
	if n == nil {
		return true
	}
	ctx := &graph.Context{State: provider}
	if v, ok := provider.(state.Versioned); ok {
		ctx.StateVersion = v.Version()
	}
	return n.Evaluate(ctx)
}
