package graph

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/AaronLay10/SentientFX/internal/value"
)

// idHeap pops the lowest node id first, which makes the topological order
// depend only on graph shape and insertion order.
type idHeap []NodeID

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(NodeID)) }
func (h *idHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// Order returns the evaluation order using Kahn's algorithm with the lowest
// ready id taken first. It is cached per generation.
func (g *Graph) Order() ([]NodeID, error) {
	if g.ordered && g.orderGen == g.generation {
		return g.order, g.orderErr
	}
	indegree := make(map[NodeID]int)
	for _, id := range g.Nodes() {
		indegree[id] = 0
	}
	next := make(map[NodeID][]NodeID)
	for to, from := range g.links {
		next[from.Node] = append(next[from.Node], to.Node)
		indegree[to.Node]++
	}

	ready := &idHeap{}
	for id, d := range indegree {
		if d == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	order := make([]NodeID, 0, len(indegree))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(NodeID)
		order = append(order, n)
		for _, m := range next[n] {
			indegree[m]--
			if indegree[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}

	g.ordered = true
	g.orderGen = g.generation
	g.order, g.orderErr = order, nil
	if len(order) != len(indegree) {
		g.order, g.orderErr = nil, ErrCycle
	}
	return g.order, g.orderErr
}

// NeedsEvaluation reports whether Evaluate would produce anything new: the
// graph was edited, the state changed, it never ran, or it contains a
// time-dependent node.
func (g *Graph) NeedsEvaluation(ctx *Context) bool {
	if !g.evaluated || g.evalGen != g.generation {
		return true
	}
	if ctx != nil && ctx.StateVersion != g.evalState {
		return true
	}
	for _, s := range g.slots {
		if s == nil {
			continue
		}
		if td, ok := s.node.(TimeDependent); ok && td.TimeDependent() {
			return true
		}
	}
	return false
}

// Evaluate runs every node once in topological order. Outputs are committed
// only when the whole pass succeeds; on failure the graph is flagged
// invalid and keeps its previous outputs and exit value.
func (g *Graph) Evaluate(ctx *Context) error {
	if ctx == nil {
		ctx = &Context{}
	}
	g.evaluated = true
	g.evalGen = g.generation
	g.evalState = ctx.StateVersion

	order, err := g.Order()
	if err != nil {
		g.invalid = err
		return err
	}

	scratch := make(map[NodeID][]any, len(order))
	for _, id := range order {
		s := g.slots[id]
		in := make([]any, len(s.inputs))
		for i, spec := range s.inputs {
			v, err := g.input(scratch, InputRef{Node: id, Pin: i}, spec)
			if err != nil {
				g.invalid = &NodeError{Node: id, Type: s.node.Type(), Err: err}
				return g.invalid
			}
			in[i] = v
		}
		out := make([]any, len(s.outputs))
		copy(out, s.values)
		if err := s.node.Evaluate(ctx, in, out); err != nil {
			g.invalid = &NodeError{Node: id, Type: s.node.Type(), Err: err}
			return g.invalid
		}
		for i, spec := range s.outputs {
			cv, ok := value.Coerce(out[i], spec.Kind)
			if !ok {
				g.invalid = &NodeError{Node: id, Type: s.node.Type(),
					Err: fmt.Errorf("%w: output %q produced %T", ErrTypeMismatch, spec.Name, out[i])}
				return g.invalid
			}
			if !finite(cv) {
				g.invalid = &NodeError{Node: id, Type: s.node.Type(),
					Err: fmt.Errorf("%w: output %q is %v", ErrNonFinite, spec.Name, cv)}
				return g.invalid
			}
			out[i] = cv
		}
		scratch[id] = out
	}

	for id, out := range scratch {
		g.slots[id].values = out
	}
	g.invalid = nil
	if g.hasExit {
		g.lastGood = g.slots[g.exit.Node].values[g.exit.Pin]
		g.hasGood = true
	}
	return nil
}

// finite reports whether every float inside v is neither NaN nor infinite.
// Frames are JSON and cannot carry either.
func finite(v any) bool {
	ok := func(fs ...float64) bool {
		for _, f := range fs {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
		return true
	}
	switch t := v.(type) {
	case float64:
		return ok(t)
	case value.Vector2:
		return ok(t.X, t.Y)
	case value.Rect:
		return ok(t.X, t.Y, t.Width, t.Height)
	case value.Color:
		return ok(t.R, t.G, t.B, t.A)
	}
	return true
}

func (g *Graph) input(scratch map[NodeID][]any, ref InputRef, spec PinSpec) (any, error) {
	if from, ok := g.links[ref]; ok {
		v := scratch[from.Node][from.Pin]
		cv, ok := value.Coerce(v, spec.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: input %q got %T", ErrTypeMismatch, spec.Name, v)
		}
		return cv, nil
	}
	if v := g.slots[ref.Node].static[ref.Pin]; v != nil {
		return v, nil
	}
	if spec.Required {
		return nil, fmt.Errorf("%w: %q", ErrUnconnectedInput, spec.Name)
	}
	return value.Zero(spec.Kind), nil
}

// Invalid returns the error of the most recent evaluation, or nil.
func (g *Graph) Invalid() error { return g.invalid }

// Output returns the committed value of an output pin.
func (g *Graph) Output(ref OutputRef) (any, bool) {
	if _, err := g.outputSpec(ref); err != nil {
		return nil, false
	}
	return g.slots[ref.Node].values[ref.Pin], true
}

// ExitValue returns the exit value of the last successful evaluation.
func (g *Graph) ExitValue() (any, bool) {
	return g.lastGood, g.hasGood
}

// Run evaluates when needed and returns the last good exit value together
// with the current evaluation error, if any.
func (g *Graph) Run(ctx *Context) (any, error) {
	if !g.hasExit {
		return nil, ErrNoExit
	}
	var err error
	if g.NeedsEvaluation(ctx) {
		err = g.Evaluate(ctx)
	} else {
		err = g.invalid
	}
	v, ok := g.ExitValue()
	if !ok && err == nil {
		err = ErrNoExit
	}
	return v, err
}
