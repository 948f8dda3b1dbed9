// Package graph implements the typed dataflow graphs behind data bindings
// and graph operands of conditions. Nodes live in an arena addressed by
// stable integer ids; links run from one output pin to one input pin and
// must keep the graph acyclic.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/value"
)

var (
	ErrUnknownNode      = errors.New("unknown node")
	ErrUnknownPin       = errors.New("unknown pin")
	ErrInputOccupied    = errors.New("input already has a link")
	ErrTypeMismatch     = errors.New("pin types are not compatible")
	ErrCycle            = errors.New("link would create a cycle")
	ErrUnconnectedInput = errors.New("required input is not connected")
	ErrNoExit           = errors.New("graph has no exit")
	ErrNonFinite        = errors.New("output is not a finite number")
)

// NodeID is a stable arena index. Ids are never reused within a graph.
type NodeID int

// PinSpec declares one input or output of a node.
type PinSpec struct {
	Name     string
	Kind     value.Kind
	Required bool
}

// Node is one unit of computation. Evaluate reads in (one entry per input
// pin, already coerced to the pin kind) and fills out (one entry per output
// pin). It must not touch anything outside its arguments.
type Node interface {
	Type() string
	Inputs() []PinSpec
	Outputs() []PinSpec
	Evaluate(ctx *Context, in, out []any) error
}

// TimeDependent nodes force evaluation on every tick.
type TimeDependent interface {
	TimeDependent() bool
}

// Configurer nodes carry configuration that is stored with the graph.
type Configurer interface {
	Config() any
}

// Context is what a node may observe while evaluating.
type Context struct {
	State        state.Provider
	StateVersion uint64
	Time         time.Duration
	Delta        time.Duration
}

// OutputRef addresses an output pin.
type OutputRef struct {
	Node NodeID
	Pin  int
}

// InputRef addresses an input pin.
type InputRef struct {
	Node NodeID
	Pin  int
}

// Link connects an output pin to an input pin.
type Link struct {
	From OutputRef
	To   InputRef
}

// NodeError reports which node failed and why.
type NodeError struct {
	Node NodeID
	Type string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d (%s): %v", e.Node, e.Type, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

type slot struct {
	node    Node
	inputs  []PinSpec
	outputs []PinSpec
	static  []any
	values  []any
}

// Graph is a node arena plus its links. A Graph is not safe for concurrent
// use; the runtime serializes edits against evaluation.
type Graph struct {
	slots   []*slot
	links   map[InputRef]OutputRef
	exit    OutputRef
	hasExit bool

	generation uint64
	order      []NodeID
	orderGen   uint64
	orderErr   error
	ordered    bool

	evaluated bool
	evalGen   uint64
	evalState uint64
	invalid   error
	lastGood  any
	hasGood   bool
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{links: make(map[InputRef]OutputRef)}
}

// Generation increments on every structural edit.
func (g *Graph) Generation() uint64 { return g.generation }

func (g *Graph) touch() {
	g.generation++
}

// AddNode places n in the arena.
func (g *Graph) AddNode(n Node) NodeID {
	s := &slot{node: n, inputs: n.Inputs(), outputs: n.Outputs()}
	s.static = make([]any, len(s.inputs))
	s.values = make([]any, len(s.outputs))
	for i, p := range s.outputs {
		s.values[i] = value.Zero(p.Kind)
	}
	g.slots = append(g.slots, s)
	g.touch()
	return NodeID(len(g.slots) - 1)
}

// RemoveNode deletes a node and every link touching it.
func (g *Graph) RemoveNode(id NodeID) error {
	if _, err := g.slot(id); err != nil {
		return err
	}
	for to, from := range g.links {
		if to.Node == id || from.Node == id {
			delete(g.links, to)
		}
	}
	if g.hasExit && g.exit.Node == id {
		g.hasExit = false
	}
	g.slots[id] = nil
	g.touch()
	return nil
}

// Node returns the node stored at id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	s, err := g.slot(id)
	if err != nil {
		return nil, false
	}
	return s.node, true
}

// Nodes lists live node ids in ascending order.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, 0, len(g.slots))
	for i, s := range g.slots {
		if s != nil {
			out = append(out, NodeID(i))
		}
	}
	return out
}

func (g *Graph) slot(id NodeID) (*slot, error) {
	if id < 0 || int(id) >= len(g.slots) || g.slots[id] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return g.slots[id], nil
}

func (g *Graph) outputSpec(ref OutputRef) (PinSpec, error) {
	s, err := g.slot(ref.Node)
	if err != nil {
		return PinSpec{}, err
	}
	if ref.Pin < 0 || ref.Pin >= len(s.outputs) {
		return PinSpec{}, fmt.Errorf("%w: output %d of node %d", ErrUnknownPin, ref.Pin, ref.Node)
	}
	return s.outputs[ref.Pin], nil
}

func (g *Graph) inputSpec(ref InputRef) (PinSpec, error) {
	s, err := g.slot(ref.Node)
	if err != nil {
		return PinSpec{}, err
	}
	if ref.Pin < 0 || ref.Pin >= len(s.inputs) {
		return PinSpec{}, fmt.Errorf("%w: input %d of node %d", ErrUnknownPin, ref.Pin, ref.Node)
	}
	return s.inputs[ref.Pin], nil
}

// InputPin resolves an input pin by name.
func (g *Graph) InputPin(id NodeID, name string) (InputRef, error) {
	s, err := g.slot(id)
	if err != nil {
		return InputRef{}, err
	}
	for i, p := range s.inputs {
		if p.Name == name {
			return InputRef{Node: id, Pin: i}, nil
		}
	}
	return InputRef{}, fmt.Errorf("%w: input %q of node %d", ErrUnknownPin, name, id)
}

// OutputPin resolves an output pin by name.
func (g *Graph) OutputPin(id NodeID, name string) (OutputRef, error) {
	s, err := g.slot(id)
	if err != nil {
		return OutputRef{}, err
	}
	for i, p := range s.outputs {
		if p.Name == name {
			return OutputRef{Node: id, Pin: i}, nil
		}
	}
	return OutputRef{}, fmt.Errorf("%w: output %q of node %d", ErrUnknownPin, name, id)
}

// Connect links from to to. The graph is unchanged when an error is
// returned.
func (g *Graph) Connect(from OutputRef, to InputRef) error {
	out, err := g.outputSpec(from)
	if err != nil {
		return err
	}
	in, err := g.inputSpec(to)
	if err != nil {
		return err
	}
	if _, ok := g.links[to]; ok {
		return fmt.Errorf("%w: input %d of node %d", ErrInputOccupied, to.Pin, to.Node)
	}
	if !value.CanCoerce(out.Kind, in.Kind) {
		return fmt.Errorf("%w: %s -> %s", ErrTypeMismatch, out.Kind, in.Kind)
	}
	if from.Node == to.Node || g.reaches(to.Node, from.Node) {
		return fmt.Errorf("%w: node %d -> node %d", ErrCycle, from.Node, to.Node)
	}
	g.links[to] = from
	g.touch()
	return nil
}

// reaches reports whether dst is downstream of src.
func (g *Graph) reaches(src, dst NodeID) bool {
	next := g.successors()
	seen := map[NodeID]bool{src: true}
	stack := []NodeID{src}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == dst {
			return true
		}
		for _, m := range next[n] {
			if !seen[m] {
				seen[m] = true
				stack = append(stack, m)
			}
		}
	}
	return false
}

func (g *Graph) successors() map[NodeID][]NodeID {
	next := make(map[NodeID][]NodeID)
	for to, from := range g.links {
		next[from.Node] = append(next[from.Node], to.Node)
	}
	return next
}

// Disconnect removes the link feeding to.
func (g *Graph) Disconnect(to InputRef) error {
	if _, err := g.inputSpec(to); err != nil {
		return err
	}
	if _, ok := g.links[to]; !ok {
		return nil
	}
	delete(g.links, to)
	g.touch()
	return nil
}

// LinkTo returns the output feeding to.
func (g *Graph) LinkTo(to InputRef) (OutputRef, bool) {
	from, ok := g.links[to]
	return from, ok
}

// Links returns every link ordered by destination.
func (g *Graph) Links() []Link {
	out := make([]Link, 0, len(g.links))
	for to, from := range g.links {
		out = append(out, Link{From: from, To: to})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].To.Node != out[j].To.Node {
			return out[i].To.Node < out[j].To.Node
		}
		return out[i].To.Pin < out[j].To.Pin
	})
	return out
}

// SetStatic stores the value an unlinked input reads. nil clears it.
func (g *Graph) SetStatic(to InputRef, v any) error {
	spec, err := g.inputSpec(to)
	if err != nil {
		return err
	}
	if v != nil {
		cv, ok := value.Coerce(v, spec.Kind)
		if !ok {
			return fmt.Errorf("%w: %v for input %q", value.ErrKindMismatch, v, spec.Name)
		}
		v = cv
	}
	g.slots[to.Node].static[to.Pin] = v
	g.touch()
	return nil
}

// Static returns the stored value of an input.
func (g *Graph) Static(to InputRef) (any, bool) {
	if _, err := g.inputSpec(to); err != nil {
		return nil, false
	}
	v := g.slots[to.Node].static[to.Pin]
	return v, v != nil
}

// SetExit designates the output whose value the graph produces.
func (g *Graph) SetExit(ref OutputRef) error {
	if _, err := g.outputSpec(ref); err != nil {
		return err
	}
	g.exit = ref
	g.hasExit = true
	g.touch()
	return nil
}

// Exit returns the designated output.
func (g *Graph) Exit() (OutputRef, bool) { return g.exit, g.hasExit }

// ExitKind is the declared kind of the exit pin.
func (g *Graph) ExitKind() (value.Kind, bool) {
	if !g.hasExit {
		return "", false
	}
	spec, err := g.outputSpec(g.exit)
	if err != nil {
		return "", false
	}
	return spec.Kind, true
}
