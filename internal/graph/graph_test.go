package graph

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/value"
)

func mustStatic(t *testing.T, g *Graph, k value.Kind, v any) NodeID {
	t.Helper()
	n, err := NewStatic(k, v)
	require.NoError(t, err)
	return g.AddNode(n)
}

func out(t *testing.T, g *Graph, id NodeID, name string) OutputRef {
	t.Helper()
	ref, err := g.OutputPin(id, name)
	require.NoError(t, err)
	return ref
}

func in(t *testing.T, g *Graph, id NodeID, name string) InputRef {
	t.Helper()
	ref, err := g.InputPin(id, name)
	require.NoError(t, err)
	return ref
}

// addGraph builds (a + b) -> exit.
func addGraph(t *testing.T, a, b float64) (*Graph, NodeID) {
	t.Helper()
	g := New()
	na := mustStatic(t, g, value.KindFloat, a)
	nb := mustStatic(t, g, value.KindFloat, b)
	sum := g.AddNode(&ArithmeticNode{Op: TypeAdd})
	exit := g.AddNode(&ExitNode{Kind: value.KindFloat})
	require.NoError(t, g.Connect(out(t, g, na, "value"), in(t, g, sum, "a")))
	require.NoError(t, g.Connect(out(t, g, nb, "value"), in(t, g, sum, "b")))
	require.NoError(t, g.Connect(out(t, g, sum, "result"), in(t, g, exit, "value")))
	require.NoError(t, g.SetExit(out(t, g, exit, "value")))
	return g, sum
}

func TestEvaluate_AddChain(t *testing.T) {
	g, _ := addGraph(t, 2, 3)
	v, err := g.Run(&Context{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
}

func TestConnect_RejectsCycles(t *testing.T) {
	g := New()
	a := g.AddNode(&ArithmeticNode{Op: TypeAdd})
	b := g.AddNode(&ArithmeticNode{Op: TypeAdd})
	c := g.AddNode(&ArithmeticNode{Op: TypeAdd})
	require.NoError(t, g.Connect(out(t, g, a, "result"), in(t, g, b, "a")))
	require.NoError(t, g.Connect(out(t, g, b, "result"), in(t, g, c, "a")))

	gen := g.Generation()
	err := g.Connect(out(t, g, c, "result"), in(t, g, a, "a"))
	assert.True(t, errors.Is(err, ErrCycle))
	err = g.Connect(out(t, g, a, "result"), in(t, g, a, "b"))
	assert.True(t, errors.Is(err, ErrCycle))
	assert.Equal(t, gen, g.Generation(), "rejected edit must not change the graph")

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a, b, c}, order)
}

func TestConnect_Validation(t *testing.T) {
	g := New()
	color := mustStatic(t, g, value.KindColor, value.Color{R: 1, A: 1})
	num := mustStatic(t, g, value.KindFloat, 1.0)
	sum := g.AddNode(&ArithmeticNode{Op: TypeAdd})

	err := g.Connect(out(t, g, color, "value"), in(t, g, sum, "a"))
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	require.NoError(t, g.Connect(out(t, g, num, "value"), in(t, g, sum, "a")))
	err = g.Connect(out(t, g, num, "value"), in(t, g, sum, "a"))
	assert.True(t, errors.Is(err, ErrInputOccupied))

	err = g.Connect(OutputRef{Node: 42}, InputRef{Node: sum})
	assert.True(t, errors.Is(err, ErrUnknownNode))
	err = g.Connect(OutputRef{Node: num, Pin: 3}, InputRef{Node: sum, Pin: 1})
	assert.True(t, errors.Is(err, ErrUnknownPin))
}

func TestOrder_StableTieBreak(t *testing.T) {
	build := func() []NodeID {
		g := New()
		var ids []NodeID
		for i := 0; i < 6; i++ {
			ids = append(ids, mustStatic(t, g, value.KindFloat, float64(i)))
		}
		sum := g.AddNode(&ArithmeticNode{Op: TypeAdd})
		require.NoError(t, g.Connect(out(t, g, ids[5], "value"), in(t, g, sum, "a")))
		require.NoError(t, g.Connect(out(t, g, ids[0], "value"), in(t, g, sum, "b")))
		order, err := g.Order()
		require.NoError(t, err)
		return order
	}
	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
	assert.Equal(t, []NodeID{0, 1, 2, 3, 4, 5, 6}, first)
}

func TestEvaluate_FailureKeepsLastGood(t *testing.T) {
	g := New()
	a := mustStatic(t, g, value.KindFloat, 10.0)
	div := g.AddNode(&ArithmeticNode{Op: TypeDivide})
	exit := g.AddNode(&ExitNode{Kind: value.KindFloat})
	require.NoError(t, g.Connect(out(t, g, a, "value"), in(t, g, div, "a")))
	require.NoError(t, g.SetStatic(in(t, g, div, "b"), 2.0))
	require.NoError(t, g.Connect(out(t, g, div, "result"), in(t, g, exit, "value")))
	require.NoError(t, g.SetExit(out(t, g, exit, "value")))

	v, err := g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	require.NoError(t, g.SetStatic(in(t, g, div, "b"), 0.0))
	v, err = g.Run(nil)
	assert.True(t, errors.Is(err, ErrDivideByZero))
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, div, ne.Node)
	assert.Equal(t, 5.0, v, "last good value survives")
	assert.Error(t, g.Invalid())

	got, _ := g.Output(out(t, g, div, "result"))
	assert.Equal(t, 5.0, got, "outputs are not partially committed")

	require.NoError(t, g.SetStatic(in(t, g, div, "b"), 4.0))
	v, err = g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
	assert.NoError(t, g.Invalid())
}

func TestEvaluate_RequiredInput(t *testing.T) {
	g := New()
	exit := g.AddNode(&ExitNode{Kind: value.KindFloat})
	require.NoError(t, g.SetExit(out(t, g, exit, "value")))

	_, err := g.Run(nil)
	assert.True(t, errors.Is(err, ErrUnconnectedInput))

	require.NoError(t, g.SetStatic(in(t, g, exit, "value"), 7))
	v, err := g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestNeedsEvaluation(t *testing.T) {
	g, sum := addGraph(t, 1, 1)
	ctx := &Context{StateVersion: 1}
	assert.True(t, g.NeedsEvaluation(ctx))
	require.NoError(t, g.Evaluate(ctx))
	assert.False(t, g.NeedsEvaluation(ctx))

	assert.True(t, g.NeedsEvaluation(&Context{StateVersion: 2}))

	require.NoError(t, g.Disconnect(in(t, g, sum, "b")))
	assert.True(t, g.NeedsEvaluation(ctx))
	require.NoError(t, g.Evaluate(ctx))

	g.AddNode(TimeNode{})
	require.NoError(t, g.Evaluate(ctx))
	assert.True(t, g.NeedsEvaluation(ctx), "time-dependent graphs always evaluate")
}

func TestRemoveNode_DropsLinksAndExit(t *testing.T) {
	g, sum := addGraph(t, 1, 2)
	require.NoError(t, g.RemoveNode(sum))
	assert.Empty(t, g.Links())
	_, ok := g.Node(sum)
	assert.False(t, ok)
	assert.True(t, errors.Is(g.RemoveNode(sum), ErrUnknownNode))

	exit, _ := g.Exit()
	require.NoError(t, g.RemoveNode(exit.Node))
	_, err := g.Run(nil)
	assert.True(t, errors.Is(err, ErrNoExit))
}

func TestStatePathAndTimeNodes(t *testing.T) {
	g := New()
	p := g.AddNode(&StatePathNode{Path: "room.level", Kind: value.KindFloat})
	tm := g.AddNode(TimeNode{})
	mul := g.AddNode(&ArithmeticNode{Op: TypeMultiply})
	require.NoError(t, g.Connect(out(t, g, p, "value"), in(t, g, mul, "a")))
	require.NoError(t, g.Connect(out(t, g, tm, "seconds"), in(t, g, mul, "b")))
	require.NoError(t, g.SetExit(out(t, g, mul, "result")))

	v, err := g.Run(&Context{State: state.Map{"room.level": 4}, Time: 1500 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 6.0, v)

	require.NoError(t, g.Evaluate(&Context{State: state.Map{}}))
	found, _ := g.Output(out(t, g, p, "found"))
	assert.Equal(t, false, found)
}

func TestColorNodes(t *testing.T) {
	g := New()
	a := mustStatic(t, g, value.KindColor, value.Color{R: 1, A: 1})
	b := mustStatic(t, g, value.KindColor, value.Color{B: 1, A: 0})
	mix := g.AddNode(ColorMixNode{})
	bright := g.AddNode(ColorBrightnessNode{})
	require.NoError(t, g.Connect(out(t, g, a, "value"), in(t, g, mix, "a")))
	require.NoError(t, g.Connect(out(t, g, b, "value"), in(t, g, mix, "b")))
	require.NoError(t, g.SetStatic(in(t, g, mix, "t"), 0.5))
	require.NoError(t, g.Connect(out(t, g, mix, "result"), in(t, g, bright, "color")))
	require.NoError(t, g.SetStatic(in(t, g, bright, "factor"), 4.0))
	require.NoError(t, g.SetExit(out(t, g, bright, "result")))

	v, err := g.Run(nil)
	require.NoError(t, err)
	c := v.(value.Color)
	assert.InDelta(t, 1.0, c.R, 1e-9)
	assert.InDelta(t, 0.0, c.G, 1e-9)
	assert.InDelta(t, 1.0, c.B, 1e-9)
	assert.InDelta(t, 0.5, c.A, 1e-9)
}

func TestLogicNodes(t *testing.T) {
	g := New()
	x := mustStatic(t, g, value.KindFloat, 3.0)
	cmp := g.AddNode(&CompareNode{Op: ">"})
	sel := g.AddNode(&IfNode{Kind: value.KindString})
	require.NoError(t, g.Connect(out(t, g, x, "value"), in(t, g, cmp, "a")))
	require.NoError(t, g.SetStatic(in(t, g, cmp, "b"), 2.0))
	require.NoError(t, g.Connect(out(t, g, cmp, "result"), in(t, g, sel, "cond")))
	require.NoError(t, g.SetStatic(in(t, g, sel, "then"), "hot"))
	require.NoError(t, g.SetStatic(in(t, g, sel, "else"), "cold"))
	require.NoError(t, g.SetExit(out(t, g, sel, "result")))

	v, err := g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, "hot", v)
}

func TestExpressionNode(t *testing.T) {
	n, err := NewExpression("math.max(a, b) * 2 + 1", "a", "b")
	require.NoError(t, err)
	g := New()
	id := g.AddNode(n)
	require.NoError(t, g.SetStatic(in(t, g, id, "a"), 3.0))
	require.NoError(t, g.SetStatic(in(t, g, id, "b"), 4.0))
	require.NoError(t, g.SetExit(out(t, g, id, "result")))

	v, err := g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	_, err = NewExpression("(function() while true do end end)()")
	assert.True(t, errors.Is(err, ErrExpressionRejected))
	_, err = NewExpression("a +")
	assert.Error(t, err)
}

func TestExpressionNode_NoRuntimeLoading(t *testing.T) {
	for _, expr := range []string{
		`load("wh".."ile true do end return 1")()`,
		`#(dofile("/etc/hostname"))`,
		`loadfile("/etc/hostname")`,
		`pcall(error, 1) and 1`,
		`rawget(math, "pi")`,
	} {
		n, err := NewExpression(expr)
		require.NoError(t, err, expr)

		out := make([]any, 1)
		done := make(chan error, 1)
		go func() { done <- n.Evaluate(&Context{}, nil, out) }()
		select {
		case err := <-done:
			assert.Error(t, err, expr)
			assert.Nil(t, out[0], expr)
		case <-time.After(2 * time.Second):
			t.Fatalf("%s still running", expr)
		}
	}
}

func TestExpressionNode_InstructionBudget(t *testing.T) {
	n, err := NewExpression("x+x+x+x+x+x+x+x+x+x+x+x+x+x+x+x+x+x+x+x", "x")
	require.NoError(t, err)
	n.budget = 5

	out := make([]any, 1)
	err = n.Evaluate(&Context{}, []any{1.0}, out)
	assert.True(t, errors.Is(err, ErrExpressionBudget))

	// The state stays usable after the budget error.
	n.budget = expressionBudget
	require.NoError(t, n.Evaluate(&Context{}, []any{1.0}, out))
	assert.Equal(t, 20.0, out[0])
}

func TestEvaluate_NonFiniteKeepsLastGood(t *testing.T) {
	n, err := NewExpression("x / x", "x")
	require.NoError(t, err)
	g := New()
	id := g.AddNode(n)
	require.NoError(t, g.SetStatic(in(t, g, id, "x"), 2.0))
	require.NoError(t, g.SetExit(out(t, g, id, "result")))

	v, err := g.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	require.NoError(t, g.SetStatic(in(t, g, id, "x"), 0.0))
	v, err = g.Run(nil)
	assert.True(t, errors.Is(err, ErrNonFinite))
	var ne *NodeError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, id, ne.Node)
	assert.Equal(t, 1.0, v)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Contains(t, r.Types(), TypeExpression)

	_, err := r.Create("bogus", nil)
	assert.True(t, errors.Is(err, ErrUnknownNodeType))

	_, err = r.Create(TypeCompare, json.RawMessage(`{"op":"~"}`))
	assert.Error(t, err)

	n, err := r.Create(TypeStatic, json.RawMessage(`{"kind":"color","value":"#ff0000"}`))
	require.NoError(t, err)
	assert.Equal(t, value.Color{R: 1, A: 1}, n.(*StaticNode).Value)
}

func TestDocument_RoundTrip(t *testing.T) {
	g := New()
	p := g.AddNode(&StatePathNode{Path: "sensor", Kind: value.KindFloat})
	expr, err := NewExpression("x * k", "x", "k")
	require.NoError(t, err)
	e := g.AddNode(expr)
	clamp := g.AddNode(ClampNode{})
	exit := g.AddNode(&ExitNode{Kind: value.KindFloat})
	require.NoError(t, g.Connect(out(t, g, p, "value"), in(t, g, e, "x")))
	require.NoError(t, g.SetStatic(in(t, g, e, "k"), 3.0))
	require.NoError(t, g.Connect(out(t, g, e, "result"), in(t, g, clamp, "value")))
	require.NoError(t, g.SetStatic(in(t, g, clamp, "max"), 10.0))
	require.NoError(t, g.Connect(out(t, g, clamp, "result"), in(t, g, exit, "value")))
	require.NoError(t, g.SetExit(out(t, g, exit, "value")))

	doc, err := Export(g)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))
	g2, dropped, err := Import(back, nil)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	for i, sensor := range []float64{-1, 0, 1, 2.5, 4, 100} {
		ctx := &Context{State: state.Map{"sensor": sensor}, StateVersion: uint64(i + 1)}
		a, errA := g.Run(ctx)
		b, errB := g2.Run(ctx)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b, "sensor=%v", sensor)
	}
}

func TestImport_DropsCyclicLinks(t *testing.T) {
	doc := Document{
		Nodes: []NodeDocument{
			{ID: 10, Type: TypeAdd},
			{ID: 20, Type: TypeAdd},
		},
		Links: []LinkDocument{
			{From: PinDocument{Node: 10, Pin: "result"}, To: PinDocument{Node: 20, Pin: "a"}},
			{From: PinDocument{Node: 20, Pin: "result"}, To: PinDocument{Node: 10, Pin: "a"}},
			{From: PinDocument{Node: 10, Pin: "nope"}, To: PinDocument{Node: 20, Pin: "b"}},
		},
		Exit: &PinDocument{Node: 20, Pin: "result"},
	}
	g, dropped, err := Import(doc, nil)
	require.NoError(t, err)
	require.Len(t, dropped, 2)
	assert.True(t, errors.Is(dropped[0], ErrCycle))
	assert.True(t, errors.Is(dropped[1], ErrUnknownPin))
	assert.Len(t, g.Links(), 1)

	_, err = g.Order()
	assert.NoError(t, err)

	_, _, err = Import(Document{Nodes: []NodeDocument{{ID: 1, Type: TypeTime}, {ID: 1, Type: TypeTime}}}, nil)
	assert.True(t, errors.Is(err, ErrDuplicateNode))
}
