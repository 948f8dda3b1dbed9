package binding

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SentientFX/internal/condition"
	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/value"
)

// constant wires a static node into the exit of b.
func constant(t *testing.T, b *Binding, v any) {
	t.Helper()
	n, err := graph.NewStatic(value.KindFloat, v)
	require.NoError(t, err)
	id := b.Graph.AddNode(n)
	exit, ok := b.ExitInput()
	require.True(t, ok)
	require.NoError(t, b.Graph.Connect(graph.OutputRef{Node: id}, exit))
}

func TestApply_ConstantOverridesBase(t *testing.T) {
	b, err := New(value.KindFloat, "")
	require.NoError(t, err)
	constant(t, b, 99.0)

	ctx := &graph.Context{}
	v, err := b.Apply(ctx, 5.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v, "disabled binding leaves the value alone")

	b.Enable()
	for _, kf := range []float64{0, 5, 10} {
		v, err := b.Apply(ctx, kf)
		require.NoError(t, err)
		assert.Equal(t, 99.0, v)
	}
}

func TestApply_ConditionalGate(t *testing.T) {
	b, err := New(value.KindFloat, "")
	require.NoError(t, err)
	constant(t, b, 1.0)
	b.Enable()
	b.Mode = Conditional
	gate, err := condition.NewPredicate("armed", "equals", condition.Static{Value: true})
	require.NoError(t, err)
	b.Gate = gate

	v, _ := b.Apply(&graph.Context{State: state.Map{"armed": false}}, 0.5)
	assert.Equal(t, 0.5, v)
	v, _ = b.Apply(&graph.Context{State: state.Map{"armed": true}}, 0.5)
	assert.Equal(t, 1.0, v)

	b.Gate = nil
	v, _ = b.Apply(&graph.Context{}, 0.5)
	assert.Equal(t, 1.0, v, "conditional without a gate always applies")
}

func TestApply_SubProperty(t *testing.T) {
	b, err := New(value.KindColor, "g")
	require.NoError(t, err)
	assert.Equal(t, value.KindFloat, b.Kind)
	constant(t, b, 0.25)
	b.Enable()

	v, err := b.Apply(&graph.Context{}, value.Color{R: 1, G: 1, B: 1, A: 1})
	require.NoError(t, err)
	assert.Equal(t, value.Color{R: 1, G: 0.25, B: 1, A: 1}, v)

	_, err = New(value.KindFloat, "r")
	assert.True(t, errors.Is(err, ErrBadBindTarget))
}

func TestApply_FailingGraphFallsBack(t *testing.T) {
	b, err := New(value.KindFloat, "")
	require.NoError(t, err)
	b.Enable()

	v, err := b.Apply(&graph.Context{}, 3.0)
	assert.True(t, errors.Is(err, graph.ErrUnconnectedInput))
	assert.Equal(t, 3.0, v, "no good value yet keeps the input")

	constant(t, b, 7.0)
	v, err = b.Apply(&graph.Context{}, 3.0)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	exit, _ := b.ExitInput()
	require.NoError(t, b.Graph.Disconnect(exit))
	v, err = b.Apply(&graph.Context{}, 3.0)
	assert.Error(t, err)
	assert.Equal(t, 7.0, v, "last good value is used")
}

func TestDocument_RoundTrip(t *testing.T) {
	b, err := New(value.KindFloat, "")
	require.NoError(t, err)
	constant(t, b, 42.0)
	b.Enable()
	b.Mode = Conditional
	b.Gate = condition.NewGroup(condition.Or)

	doc, err := Export(b)
	require.NoError(t, err)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var back Document
	require.NoError(t, json.Unmarshal(raw, &back))

	b2, dropped, err := Import(back, value.KindFloat, condition.Importer{})
	require.NoError(t, err)
	assert.Empty(t, dropped)
	assert.True(t, b2.Enabled)
	assert.Equal(t, Conditional, b2.Mode)

	v1, _ := b.Apply(&graph.Context{}, 1.0)
	v2, _ := b2.Apply(&graph.Context{}, 1.0)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1.0, v2, "empty or-gate blocks")

	_, _, err = Import(Document{Mode: "sometimes", Graph: back.Graph}, value.KindFloat, condition.Importer{})
	assert.True(t, errors.Is(err, ErrUnknownMode))

	back.Graph.Exit = nil
	_, _, err = Import(back, value.KindFloat, condition.Importer{})
	assert.True(t, errors.Is(err, graph.ErrNoExit))

	_, _, err = Import(Document{Graph: graph.Document{
		Nodes: []graph.NodeDocument{{ID: 0, Type: graph.TypeStatic, Config: json.RawMessage(`{"kind":"color"}`)}},
		Exit:  &graph.PinDocument{Node: 0, Pin: "value"},
	}}, value.KindFloat, condition.Importer{})
	assert.True(t, errors.Is(err, ErrExitKind))
}
