package condition

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/state"
	"github.com/AaronLay10/SentientFX/internal/value"
)

func pred(t *testing.T, left, op string, right Operand) *Predicate {
	t.Helper()
	p, err := NewPredicate(left, op, right)
	require.NoError(t, err)
	return p
}

func TestEvaluateNode_AgeRange(t *testing.T) {
	g := NewGroup(And,
		pred(t, "age", "greater_than", Static{Value: 18}),
		pred(t, "age", "less_than", Static{Value: 65}),
	)
	assert.False(t, EvaluateNode(g, state.Map{"age": 70}))
	assert.True(t, EvaluateNode(g, state.Map{"age": 30}))
	assert.False(t, EvaluateNode(g, state.Map{}))
}

func TestEvaluateNode_EmptyGroups(t *testing.T) {
	s := state.Map{}
	assert.True(t, EvaluateNode(NewGroup(And), s))
	assert.False(t, EvaluateNode(NewGroup(Or), s))
	assert.True(t, EvaluateNode(NewGroup(AndNot), s))
	assert.False(t, EvaluateNode(NewGroup(OrNot), s))
}

func TestGroupOperators(t *testing.T) {
	yes := pred(t, "flag", "equals", Static{Value: true})
	no := pred(t, "flag", "equals", Static{Value: false})
	s := state.Map{"flag": true}

	tests := []struct {
		op   BoolOp
		kids []Node
		want bool
	}{
		{And, []Node{yes, yes}, true},
		{And, []Node{yes, no}, false},
		{Or, []Node{no, yes}, true},
		{Or, []Node{no, no}, false},
		{AndNot, []Node{no, no}, true},
		{AndNot, []Node{no, yes}, false},
		{OrNot, []Node{yes, no}, true},
		{OrNot, []Node{yes, yes}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EvaluateNode(NewGroup(tt.op, tt.kids...), s), "%s", tt.op)
	}
}

func TestPredicate_FailsSoft(t *testing.T) {
	s := state.Map{"name": "lobby", "count": 3, "color": value.Color{R: 1, A: 1}}

	assert.False(t, EvaluateNode(pred(t, "missing", "equals", Static{Value: 1}), s))
	assert.False(t, EvaluateNode(pred(t, "count", "equals", Path{Path: "missing"}), s))
	assert.False(t, EvaluateNode(pred(t, "color", "greater_than", Static{Value: 1}), s))
	assert.False(t, EvaluateNode(pred(t, "count", "contains", Static{Value: "3"}), s))
	assert.False(t, EvaluateNode(pred(t, "count", "not_equals", Static{Value: value.Color{}}), s))
	assert.False(t, EvaluateNode(pred(t, "name", "matches", Static{Value: "("}), s))
	assert.False(t, EvaluateNode(pred(t, "count", "equals", nil), s))
}

func TestPredicate_MatchesPatternFromState(t *testing.T) {
	p := pred(t, "name", "matches", Path{Path: "pattern"})
	other := pred(t, "name", "matches", Static{Value: "^stage"})

	s := state.Map{"name": "lobby-2", "pattern": `^lobby-\d$`}
	assert.True(t, EvaluateNode(p, s))

	s["pattern"] = "^stage"
	assert.False(t, EvaluateNode(p, s), "a changed pattern is recompiled")

	s["name"] = "stage left"
	assert.True(t, EvaluateNode(p, s))
	assert.True(t, EvaluateNode(other, s))

	s["pattern"] = "("
	assert.False(t, EvaluateNode(p, s))
	assert.True(t, EvaluateNode(other, s), "predicates keep their own pattern")
}

func TestPredicate_Operators(t *testing.T) {
	s := state.Map{
		"name":  "Main Lobby",
		"count": 3,
		"limit": 3.0,
		"mode":  value.Enum("party"),
		"door":  nil,
		"tint":  value.Color{R: 1, A: 1},
	}
	tests := []struct {
		left, op string
		right    Operand
		want     bool
	}{
		{"count", "equals", Path{Path: "limit"}, true},
		{"count", "not_equals", Static{Value: 4}, true},
		{"count", "greater_or_equal", Static{Value: 3}, true},
		{"count", "less_or_equal", Static{Value: 2.5}, false},
		{"name", "equals", Static{Value: "Main Lobby"}, true},
		{"name", "contains", Static{Value: "lobby"}, true},
		{"name", "not_contains", Static{Value: "stage"}, true},
		{"name", "starts_with", Static{Value: "main"}, true},
		{"name", "ends_with", Static{Value: "hall"}, false},
		{"name", "matches", Static{Value: `^Main\s+\w+$`}, true},
		{"name", "less_than", Static{Value: "Zebra"}, true},
		{"mode", "equals", Static{Value: "party"}, true},
		{"mode", "starts_with", Static{Value: "PAR"}, true},
		{"tint", "equals", Static{Value: "#ff0000"}, true},
		{"door", "is_null", nil, true},
		{"absent", "is_null", nil, true},
		{"name", "is_null", nil, false},
		{"name", "is_not_null", nil, true},
		{"door", "is_not_null", nil, false},
	}
	for _, tt := range tests {
		got := EvaluateNode(pred(t, tt.left, tt.op, tt.right), s)
		assert.Equal(t, tt.want, got, "%s %s %v", tt.left, tt.op, tt.right)
	}
}

func TestPredicate_UnknownOperator(t *testing.T) {
	_, err := NewPredicate("x", "approximately", Static{Value: 1})
	assert.True(t, errors.Is(err, ErrUnknownOperator))
}

func TestGraphOperand(t *testing.T) {
	g := graph.New()
	p := g.AddNode(&graph.StatePathNode{Path: "base", Kind: value.KindFloat})
	mul := g.AddNode(&graph.ArithmeticNode{Op: graph.TypeMultiply})
	from, _ := g.OutputPin(p, "value")
	a, _ := g.InputPin(mul, "a")
	b, _ := g.InputPin(mul, "b")
	require.NoError(t, g.Connect(from, a))
	require.NoError(t, g.SetStatic(b, 2.0))
	res, _ := g.OutputPin(mul, "result")
	require.NoError(t, g.SetExit(res))

	n := pred(t, "level", "greater_than", Graph{Graph: g})
	assert.True(t, EvaluateNode(n, state.Map{"base": 4, "level": 9}))

	empty := graph.New()
	assert.False(t, EvaluateNode(pred(t, "level", "equals", Graph{Graph: empty}), state.Map{"level": 0}))
}

func TestStoreProvider(t *testing.T) {
	s := state.NewStore()
	require.NoError(t, s.Set("room.people", 12))
	n := NewGroup(Or,
		pred(t, "room.people", "greater_than", Static{Value: 10}),
		pred(t, "room.closed", "equals", Static{Value: true}),
	)
	assert.True(t, EvaluateNode(n, s.Snapshot()))
}

func TestDocument_RoundTrip(t *testing.T) {
	raw := []byte(`{
		"type": "group", "op": "or",
		"children": [
			{"type": "predicate", "left": "age", "operator": "greater_than", "right": {"static": 18}},
			{"type": "group", "op": "and_not", "children": [
				{"type": "predicate", "left": "name", "operator": "equals", "right": {"path": "other"}}
			]},
			{"type": "predicate", "left": "age", "operator": "less_than", "right": {"graph": {
				"nodes": [{"id": 1, "type": "static", "config": {"kind": "float", "value": 5}}],
				"exit": {"node": 1, "pin": "value"}
			}}},
			{"type": "predicate", "left": "gone", "operator": "is_null"}
		]
	}`)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	tree, dropped, err := Import(doc)
	require.NoError(t, err)
	assert.Empty(t, dropped)

	out, err := Export(tree)
	require.NoError(t, err)
	tree2, _, err := Import(out)
	require.NoError(t, err)

	states := []state.Map{
		{"age": 20},
		{"age": 3, "name": "a", "other": "a", "gone": 1},
		{"age": 10, "name": "a", "other": "b", "gone": 1},
		{"age": 3, "name": "a", "other": "a"},
	}
	for _, s := range states {
		assert.Equal(t, EvaluateNode(tree, s), EvaluateNode(tree2, s), "%v", s)
	}
	assert.True(t, EvaluateNode(tree, states[0]))
	assert.True(t, EvaluateNode(tree, states[1]))
	assert.True(t, EvaluateNode(tree, states[2]))
}

func TestImport_Rejects(t *testing.T) {
	_, _, err := Import(Document{Type: "group", Op: "xor"})
	assert.True(t, errors.Is(err, ErrUnknownBoolOp))
	_, _, err = Import(Document{Type: "leaf"})
	assert.True(t, errors.Is(err, ErrMalformed))
	_, _, err = Import(Document{Type: "predicate", Left: "a", Operator: "equals", Right: &OperandDocument{}})
	assert.True(t, errors.Is(err, ErrMalformed))
}
