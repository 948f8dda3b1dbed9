package graph

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Shopify/go-lua"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var (
	ErrExpressionRejected = errors.New("expression uses a disallowed construct")
	ErrExpressionResult   = errors.New("expression did not return a number")
	ErrExpressionBudget   = errors.New("expression exceeded its instruction budget")
)

// Loops and function literals could run unbounded inside a tick.
var disallowed = regexp.MustCompile(`\b(function|while|repeat|for|goto)\b`)

// Base library globals removed from every expression state. They load code
// at run time, touch the filesystem or stdout, or escape metatables and
// error handling.
var unsafeGlobals = []string{
	"load", "loadstring", "dofile", "loadfile", "require", "print",
	"collectgarbage", "rawset", "rawget", "rawequal", "setmetatable",
	"getmetatable", "pcall", "xpcall",
}

// expressionBudget is the number of VM instructions one evaluation may run.
const expressionBudget = 100000

// ExpressionNode evaluates a Lua expression over named float inputs, for
// example "math.sin(t * 2) * 0.5 + 0.5". Only the math library and the
// side-effect free part of the base library are loaded, and each evaluation
// runs under an instruction budget.
type ExpressionNode struct {
	Expr  string   `json:"expr"`
	Names []string `json:"inputs"`

	l      *lua.State
	budget int
}

// NewExpression compiles expr once. Each name becomes a float input and a
// Lua global of the same name.
func NewExpression(expr string, inputs ...string) (*ExpressionNode, error) {
	if disallowed.MatchString(expr) {
		return nil, fmt.Errorf("%w: %q", ErrExpressionRejected, expr)
	}
	l := lua.NewState()
	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)
	for _, name := range unsafeGlobals {
		l.PushNil()
		l.SetGlobal(name)
	}
	if err := lua.LoadString(l, "return ("+expr+")"); err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	// The compiled chunk stays at stack index 1.
	return &ExpressionNode{Expr: expr, Names: inputs, l: l, budget: expressionBudget}, nil
}

func (n *ExpressionNode) Type() string { return TypeExpression }
func (n *ExpressionNode) Config() any  { return n }

func (n *ExpressionNode) Inputs() []PinSpec {
	pins := make([]PinSpec, len(n.Names))
	for i, name := range n.Names {
		pins[i] = PinSpec{Name: name, Kind: value.KindFloat}
	}
	return pins
}

func (n *ExpressionNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "result", Kind: value.KindFloat}}
}

func (n *ExpressionNode) Evaluate(_ *Context, in, out []any) error {
	for i, name := range n.Names {
		n.l.PushNumber(in[i].(float64))
		n.l.SetGlobal(name)
	}
	// The count hook fires once the budget is spent. Setting it again
	// restarts the count for this evaluation.
	exceeded := false
	lua.SetDebugHook(n.l, func(l *lua.State, _ lua.Debug) {
		exceeded = true
		l.PushString(ErrExpressionBudget.Error())
		l.Error()
	}, lua.MaskCount, n.budget)
	n.l.PushValue(1)
	err := n.l.ProtectedCall(0, 1, 0)
	lua.SetDebugHook(n.l, nil, 0, 0)
	if err != nil {
		n.l.SetTop(1)
		if exceeded {
			return fmt.Errorf("run %q: %w", n.Expr, ErrExpressionBudget)
		}
		return fmt.Errorf("run %q: %w", n.Expr, err)
	}
	f, ok := n.l.ToNumber(-1)
	n.l.SetTop(1)
	if !ok {
		return ErrExpressionResult
	}
	out[0] = f
	return nil
}
