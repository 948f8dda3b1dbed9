package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var ErrDivideByZero = errors.New("division by zero")

// Builtin node type ids.
const (
	TypeStatic          = "static"
	TypeStatePath       = "state.path"
	TypeTime            = "time"
	TypeAdd             = "math.add"
	TypeSubtract        = "math.subtract"
	TypeMultiply        = "math.multiply"
	TypeDivide          = "math.divide"
	TypeClamp           = "math.clamp"
	TypeLerp            = "math.lerp"
	TypeCompare         = "logic.compare"
	TypeIf              = "logic.if"
	TypeColorMix        = "color.mix"
	TypeColorBrightness = "color.brightness"
	TypeExpression      = "lua.expression"
	TypeExit            = "exit"
)

// StaticNode emits a fixed value.
type StaticNode struct {
	Kind  value.Kind
	Value any
}

type staticConfig struct {
	Kind  value.Kind      `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewStatic creates a static node, coercing v to k.
func NewStatic(k value.Kind, v any) (*StaticNode, error) {
	if v == nil {
		v = value.Zero(k)
	}
	cv, ok := value.Coerce(v, k)
	if !ok {
		return nil, fmt.Errorf("%w: %v for %s", value.ErrKindMismatch, v, k)
	}
	return &StaticNode{Kind: k, Value: cv}, nil
}

func (n *StaticNode) Type() string       { return TypeStatic }
func (n *StaticNode) Inputs() []PinSpec  { return nil }
func (n *StaticNode) Outputs() []PinSpec { return []PinSpec{{Name: "value", Kind: n.Kind}} }

func (n *StaticNode) Config() any {
	raw, _ := value.Encode(n.Kind, n.Value)
	return staticConfig{Kind: n.Kind, Value: raw}
}

func (n *StaticNode) Evaluate(_ *Context, _, out []any) error {
	out[0] = n.Value
	return nil
}

// StatePathNode reads one path from external state. An absent path yields
// the zero value of Kind and found=false.
type StatePathNode struct {
	Path string     `json:"path"`
	Kind value.Kind `json:"kind"`
}

func (n *StatePathNode) Type() string      { return TypeStatePath }
func (n *StatePathNode) Config() any       { return n }
func (n *StatePathNode) Inputs() []PinSpec { return nil }
func (n *StatePathNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "value", Kind: n.Kind}, {Name: "found", Kind: value.KindBool}}
}

func (n *StatePathNode) Evaluate(ctx *Context, _, out []any) error {
	out[0], out[1] = value.Zero(n.Kind), false
	if ctx.State == nil {
		return nil
	}
	_, v, ok := ctx.State.ResolvePath(n.Path)
	if !ok {
		return nil
	}
	if cv, ok := value.Coerce(v, n.Kind); ok && cv != nil {
		out[0], out[1] = cv, true
	}
	return nil
}

// TimeNode emits the playback time in seconds.
type TimeNode struct{}

func (TimeNode) Type() string        { return TypeTime }
func (TimeNode) Inputs() []PinSpec   { return nil }
func (TimeNode) TimeDependent() bool { return true }
func (TimeNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "seconds", Kind: value.KindFloat}, {Name: "delta", Kind: value.KindFloat}}
}

func (TimeNode) Evaluate(ctx *Context, _, out []any) error {
	out[0] = ctx.Time.Seconds()
	out[1] = ctx.Delta.Seconds()
	return nil
}

// ArithmeticNode applies a binary float operation.
type ArithmeticNode struct {
	Op string
}

func (n *ArithmeticNode) Type() string { return n.Op }
func (n *ArithmeticNode) Inputs() []PinSpec {
	return []PinSpec{{Name: "a", Kind: value.KindFloat}, {Name: "b", Kind: value.KindFloat}}
}
func (n *ArithmeticNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "result", Kind: value.KindFloat}}
}

func (n *ArithmeticNode) Evaluate(_ *Context, in, out []any) error {
	a, b := in[0].(float64), in[1].(float64)
	switch n.Op {
	case TypeAdd:
		out[0] = a + b
	case TypeSubtract:
		out[0] = a - b
	case TypeMultiply:
		out[0] = a * b
	case TypeDivide:
		if b == 0 {
			return ErrDivideByZero
		}
		out[0] = a / b
	default:
		return fmt.Errorf("unknown arithmetic op %q", n.Op)
	}
	return nil
}

// ClampNode limits value to [min, max].
type ClampNode struct{}

func (ClampNode) Type() string { return TypeClamp }
func (ClampNode) Inputs() []PinSpec {
	return []PinSpec{
		{Name: "value", Kind: value.KindFloat},
		{Name: "min", Kind: value.KindFloat},
		{Name: "max", Kind: value.KindFloat},
	}
}
func (ClampNode) Outputs() []PinSpec { return []PinSpec{{Name: "result", Kind: value.KindFloat}} }

func (ClampNode) Evaluate(_ *Context, in, out []any) error {
	v, lo, hi := in[0].(float64), in[1].(float64), in[2].(float64)
	if lo > hi {
		lo, hi = hi, lo
	}
	out[0] = math.Max(lo, math.Min(hi, v))
	return nil
}

// LerpNode blends a towards b by t.
type LerpNode struct{}

func (LerpNode) Type() string { return TypeLerp }
func (LerpNode) Inputs() []PinSpec {
	return []PinSpec{
		{Name: "a", Kind: value.KindFloat},
		{Name: "b", Kind: value.KindFloat},
		{Name: "t", Kind: value.KindFloat},
	}
}
func (LerpNode) Outputs() []PinSpec { return []PinSpec{{Name: "result", Kind: value.KindFloat}} }

func (LerpNode) Evaluate(_ *Context, in, out []any) error {
	a, b, t := in[0].(float64), in[1].(float64), in[2].(float64)
	out[0] = a + (b-a)*t
	return nil
}

// CompareNode compares two floats with one of <, <=, >, >=, ==, !=.
type CompareNode struct {
	Op string `json:"op"`
}

func (n *CompareNode) Type() string { return TypeCompare }
func (n *CompareNode) Config() any  { return n }
func (n *CompareNode) Inputs() []PinSpec {
	return []PinSpec{{Name: "a", Kind: value.KindFloat}, {Name: "b", Kind: value.KindFloat}}
}
func (n *CompareNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "result", Kind: value.KindBool}}
}

func (n *CompareNode) Evaluate(_ *Context, in, out []any) error {
	a, b := in[0].(float64), in[1].(float64)
	switch n.Op {
	case "<":
		out[0] = a < b
	case "<=":
		out[0] = a <= b
	case ">":
		out[0] = a > b
	case ">=":
		out[0] = a >= b
	case "==":
		out[0] = a == b
	case "!=":
		out[0] = a != b
	default:
		return fmt.Errorf("unknown comparison %q", n.Op)
	}
	return nil
}

// IfNode selects then or else by cond.
type IfNode struct {
	Kind value.Kind `json:"kind"`
}

func (n *IfNode) Type() string { return TypeIf }
func (n *IfNode) Config() any  { return n }
func (n *IfNode) Inputs() []PinSpec {
	return []PinSpec{
		{Name: "cond", Kind: value.KindBool},
		{Name: "then", Kind: n.Kind},
		{Name: "else", Kind: n.Kind},
	}
}
func (n *IfNode) Outputs() []PinSpec { return []PinSpec{{Name: "result", Kind: n.Kind}} }

func (n *IfNode) Evaluate(_ *Context, in, out []any) error {
	if in[0].(bool) {
		out[0] = in[1]
	} else {
		out[0] = in[2]
	}
	return nil
}

// ColorMixNode blends two colors.
type ColorMixNode struct{}

func (ColorMixNode) Type() string { return TypeColorMix }
func (ColorMixNode) Inputs() []PinSpec {
	return []PinSpec{
		{Name: "a", Kind: value.KindColor},
		{Name: "b", Kind: value.KindColor},
		{Name: "t", Kind: value.KindFloat},
	}
}
func (ColorMixNode) Outputs() []PinSpec { return []PinSpec{{Name: "result", Kind: value.KindColor}} }

func (ColorMixNode) Evaluate(_ *Context, in, out []any) error {
	s, err := value.Lookup(value.KindColor)
	if err != nil {
		return err
	}
	out[0] = s.Lerp(in[0], in[1], in[2].(float64))
	return nil
}

// ColorBrightnessNode scales the color channels by factor, keeping alpha.
type ColorBrightnessNode struct{}

func (ColorBrightnessNode) Type() string { return TypeColorBrightness }
func (ColorBrightnessNode) Inputs() []PinSpec {
	return []PinSpec{
		{Name: "color", Kind: value.KindColor, Required: true},
		{Name: "factor", Kind: value.KindFloat},
	}
}
func (ColorBrightnessNode) Outputs() []PinSpec {
	return []PinSpec{{Name: "result", Kind: value.KindColor}}
}

func (ColorBrightnessNode) Evaluate(_ *Context, in, out []any) error {
	c, f := in[0].(value.Color), in[1].(float64)
	rgb := c.RGB()
	rgb.R, rgb.G, rgb.B = rgb.R*f, rgb.G*f, rgb.B*f
	out[0] = value.ColorFrom(rgb, c.A)
	return nil
}

// ExitNode passes its input through. A binding graph designates the exit
// node's output as the graph result.
type ExitNode struct {
	Kind value.Kind `json:"kind"`
}

func (n *ExitNode) Type() string { return TypeExit }
func (n *ExitNode) Config() any  { return n }
func (n *ExitNode) Inputs() []PinSpec {
	return []PinSpec{{Name: "value", Kind: n.Kind, Required: true}}
}
func (n *ExitNode) Outputs() []PinSpec { return []PinSpec{{Name: "value", Kind: n.Kind}} }

func (n *ExitNode) Evaluate(_ *Context, in, out []any) error {
	out[0] = in[0]
	return nil
}
