// Package value holds the typed values animated by the engine: the kinds a
// parameter can declare, the interpolation strategy for each kind, and the
// Container that stores a parameter's default, base and current value.
package value

import (
	"fmt"
	"math"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Kind names the declared type of a parameter or pin.
type Kind string

const (
	KindFloat   Kind = "float"
	KindInt     Kind = "int"
	KindBool    Kind = "bool"
	KindString  Kind = "string"
	KindEnum    Kind = "enum"
	KindColor   Kind = "color"
	KindVector2 Kind = "vector2"
	KindRect    Kind = "rect"

	// KindAny is only valid on graph pins and for opaque external state.
	KindAny Kind = "any"
)

// Color is a straight (non-premultiplied) RGBA color with channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// RGB returns the color channels as a colorful.Color.
func (c Color) RGB() colorful.Color {
	return colorful.Color{R: c.R, G: c.G, B: c.B}
}

// ColorFrom builds a Color from a colorful.Color and an alpha.
func ColorFrom(c colorful.Color, alpha float64) Color {
	c = c.Clamped()
	return Color{R: c.R, G: c.G, B: c.B, A: clamp01(alpha)}
}

// Vector2 is a 2D point or size.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Enum is a discrete named value, such as a blend mode.
type Enum string

// KindOf reports the kind of a concrete value.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case float64:
		return KindFloat, true
	case int:
		return KindInt, true
	case bool:
		return KindBool, true
	case string:
		return KindString, true
	case Enum:
		return KindEnum, true
	case Color:
		return KindColor, true
	case Vector2:
		return KindVector2, true
	case Rect:
		return KindRect, true
	}
	return "", false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFloat, KindInt, KindBool, KindString, KindEnum, KindColor, KindVector2, KindRect, KindAny:
		return true
	}
	return false
}

// Numeric reports whether values of k order numerically.
func (k Kind) Numeric() bool {
	return k == KindFloat || k == KindInt
}

// Zero returns the zero value of kind k.
func Zero(k Kind) any {
	switch k {
	case KindFloat:
		return 0.0
	case KindInt:
		return 0
	case KindBool:
		return false
	case KindString:
		return ""
	case KindEnum:
		return Enum("")
	case KindColor:
		return Color{A: 1}
	case KindVector2:
		return Vector2{}
	case KindRect:
		return Rect{}
	}
	return nil
}

// ToFloat converts numeric-like values to float64.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// CanCoerce reports whether a value of kind from can always be converted to
// kind to. It is used to type-check links before they are created.
func CanCoerce(from, to Kind) bool {
	if from == to || to == KindAny || from == KindAny {
		return true
	}
	switch to {
	case KindFloat, KindInt:
		return from == KindFloat || from == KindInt || from == KindBool
	case KindBool:
		return from == KindFloat || from == KindInt
	case KindString:
		return from == KindFloat || from == KindInt || from == KindBool || from == KindEnum
	case KindEnum:
		return from == KindString
	}
	return false
}

// Coerce converts v to kind k. The second result is false when no
// conversion exists for the runtime type of v.
func Coerce(v any, k Kind) (any, bool) {
	if k == KindAny {
		return v, true
	}
	if vk, ok := KindOf(v); ok && vk == k {
		return v, true
	}
	switch k {
	case KindFloat:
		return ToFloat(v)
	case KindInt:
		f, ok := ToFloat(v)
		if !ok {
			return nil, false
		}
		return int(math.Round(f)), true
	case KindBool:
		switch x := v.(type) {
		case string:
			b, err := strconv.ParseBool(x)
			return b, err == nil
		}
		f, ok := ToFloat(v)
		if !ok {
			return nil, false
		}
		return f != 0, true
	case KindString:
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64), true
		case int:
			return strconv.Itoa(x), true
		case bool:
			return strconv.FormatBool(x), true
		case Enum:
			return string(x), true
		}
	case KindEnum:
		if s, ok := v.(string); ok {
			return Enum(s), true
		}
	case KindColor:
		if s, ok := v.(string); ok {
			c, err := ParseColor(s)
			return c, err == nil
		}
	}
	return nil, false
}

// ParseColor parses "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (Color, error) {
	alpha := 1.0
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid alpha in %q: %w", s, err)
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, err
	}
	return ColorFrom(c, alpha), nil
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
