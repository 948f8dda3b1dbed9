package value

import (
	"errors"
	"fmt"
)

// ErrUnknownComponent is returned for a sub-property a kind does not have.
var ErrUnknownComponent = errors.New("unknown component")

var components = map[Kind][]string{
	KindColor:   {"r", "g", "b", "a"},
	KindVector2: {"x", "y"},
	KindRect:    {"x", "y", "width", "height"},
}

// Components lists the bindable float sub-properties of kind k.
func Components(k Kind) []string {
	return append([]string(nil), components[k]...)
}

// HasComponent reports whether k has a sub-property named name.
func HasComponent(k Kind, name string) bool {
	for _, c := range components[k] {
		if c == name {
			return true
		}
	}
	return false
}

// Component reads one float sub-property out of v.
func Component(v any, name string) (float64, error) {
	switch x := v.(type) {
	case Color:
		switch name {
		case "r":
			return x.R, nil
		case "g":
			return x.G, nil
		case "b":
			return x.B, nil
		case "a":
			return x.A, nil
		}
	case Vector2:
		switch name {
		case "x":
			return x.X, nil
		case "y":
			return x.Y, nil
		}
	case Rect:
		switch name {
		case "x":
			return x.X, nil
		case "y":
			return x.Y, nil
		case "width":
			return x.Width, nil
		case "height":
			return x.Height, nil
		}
	}
	return 0, fmt.Errorf("%w: %q on %T", ErrUnknownComponent, name, v)
}

// WithComponent returns a copy of v with one sub-property replaced.
func WithComponent(v any, name string, f float64) (any, error) {
	switch x := v.(type) {
	case Color:
		switch name {
		case "r":
			x.R = clamp01(f)
		case "g":
			x.G = clamp01(f)
		case "b":
			x.B = clamp01(f)
		case "a":
			x.A = clamp01(f)
		default:
			return nil, fmt.Errorf("%w: %q on color", ErrUnknownComponent, name)
		}
		return x, nil
	case Vector2:
		switch name {
		case "x":
			x.X = f
		case "y":
			x.Y = f
		default:
			return nil, fmt.Errorf("%w: %q on vector2", ErrUnknownComponent, name)
		}
		return x, nil
	case Rect:
		switch name {
		case "x":
			x.X = f
		case "y":
			x.Y = f
		case "width":
			x.Width = f
		case "height":
			x.Height = f
		default:
			return nil, fmt.Errorf("%w: %q on rect", ErrUnknownComponent, name)
		}
		return x, nil
	}
	return nil, fmt.Errorf("%w: %q on %T", ErrUnknownComponent, name, v)
}
