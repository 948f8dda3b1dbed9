package value

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// ErrUnregisteredKind is returned when no interpolation strategy exists for a kind.
var ErrUnregisteredKind = errors.New("no interpolation strategy registered for kind")

// Strategy blends two values of one kind. Lerp receives eased progress,
// which may leave [0,1] for overshooting easings.
type Strategy interface {
	Lerp(a, b any, t float64) any
	// Discrete strategies hold a until t reaches 1.
	Discrete() bool
}

// Registry maps kinds to their interpolation strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[Kind]Strategy
}

// NewRegistry returns a registry populated with the builtin strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[Kind]Strategy)}
	r.Register(KindFloat, floatStrategy{})
	r.Register(KindInt, intStrategy{})
	r.Register(KindColor, colorStrategy{})
	r.Register(KindVector2, vectorStrategy{})
	r.Register(KindRect, rectStrategy{})
	r.Register(KindBool, StepStrategy{})
	r.Register(KindString, StepStrategy{})
	r.Register(KindEnum, StepStrategy{})
	return r
}

// Register installs or replaces the strategy for k.
func (r *Registry) Register(k Kind, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[k] = s
}

// Lookup returns the strategy for k.
func (r *Registry) Lookup(k Kind) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredKind, k)
	}
	return s, nil
}

var defaultRegistry = NewRegistry()

// Register installs a strategy in the process-wide registry.
func Register(k Kind, s Strategy) { defaultRegistry.Register(k, s) }

// Lookup resolves a strategy from the process-wide registry.
func Lookup(k Kind) (Strategy, error) { return defaultRegistry.Lookup(k) }

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

type floatStrategy struct{}

func (floatStrategy) Discrete() bool { return false }

func (floatStrategy) Lerp(a, b any, t float64) any {
	fa, _ := ToFloat(a)
	fb, _ := ToFloat(b)
	return lerp(fa, fb, t)
}

type intStrategy struct{}

func (intStrategy) Discrete() bool { return false }

func (intStrategy) Lerp(a, b any, t float64) any {
	fa, _ := ToFloat(a)
	fb, _ := ToFloat(b)
	return int(math.Round(lerp(fa, fb, t)))
}

// colorStrategy blends in sRGB, channel by channel, with alpha blended linearly.
type colorStrategy struct{}

func (colorStrategy) Discrete() bool { return false }

func (colorStrategy) Lerp(a, b any, t float64) any {
	ca, _ := a.(Color)
	cb, _ := b.(Color)
	return ColorFrom(ca.RGB().BlendRgb(cb.RGB(), t), lerp(ca.A, cb.A, t))
}

type vectorStrategy struct{}

func (vectorStrategy) Discrete() bool { return false }

func (vectorStrategy) Lerp(a, b any, t float64) any {
	va, _ := a.(Vector2)
	vb, _ := b.(Vector2)
	return Vector2{X: lerp(va.X, vb.X, t), Y: lerp(va.Y, vb.Y, t)}
}

type rectStrategy struct{}

func (rectStrategy) Discrete() bool { return false }

func (rectStrategy) Lerp(a, b any, t float64) any {
	ra, _ := a.(Rect)
	rb, _ := b.(Rect)
	return Rect{
		X:      lerp(ra.X, rb.X, t),
		Y:      lerp(ra.Y, rb.Y, t),
		Width:  lerp(ra.Width, rb.Width, t),
		Height: lerp(ra.Height, rb.Height, t),
	}
}

// StepStrategy is used by kinds that cannot blend.
type StepStrategy struct{}

func (StepStrategy) Discrete() bool { return true }

func (StepStrategy) Lerp(a, b any, t float64) any {
	if t >= 1 {
		return b
	}
	return a
}
