package timeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tanema/gween/ease"
)

// ErrUnknownEasing is returned for easing ids that are not registered.
var ErrUnknownEasing = errors.New("unknown easing")

// Easing identifies the curve applied to normalized progress between two
// keyframes.
type Easing string

const (
	EasingLinear Easing = "linear"
	// EasingHold keeps the previous keyframe's value until the next one.
	EasingHold Easing = "hold"
)

var easings = map[Easing]ease.TweenFunc{
	"in_quad":        ease.InQuad,
	"out_quad":       ease.OutQuad,
	"in_out_quad":    ease.InOutQuad,
	"in_cubic":       ease.InCubic,
	"out_cubic":      ease.OutCubic,
	"in_out_cubic":   ease.InOutCubic,
	"in_quart":       ease.InQuart,
	"out_quart":      ease.OutQuart,
	"in_out_quart":   ease.InOutQuart,
	"in_sine":        ease.InSine,
	"out_sine":       ease.OutSine,
	"in_out_sine":    ease.InOutSine,
	"in_expo":        ease.InExpo,
	"out_expo":       ease.OutExpo,
	"in_out_expo":    ease.InOutExpo,
	"in_circ":        ease.InCirc,
	"out_circ":       ease.OutCirc,
	"in_out_circ":    ease.InOutCirc,
	"in_back":        ease.InBack,
	"out_back":       ease.OutBack,
	"in_out_back":    ease.InOutBack,
	"in_bounce":      ease.InBounce,
	"out_bounce":     ease.OutBounce,
	"in_out_bounce":  ease.InOutBounce,
	"in_elastic":     ease.InElastic,
	"out_elastic":    ease.OutElastic,
	"in_out_elastic": ease.InOutElastic,
}

// ParseEasing validates an easing id. The empty string means linear.
func ParseEasing(s string) (Easing, error) {
	e := Easing(s)
	if e == "" {
		return EasingLinear, nil
	}
	if !e.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEasing, s)
	}
	return e, nil
}

// Valid reports whether e is a known easing id.
func (e Easing) Valid() bool {
	if e == EasingLinear || e == EasingHold {
		return true
	}
	_, ok := easings[e]
	return ok
}

// Apply remaps t in [0,1]. Unknown ids behave as linear; they are rejected
// when keyframes are added, so this only matters for zero values.
func (e Easing) Apply(t float64) float64 {
	switch e {
	case "", EasingLinear:
		return t
	case EasingHold:
		if t >= 1 {
			return 1
		}
		return 0
	}
	fn, ok := easings[e]
	if !ok {
		return t
	}
	return float64(fn(float32(t), 0, 1, 1))
}

// Easings lists every registered easing id in sorted order.
func Easings() []Easing {
	out := []Easing{EasingLinear, EasingHold}
	for e := range easings {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
