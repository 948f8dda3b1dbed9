package timeline

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/AaronLay10/SentientFX/internal/value"
)

var (
	ErrUnordered        = errors.New("keyframes are not ordered by position")
	ErrKeyframeNotFound = errors.New("keyframe not found")
)

// Keyframe is one sample of a track. Easing shapes the approach into this
// keyframe from the previous one.
type Keyframe struct {
	Position time.Duration
	Value    any
	Easing   Easing
}

// Track is the ordered keyframe list of one parameter.
type Track struct {
	kind     value.Kind
	strategy value.Strategy
	keys     []Keyframe
}

// NewTrack creates an empty track for kind k.
func NewTrack(k value.Kind) (*Track, error) {
	s, err := value.Lookup(k)
	if err != nil {
		return nil, err
	}
	return &Track{kind: k, strategy: s}, nil
}

func (tr *Track) Kind() value.Kind { return tr.kind }
func (tr *Track) Len() int         { return len(tr.keys) }

// Keyframes returns a copy of the keyframes in position order.
func (tr *Track) Keyframes() []Keyframe {
	return append([]Keyframe(nil), tr.keys...)
}

// Add inserts k after any keyframes sharing its position, so the most
// recently added one wins at a tie.
func (tr *Track) Add(k Keyframe) error {
	nk, err := tr.check(k)
	if err != nil {
		return err
	}
	i := sort.Search(len(tr.keys), func(i int) bool { return tr.keys[i].Position > nk.Position })
	tr.keys = append(tr.keys, Keyframe{})
	copy(tr.keys[i+1:], tr.keys[i:])
	tr.keys[i] = nk
	return nil
}

// Remove deletes the keyframe at index i.
func (tr *Track) Remove(i int) error {
	if i < 0 || i >= len(tr.keys) {
		return fmt.Errorf("%w: index %d", ErrKeyframeNotFound, i)
	}
	tr.keys = append(tr.keys[:i], tr.keys[i+1:]...)
	return nil
}

// Set replaces all keyframes. The input must already be ordered; nothing
// changes when any keyframe is rejected.
func (tr *Track) Set(keys []Keyframe) error {
	out := make([]Keyframe, 0, len(keys))
	for i, k := range keys {
		nk, err := tr.check(k)
		if err != nil {
			return fmt.Errorf("keyframe %d: %w", i, err)
		}
		if i > 0 && nk.Position < out[i-1].Position {
			return fmt.Errorf("%w: %s after %s", ErrUnordered, nk.Position, out[i-1].Position)
		}
		out = append(out, nk)
	}
	tr.keys = out
	return nil
}

// Clear removes every keyframe.
func (tr *Track) Clear() { tr.keys = nil }

// MaxPosition returns the position of the last keyframe.
func (tr *Track) MaxPosition() (time.Duration, bool) {
	if len(tr.keys) == 0 {
		return 0, false
	}
	return tr.keys[len(tr.keys)-1].Position, true
}

// Interpolate samples the track at local. It reports false on an empty track.
func (tr *Track) Interpolate(local time.Duration) (any, bool) {
	if len(tr.keys) == 0 {
		return nil, false
	}
	return Interpolate(tr.keys, tr.strategy, local), true
}

func (tr *Track) check(k Keyframe) (Keyframe, error) {
	if k.Position < 0 {
		return k, fmt.Errorf("%w: %s", ErrNegativePosition, k.Position)
	}
	e, err := ParseEasing(string(k.Easing))
	if err != nil {
		return k, err
	}
	v, ok := value.Coerce(k.Value, tr.kind)
	if !ok {
		return k, fmt.Errorf("%w: %v for %s", value.ErrKindMismatch, k.Value, tr.kind)
	}
	return Keyframe{Position: k.Position, Value: v, Easing: e}, nil
}

// Interpolate samples ordered keys at local using strategy s. Values at or
// before the first keyframe and at or after the last are clamped, and a
// sample exactly on a keyframe returns that keyframe's value untouched.
func Interpolate(keys []Keyframe, s value.Strategy, local time.Duration) any {
	n := len(keys)
	i := sort.Search(n, func(i int) bool { return keys[i].Position > local })
	if i == 0 {
		return keys[0].Value
	}
	k0 := keys[i-1]
	if i == n || local == k0.Position {
		return k0.Value
	}
	k1 := keys[i]
	t := float64(local-k0.Position) / float64(k1.Position-k0.Position)
	return s.Lerp(k0.Value, k1.Value, k1.Easing.Apply(t))
}
