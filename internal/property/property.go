// Package property implements animated parameters: a typed value container
// with an optional keyframe track and data bindings layered on top.
package property

import (
	"errors"
	"fmt"
	"time"

	"github.com/AaronLay10/SentientFX/internal/binding"
	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/timeline"
	"github.com/AaronLay10/SentientFX/internal/value"
)

var (
	ErrAlreadyBound = errors.New("target already has a binding")
	ErrNotBound     = errors.New("target has no binding")
)

// Parameter is one animated value of an entity.
type Parameter struct {
	ID     string
	Entity string

	container        *value.Container
	track            *timeline.Track
	keyframesEnabled bool
	bindings         map[string]*binding.Binding
}

// New declares a parameter of kind k. Kinds without an interpolation
// strategy are rejected here.
func New(id, entity string, k value.Kind, def any) (*Parameter, error) {
	c, err := value.NewContainer(k, def)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", id, err)
	}
	tr, err := timeline.NewTrack(k)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", id, err)
	}
	return &Parameter{
		ID:        id,
		Entity:    entity,
		container: c,
		track:     tr,
		bindings:  make(map[string]*binding.Binding),
	}, nil
}

func (p *Parameter) Kind() value.Kind       { return p.container.Kind() }
func (p *Parameter) Default() any           { return p.container.Default() }
func (p *Parameter) Base() any              { return p.container.Base() }
func (p *Parameter) Current() any           { return p.container.Current() }
func (p *Parameter) Track() *timeline.Track { return p.track }
func (p *Parameter) KeyframesEnabled() bool { return p.keyframesEnabled }
func (p *Parameter) SetBase(v any) error    { return p.container.SetBase(v) }

// AddKeyframe inserts k into the track.
func (p *Parameter) AddKeyframe(k timeline.Keyframe) error {
	return p.track.Add(k)
}

// SetKeyframesEnabled switches between the keyframe track and the base
// value. Turning keyframes off on a bound parameter keeps the last
// resolved value as the new base.
func (p *Parameter) SetKeyframesEnabled(enabled bool) error {
	if p.keyframesEnabled == enabled {
		return nil
	}
	if !enabled && len(p.bindings) > 0 {
		if err := p.container.SetBase(p.container.Current()); err != nil {
			return err
		}
	}
	p.keyframesEnabled = enabled
	return nil
}

// Bind attaches a new, disabled binding to target.
func (p *Parameter) Bind(target string) (*binding.Binding, error) {
	if _, ok := p.bindings[target]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyBound, target)
	}
	b, err := binding.New(p.Kind(), target)
	if err != nil {
		return nil, err
	}
	p.bindings[target] = b
	return b, nil
}

// Attach installs an already built binding.
func (p *Parameter) Attach(b *binding.Binding) error {
	if _, ok := p.bindings[b.Target]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyBound, b.Target)
	}
	if _, err := binding.TargetKind(p.Kind(), b.Target); err != nil {
		return err
	}
	p.bindings[b.Target] = b
	return nil
}

// Unbind removes the binding on target.
func (p *Parameter) Unbind(target string) error {
	if _, ok := p.bindings[target]; !ok {
		return fmt.Errorf("%w: %q", ErrNotBound, target)
	}
	delete(p.bindings, target)
	return nil
}

// Binding returns the binding on target.
func (p *Parameter) Binding(target string) (*binding.Binding, bool) {
	b, ok := p.bindings[target]
	return b, ok
}

// Bindings returns the bindings in application order: the whole-value
// binding first, then sub-properties in declaration order.
func (p *Parameter) Bindings() []*binding.Binding {
	out := make([]*binding.Binding, 0, len(p.bindings))
	if b, ok := p.bindings[""]; ok {
		out = append(out, b)
	}
	for _, c := range value.Components(p.Kind()) {
		if b, ok := p.bindings[c]; ok {
			out = append(out, b)
		}
	}
	return out
}

// EnableBinding turns on the binding for target. The first time a binding
// is enabled on a parameter without keyframes, a keyframe holding the
// current value is placed at mainTime and keyframes are turned on, so
// disabling the binding later continues from where it was.
func (p *Parameter) EnableBinding(target string, mainTime time.Duration) error {
	b, ok := p.bindings[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotBound, target)
	}
	if b.Enable() && p.track.Len() == 0 {
		if mainTime < 0 {
			mainTime = 0
		}
		if err := p.track.Add(timeline.Keyframe{Position: mainTime, Value: p.container.Current()}); err != nil {
			return err
		}
		p.keyframesEnabled = true
	}
	return nil
}

// DisableBinding turns off the binding for target.
func (p *Parameter) DisableBinding(target string) error {
	b, ok := p.bindings[target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotBound, target)
	}
	b.Disable()
	return nil
}

// Resolve computes the value for this frame: the keyframe value at
// mainTime (or the base value), overridden by any active bindings. The
// result is stored as the current value. Binding failures fall back to
// their last good value and are returned joined.
func (p *Parameter) Resolve(ctx *graph.Context, mainTime time.Duration) (any, error) {
	v := p.container.Base()
	if p.keyframesEnabled {
		if kv, ok := p.track.Interpolate(mainTime); ok {
			v = kv
		}
	}
	var errs []error
	for _, b := range p.Bindings() {
		nv, err := b.Apply(ctx, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("binding %q: %w", b.Target, err))
		}
		v = nv
	}
	if err := p.container.SetCurrent(v); err != nil {
		errs = append(errs, err)
	}
	return p.container.Current(), errors.Join(errs...)
}
