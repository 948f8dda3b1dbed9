package value

import (
	"errors"
	"fmt"
)

// ErrKindMismatch is returned when a value cannot be stored under a kind.
var ErrKindMismatch = errors.New("value does not match kind")

// Container stores the default, base and current value of one parameter.
// Values enter through Set* as any and are coerced to the declared kind, so
// everything read back out has the concrete type of that kind.
//
// A Container is not safe for concurrent use; the runtime serializes access.
type Container struct {
	kind     Kind
	strategy Strategy
	def      any
	base     any
	current  any
}

// NewContainer declares a container of kind k. The strategy is resolved
// here so an unknown kind fails at declaration instead of every frame.
func NewContainer(k Kind, def any) (*Container, error) {
	s, err := Lookup(k)
	if err != nil {
		return nil, err
	}
	if def == nil {
		def = Zero(k)
	}
	v, ok := Coerce(def, k)
	if !ok {
		return nil, fmt.Errorf("%w: default %v for %s", ErrKindMismatch, def, k)
	}
	return &Container{kind: k, strategy: s, def: v, base: v, current: v}, nil
}

func (c *Container) Kind() Kind         { return c.kind }
func (c *Container) Strategy() Strategy { return c.strategy }
func (c *Container) Default() any       { return c.def }
func (c *Container) Base() any          { return c.base }
func (c *Container) Current() any       { return c.current }

// SetBase replaces the base value.
func (c *Container) SetBase(v any) error {
	cv, err := c.coerce(v)
	if err != nil {
		return err
	}
	c.base = cv
	return nil
}

// SetCurrent stores the resolved value for this frame.
func (c *Container) SetCurrent(v any) error {
	cv, err := c.coerce(v)
	if err != nil {
		return err
	}
	c.current = cv
	return nil
}

// Reset restores the base value to the default.
func (c *Container) Reset() {
	c.base = c.def
}

// Coerce converts v to the container's kind.
func (c *Container) Coerce(v any) (any, error) {
	return c.coerce(v)
}

func (c *Container) coerce(v any) (any, error) {
	cv, ok := Coerce(v, c.kind)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T) for %s", ErrKindMismatch, v, v, c.kind)
	}
	return cv, nil
}
