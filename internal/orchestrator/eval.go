package orchestrator

import (
	"time"

	"github.com/AaronLay10/SentientFX/internal/graph"
	"github.com/AaronLay10/SentientFX/internal/state"
)

// snapshotter is implemented by providers that can freeze their state for
// the duration of a tick.
type snapshotter interface {
	Snapshot() *state.Snapshot
}

// tickContext is what every entity sees during one tick.
type tickContext struct {
	state   state.Provider
	version uint64
	delta   time.Duration
	frame   *Frame
	failing map[string]error
}

func newTickContext(p state.Provider, delta time.Duration, f *Frame) *tickContext {
	tc := &tickContext{delta: delta, frame: f, failing: make(map[string]error)}
	if s, ok := p.(snapshotter); ok {
		snap := s.Snapshot()
		tc.state, tc.version = snap, snap.Version()
		return tc
	}
	tc.state = p
	if v, ok := p.(state.Versioned); ok {
		tc.version = v.Version()
	}
	return tc
}

func (tc *tickContext) graphContext(e *Entity) *graph.Context {
	return &graph.Context{
		State:        tc.state,
		StateVersion: tc.version,
		Time:         e.Playhead.Time,
		Delta:        tc.delta,
	}
}

// holds reports whether the entity's condition is satisfied. Entities
// without a condition are always shown.
func holds(e *Entity, ctx *graph.Context) bool {
	return e.Condition == nil || e.Condition.Evaluate(ctx)
}

// tickEntity advances one entity and writes its parameters into the
// frame. Parents are visited before children, so e.parent already has its
// state for this tick.
func (r *Runtime) tickEntity(e *Entity, tc *tickContext) {
	defer r.publish(e, tc.frame)

	if e.parent != nil && !e.parent.Active() {
		r.deactivate(e, "parent_inactive")
		return
	}

	if e.state == ElementInactive {
		if !holds(e, tc.graphContext(e)) {
			return
		}
		e.Playhead.Reset()
		e.state = ElementActive
		r.emitEvent("element.activated", map[string]interface{}{"entity_id": e.ID})
	} else {
		e.Playhead.Advance(tc.delta)
	}

	pos := e.Playhead.Resolve(e.Timeline)
	ctx := tc.graphContext(e)
	for _, p := range e.params {
		if _, err := p.Resolve(ctx, pos.MainTime); err != nil {
			tc.failing[ParameterKey(e.ID, p.ID)] = err
		}
	}

	cond := holds(e, ctx)
	switch {
	case e.state == ElementActive && !cond:
		e.Playhead.Release(e.Timeline)
		e.state = ElementReleasing
		r.emitEvent("element.released", map[string]interface{}{
			"entity_id": e.ID,
			"end":       e.Timeline.EndLength.String(),
		})
	case e.state == ElementReleasing && cond:
		e.Playhead.Reset()
		e.state = ElementActive
		r.emitEvent("element.activated", map[string]interface{}{"entity_id": e.ID, "restarted": true})
	}
	if e.state == ElementReleasing && e.Playhead.Finished(e.Timeline) {
		r.deactivate(e, "end_finished")
	}
}

func (r *Runtime) deactivate(e *Entity, reason string) {
	if e.state == ElementInactive {
		return
	}
	e.state = ElementInactive
	e.Playhead.Reset()
	r.emitEvent("element.deactivated", map[string]interface{}{"entity_id": e.ID, "reason": reason})
}

func (r *Runtime) publish(e *Entity, f *Frame) {
	for _, p := range e.params {
		f.Values[ParameterKey(e.ID, p.ID)] = p.Current()
	}
	f.Active[e.ID] = e.Active()
	f.States[e.ID] = e.state
}

// reportGraphs emits graph.invalid and graph.recovered when a parameter's
// bindings start or stop failing.
func (r *Runtime) reportGraphs(failing map[string]error) {
	for key, err := range failing {
		if _, was := r.failing[key]; !was {
			r.queueEvent("warn", "graph.invalid", "binding graph failed, using last good value", map[string]interface{}{
				"parameter": key,
				"error":     err.Error(),
			})
		}
	}
	for key := range r.failing {
		if _, still := failing[key]; !still {
			r.emitEvent("graph.recovered", map[string]interface{}{"parameter": key})
		}
	}
	r.failing = failing
}
