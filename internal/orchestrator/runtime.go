package orchestrator

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/state"
)

// ErrNoScene is returned by edits when no scene is loaded.
var ErrNoScene = errors.New("no scene loaded")

// Edit changes the active scene. An edit that returns an error must leave
// the scene as it found it.
type Edit func(s *Scene) error

// pendingEvent is an event raised while r.mu is held. It is emitted once the
// lock is released so a slow event sink never stalls ticks or edits.
type pendingEvent struct {
	level  string
	name   string
	msg    string
	fields map[string]interface{}
}

type queuedEdit struct {
	name string
	fn   Edit
}

// Runtime drives the active scene. Ticks, edits and scene swaps are
// serialized by one mutex; readers use the published Frame.
type Runtime struct {
	mu      sync.Mutex
	scene   *Scene
	state   state.Provider
	clock   time.Duration
	seq     uint64
	failing map[string]error
	pending []pendingEvent

	queueMu sync.Mutex
	queue   []queuedEdit

	frame atomic.Pointer[Frame]

	subMu sync.RWMutex
	subs  map[chan *Frame]struct{}

	ticks      atomic.Uint64
	overruns   atomic.Uint64
	applied    atomic.Uint64
	rejected   atomic.Uint64
	invalid    atomic.Int64
	entities   atomic.Int64
	parameters atomic.Int64
	lastTick   atomic.Int64
}

// NewRuntime creates a runtime reading external state from provider. A nil
// provider behaves like an empty state document.
func NewRuntime(scene *Scene, provider state.Provider) *Runtime {
	if provider == nil {
		provider = state.Map{}
	}
	r := &Runtime{
		scene:   scene,
		state:   provider,
		failing: make(map[string]error),
		subs:    make(map[chan *Frame]struct{}),
	}
	r.frame.Store(&Frame{
		Values: map[string]any{},
		Active: map[string]bool{},
		States: map[string]ElementState{},
	})
	return r
}

// Tick runs one evaluation pass over the scene and publishes the
// resulting frame. Queued edits are applied first. Nothing inside a tick
// aborts it: failing bindings fall back and are reported as events. Those
// events are emitted after the frame is published and the scene lock is
// released.
func (r *Runtime) Tick(delta time.Duration) *Frame {
	start := time.Now()
	if delta < 0 {
		delta = 0
	}

	r.mu.Lock()
	r.applyQueued()
	r.clock += delta
	r.seq++
	f := &Frame{
		Seq:    r.seq,
		Time:   r.clock,
		Values: make(map[string]any),
		Active: make(map[string]bool),
		States: make(map[string]ElementState),
	}
	tc := newTickContext(r.state, delta, f)
	var entities, params int
	if r.scene != nil {
		r.scene.Walk(func(e *Entity) bool {
			r.tickEntity(e, tc)
			entities++
			params += len(e.params)
			return true
		})
	}
	r.reportGraphs(tc.failing)
	pending := r.takePending()
	r.mu.Unlock()

	r.frame.Store(f)
	r.broadcast(f)
	r.ticks.Add(1)
	r.invalid.Store(int64(len(tc.failing)))
	r.entities.Store(int64(entities))
	r.parameters.Store(int64(params))
	r.lastTick.Store(int64(time.Since(start)))
	flush(pending)
	return f
}

// Frame returns the most recently published frame.
func (r *Runtime) Frame() *Frame {
	return r.frame.Load()
}

// Apply runs edit against the scene, waiting for a running tick to finish.
func (r *Runtime) Apply(edit Edit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		r.rejected.Add(1)
		return ErrNoScene
	}
	if err := edit(r.scene); err != nil {
		r.rejected.Add(1)
		return err
	}
	r.applied.Add(1)
	return nil
}

// Enqueue defers edit to the start of the next tick. Failures are reported
// as edit.rejected events.
func (r *Runtime) Enqueue(name string, edit Edit) {
	r.queueMu.Lock()
	r.queue = append(r.queue, queuedEdit{name: name, fn: edit})
	r.queueMu.Unlock()
}

// Pending returns the number of queued edits.
func (r *Runtime) Pending() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

func (r *Runtime) applyQueued() {
	r.queueMu.Lock()
	queue := r.queue
	r.queue = nil
	r.queueMu.Unlock()

	for _, q := range queue {
		err := ErrNoScene
		if r.scene != nil {
			err = q.fn(r.scene)
		}
		if err != nil {
			r.rejected.Add(1)
			r.queueEvent("warn", "edit.rejected", err.Error(), map[string]interface{}{"edit": q.name})
			continue
		}
		r.applied.Add(1)
	}
}

// LoadScene swaps the active scene once the running tick has finished.
// Edits queued against the previous scene are discarded and the clock
// restarts at zero.
func (r *Runtime) LoadScene(s *Scene) {
	r.mu.Lock()
	defer func() {
		pending := r.takePending()
		r.mu.Unlock()
		flush(pending)
	}()

	r.queueMu.Lock()
	dropped := len(r.queue)
	r.queue = nil
	r.queueMu.Unlock()

	r.scene = s
	r.clock = 0
	r.failing = make(map[string]error)

	fields := map[string]interface{}{"dropped_edits": dropped}
	if s != nil {
		fields["scene_id"] = s.ID
		fields["entities"] = s.Len()
	}
	r.emitEvent("scene.loaded", fields)
}

// SceneID returns the id of the active scene, or "" when none is loaded.
func (r *Runtime) SceneID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		return ""
	}
	return r.scene.ID
}

// Export returns the document of the active scene.
func (r *Runtime) Export() (*SceneDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scene == nil {
		return nil, ErrNoScene
	}
	return ExportScene(r.scene)
}

// Stats returns the runtime counters.
func (r *Runtime) Stats() Stats {
	return Stats{
		Ticks:         r.ticks.Load(),
		Overruns:      r.overruns.Load(),
		EditsApplied:  r.applied.Load(),
		EditsRejected: r.rejected.Load(),
		InvalidGraphs: int(r.invalid.Load()),
		Entities:      int(r.entities.Load()),
		Parameters:    int(r.parameters.Load()),
		LastTick:      time.Duration(r.lastTick.Load()),
	}
}

// Subscribe returns a channel receiving every published frame. Slow
// subscribers miss frames rather than block the tick.
func (r *Runtime) Subscribe() chan *Frame {
	ch := make(chan *Frame, 4)
	r.subMu.Lock()
	r.subs[ch] = struct{}{}
	r.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (r *Runtime) Unsubscribe(ch chan *Frame) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	if _, ok := r.subs[ch]; ok {
		delete(r.subs, ch)
		close(ch)
	}
}

// SubscriberCount returns the number of frame subscribers.
func (r *Runtime) SubscriberCount() int {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	return len(r.subs)
}

func (r *Runtime) broadcast(f *Frame) {
	r.subMu.RLock()
	defer r.subMu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (r *Runtime) overrun(late time.Duration) {
	r.overruns.Add(1)
	events.Emit("warn", "tick.overrun", "", map[string]interface{}{"late_ms": late.Milliseconds()})
}

// emitEvent queues an info event. Callers hold r.mu.
func (r *Runtime) emitEvent(name string, fields map[string]interface{}) {
	r.queueEvent("info", name, "", fields)
}

func (r *Runtime) queueEvent(level, name, msg string, fields map[string]interface{}) {
	r.pending = append(r.pending, pendingEvent{level: level, name: name, msg: msg, fields: fields})
}

func (r *Runtime) takePending() []pendingEvent {
	p := r.pending
	r.pending = nil
	return p
}

func flush(pending []pendingEvent) {
	for _, e := range pending {
		events.Emit(e.level, e.name, e.msg, e.fields)
	}
}
