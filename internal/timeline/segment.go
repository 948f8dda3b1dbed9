// Package timeline maps playback time onto an entity's Start, Main and End
// segments and interpolates keyframe tracks within the Main segment.
package timeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNegativeDuration = errors.New("segment duration must not be negative")
	ErrNegativePosition = errors.New("keyframe position must not be negative")
)

// DefaultMainLength is used when a Main segment has no length of its own.
const DefaultMainLength = 5 * time.Second

// Segment is a phase of an entity's timeline.
type Segment int

const (
	SegmentStart Segment = iota
	SegmentMain
	SegmentEnd
)

func (s Segment) String() string {
	switch s {
	case SegmentStart:
		return "start"
	case SegmentMain:
		return "main"
	case SegmentEnd:
		return "end"
	}
	return fmt.Sprintf("segment(%d)", int(s))
}

// Timeline holds the segment layout of one entity.
type Timeline struct {
	StartLength time.Duration
	MainLength  time.Duration
	EndLength   time.Duration
	RepeatMain  bool
}

// Validate rejects negative segment durations.
func (tl Timeline) Validate() error {
	segments := []struct {
		name string
		d    time.Duration
	}{
		{"start", tl.StartLength},
		{"main", tl.MainLength},
		{"end", tl.EndLength},
	}
	for _, s := range segments {
		if s.d < 0 {
			return fmt.Errorf("%w: %s = %s", ErrNegativeDuration, s.name, s.d)
		}
	}
	return nil
}

// Position is where a point in time falls on a timeline.
type Position struct {
	Segment  Segment
	Progress float64 // within the segment, [0,1]
	// MainTime is the time used to sample keyframes. It stays at 0 during
	// Start and holds at the Main length (or the release point) during End.
	MainTime time.Duration
}

// Resolve maps t, measured from the beginning of the Start segment, onto tl.
func Resolve(tl Timeline, t time.Duration) Position {
	if t < 0 {
		t = 0
	}
	if t < tl.StartLength {
		return Position{Segment: SegmentStart, Progress: ratio(t, tl.StartLength)}
	}

	m := t - tl.StartLength
	if tl.RepeatMain && tl.MainLength > 0 {
		local := m % tl.MainLength
		return Position{Segment: SegmentMain, Progress: ratio(local, tl.MainLength), MainTime: local}
	}
	if m < tl.MainLength {
		return Position{Segment: SegmentMain, Progress: ratio(m, tl.MainLength), MainTime: m}
	}
	return endPosition(tl, m-tl.MainLength, tl.MainLength)
}

func endPosition(tl Timeline, e time.Duration, held time.Duration) Position {
	if e > tl.EndLength {
		e = tl.EndLength
	}
	p := 1.0
	if tl.EndLength > 0 {
		p = ratio(e, tl.EndLength)
	}
	return Position{Segment: SegmentEnd, Progress: p, MainTime: held}
}

func ratio(d, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	r := float64(d) / float64(total)
	if r > 1 {
		return 1
	}
	return r
}

// Playhead tracks one entity's playback time. Release sends it straight to
// the End segment, which then plays once even when Main repeats.
type Playhead struct {
	Time time.Duration

	released   bool
	releasedAt time.Duration
	held       time.Duration
}

// Advance moves the playhead forward by d.
func (p *Playhead) Advance(d time.Duration) {
	if d > 0 {
		p.Time += d
	}
}

// Release starts the End segment from the current position.
func (p *Playhead) Release(tl Timeline) {
	if p.released {
		return
	}
	pos := Resolve(tl, p.Time)
	p.held = pos.MainTime
	if pos.Segment == SegmentEnd {
		p.held = tl.MainLength
	}
	p.released = true
	p.releasedAt = p.Time
}

// Released reports whether Release was called since the last Reset.
func (p *Playhead) Released() bool { return p.released }

// Reset rewinds to the beginning of the Start segment.
func (p *Playhead) Reset() {
	*p = Playhead{}
}

// Resolve returns the playhead's position on tl.
func (p *Playhead) Resolve(tl Timeline) Position {
	if !p.released {
		return Resolve(tl, p.Time)
	}
	return endPosition(tl, p.Time-p.releasedAt, p.held)
}

// Finished reports whether a released playhead has played all of End.
func (p *Playhead) Finished(tl Timeline) bool {
	return p.released && p.Time-p.releasedAt >= tl.EndLength
}
