package timeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/SentientFX/internal/value"
)

func TestResolve_Segments(t *testing.T) {
	tl := Timeline{StartLength: time.Second, MainLength: 2 * time.Second, EndLength: time.Second}

	p := Resolve(tl, 500*time.Millisecond)
	assert.Equal(t, SegmentStart, p.Segment)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)
	assert.Equal(t, time.Duration(0), p.MainTime)

	p = Resolve(tl, 2*time.Second)
	assert.Equal(t, SegmentMain, p.Segment)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)
	assert.Equal(t, time.Second, p.MainTime)

	p = Resolve(tl, 3500*time.Millisecond)
	assert.Equal(t, SegmentEnd, p.Segment)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)
	assert.Equal(t, 2*time.Second, p.MainTime)

	p = Resolve(tl, time.Hour)
	assert.Equal(t, SegmentEnd, p.Segment)
	assert.Equal(t, 1.0, p.Progress)
}

func TestResolve_RepeatWrapsMain(t *testing.T) {
	tl := Timeline{MainLength: 2 * time.Second, EndLength: time.Second, RepeatMain: true}

	p := Resolve(tl, 5*time.Second)
	assert.Equal(t, SegmentMain, p.Segment)
	assert.Equal(t, time.Second, p.MainTime)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)
}

func TestResolve_NegativeTimeIsZero(t *testing.T) {
	tl := Timeline{MainLength: time.Second}
	p := Resolve(tl, -time.Second)
	assert.Equal(t, SegmentMain, p.Segment)
	assert.Equal(t, time.Duration(0), p.MainTime)
}

func TestTimeline_ValidateRejectsNegative(t *testing.T) {
	err := Timeline{EndLength: -time.Millisecond}.Validate()
	assert.True(t, errors.Is(err, ErrNegativeDuration))
	assert.NoError(t, Timeline{}.Validate())
}

func TestPlayhead_ReleasePlaysEndOnce(t *testing.T) {
	tl := Timeline{MainLength: 2 * time.Second, EndLength: time.Second, RepeatMain: true}
	var ph Playhead

	ph.Advance(3 * time.Second)
	assert.Equal(t, time.Second, ph.Resolve(tl).MainTime)

	ph.Release(tl)
	assert.True(t, ph.Released())
	p := ph.Resolve(tl)
	assert.Equal(t, SegmentEnd, p.Segment)
	assert.Equal(t, time.Second, p.MainTime)
	assert.False(t, ph.Finished(tl))

	ph.Advance(time.Second)
	assert.True(t, ph.Finished(tl))

	ph.Reset()
	assert.False(t, ph.Released())
	assert.Equal(t, time.Duration(0), ph.Time)
}

func TestEasing_ParseAndApply(t *testing.T) {
	e, err := ParseEasing("")
	require.NoError(t, err)
	assert.Equal(t, EasingLinear, e)

	_, err = ParseEasing("wobble")
	assert.True(t, errors.Is(err, ErrUnknownEasing))

	assert.Equal(t, 0.25, EasingLinear.Apply(0.25))
	assert.Equal(t, 0.0, EasingHold.Apply(0.99))
	assert.Equal(t, 1.0, EasingHold.Apply(1))
	assert.InDelta(t, 0.25, Easing("in_quad").Apply(0.5), 1e-6)
	assert.Contains(t, Easings(), Easing("out_bounce"))
}

func newFloatTrack(t *testing.T, keys ...Keyframe) *Track {
	t.Helper()
	tr, err := NewTrack(value.KindFloat)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, tr.Add(k))
	}
	return tr
}

func TestInterpolate_ScenarioA(t *testing.T) {
	tr := newFloatTrack(t,
		Keyframe{Position: 0, Value: 0.0},
		Keyframe{Position: 2 * time.Second, Value: 10.0, Easing: EasingLinear},
	)
	v, ok := tr.Interpolate(time.Second)
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestInterpolate_ExactAtKeyframes(t *testing.T) {
	tr := newFloatTrack(t,
		Keyframe{Position: 0, Value: 1.0},
		Keyframe{Position: 300 * time.Millisecond, Value: 7.0, Easing: "in_out_elastic"},
		Keyframe{Position: 900 * time.Millisecond, Value: -3.0, Easing: "out_bounce"},
		Keyframe{Position: 2 * time.Second, Value: 4.5, Easing: "in_back"},
	)
	for _, k := range tr.Keyframes() {
		v, _ := tr.Interpolate(k.Position)
		assert.Equal(t, k.Value, v, "at %s", k.Position)
	}
}

func TestInterpolate_Clamps(t *testing.T) {
	tr := newFloatTrack(t,
		Keyframe{Position: time.Second, Value: 2.0},
		Keyframe{Position: 2 * time.Second, Value: 8.0},
	)
	for _, at := range []time.Duration{0, 500 * time.Millisecond, time.Second} {
		v, _ := tr.Interpolate(at)
		assert.Equal(t, 2.0, v)
	}
	for _, at := range []time.Duration{2 * time.Second, 3 * time.Second, time.Hour} {
		v, _ := tr.Interpolate(at)
		assert.Equal(t, 8.0, v)
	}
}

func TestInterpolate_DuplicatePositionLastWins(t *testing.T) {
	tr := newFloatTrack(t,
		Keyframe{Position: time.Second, Value: 1.0},
		Keyframe{Position: time.Second, Value: 3.0},
		Keyframe{Position: 2 * time.Second, Value: 5.0},
	)
	v, _ := tr.Interpolate(time.Second)
	assert.Equal(t, 3.0, v)
	v, _ = tr.Interpolate(1500 * time.Millisecond)
	assert.Equal(t, 4.0, v)
}

func TestInterpolate_DiscreteHolds(t *testing.T) {
	tr, err := NewTrack(value.KindEnum)
	require.NoError(t, err)
	require.NoError(t, tr.Add(Keyframe{Position: 0, Value: "add"}))
	require.NoError(t, tr.Add(Keyframe{Position: time.Second, Value: "multiply"}))

	v, _ := tr.Interpolate(999 * time.Millisecond)
	assert.Equal(t, value.Enum("add"), v)
	v, _ = tr.Interpolate(time.Second)
	assert.Equal(t, value.Enum("multiply"), v)
}

func TestTrack_RejectsBadKeyframes(t *testing.T) {
	tr := newFloatTrack(t)
	assert.True(t, errors.Is(tr.Add(Keyframe{Position: -1, Value: 1.0}), ErrNegativePosition))
	assert.True(t, errors.Is(tr.Add(Keyframe{Value: 1.0, Easing: "zigzag"}), ErrUnknownEasing))
	assert.True(t, errors.Is(tr.Add(Keyframe{Value: value.Color{}}), value.ErrKindMismatch))

	err := tr.Set([]Keyframe{{Position: time.Second, Value: 1.0}, {Position: 0, Value: 2.0}})
	assert.True(t, errors.Is(err, ErrUnordered))
	assert.Equal(t, 0, tr.Len())

	_, ok := tr.Interpolate(0)
	assert.False(t, ok)
}

func TestBackfillMain(t *testing.T) {
	tr := newFloatTrack(t, Keyframe{Position: 3 * time.Second, Value: 1.0})

	tl := Timeline{}
	assert.True(t, BackfillMain(&tl, tr))
	assert.Equal(t, 3*time.Second, tl.MainLength)

	tl = Timeline{}
	assert.True(t, BackfillMain(&tl))
	assert.Equal(t, DefaultMainLength, tl.MainLength)

	tl = Timeline{MainLength: time.Second}
	assert.False(t, BackfillMain(&tl, tr))
}

func TestDocuments_RoundTrip(t *testing.T) {
	tl := Timeline{StartLength: 250 * time.Millisecond, MainLength: 2 * time.Second, RepeatMain: true}
	got, err := Import(Export(tl))
	require.NoError(t, err)
	assert.Equal(t, tl, got)

	_, err = Import(Document{Main: "-1s"})
	assert.True(t, errors.Is(err, ErrNegativeDuration))

	tr := newFloatTrack(t,
		Keyframe{Position: 0, Value: 0.0},
		Keyframe{Position: 1500 * time.Millisecond, Value: 3.25, Easing: "out_sine"},
	)
	docs, err := ExportKeyframes(tr)
	require.NoError(t, err)

	back := newFloatTrack(t)
	repaired, err := ImportKeyframes(back, docs)
	require.NoError(t, err)
	assert.False(t, repaired)
	for _, at := range []time.Duration{0, 300 * time.Millisecond, time.Second, 2 * time.Second} {
		a, _ := tr.Interpolate(at)
		b, _ := back.Interpolate(at)
		assert.Equal(t, a, b)
	}
}

func TestImportKeyframes_SortsUnordered(t *testing.T) {
	tr := newFloatTrack(t)
	repaired, err := ImportKeyframes(tr, []KeyframeDocument{
		{Position: "2s", Value: []byte("10")},
		{Position: "0s", Value: []byte("0")},
	})
	require.NoError(t, err)
	assert.True(t, repaired)
	v, _ := tr.Interpolate(time.Second)
	assert.Equal(t, 5.0, v)
}
