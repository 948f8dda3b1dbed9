package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClampTickRate(t *testing.T) {
	cases := map[int]int{
		-5:   DefaultTickRate,
		0:    DefaultTickRate,
		1:    1,
		60:   60,
		240:  240,
		1000: MaxTickRate,
	}
	for in, want := range cases {
		if got := ClampTickRate(in); got != want {
			t.Errorf("ClampTickRate(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestScheduler_Run(t *testing.T) {
	rt := NewRuntime(loadDemo(t, "testdata/scene.v1.json"), nil)
	s := NewScheduler(rt, 200)
	if s.TickRate() != 200 {
		t.Fatalf("expected rate 200, got %d", s.TickRate())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if rt.Stats().Ticks == 0 {
		t.Fatal("expected the scheduler to tick")
	}
	if rt.Frame().Time <= 0 {
		t.Errorf("expected the clock to advance, got %s", rt.Frame().Time)
	}
}

func TestScheduler_SetTickRate(t *testing.T) {
	rt := NewRuntime(nil, nil)
	s := NewScheduler(rt, 0)
	if s.TickRate() != DefaultTickRate {
		t.Errorf("expected default rate, got %d", s.TickRate())
	}

	s.SetTickRate(50)
	if s.Interval() != 20*time.Millisecond {
		t.Errorf("expected 20ms interval, got %s", s.Interval())
	}
	s.SetTickRate(10000)
	if s.TickRate() != MaxTickRate {
		t.Errorf("expected rate clamped to %d, got %d", MaxTickRate, s.TickRate())
	}
}
