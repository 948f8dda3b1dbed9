package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AaronLay10/SentientFX/internal/orchestrator"
	"github.com/AaronLay10/SentientFX/internal/property"
	"github.com/AaronLay10/SentientFX/internal/timeline"
	"github.com/AaronLay10/SentientFX/internal/value"
)

func testRuntime(t *testing.T) *orchestrator.Runtime {
	t.Helper()
	s := orchestrator.NewScene("s", "s")
	e := orchestrator.NewEntity("wash", "wash", timeline.Timeline{MainLength: time.Second})
	p, err := property.New("level", "wash", value.KindFloat, 0.25)
	if err != nil {
		t.Fatalf("parameter: %v", err)
	}
	if err := e.AddParameter(p); err != nil {
		t.Fatalf("add parameter: %v", err)
	}
	if err := s.Add("", e); err != nil {
		t.Fatalf("add entity: %v", err)
	}
	return orchestrator.NewRuntime(s, nil)
}

func TestFramePublisher_Publish(t *testing.T) {
	mock := NewMockMQTTClient()
	pub := NewFramePublisher(mock, "")
	rt := testRuntime(t)

	if err := pub.Publish(rt.Tick(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Published(DefaultFrameTopic)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published frame, got %d", len(msgs))
	}
	var f orchestrator.Frame
	if err := json.Unmarshal(msgs[0], &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f.Values["wash/level"] != 0.25 {
		t.Errorf("expected wash/level 0.25, got %v", f.Values["wash/level"])
	}

	mock.SetConnected(false)
	_ = pub.Publish(rt.Tick(0))
	if pub.Published() != 1 || pub.Dropped() != 1 {
		t.Errorf("expected 1 published and 1 dropped, got %d/%d", pub.Published(), pub.Dropped())
	}
}

func TestFramePublisher_RunFollowsRuntime(t *testing.T) {
	mock := NewMockMQTTClient()
	pub := NewFramePublisher(mock, "fx/frames")
	rt := testRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx, rt) }()

	deadline := time.Now().Add(2 * time.Second)
	for rt.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	rt.Tick(100 * time.Millisecond)
	for pub.Published() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-done; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(mock.Published("fx/frames")) == 0 {
		t.Error("expected a frame on fx/frames")
	}
	if rt.SubscriberCount() != 0 {
		t.Error("expected Run to unsubscribe on exit")
	}
}
