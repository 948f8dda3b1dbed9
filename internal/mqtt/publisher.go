package mqtt

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/orchestrator"
)

// DefaultFrameTopic is used when no frame topic is configured.
const DefaultFrameTopic = "sentient/fx/frame"

type publishClient interface {
	Publish(topic string, payload []byte) error
	IsConnected() bool
}

// FramePublisher forwards every resolved frame to the broker so renderers
// can follow the engine without polling the API.
type FramePublisher struct {
	client    publishClient
	topic     string
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewFramePublisher creates a publisher writing to topic.
func NewFramePublisher(client publishClient, topic string) *FramePublisher {
	if topic == "" {
		topic = DefaultFrameTopic
	}
	return &FramePublisher{client: client, topic: topic}
}

// Run publishes frames from rt until ctx is done. Frames produced while
// the client is offline are dropped; the next frame supersedes them.
func (p *FramePublisher) Run(ctx context.Context, rt *orchestrator.Runtime) error {
	ch := rt.Subscribe()
	defer rt.Unsubscribe(ch)

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-ch:
			if !ok {
				return nil
			}
			err := p.Publish(f)
			switch {
			case err != nil && !failing:
				failing = true
				events.Emit("warn", "system.error", "frame publish failed", map[string]interface{}{
					"topic": p.topic,
					"error": err.Error(),
				})
			case err == nil:
				failing = false
			}
		}
	}
}

// Publish sends one frame.
func (p *FramePublisher) Publish(f *orchestrator.Frame) error {
	if !p.client.IsConnected() {
		p.dropped.Add(1)
		return nil
	}
	payload, err := json.Marshal(f)
	if err != nil {
		p.dropped.Add(1)
		return err
	}
	if err := p.client.Publish(p.topic, payload); err != nil {
		p.dropped.Add(1)
		return err
	}
	p.published.Add(1)
	return nil
}

// Published returns how many frames reached the broker.
func (p *FramePublisher) Published() uint64 { return p.published.Load() }

// Dropped returns how many frames were skipped or failed.
func (p *FramePublisher) Dropped() uint64 { return p.dropped.Load() }
