package mqtt

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/tidwall/gjson"

	"github.com/AaronLay10/SentientFX/internal/events"
	"github.com/AaronLay10/SentientFX/internal/state"
)

// subscribeClient is the part of Client the subscriber needs.
type subscribeClient interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// StateSubscriber writes messages from every registered source into the
// state store. Each topic level matched by a wildcard becomes one path
// segment under the source's path:
//
//	source sensors, topic room/+/#, path room
//	message room/lobby/temp 21.5  ->  room.lobby.temp = 21.5
//
// JSON payloads are stored as JSON; anything else is stored as a string.
// An empty payload deletes the path.
type StateSubscriber struct {
	mu         sync.RWMutex
	client     subscribeClient
	registry   *SourceRegistry
	store      *state.Store
	subscribed map[string]bool // topic filter -> subscribed
	now        func() time.Time
}

// NewStateSubscriber creates a new state subscriber.
func NewStateSubscriber(client subscribeClient, registry *SourceRegistry, store *state.Store) *StateSubscriber {
	return &StateSubscriber{
		client:     client,
		registry:   registry,
		store:      store,
		subscribed: make(map[string]bool),
		now:        time.Now,
	}
}

// SubscribeSource subscribes to a source's topic filter if not already
// subscribed. Calling it again for the same source is a no-op.
func (s *StateSubscriber) SubscribeSource(src *Source) error {
	s.mu.Lock()
	if s.subscribed[src.Topic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.client.Subscribe(src.Topic, s.createHandler(src.ID)); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[src.Topic] = true
	s.mu.Unlock()
	return nil
}

// SubscribeAll subscribes to every registered source. Failures are
// reported and the remaining sources are still tried.
func (s *StateSubscriber) SubscribeAll() error {
	var failed int
	for _, src := range s.registry.All() {
		if err := s.SubscribeSource(src); err != nil {
			failed++
			events.Emit("error", "system.error", "failed to subscribe to state source", map[string]interface{}{
				"source_id": src.ID,
				"topic":     src.Topic,
				"error":     err.Error(),
			})
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d state source subscriptions failed", failed)
	}
	return nil
}

// Resubscribe forgets the tracked subscriptions and subscribes again.
// Call this after a reconnect.
func (s *StateSubscriber) Resubscribe() error {
	s.ClearSubscriptions()
	return s.SubscribeAll()
}

func (s *StateSubscriber) createHandler(sourceID string) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		s.Handle(sourceID, msg.Topic(), msg.Payload())
	}
}

// Handle applies one message from sourceID to the store.
func (s *StateSubscriber) Handle(sourceID, topic string, payload []byte) {
	src := s.registry.Get(sourceID)
	if src == nil {
		return
	}
	if err := s.apply(src, topic, payload); err != nil {
		events.Emit("warn", "state.update_rejected", err.Error(), map[string]interface{}{
			"source_id": sourceID,
			"topic":     topic,
		})
		return
	}
	if s.registry.Seen(sourceID, s.now()) {
		_ = s.store.Set(staleFlagPath(sourceID), false)
		events.Emit("info", "state.source_seen", "", map[string]interface{}{
			"source_id": sourceID,
		})
	}
}

func (s *StateSubscriber) apply(src *Source, topic string, payload []byte) error {
	path, err := StatePath(src, topic)
	if err != nil {
		return err
	}
	payload = bytes.TrimSpace(payload)
	switch {
	case len(payload) == 0:
		return s.store.Delete(path)
	case gjson.ValidBytes(payload):
		return s.store.SetRaw(path, payload)
	default:
		return s.store.Set(path, string(payload))
	}
}

// StatePath maps topic onto the state path it writes for src.
func StatePath(src *Source, topic string) (string, error) {
	rest, ok := MatchTopic(src.Topic, topic)
	if !ok {
		return "", fmt.Errorf("topic %s does not match %s", topic, src.Topic)
	}
	var b strings.Builder
	b.WriteString(src.Path)
	for _, level := range rest {
		if level == "" {
			return "", fmt.Errorf("topic %s has an empty level", topic)
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(escapeSegment(level))
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("topic %s maps to the document root", topic)
	}
	return b.String(), nil
}

// escapeSegment makes a topic level safe as one sjson path segment.
// Numeric levels are forced to object keys, otherwise sjson would build
// an array.
func escapeSegment(level string) string {
	var b strings.Builder
	if strings.Trim(level, "0123456789") == "" {
		b.WriteByte(':')
	}
	for _, r := range level {
		if strings.ContainsRune(`.*?|#@\!:`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func staleFlagPath(sourceID string) string {
	return "_sources." + escapeSegment(sourceID) + ".stale"
}

// IsSubscribed returns true if the topic filter is already subscribed.
func (s *StateSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns a list of all subscribed topic filters.
func (s *StateSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *StateSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
