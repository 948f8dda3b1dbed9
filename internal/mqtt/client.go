// Package mqtt feeds external state into the engine from an MQTT broker and
// publishes resolved frames back out.
package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientFX/internal/events"
)

const (
	defaultBrokerURL = "tcp://localhost:1883"
	opTimeout        = 10 * time.Second
)

// Client wraps the Paho MQTT client.
type Client struct {
	client    paho.Client
	broker    string
	mu        sync.Mutex
	hookMu    sync.Mutex
	onConnect []func()
}

// BrokerURL returns url, or the local default broker when url is empty.
func BrokerURL(url string) string {
	if url != "" {
		return url
	}
	return defaultBrokerURL
}

// NewClient creates a new MQTT client but does not connect.
func NewClient(brokerURL, clientID string) *Client {
	c := &Client{broker: BrokerURL(brokerURL)}
	broker := c.broker
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			events.Emit("info", "mqtt.connected", "", map[string]interface{}{"broker": broker})
			c.connected()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			events.Emit("warn", "mqtt.disconnected", err.Error(), map[string]interface{}{"broker": broker})
		})

	c.client = paho.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful (re)connect.
// The broker forgets subscriptions of a clean session, so subscribers
// hook in here to restore them.
func (c *Client) OnConnect(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *Client) connected() {
	c.hookMu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.hookMu.Unlock()
	// Paho runs this handler on its own goroutine; Subscribe blocks on an
	// ack that the same goroutine would deliver.
	go func() {
		for _, fn := range hooks {
			fn()
		}
	}()
}

// Broker returns the broker URL the client dials.
func (c *Client) Broker() string { return c.broker }

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(opTimeout) {
		return &ConnectTimeoutError{}
	}
	return token.Error()
}

// Subscribe subscribes to a topic filter with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(opTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Unsubscribe drops a topic filter.
func (c *Client) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(opTimeout) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload at QoS 0 without retaining it. Frames are
// superseded every tick, so there is nothing to gain from waiting on
// delivery beyond the write.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(opTimeout) {
		return &PublishTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct{}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout"
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// PublishTimeoutError indicates a publish was not written in time.
type PublishTimeoutError struct {
	Topic string
}

func (e *PublishTimeoutError) Error() string {
	return "mqtt publish timeout: " + e.Topic
}
