// Package mqtt wraps paho.mqtt.golang with connection-state tracking,
// automatic reconnection, and acknowledgment-aware publishing for the
// UNS bridge.
package mqtt

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotConnected indicates no broker session is established. Operation
// boundaries use errors.Is against it to report connection failures as
// such instead of generic errors.
var ErrNotConnected = errors.New("not connected to MQTT broker")

// ConnState is the client's connection state.
type ConnState int32

const (
	// StateDisconnected means no session exists.
	StateDisconnected ConnState = iota
	// StateConnecting means an initial connect is in flight.
	StateConnecting
	// StateConnected means the session is live.
	StateConnected
	// StateReconnecting means the background loop is retrying after a drop.
	StateReconnecting
)

// String returns a human-readable state name.
func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Message is a received MQTT message.
type Message interface {
	Topic() string
	Payload() []byte
	QoS() byte
	Retained() bool
}

// MessageHandler is the callback signature for received messages. Handlers
// are invoked from paho's network goroutine and must not block.
type MessageHandler func(msg Message)

// Config holds MQTT client configuration.
type Config struct {
	// BrokerURL is the broker address (e.g. "tcp://localhost:1883")
	BrokerURL string
	// ClientIDBase is the configured identifier prefix; a random 8-hex
	// suffix is appended once per process so concurrent instances never
	// evict each other's broker sessions
	ClientIDBase string
	// Username for broker authentication (optional)
	Username string
	// Password for broker authentication (optional)
	Password string
	// KeepAlive interval for the MQTT session
	KeepAlive time.Duration
	// ConnectTimeout bounds the wait for the CONNACK
	ConnectTimeout time.Duration
	// PublishTimeout bounds the wait for QoS>0 acknowledgments
	PublishTimeout time.Duration
	// MaxReconnectInterval caps the reconnect backoff (paho starts at 1s)
	MaxReconnectInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.ClientIDBase == "" {
		c.ClientIDBase = "uns-bridge"
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 60 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 10 * time.Second
	}
	if c.MaxReconnectInterval == 0 {
		c.MaxReconnectInterval = 120 * time.Second
	}
}

// Client wraps the paho MQTT client with state tracking and logging.
type Client struct {
	client   mqtt.Client
	logger   *zap.Logger
	config   *Config
	clientID string

	mu         sync.RWMutex
	state      ConnState
	reconnects int
}

// NewClient creates a new MQTT client with the given configuration.
// The broker is not contacted until Connect is called.
func NewClient(config *Config, logger *zap.Logger) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.BrokerURL == "" {
		return nil, fmt.Errorf("broker URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()

	c := &Client{
		logger:   logger,
		config:   config,
		clientID: generateClientID(config.ClientIDBase),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.BrokerURL)
	opts.SetClientID(c.clientID)
	opts.SetCleanSession(true)

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetKeepAlive(config.KeepAlive)
	opts.SetConnectTimeout(config.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(config.MaxReconnectInterval)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.mu.Lock()
		attempts := c.reconnects
		c.state = StateConnected
		c.reconnects = 0
		c.mu.Unlock()

		if attempts > 0 {
			logger.Info("Reconnected to MQTT broker",
				zap.String("broker", config.BrokerURL),
				zap.Int("attempt", attempts))
		} else {
			logger.Info("Connected to MQTT broker",
				zap.String("broker", config.BrokerURL))
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.mu.Lock()
		c.state = StateDisconnected
		c.reconnects++
		c.mu.Unlock()

		reason := ReasonFromError(err)
		if reason == ReasonString(0) {
			logger.Info("Disconnected from MQTT broker",
				zap.String("reason", reason))
		} else {
			logger.Warn("Disconnected from MQTT broker, will auto-reconnect",
				zap.String("reason", reason))
		}
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.setState(StateReconnecting)
	})

	c.client = mqtt.NewClient(opts)

	return c, nil
}

// generateClientID appends a random 8-hex-char suffix to the configured
// base. A duplicate identifier makes the broker evict the older session,
// which turns into an endless mutual-eviction loop between instances.
func generateClientID(base string) string {
	u := uuid.New()
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(u[:4]))
}

// Connect establishes the broker session and starts paho's background
// network loop. It waits up to ConnectTimeout for the CONNACK.
func (c *Client) Connect() error {
	c.setState(StateConnecting)
	c.logger.Info("Connecting to MQTT broker",
		zap.String("broker", c.config.BrokerURL),
		zap.String("client_id", c.clientID))

	token := c.client.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		c.setState(StateDisconnected)
		return fmt.Errorf("connection timeout after %v", c.config.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.setState(StateDisconnected)
		c.logger.Error("Connection failed",
			zap.String("reason", ReasonFromError(err)))
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.setState(StateConnected)
	return nil
}

// EnsureConnected connects if no session is currently established.
// Every bridge operation calls this before touching the broker.
func (c *Client) EnsureConnected() error {
	if c.IsConnected() {
		return nil
	}
	if err := c.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Disconnect stops the background loop and closes the session. Idempotent.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	c.client.Disconnect(250) // 250ms grace period
	c.setState(StateDisconnected)
	c.logger.Info("Disconnected from MQTT broker")
}

// IsConnected reports whether the session is live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()
	return state == StateConnected && c.client.IsConnected()
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Reconnects returns the number of reconnect attempts since the last
// successful connect.
func (c *Client) Reconnects() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnects
}

// ClientID returns the per-process unique client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// Subscribe subscribes to a topic filter with the given handler.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("subscribe %s: %w", filter, ErrNotConnected)
	}

	callback := func(_ mqtt.Client, msg mqtt.Message) {
		handler(pahoMessage{msg})
	}

	token := c.client.Subscribe(filter, qos, callback)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}

	c.logger.Debug("Subscribed to topic", zap.String("filter", filter))
	return nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(filter string) error {
	token := c.client.Unsubscribe(filter)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", filter, err)
	}

	c.logger.Debug("Unsubscribed from topic", zap.String("filter", filter))
	return nil
}

// Publish sends a message and returns the broker-assigned message ID.
// For QoS>0 it blocks up to PublishTimeout for the delivery
// acknowledgment; QoS 0 has no acknowledgment and returns after hand-off.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) (uint16, error) {
	if !c.IsConnected() {
		return 0, fmt.Errorf("publish %s: %w", topic, ErrNotConnected)
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if qos > 0 {
		if !token.WaitTimeout(c.config.PublishTimeout) {
			return 0, fmt.Errorf("publish %s: no acknowledgment within %v", topic, c.config.PublishTimeout)
		}
	}
	if err := token.Error(); err != nil {
		return 0, fmt.Errorf("publish %s: %w", topic, err)
	}

	var messageID uint16
	if pt, ok := token.(*mqtt.PublishToken); ok {
		messageID = pt.MessageID()
	}
	return messageID, nil
}

func (c *Client) setState(state ConnState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// pahoMessage adapts a paho message to the Message interface.
type pahoMessage struct {
	msg mqtt.Message
}

func (m pahoMessage) Topic() string   { return m.msg.Topic() }
func (m pahoMessage) Payload() []byte { return m.msg.Payload() }
func (m pahoMessage) QoS() byte       { return m.msg.Qos() }
func (m pahoMessage) Retained() bool  { return m.msg.Retained() }
