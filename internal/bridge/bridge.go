// Package bridge implements the UNS engine: time-boxed topic discovery,
// fresh single-topic reads, pattern search, and validated publishing
// over a shared MQTT session.
package bridge

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unklstewy/uns-bridge/pkg/mqtt"
)

// subscribeQoS is the QoS used for discovery and read subscriptions, so
// retained messages and live publishes arrive with at-least-once delivery.
const subscribeQoS byte = 1

// Broker is the subset of the MQTT client the engine depends on.
type Broker interface {
	EnsureConnected() error
	IsConnected() bool
	Subscribe(filter string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(filter string) error
	Publish(topic string, qos byte, retained bool, payload []byte) (uint16, error)
}

// Engine owns the last-value cache and runs the four UNS operations.
type Engine struct {
	broker Broker
	logger *zap.Logger
	cache  *messageCache

	// opMu serializes every discover/read sequence so one sweep's
	// clear+collect cannot be interleaved with another's. Publish does
	// not touch the cache and does not take it.
	opMu sync.Mutex
}

// New creates an engine on top of a broker session.
func New(broker Broker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		broker: broker,
		logger: logger.With(zap.String("component", "bridge")),
		cache:  newMessageCache(),
	}
}

// handleMessage records a received message as the topic's latest
// snapshot. Invoked from paho's network goroutine; Store is the only
// blocking call and holds the cache lock for a map write.
func (e *Engine) handleMessage(msg mqtt.Message) {
	e.cache.Store(Snapshot{
		Topic:      msg.Topic(),
		Payload:    string(msg.Payload()),
		QoS:        msg.QoS(),
		Retained:   msg.Retained(),
		ReceivedAt: time.Now(),
	})
}

// CacheSize returns the number of topics currently cached.
func (e *Engine) CacheSize() int {
	return e.cache.Len()
}

// Discover enumerates topics by subscribing to a wildcard pattern and
// collecting retained and live messages for exactly dwell. The window is
// fixed: the broker has no topic-listing operation, so discovery is a
// bounded listening window, not a query, and its cost is always >= dwell.
func (e *Engine) Discover(ctx context.Context, pattern string, dwell time.Duration) (map[string]Snapshot, error) {
	if err := e.broker.EnsureConnected(); err != nil {
		return nil, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.cache.Clear()
	if err := e.broker.Subscribe(pattern, subscribeQoS, e.handleMessage); err != nil {
		return nil, err
	}

	e.logger.Info("Collecting topics",
		zap.String("pattern", pattern),
		zap.Duration("dwell", dwell))

	timer := time.NewTimer(dwell)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := e.broker.Unsubscribe(pattern); err != nil {
		e.logger.Warn("Unsubscribe failed",
			zap.String("pattern", pattern), zap.Error(err))
	}

	topics := e.cache.All()
	e.logger.Info("Discovery complete",
		zap.String("pattern", pattern),
		zap.Int("topics", len(topics)))
	return topics, nil
}

// Read returns a fresh snapshot for a single topic: the broker's retained
// message delivered on subscribe, or the next live publish, whichever
// lands first within timeout. Any stale cache entry for the topic is
// dropped first so an earlier sweep's leftover can never satisfy the
// read.
//
// A publish landing between the cache delete and the subscribe taking
// effect is missed. Subscribe completes in milliseconds against
// multi-second timeouts, so the window is accepted.
func (e *Engine) Read(ctx context.Context, topic string, timeout time.Duration) (Snapshot, bool, error) {
	if err := e.broker.EnsureConnected(); err != nil {
		return Snapshot{}, false, err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.cache.Delete(topic)
	if err := e.broker.Subscribe(topic, subscribeQoS, e.handleMessage); err != nil {
		return Snapshot{}, false, err
	}

	e.logger.Info("Waiting for message",
		zap.String("topic", topic),
		zap.Duration("timeout", timeout))

	snap, ok := e.cache.WaitFor(ctx, topic, timeout)

	if err := e.broker.Unsubscribe(topic); err != nil {
		e.logger.Warn("Unsubscribe failed",
			zap.String("topic", topic), zap.Error(err))
	}

	return snap, ok, nil
}

// Search discovers the full namespace and filters it by pattern. It
// returns the matches and the total number of topics searched.
func (e *Engine) Search(ctx context.Context, pattern string, dwell time.Duration) (map[string]Snapshot, int, error) {
	all, err := e.Discover(ctx, mqtt.FilterAllTopics, dwell)
	if err != nil {
		return nil, 0, err
	}
	return MatchTopics(all, pattern), len(all), nil
}

// PublishResult is the structured outcome of a publish attempt. Failures
// are data, not errors: callers always get a result they can render.
type PublishResult struct {
	Success   bool
	Topic     string
	Payload   string
	Retain    bool
	QoS       int
	MessageID uint16
	Timestamp time.Time
	Error     string
	ErrorCode string
}

// Publish error codes.
const (
	ErrCodeValidation = "validation_error"
	ErrCodeConnection = "connection_error"
	ErrCodePublish    = "publish_error"
)

// Publish validates and publishes a single message. Validation happens
// before any broker interaction; at QoS>0 the call blocks for the
// broker's acknowledgment (bounded by the client's publish timeout).
func (e *Engine) Publish(ctx context.Context, topic, payload string, retain bool, qos int) PublishResult {
	if err := mqtt.ValidateQoS(qos); err != nil {
		return publishFailure(topic, ErrCodeValidation, err)
	}
	if err := mqtt.ValidatePublishTopic(topic); err != nil {
		return publishFailure(topic, ErrCodeValidation, err)
	}

	// Audit trail: every attempt is logged with its parameters, whatever
	// the outcome; this tool writes to a shared namespace.
	e.logger.Info("Publishing message",
		zap.String("topic", topic),
		zap.String("payload", truncatePayload(payload)),
		zap.Bool("retain", retain),
		zap.Int("qos", qos))

	if err := e.broker.EnsureConnected(); err != nil {
		return publishFailure(topic, ErrCodeConnection, err)
	}

	messageID, err := e.broker.Publish(topic, byte(qos), retain, []byte(payload))
	if err != nil {
		e.logger.Error("Publish failed",
			zap.String("topic", topic), zap.Error(err))
		return publishFailure(topic, ErrCodePublish, err)
	}

	e.logger.Info("Published message",
		zap.String("topic", topic),
		zap.Uint16("message_id", messageID))

	return PublishResult{
		Success:   true,
		Topic:     topic,
		Payload:   payload,
		Retain:    retain,
		QoS:       qos,
		MessageID: messageID,
		Timestamp: time.Now(),
	}
}

func publishFailure(topic, code string, err error) PublishResult {
	return PublishResult{
		Success:   false,
		Topic:     topic,
		Error:     err.Error(),
		ErrorCode: code,
	}
}

// truncatePayload shortens payloads for log lines.
func truncatePayload(payload string) string {
	if len(payload) > 100 {
		return payload[:100] + "..."
	}
	return payload
}
