package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unklstewy/uns-bridge/internal/bridge"
	"github.com/unklstewy/uns-bridge/pkg/mqtt"
)

// fakeEngine is a canned-response engine for handler tests.
type fakeEngine struct {
	discovered  map[string]bridge.Snapshot
	discoverErr error

	readSnap  bridge.Snapshot
	readFound bool
	readErr   error

	searchMatches map[string]bridge.Snapshot
	searchTotal   int
	searchErr     error

	publishResult bridge.PublishResult

	lastTimeout time.Duration
}

func (f *fakeEngine) Discover(_ context.Context, pattern string, dwell time.Duration) (map[string]bridge.Snapshot, error) {
	f.lastTimeout = dwell
	return f.discovered, f.discoverErr
}

func (f *fakeEngine) Read(_ context.Context, topic string, timeout time.Duration) (bridge.Snapshot, bool, error) {
	f.lastTimeout = timeout
	return f.readSnap, f.readFound, f.readErr
}

func (f *fakeEngine) Search(_ context.Context, pattern string, dwell time.Duration) (map[string]bridge.Snapshot, int, error) {
	f.lastTimeout = dwell
	return f.searchMatches, f.searchTotal, f.searchErr
}

func (f *fakeEngine) Publish(_ context.Context, topic, payload string, retain bool, qos int) bridge.PublishResult {
	return f.publishResult
}

func toolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestListTopicsFormatsSortedListing(t *testing.T) {
	engine := &fakeEngine{discovered: map[string]bridge.Snapshot{
		"b/topic": {Topic: "b/topic", Payload: "2"},
		"a/topic": {Topic: "a/topic", Payload: "1"},
	}}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleListTopics(context.Background(), toolRequest("list_uns_topics", nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "Discovered 2 topics:\n"))
	aIdx := strings.Index(text, "• a/topic: 1")
	bIdx := strings.Index(text, "• b/topic: 2")
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, bIdx)
	assert.Less(t, aIdx, bIdx, "listing must be sorted by topic path")
}

func TestListTopicsTruncatesLongPayloads(t *testing.T) {
	long := strings.Repeat("x", 150)
	engine := &fakeEngine{discovered: map[string]bridge.Snapshot{
		"a/b": {Topic: "a/b", Payload: long},
	}}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleListTopics(context.Background(), toolRequest("list_uns_topics", nil))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, strings.Repeat("x", 100)+"...")
	assert.NotContains(t, text, strings.Repeat("x", 101))
}

func TestListTopicsEmptyNamespace(t *testing.T) {
	engine := &fakeEngine{discovered: map[string]bridge.Snapshot{}}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleListTopics(context.Background(),
		toolRequest("list_uns_topics", map[string]any{"base_path": "factory/#", "timeout": 2.0}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "No topics discovered with pattern 'factory/#' within 2 seconds")
	assert.Equal(t, 2*time.Second, engine.lastTimeout)
}

func TestListTopicsConnectionError(t *testing.T) {
	engine := &fakeEngine{
		discoverErr: fmt.Errorf("%w: dial refused", mqtt.ErrNotConnected),
	}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleListTopics(context.Background(), toolRequest("list_uns_topics", nil))
	require.NoError(t, err, "handler failures surface as result text, never as errors")

	assert.Contains(t, resultText(t, result), "Connection error:")
}

func TestListTopicsDefaultTimeout(t *testing.T) {
	engine := &fakeEngine{discovered: map[string]bridge.Snapshot{}}
	srv := NewServer(engine, zap.NewNop())

	_, err := srv.handleListTopics(context.Background(), toolRequest("list_uns_topics", nil))
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, engine.lastTimeout)
}

func TestGetTopicValueRequiresTopic(t *testing.T) {
	srv := NewServer(&fakeEngine{}, zap.NewNop())

	result, err := srv.handleGetTopicValue(context.Background(), toolRequest("get_topic_value", nil))
	require.NoError(t, err)

	assert.Equal(t, "Error: 'topic' parameter is required", resultText(t, result))
}

func TestGetTopicValueSuccess(t *testing.T) {
	received := time.Date(2026, 8, 23, 14, 30, 0, 0, time.Local)
	engine := &fakeEngine{
		readSnap: bridge.Snapshot{
			Topic:      "sensors/room1/temp",
			Payload:    "72.5",
			QoS:        1,
			Retained:   true,
			ReceivedAt: received,
		},
		readFound: true,
	}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleGetTopicValue(context.Background(),
		toolRequest("get_topic_value", map[string]any{"topic": "sensors/room1/temp"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Topic: sensors/room1/temp")
	assert.Contains(t, text, "Value: 72.5")
	assert.Contains(t, text, "QoS: 1")
	assert.Contains(t, text, "Retained: true")
	assert.Contains(t, text, "Received at: 2026-08-23 14:30:00")
	assert.Equal(t, 5*time.Second, engine.lastTimeout)
}

func TestGetTopicValueNotFound(t *testing.T) {
	engine := &fakeEngine{readFound: false}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleGetTopicValue(context.Background(),
		toolRequest("get_topic_value", map[string]any{"topic": "a/b", "timeout": 1.5}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "No message received on topic 'a/b' within 1.5 seconds")
	assert.Contains(t, text, "may not exist or have no retained message")
}

func TestSearchTopicsRequiresPattern(t *testing.T) {
	srv := NewServer(&fakeEngine{}, zap.NewNop())

	result, err := srv.handleSearchTopics(context.Background(), toolRequest("search_topics", nil))
	require.NoError(t, err)

	assert.Equal(t, "Error: 'pattern' parameter is required", resultText(t, result))
}

func TestSearchTopicsFound(t *testing.T) {
	engine := &fakeEngine{
		searchMatches: map[string]bridge.Snapshot{
			"line1/speed": {Topic: "line1/speed", Payload: "10"},
		},
		searchTotal: 5,
	}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleSearchTopics(context.Background(),
		toolRequest("search_topics", map[string]any{"pattern": "*speed*"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "Found 1 topics matching '*speed*':\n"))
	assert.Contains(t, text, "• line1/speed: 10")
}

func TestSearchTopicsNoMatches(t *testing.T) {
	engine := &fakeEngine{searchMatches: map[string]bridge.Snapshot{}, searchTotal: 7}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleSearchTopics(context.Background(),
		toolRequest("search_topics", map[string]any{"pattern": "missing"}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "No topics found matching pattern 'missing'")
	assert.Contains(t, text, "Searched through 7 available topics")
}

func TestSearchTopicsEmptyNamespace(t *testing.T) {
	engine := &fakeEngine{searchMatches: map[string]bridge.Snapshot{}, searchTotal: 0}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handleSearchTopics(context.Background(),
		toolRequest("search_topics", map[string]any{"pattern": "x"}))
	require.NoError(t, err)

	assert.Contains(t, resultText(t, result), "No topics discovered to search through")
}

func TestPublishMessageRequiresTopicAndPayload(t *testing.T) {
	srv := NewServer(&fakeEngine{}, zap.NewNop())

	result, err := srv.handlePublishMessage(context.Background(),
		toolRequest("publish_message", map[string]any{"payload": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "Error: 'topic' parameter is required", resultText(t, result))

	result, err = srv.handlePublishMessage(context.Background(),
		toolRequest("publish_message", map[string]any{"topic": "a/b"}))
	require.NoError(t, err)
	assert.Equal(t, "Error: 'payload' parameter is required", resultText(t, result))
}

func TestPublishMessageSuccess(t *testing.T) {
	stamp := time.Date(2026, 8, 23, 9, 0, 0, 0, time.Local)
	engine := &fakeEngine{publishResult: bridge.PublishResult{
		Success:   true,
		Topic:     "flexpack/test/claude",
		Payload:   "hello",
		Retain:    true,
		QoS:       1,
		MessageID: 42,
		Timestamp: stamp,
	}}
	srv := NewServer(engine, zap.NewNop())

	result, err := srv.handlePublishMessage(context.Background(),
		toolRequest("publish_message", map[string]any{
			"topic": "flexpack/test/claude", "payload": "hello", "retain": true,
		}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.True(t, strings.HasPrefix(text, "✓ Message published successfully!"))
	assert.Contains(t, text, "Topic: flexpack/test/claude")
	assert.Contains(t, text, "Payload: hello")
	assert.Contains(t, text, "Retain: true")
	assert.Contains(t, text, "QoS: 1")
	assert.Contains(t, text, "Message ID: 42")
	assert.Contains(t, text, "Timestamp: 2026-08-23 09:00:00")
}

func TestPublishMessageErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		result     bridge.PublishResult
		wantInText string
	}{
		{
			"validation",
			bridge.PublishResult{Success: false, ErrorCode: bridge.ErrCodeValidation, Error: "cannot publish to wildcard topics (# or +)"},
			"Validation error: cannot publish to wildcard topics",
		},
		{
			"connection",
			bridge.PublishResult{Success: false, ErrorCode: bridge.ErrCodeConnection, Error: "not connected to MQTT broker"},
			"Connection error: not connected",
		},
		{
			"broker",
			bridge.PublishResult{Success: false, ErrorCode: bridge.ErrCodePublish, Error: "quota exceeded"},
			"✗ Publish failed: quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeEngine{publishResult: tt.result}, zap.NewNop())

			result, err := srv.handlePublishMessage(context.Background(),
				toolRequest("publish_message", map[string]any{"topic": "a/b", "payload": "v"}))
			require.NoError(t, err)

			assert.Contains(t, resultText(t, result), tt.wantInText)
		})
	}
}
