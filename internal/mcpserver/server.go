// Package mcpserver exposes the bridge engine as MCP tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/unklstewy/uns-bridge/internal/bridge"
	"github.com/unklstewy/uns-bridge/pkg/mqtt"
)

// Tool schema defaults, in seconds.
const (
	defaultDiscoverTimeout = 3.0
	defaultReadTimeout     = 5.0
	defaultSearchTimeout   = 3.0
)

// Engine is the subset of the bridge engine the tool handlers use.
type Engine interface {
	Discover(ctx context.Context, pattern string, dwell time.Duration) (map[string]bridge.Snapshot, error)
	Read(ctx context.Context, topic string, timeout time.Duration) (bridge.Snapshot, bool, error)
	Search(ctx context.Context, pattern string, dwell time.Duration) (map[string]bridge.Snapshot, int, error)
	Publish(ctx context.Context, topic, payload string, retain bool, qos int) bridge.PublishResult
}

// Server is the MCP server for the UNS bridge.
type Server struct {
	mcpServer *server.MCPServer
	engine    Engine
	logger    *zap.Logger
}

// NewServer creates the MCP server and registers the four UNS tools.
func NewServer(engine Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		"uns-bridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		engine:    engine,
		logger:    logger.With(zap.String("component", "mcpserver")),
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_uns_topics",
		mcp.WithDescription("Discover available topics in the UNS (Unified Namespace) by subscribing to a wildcard pattern and collecting messages for a brief period. Use this to explore what data is available in the MQTT broker. Returns a list of topic paths with their current values."),
		mcp.WithString("base_path",
			mcp.Description("MQTT wildcard pattern to subscribe to. Use '#' for all topics, or a specific path like 'flexpack/#' for a subtree. Default is '#' (all topics)."),
			mcp.DefaultString("#"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("How long to collect messages in seconds. Longer timeout = more topics discovered. Default is 3 seconds."),
			mcp.DefaultNumber(defaultDiscoverTimeout),
		),
	)

	getTool := mcp.NewTool("get_topic_value",
		mcp.WithDescription("Read the current retained value from a specific MQTT topic. Use this when you know the exact topic path and want to read its current value. Example topic: 'flexpack/packaging/line1/filler/speed'"),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Full topic path to read, e.g., 'flexpack/packaging/line1/filler/speed'"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("How long to wait for a message in seconds. Default is 5 seconds."),
			mcp.DefaultNumber(defaultReadTimeout),
		),
	)

	searchTool := mcp.NewTool("search_topics",
		mcp.WithDescription("Find topics matching a pattern or keyword. Use this when you want to find topics by name without knowing the exact path. Supports glob patterns (*, ?) and simple keyword search."),
		mcp.WithString("pattern",
			mcp.Required(),
			mcp.Description("Search pattern or keyword. Can be: 1) A simple keyword to search in topic names (e.g., 'temperature'), 2) A glob pattern with wildcards (e.g., '*speed*', 'line1/*'), 3) An MQTT wildcard pattern (e.g., 'flexpack/+/line1/#')"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("How long to collect topics before searching in seconds. Default is 3 seconds."),
			mcp.DefaultNumber(defaultSearchTimeout),
		),
	)

	publishTool := mcp.NewTool("publish_message",
		mcp.WithDescription("Publish a message to a specific MQTT topic in the UNS. Use this to write data back to the Unified Namespace. Example: publish 'hello from claude' to 'flexpack/test/claude'. WARNING: This writes to the live MQTT broker - use with caution."),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("Full topic path to publish to, e.g., 'flexpack/test/claude'. Cannot contain wildcards (# or +)."),
		),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("The message payload to publish. Can be any string value, including JSON-formatted data."),
		),
		mcp.WithBoolean("retain",
			mcp.Description("Whether to retain the message on the broker. Retained messages are stored and sent to new subscribers. Default is false."),
			mcp.DefaultBool(false),
		),
		mcp.WithNumber("qos",
			mcp.Description("Quality of Service level: 0 (at most once), 1 (at least once), or 2 (exactly once). Default is 1."),
			mcp.DefaultNumber(1),
		),
	)

	s.mcpServer.AddTool(listTool, s.handleListTopics)
	s.mcpServer.AddTool(getTool, s.handleGetTopicValue)
	s.mcpServer.AddTool(searchTool, s.handleSearchTopics)
	s.mcpServer.AddTool(publishTool, s.handlePublishMessage)
}

// Run serves the MCP protocol on stdio until the transport closes.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// handleListTopics handles the list_uns_topics tool call.
func (s *Server) handleListTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	basePath := request.GetString("base_path", "#")
	timeout := request.GetFloat("timeout", defaultDiscoverTimeout)

	topics, err := s.engine.Discover(ctx, basePath, secondsToDuration(timeout))
	if err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return mcp.NewToolResultText(fmt.Sprintf("Connection error: %v", err)), nil
		}
		s.logger.Error("Error in list_uns_topics", zap.Error(err))
		return mcp.NewToolResultText(fmt.Sprintf("Error discovering topics: %v", err)), nil
	}

	if len(topics) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No topics discovered with pattern '%s' within %s seconds. "+
				"The broker may have no retained messages, or the pattern may not match any topics.",
			basePath, formatSeconds(timeout))), nil
	}

	return mcp.NewToolResultText(formatTopicListing(
		fmt.Sprintf("Discovered %d topics:", len(topics)), topics)), nil
}

// handleGetTopicValue handles the get_topic_value tool call.
func (s *Server) handleGetTopicValue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := request.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultText("Error: 'topic' parameter is required"), nil
	}
	timeout := request.GetFloat("timeout", defaultReadTimeout)

	snap, found, err := s.engine.Read(ctx, topic, secondsToDuration(timeout))
	if err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return mcp.NewToolResultText(fmt.Sprintf("Connection error: %v", err)), nil
		}
		s.logger.Error("Error in get_topic_value", zap.Error(err))
		return mcp.NewToolResultText(fmt.Sprintf("Error reading topic: %v", err)), nil
	}

	if !found {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No message received on topic '%s' within %s seconds. "+
				"The topic may not exist or have no retained message.",
			topic, formatSeconds(timeout))), nil
	}

	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

// handleSearchTopics handles the search_topics tool call.
func (s *Server) handleSearchTopics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern := request.GetString("pattern", "")
	if pattern == "" {
		return mcp.NewToolResultText("Error: 'pattern' parameter is required"), nil
	}
	timeout := request.GetFloat("timeout", defaultSearchTimeout)

	matches, searched, err := s.engine.Search(ctx, pattern, secondsToDuration(timeout))
	if err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return mcp.NewToolResultText(fmt.Sprintf("Connection error: %v", err)), nil
		}
		s.logger.Error("Error in search_topics", zap.Error(err))
		return mcp.NewToolResultText(fmt.Sprintf("Error searching topics: %v", err)), nil
	}

	if searched == 0 {
		return mcp.NewToolResultText(
			"No topics discovered to search through. " +
				"The broker may have no retained messages."), nil
	}

	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf(
			"No topics found matching pattern '%s'. Searched through %d available topics.",
			pattern, searched)), nil
	}

	return mcp.NewToolResultText(formatTopicListing(
		fmt.Sprintf("Found %d topics matching '%s':", len(matches), pattern), matches)), nil
}

// handlePublishMessage handles the publish_message tool call.
func (s *Server) handlePublishMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := request.GetString("topic", "")
	if topic == "" {
		return mcp.NewToolResultText("Error: 'topic' parameter is required"), nil
	}
	payload, err := request.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultText("Error: 'payload' parameter is required"), nil
	}
	retain := request.GetBool("retain", false)
	qos := request.GetInt("qos", 1)

	result := s.engine.Publish(ctx, topic, payload, retain, qos)

	if result.Success {
		return mcp.NewToolResultText(formatPublishSuccess(result)), nil
	}

	switch result.ErrorCode {
	case bridge.ErrCodeValidation:
		return mcp.NewToolResultText(fmt.Sprintf("Validation error: %s", result.Error)), nil
	case bridge.ErrCodeConnection:
		return mcp.NewToolResultText(fmt.Sprintf("Connection error: %s", result.Error)), nil
	default:
		return mcp.NewToolResultText(fmt.Sprintf("✗ Publish failed: %s", result.Error)), nil
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
