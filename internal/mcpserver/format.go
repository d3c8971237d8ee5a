package mcpserver

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/unklstewy/uns-bridge/internal/bridge"
)

// maxPayloadDisplay bounds payloads in listings for readability.
const maxPayloadDisplay = 100

const timestampLayout = "2006-01-02 15:04:05"

// formatTopicListing renders a header plus one bulleted line per topic,
// sorted by topic path.
func formatTopicListing(header string, topics map[string]bridge.Snapshot) string {
	paths := make([]string, 0, len(topics))
	for path := range topics {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	lines := []string{header + "\n"}
	for _, path := range paths {
		lines = append(lines, fmt.Sprintf("  • %s: %s", path, truncate(topics[path].Payload)))
	}
	return strings.Join(lines, "\n")
}

// formatSnapshot renders a single topic read.
func formatSnapshot(snap bridge.Snapshot) string {
	lines := []string{
		fmt.Sprintf("Topic: %s", snap.Topic),
		fmt.Sprintf("Value: %s", snap.Payload),
		fmt.Sprintf("QoS: %d", snap.QoS),
		fmt.Sprintf("Retained: %t", snap.Retained),
		fmt.Sprintf("Received at: %s", snap.ReceivedAt.Format(timestampLayout)),
	}
	return strings.Join(lines, "\n")
}

// formatPublishSuccess renders a successful publish confirmation.
func formatPublishSuccess(result bridge.PublishResult) string {
	lines := []string{
		"✓ Message published successfully!",
		"",
		fmt.Sprintf("Topic: %s", result.Topic),
		fmt.Sprintf("Payload: %s", result.Payload),
		fmt.Sprintf("Retain: %t", result.Retain),
		fmt.Sprintf("QoS: %d", result.QoS),
		fmt.Sprintf("Message ID: %d", result.MessageID),
		fmt.Sprintf("Timestamp: %s", result.Timestamp.Format(timestampLayout)),
	}
	return strings.Join(lines, "\n")
}

// formatSeconds renders a timeout without trailing zeros (3, not 3.000000).
func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

func truncate(payload string) string {
	if len(payload) > maxPayloadDisplay {
		return payload[:maxPayloadDisplay] + "..."
	}
	return payload
}
