// Topic path helpers for the unified namespace.
//
// Topic paths are /-delimited and opaque to the bridge except for the
// subscription wildcards: + matches exactly one segment, # matches any
// remaining segments and is only valid as the final one.
package mqtt

import (
	"fmt"
	"strings"
)

const (
	// WildcardSingleLevel matches exactly one topic segment.
	WildcardSingleLevel = "+"
	// WildcardMultiLevel matches zero or more trailing segments.
	WildcardMultiLevel = "#"
	// TopicSeparator delimits topic path segments.
	TopicSeparator = "/"

	// FilterAllTopics subscribes to every topic on the broker.
	FilterAllTopics = "#"
)

// HasWildcard reports whether a topic contains subscription wildcards.
func HasWildcard(topic string) bool {
	return strings.ContainsAny(topic, WildcardSingleLevel+WildcardMultiLevel)
}

// ValidatePublishTopic rejects topics that must never be published to:
// empty paths and paths containing wildcard characters.
func ValidatePublishTopic(topic string) error {
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if HasWildcard(topic) {
		return fmt.Errorf("cannot publish to wildcard topics (%s or %s)",
			WildcardMultiLevel, WildcardSingleLevel)
	}
	return nil
}

// ValidateQoS rejects QoS levels outside the protocol's 0, 1, 2.
func ValidateQoS(qos int) error {
	if qos < 0 || qos > 2 {
		return fmt.Errorf("invalid QoS level: %d, must be 0, 1, or 2", qos)
	}
	return nil
}
