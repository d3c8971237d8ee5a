package bridge

import (
	"regexp"
	"strings"
)

// patternKind is the matching tier chosen for a search pattern.
type patternKind int

const (
	kindBrokerWildcard patternKind = iota
	kindGlob
	kindKeyword
)

// classifyPattern picks the matching tier. MQTT wildcards take precedence
// over glob characters so that # and + keep their broker meaning even in
// patterns that also contain * or ?; the three tiers have different
// anchoring semantics and collapsing them would mis-match where the
// character sets overlap.
func classifyPattern(pattern string) patternKind {
	if strings.ContainsAny(pattern, "+#") {
		return kindBrokerWildcard
	}
	if strings.ContainsAny(pattern, "*?") {
		return kindGlob
	}
	return kindKeyword
}

// MatchTopics returns the subset of topics whose paths match pattern.
// Classification is deterministic: the same pattern always selects the
// same tier.
//
// Tier 1, broker wildcard: anchored full-path match, + is exactly one
// segment, # is zero or more trailing segments.
// Tier 2, glob: the glob matches anywhere in the path (implicit leading
// and trailing wildcards).
// Tier 3, keyword: case-insensitive substring.
func MatchTopics(all map[string]Snapshot, pattern string) map[string]Snapshot {
	matched := make(map[string]Snapshot)

	switch classifyPattern(pattern) {
	case kindBrokerWildcard:
		re := brokerWildcardRegexp(pattern)
		for topic, snap := range all {
			if re.MatchString(topic) {
				matched[topic] = snap
			}
		}
	case kindGlob:
		re := globRegexp(pattern)
		for topic, snap := range all {
			if re.MatchString(topic) {
				matched[topic] = snap
			}
		}
	default:
		needle := strings.ToLower(pattern)
		for topic, snap := range all {
			if strings.Contains(strings.ToLower(topic), needle) {
				matched[topic] = snap
			}
		}
	}

	return matched
}

// brokerWildcardRegexp compiles an MQTT wildcard pattern into an anchored
// regular expression.
func brokerWildcardRegexp(pattern string) *regexp.Regexp {
	segments := strings.Split(pattern, "/")

	var parts []string
	multiTail := false
	for i, seg := range segments {
		if seg == "#" && i == len(segments)-1 {
			multiTail = true
			break
		}
		switch seg {
		case "+":
			parts = append(parts, "[^/]+")
		case "#":
			// Non-final # is invalid per the protocol; match permissively.
			parts = append(parts, ".*")
		default:
			parts = append(parts, regexp.QuoteMeta(seg))
		}
	}

	expr := "^" + strings.Join(parts, "/")
	if multiTail {
		if len(parts) == 0 {
			expr += ".*"
		} else {
			expr += "(?:/.*)?"
		}
	}
	expr += "$"

	return regexp.MustCompile(expr)
}

// globRegexp translates a shell-style glob (* and ?) into an unanchored
// regular expression, so the glob matches as a substring of the path.
func globRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return regexp.MustCompile(b.String())
}
