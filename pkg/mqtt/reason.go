package mqtt

import (
	"errors"
	"fmt"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// reasonStrings maps MQTT connect/disconnect codes to human-readable
// strings. Covers the MQTT 3.1.1 CONNACK return codes (0-5) plus the
// MQTT 5 reason-code range so both protocol generations decode to the
// same stable text.
var reasonStrings = map[byte]string{
	0:   "Normal disconnection",
	1:   "Incorrect protocol version",
	2:   "Invalid client identifier",
	3:   "Server unavailable",
	4:   "Bad username or password",
	5:   "Not authorized",
	7:   "Unexpected disconnect (no DISCONNECT packet)",
	16:  "Normal disconnection",
	128: "Unspecified error",
	129: "Malformed packet",
	130: "Protocol error",
	131: "Implementation specific error",
	132: "Unsupported protocol version",
	133: "Client identifier not valid",
	134: "Bad username or password",
	135: "Not authorized",
	136: "Server unavailable",
	137: "Server busy",
	138: "Banned",
	139: "Server shutting down",
	140: "Bad authentication method",
	141: "Keep alive timeout",
	142: "Session taken over",
	143: "Topic filter invalid",
	144: "Topic name invalid",
	147: "Receive maximum exceeded",
	148: "Topic alias invalid",
	149: "Packet too large",
	150: "Message rate too high",
	151: "Quota exceeded",
	152: "Administrative action",
	153: "Payload format invalid",
	154: "Retain not supported",
	155: "QoS not supported",
	156: "Use another server",
	157: "Server moved",
	158: "Shared subscriptions not supported",
	159: "Connection rate exceeded",
	160: "Maximum connect time",
	161: "Subscription identifiers not supported",
	162: "Wildcard subscriptions not supported",
}

// ReasonString translates a connect/disconnect reason code into a
// human-readable string. Unknown codes render as "Unknown (n)".
func ReasonString(code byte) string {
	if s, ok := reasonStrings[code]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", code)
}

// IsNormalDisconnect reports whether a reason code represents a normal,
// expected disconnection (0 or 16, depending on protocol generation).
func IsNormalDisconnect(code byte) bool {
	return code == 0 || code == 16
}

// ReasonFromError decodes an error from the paho client into the same
// strings as ReasonString. Paho surfaces CONNACK rejections as sentinel
// error values rather than codes, so those are matched back onto the
// table; anything else falls through to the error's own text.
func ReasonFromError(err error) string {
	if err == nil {
		return ReasonString(0)
	}
	for code, known := range packets.ConnErrors {
		if known == nil {
			continue
		}
		if errors.Is(err, known) {
			return ReasonString(code)
		}
	}
	return err.Error()
}
