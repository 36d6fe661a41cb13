package mqtt

import "fmt"

// DefaultTopicPrefix is the base of the fritzcore topic tree. It can be
// overridden per installation via mqtt.topic_prefix in config.yaml.
const DefaultTopicPrefix = "fritzcore"

// Topics builds fritzcore MQTT topic names. Using these helpers keeps
// topic naming consistent across publishers and subscribers.
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
//	topic := topics.CallEvent("ring")
//	// Returns: "fritzcore/call/ring"
type Topics struct {
	// Prefix overrides DefaultTopicPrefix when non-empty.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix != "" {
		return t.Prefix
	}
	return DefaultTopicPrefix
}

// CallEvent returns the topic for one call event type. The event type
// is the lowercased second field of the monitor line (ring, call,
// connect, disconnect).
//
// Example: fritzcore/call/ring
func (t Topics) CallEvent(eventType string) string {
	return fmt.Sprintf("%s/call/%s", t.prefix(), eventType)
}

// SystemStatus returns the service status topic used for the online and
// offline announcements including the last will.
//
// Example: fritzcore/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// RouterIdentity returns the topic carrying the discovered router
// identity (model name and software version), published retained after
// a successful discovery.
//
// Example: fritzcore/router/identity
func (t Topics) RouterIdentity() string {
	return fmt.Sprintf("%s/router/identity", t.prefix())
}
