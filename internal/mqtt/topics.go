package mqtt

import (
	"fmt"
	"regexp"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	// lock platform payloads: the HA lock integration speaks
	// LOCK/UNLOCK + LOCKED/UNLOCKED, not generic on/off
	MQTT_PAYLOAD_LOCK     = "LOCK"
	MQTT_PAYLOAD_UNLOCK   = "UNLOCK"
	MQTT_PAYLOAD_LOCKED   = "LOCKED"
	MQTT_PAYLOAD_UNLOCKED = "UNLOCKED"
)

// ParsedCommand is an inbound command decoded from a local MQTT topic.
type ParsedCommand struct {
	EntityID string
	Command  string
	Payload  string
}

// Topics builds the external topic namespace. Entity IDs passed in are
// always derived from zone database IDs; this type never sees zone numbers.
type Topics struct {
	discoveryBase string
}

func NewTopics(discoveryBase string) Topics {
	if discoveryBase == "" {
		discoveryBase = "homeassistant"
	}
	return Topics{discoveryBase: discoveryBase}
}

// BridgeStateTopic is the bridge availability topic. It doubles as the LWT
// topic so the broker flips entities unavailable when the bridge dies.
func BridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

func (t Topics) Discovery(platform, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.discoveryBase, platform, entityID)
}

func (t Topics) State(platform, entityID string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.discoveryBase, platform, entityID)
}

func (t Topics) ClimateSetTemperature(entityID string) string {
	return fmt.Sprintf("%s/climate/%s/set_temperature", t.discoveryBase, entityID)
}

func (t Topics) ClimateSetMode(entityID string) string {
	return fmt.Sprintf("%s/climate/%s/set_mode", t.discoveryBase, entityID)
}

func (t Topics) ClimateSetPreset(entityID string) string {
	return fmt.Sprintf("%s/climate/%s/set_preset", t.discoveryBase, entityID)
}

func (t Topics) LockSet(entityID string) string {
	return fmt.Sprintf("%s/lock/%s/set", t.discoveryBase, entityID)
}

// CommandWildcards are the subscriptions covering every command topic.
func (t Topics) CommandWildcards() []string {
	return []string{
		fmt.Sprintf("%s/climate/+/set_temperature", t.discoveryBase),
		fmt.Sprintf("%s/climate/+/set_mode", t.discoveryBase),
		fmt.Sprintf("%s/climate/+/set_preset", t.discoveryBase),
		fmt.Sprintf("%s/lock/+/set", t.discoveryBase),
	}
}

func (t Topics) commandRegexp() *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`^%s/(?:climate/([a-zA-Z0-9_]+)/(set_temperature|set_mode|set_preset)|lock/([a-zA-Z0-9_]+)/(set))$`,
		regexp.QuoteMeta(t.discoveryBase)))
}

// ParseCommand decodes a command topic + payload. Returns nil for topics
// that are not commands.
func (t Topics) ParseCommand(topic, payload string) *ParsedCommand {
	matches := t.commandRegexp().FindStringSubmatch(topic)
	if matches == nil {
		return nil
	}
	if matches[1] != "" {
		return &ParsedCommand{EntityID: matches[1], Command: matches[2], Payload: payload}
	}
	return &ParsedCommand{EntityID: matches[3], Command: "set_lock", Payload: payload}
}
