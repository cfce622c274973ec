package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClimateSetTemperatureCommand(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	cmd := topics.ParseCommand("homeassistant/climate/rehau_5f1a2b3c/set_temperature", "21.5")
	if assert.NotNil(cmd) {
		assert.Equal("rehau_5f1a2b3c", cmd.EntityID, "entity extract")
		assert.Equal("set_temperature", cmd.Command)
		assert.Equal("21.5", cmd.Payload)
	}
}

func TestParseClimateSetModeCommand(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	cmd := topics.ParseCommand("homeassistant/climate/rehau_5f1a2b3c/set_mode", "heat")
	if assert.NotNil(cmd) {
		assert.Equal("set_mode", cmd.Command)
	}

	cmd = topics.ParseCommand("homeassistant/climate/rehau_5f1a2b3c/set_preset", "reduced")
	if assert.NotNil(cmd) {
		assert.Equal("set_preset", cmd.Command)
	}
}

func TestParseLockCommand(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	cmd := topics.ParseCommand("homeassistant/lock/rehau_5f1a2b3c_lock/set", MQTT_PAYLOAD_LOCK)
	if assert.NotNil(cmd) {
		assert.Equal("rehau_5f1a2b3c_lock", cmd.EntityID)
		assert.Equal("set_lock", cmd.Command, "lock topic maps to set_lock")
		assert.Equal(MQTT_PAYLOAD_LOCK, cmd.Payload)
	}
}

func TestParseCommandFail(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")

	assert.Nil(topics.ParseCommand("homeassistant/climate/rehau_5f1a2b3c/state", "x"), "state topic is not a command")
	assert.Nil(topics.ParseCommand("homeassistant/sensor/rehau_5f1a2b3c/set_mode", "x"), "wrong platform")
	assert.Nil(topics.ParseCommand("otherprefix/climate/rehau_5f1a2b3c/set_mode", "x"), "wrong prefix")
}

func TestCommandWildcardsCoverCommandTopics(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	assert.Len(topics.CommandWildcards(), 4)

	assert.Equal("homeassistant/climate/rehau_x/set_temperature", topics.ClimateSetTemperature("rehau_x"))
	assert.Equal("homeassistant/climate/rehau_x/set_mode", topics.ClimateSetMode("rehau_x"))
	assert.Equal("homeassistant/climate/rehau_x/set_preset", topics.ClimateSetPreset("rehau_x"))
	assert.Equal("homeassistant/lock/rehau_x_lock/set", topics.LockSet("rehau_x_lock"))
}

func TestDiscoveryAndStateTopics(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	assert.Equal("homeassistant/climate/rehau_x/config", topics.Discovery("climate", "rehau_x"))
	assert.Equal("homeassistant/sensor/rehau_x_humidity/state", topics.State("sensor", "rehau_x_humidity"))
	assert.Equal("neasmart2mqtt/bridge/state", BridgeStateTopic("neasmart2mqtt"))
}
