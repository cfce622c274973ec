package mqtt

import (
	"testing"

	"neasmart2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestClimateToHADiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	climate := domain.GenericClimate{
		Device:      domain.Device{Id: "rehau_installation_inst1"},
		Id:          "rehau_z1",
		Name:        "Living room",
		UniqueId:    "rehau_installation_inst1_rehau_z1",
		Modes:       []string{"heat", "cool", "auto"},
		MinTemp:     10,
		MaxTemp:     32,
		TempStep:    0.5,
		PresetModes: []string{"normal", "reduced"},
	}

	cfg := ClimateToHADiscoveryMessage(topics, "neasmart2mqtt/bridge/state", climate)

	stateTopic := "homeassistant/climate/rehau_z1/state"
	assert.Equal(stateTopic, cfg.CurrentTemperatureTopic, "one JSON state topic per climate")
	assert.Equal(stateTopic, cfg.TemperatureStateTopic)
	assert.Equal(stateTopic, cfg.ModeStateTopic)
	assert.Equal(stateTopic, cfg.PresetModeStateTopic)

	assert.Equal("{{ value_json.current_temperature }}", cfg.CurrentTemperatureTemplate)
	assert.Equal("{{ value_json.temperature }}", cfg.TemperatureStateTemplate)
	assert.Equal("{{ value_json.mode }}", cfg.ModeStateTemplate)
	assert.Equal("{{ value_json.preset }}", cfg.PresetModeValueTemplate)

	assert.Equal("homeassistant/climate/rehau_z1/set_temperature", cfg.TemperatureCommandTopic)
	assert.Equal("homeassistant/climate/rehau_z1/set_mode", cfg.ModeCommandTopic)
	assert.Equal("homeassistant/climate/rehau_z1/set_preset", cfg.PresetModeCommandTopic)

	assert.Equal("neasmart2mqtt/bridge/state", cfg.AvTopic)
	assert.Equal([]string{"rehau_installation_inst1"}, cfg.Device.Id)
}

func TestLockToHADiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	lock := domain.GenericLock{
		Device:   domain.Device{Id: "rehau_installation_inst1"},
		Id:       "rehau_z1_lock",
		Name:     "Living room lock",
		UniqueId: "rehau_installation_inst1_rehau_z1_lock",
	}

	cfg := LockToHADiscoveryMessage(topics, "neasmart2mqtt/bridge/state", lock)

	assert.Equal("homeassistant/lock/rehau_z1_lock/state", cfg.StateTopic)
	assert.Equal("homeassistant/lock/rehau_z1_lock/set", cfg.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_LOCK, cfg.PayloadLock)
	assert.Equal(MQTT_PAYLOAD_UNLOCK, cfg.PayloadUnlock)
	assert.Equal(MQTT_PAYLOAD_LOCKED, cfg.StateLocked)
	assert.Equal(MQTT_PAYLOAD_UNLOCKED, cfg.StateUnlocked)
}

// The bridge connectivity sensor reads the availability topic directly so
// it flips with the LWT.
func TestBridgeSensorToHADiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	sensors := domain.BridgeSensors(domain.BridgeDevice("neasmart2mqtt"))

	cfg := SensorToHADiscoveryMessage(topics, "neasmart2mqtt/bridge/state", sensors[0])

	assert.Equal("neasmart2mqtt/bridge/state", cfg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, cfg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, cfg.PayloadOff)
}

func TestBinarySensorToHADiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics("homeassistant")
	sensor := domain.GenericSensor{
		Id:         "rehau_mc1_pump",
		SensorType: domain.PLATFORM_BINARY_SENSOR,
		Name:       "Circuit 1 pump",
		UniqueId:   "rehau_installation_inst1_rehau_mc1_pump",
	}

	cfg := SensorToHADiscoveryMessage(topics, "neasmart2mqtt/bridge/state", sensor)

	assert.Equal("homeassistant/binary_sensor/rehau_mc1_pump/state", cfg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, cfg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFF, cfg.PayloadOff)
}
