package mqtt

import (
	"neasmart2mqtt/internal/core/domain"
)

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

type HADiscoverySensorConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
}

// HADiscoveryClimateConfig drives one zone as an HA climate entity. All
// state rides a single JSON state topic; templates pick the fields apart.
type HADiscoveryClimateConfig struct {
	Device                     HADiscoveryDevice `json:"device"`
	Name                       string            `json:"name"`
	UniqueId                   string            `json:"unique_id"`
	Platform                   string            `json:"platform"`
	AvTopic                    string            `json:"availability_topic,omitempty"`
	Modes                      []string          `json:"modes"`
	MinTemp                    float64           `json:"min_temp"`
	MaxTemp                    float64           `json:"max_temp"`
	TempStep                   float64           `json:"temp_step"`
	PresetModes                []string          `json:"preset_modes,omitempty"`
	CurrentTemperatureTopic    string            `json:"current_temperature_topic"`
	CurrentTemperatureTemplate string            `json:"current_temperature_template"`
	TemperatureStateTopic      string            `json:"temperature_state_topic"`
	TemperatureStateTemplate   string            `json:"temperature_state_template"`
	TemperatureCommandTopic    string            `json:"temperature_command_topic"`
	ModeStateTopic             string            `json:"mode_state_topic"`
	ModeStateTemplate          string            `json:"mode_state_template"`
	ModeCommandTopic           string            `json:"mode_command_topic"`
	PresetModeStateTopic       string            `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate    string            `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic     string            `json:"preset_mode_command_topic,omitempty"`
}

type HADiscoveryLockConfig struct {
	Device        HADiscoveryDevice `json:"device"`
	Name          string            `json:"name"`
	UniqueId      string            `json:"unique_id"`
	Platform      string            `json:"platform"`
	AvTopic       string            `json:"availability_topic,omitempty"`
	StateTopic    string            `json:"state_topic"`
	CommandTopic  string            `json:"command_topic"`
	PayloadLock   string            `json:"payload_lock"`
	PayloadUnlock string            `json:"payload_unlock"`
	StateLocked   string            `json:"state_locked"`
	StateUnlocked string            `json:"state_unlocked"`
}

func SensorToHADiscoveryMessage(t Topics, availabilityTopic string, sensor domain.GenericSensor) HADiscoverySensorConfig {
	cfg := HADiscoverySensorConfig{
		Device:            device(sensor.Device),
		StateTopic:        t.State(sensor.SensorType, sensor.Id),
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           availabilityTopic,
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		cfg.StateTopic = availabilityTopic
		cfg.PayloadOn = MQTT_PAYLOAD_ONLINE
		cfg.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == domain.PLATFORM_BINARY_SENSOR {
		cfg.PayloadOn = MQTT_PAYLOAD_ON
		cfg.PayloadOff = MQTT_PAYLOAD_OFF
	}
	return cfg
}

func ClimateToHADiscoveryMessage(t Topics, availabilityTopic string, climate domain.GenericClimate) HADiscoveryClimateConfig {
	stateTopic := t.State(domain.PLATFORM_CLIMATE, climate.Id)
	return HADiscoveryClimateConfig{
		Device:                     device(climate.Device),
		Name:                       climate.Name,
		UniqueId:                   climate.UniqueId,
		Platform:                   "mqtt",
		AvTopic:                    availabilityTopic,
		Modes:                      climate.Modes,
		MinTemp:                    climate.MinTemp,
		MaxTemp:                    climate.MaxTemp,
		TempStep:                   climate.TempStep,
		PresetModes:                climate.PresetModes,
		CurrentTemperatureTopic:    stateTopic,
		CurrentTemperatureTemplate: "{{ value_json.current_temperature }}",
		TemperatureStateTopic:      stateTopic,
		TemperatureStateTemplate:   "{{ value_json.temperature }}",
		TemperatureCommandTopic:    t.ClimateSetTemperature(climate.Id),
		ModeStateTopic:             stateTopic,
		ModeStateTemplate:          "{{ value_json.mode }}",
		ModeCommandTopic:           t.ClimateSetMode(climate.Id),
		PresetModeStateTopic:       stateTopic,
		PresetModeValueTemplate:    "{{ value_json.preset }}",
		PresetModeCommandTopic:     t.ClimateSetPreset(climate.Id),
	}
}

func LockToHADiscoveryMessage(t Topics, availabilityTopic string, lock domain.GenericLock) HADiscoveryLockConfig {
	return HADiscoveryLockConfig{
		Device:        device(lock.Device),
		Name:          lock.Name,
		UniqueId:      lock.UniqueId,
		Platform:      "mqtt",
		AvTopic:       availabilityTopic,
		StateTopic:    t.State(domain.PLATFORM_LOCK, lock.Id),
		CommandTopic:  t.LockSet(lock.Id),
		PayloadLock:   MQTT_PAYLOAD_LOCK,
		PayloadUnlock: MQTT_PAYLOAD_UNLOCK,
		StateLocked:   MQTT_PAYLOAD_LOCKED,
		StateUnlocked: MQTT_PAYLOAD_UNLOCKED,
	}
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
