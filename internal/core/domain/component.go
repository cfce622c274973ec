package domain

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	PLATFORM_SENSOR        = "sensor"
	PLATFORM_BINARY_SENSOR = "binary_sensor"
	PLATFORM_CLIMATE       = "climate"
	PLATFORM_LOCK          = "lock"

	STATE_CLASS_MEASUREMENT   = "measurement"
	DEVICE_CLASS_TEMPERATURE  = "temperature"
	DEVICE_CLASS_HUMIDITY     = "humidity"
	DEVICE_CLASS_CONNECTIVITY = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC   = "diagnostic"

	SENSOR_ID_BRIDGE_STATE = "bridge"

	SUFFIX_SETPOINT     = "setpoint"
	SUFFIX_SUPPLY       = "supply"
	SUFFIX_RETURN       = "return"
	SUFFIX_HUMIDITY     = "humidity"
	SUFFIX_LOCK         = "lock"
	SUFFIX_OUTSIDE_TEMP = "outside_temperature"
	SUFFIX_PUMP         = "pump"
)

// EntityID derives the externally visible identifier for a zone-scoped
// entity. It is a function of the zone database ID only: zone numbers
// collide across controllers, and an identifier built from them would let
// one room's state overwrite another's.
func EntityID(zoneDatabaseID, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("rehau_%s", zoneDatabaseID)
	}
	return fmt.Sprintf("rehau_%s_%s", zoneDatabaseID, suffix)
}

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	StateClass        string
	DeviceClass       string
	UnitOfMeasurement string
	EntityCategory    string
	Icon              string
	UniqueId          string
	EnabledByDefault  *bool
}

type GenericClimate struct {
	Device      Device
	Id          string
	Name        string
	UniqueId    string
	Modes       []string
	MinTemp     float64
	MaxTemp     float64
	TempStep    float64
	PresetModes []string
}

type GenericLock struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("neasmart_bridge_%s", baseTopic),
		Manufacturer: "REHAU",
		Model:        "NEA SMART 2.0 Bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("neasmart2mqtt %s", baseTopic),
	}
}

func InstallationDevice(inst *Installation, bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("rehau_installation_%s", inst.ID),
		Manufacturer: "REHAU",
		Model:        "NEA SMART 2.0",
		Name:         inst.Name,
		ViaDevice:    bridge.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     PLATFORM_BINARY_SENSOR,
			Name:           "Bridge state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

// InstallationSensors covers installation-level values: outside temperature
// and every mixed-circuit temperature.
func InstallationSensors(instDevice Device, inst *Installation) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            instDevice,
		Id:                EntityID(inst.ID, SUFFIX_OUTSIDE_TEMP),
		SensorType:        PLATFORM_SENSOR,
		Name:              "Outside temperature",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_TEMPERATURE,
		UnitOfMeasurement: "°C",
		UniqueId:          uniqueId(instDevice.Id, SUFFIX_OUTSIDE_TEMP),
	})

	for _, mc := range inst.MixedCircuits {
		for _, suffix := range []string{SUFFIX_SETPOINT, SUFFIX_SUPPLY, SUFFIX_RETURN} {
			sensors = append(sensors, GenericSensor{
				Device:            IdDevice(instDevice),
				Id:                EntityID(mc.ID, suffix),
				SensorType:        PLATFORM_SENSOR,
				Name:              fmt.Sprintf("%s %s temperature", mc.Name, suffix),
				StateClass:        STATE_CLASS_MEASUREMENT,
				DeviceClass:       DEVICE_CLASS_TEMPERATURE,
				UnitOfMeasurement: "°C",
				UniqueId:          uniqueId(instDevice.Id, EntityID(mc.ID, suffix)),
			})
		}
		sensors = append(sensors, GenericSensor{
			Device:     IdDevice(instDevice),
			Id:         EntityID(mc.ID, SUFFIX_PUMP),
			SensorType: PLATFORM_BINARY_SENSOR,
			Name:       fmt.Sprintf("%s pump", mc.Name),
			Icon:       "mdi:pump",
			UniqueId:   uniqueId(instDevice.Id, EntityID(mc.ID, SUFFIX_PUMP)),
		})
	}

	return sensors
}

func ZoneClimate(instDevice Device, zone *Zone) GenericClimate {
	return GenericClimate{
		Device:      IdDevice(instDevice),
		Id:          EntityID(zone.ID, ""),
		Name:        zone.Name,
		UniqueId:    uniqueId(instDevice.Id, EntityID(zone.ID, "")),
		Modes:       []string{"heat", "cool", "auto"},
		MinTemp:     10,
		MaxTemp:     32,
		TempStep:    0.5,
		PresetModes: []string{"normal", "reduced", "standby", "timed", "party", "vacation"},
	}
}

func ZoneSensors(instDevice Device, zone *Zone) []GenericSensor {
	var sensors []GenericSensor
	if zone.Humidity != nil {
		sensors = append(sensors, GenericSensor{
			Device:            IdDevice(instDevice),
			Id:                EntityID(zone.ID, SUFFIX_HUMIDITY),
			SensorType:        PLATFORM_SENSOR,
			Name:              fmt.Sprintf("%s humidity", zone.Name),
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       DEVICE_CLASS_HUMIDITY,
			UnitOfMeasurement: "%",
			UniqueId:          uniqueId(instDevice.Id, EntityID(zone.ID, SUFFIX_HUMIDITY)),
		})
	}
	return sensors
}

func ZoneLock(instDevice Device, zone *Zone) GenericLock {
	return GenericLock{
		Device:   IdDevice(instDevice),
		Id:       EntityID(zone.ID, SUFFIX_LOCK),
		Name:     fmt.Sprintf("%s lock", zone.Name),
		UniqueId: uniqueId(instDevice.Id, EntityID(zone.ID, SUFFIX_LOCK)),
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}
