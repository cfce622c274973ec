package events

import (
	"strconv"

	. "neasmart2mqtt/internal/core/domain"

	"neasmart2mqtt/internal/mqtt"
)

// InstallationToUpdateEvents diffs a fresh snapshot against the previous one
// and emits an update event per changed entity. A nil previous snapshot
// emits everything (first publication after boot).
func InstallationToUpdateEvents(prev, curr *Installation) []StateUpdateEvent {
	var events []StateUpdateEvent

	if curr.OutsideTemp != nil && (prev == nil || !floatPtrEq(prev.OutsideTemp, curr.OutsideTemp)) {
		events = append(events, FloatStateUpdateEvent{
			Id:       EntityID(curr.ID, SUFFIX_OUTSIDE_TEMP),
			Value:    *curr.OutsideTemp,
			Decimals: 1,
		})
	}

	for _, mc := range curr.MixedCircuits {
		var prevMC *MixedCircuit
		if prev != nil {
			for i := range prev.MixedCircuits {
				if prev.MixedCircuits[i].ID == mc.ID {
					prevMC = &prev.MixedCircuits[i]
					break
				}
			}
		}
		events = append(events, mixedCircuitEvents(prevMC, &mc)...)
	}

	for _, zone := range curr.Zones {
		var prevZone *Zone
		if prev != nil {
			prevZone = prev.Zones[zone.ID]
		}
		events = append(events, zoneEvents(prevZone, zone)...)
	}

	return events
}

func mixedCircuitEvents(prev, curr *MixedCircuit) []StateUpdateEvent {
	var events []StateUpdateEvent
	values := []struct {
		suffix string
		prev   *float64
		curr   *float64
	}{
		{SUFFIX_SETPOINT, prevField(prev, func(m *MixedCircuit) *float64 { return m.Setpoint }), curr.Setpoint},
		{SUFFIX_SUPPLY, prevField(prev, func(m *MixedCircuit) *float64 { return m.Supply }), curr.Supply},
		{SUFFIX_RETURN, prevField(prev, func(m *MixedCircuit) *float64 { return m.Return }), curr.Return},
	}
	for _, v := range values {
		if v.curr != nil && (prev == nil || !floatPtrEq(v.prev, v.curr)) {
			events = append(events, FloatStateUpdateEvent{
				Id:       EntityID(curr.ID, v.suffix),
				Value:    *v.curr,
				Decimals: 1,
			})
		}
	}
	if prev == nil || prev.PumpOn != curr.PumpOn {
		events = append(events, BinaryStateUpdateEvent{
			Id:    EntityID(curr.ID, SUFFIX_PUMP),
			Value: curr.PumpOn,
		})
	}
	return events
}

func zoneEvents(prev, curr *Zone) []StateUpdateEvent {
	var events []StateUpdateEvent

	if prev == nil || !floatPtrEq(prev.CurrentTemp, curr.CurrentTemp) ||
		!floatPtrEq(prev.Setpoint, curr.Setpoint) ||
		prev.Mode != curr.Mode || prev.EnergyLevel != curr.EnergyLevel {
		events = append(events, ClimateStateUpdateEvent{
			Id:          EntityID(curr.ID, ""),
			CurrentTemp: curr.CurrentTemp,
			Setpoint:    curr.Setpoint,
			Mode:        curr.Mode,
			Preset:      curr.EnergyLevel,
		})
	}

	if curr.Humidity != nil && (prev == nil || !floatPtrEq(prev.Humidity, curr.Humidity)) {
		events = append(events, FloatStateUpdateEvent{
			Id:       EntityID(curr.ID, SUFFIX_HUMIDITY),
			Value:    *curr.Humidity,
			Decimals: 0,
		})
	}

	if prev == nil || prev.Locked != curr.Locked {
		events = append(events, LockStateUpdateEvent{
			Id:     EntityID(curr.ID, SUFFIX_LOCK),
			Locked: curr.Locked,
		})
	}

	return events
}

// InstallationEchoes normalizes every zone value of a snapshot into state
// echoes for the command tracker. Values use the same string forms inbound
// commands carry, otherwise the tracker could never match them.
func InstallationEchoes(inst *Installation) []StateEcho {
	var echoes []StateEcho
	for _, zone := range inst.Zones {
		echoes = append(echoes, ZoneEchoes(zone)...)
	}
	return echoes
}

func ZoneEchoes(zone *Zone) []StateEcho {
	var echoes []StateEcho
	if zone.Setpoint != nil {
		echoes = append(echoes, StateEcho{
			ZoneID: zone.ID,
			Type:   CommandSetTemperature,
			Value:  strconv.FormatFloat(*zone.Setpoint, 'f', 1, 64),
		})
	}
	echoes = append(echoes, StateEcho{
		ZoneID: zone.ID,
		Type:   CommandSetMode,
		Value:  string(zone.Mode),
	})
	echoes = append(echoes, StateEcho{
		ZoneID: zone.ID,
		Type:   CommandSetEnergyLevel,
		Value:  zone.EnergyLevel,
	})
	lockValue := mqtt.MQTT_PAYLOAD_UNLOCK
	if zone.Locked {
		lockValue = mqtt.MQTT_PAYLOAD_LOCK
	}
	echoes = append(echoes, StateEcho{
		ZoneID: zone.ID,
		Type:   CommandSetLock,
		Value:  lockValue,
	})
	return echoes
}

// InstallationDiscovery assembles the full discovery surface for a snapshot.
func InstallationDiscovery(baseTopic string, inst *Installation) ([]GenericSensor, []GenericClimate, []GenericLock) {
	bridge := BridgeDevice(baseTopic)
	instDevice := InstallationDevice(inst, bridge)

	sensors := BridgeSensors(bridge)
	sensors = append(sensors, InstallationSensors(instDevice, inst)...)

	var climates []GenericClimate
	var locks []GenericLock
	for _, zone := range inst.Zones {
		climates = append(climates, ZoneClimate(instDevice, zone))
		locks = append(locks, ZoneLock(instDevice, zone))
		sensors = append(sensors, ZoneSensors(instDevice, zone)...)
	}
	return sensors, climates, locks
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func prevField(prev *MixedCircuit, get func(*MixedCircuit) *float64) *float64 {
	if prev == nil {
		return nil
	}
	return get(prev)
}
