package events

import (
	"testing"

	. "neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/mqtt"

	"github.com/stretchr/testify/assert"
)

func testSnapshot() *Installation {
	outside := 15.0
	current := 21.5
	setpoint := 20.0
	humidity := 45.0
	mcSupply := 34.0
	return &Installation{
		ID:          "inst1",
		Name:        "Home",
		OutsideTemp: &outside,
		Mode:        OperationModeHeat,
		Zones: map[string]*Zone{
			"z1": {
				ID: "z1", Number: 1, Name: "Living room", GroupID: "g1",
				CurrentTemp: &current, Setpoint: &setpoint, Humidity: &humidity,
				Mode: OperationModeHeat, EnergyLevel: "normal",
				Channels: []Channel{{ID: "ch1", ChannelZone: 1, ControllerNumber: 0}},
			},
		},
		MixedCircuits: []MixedCircuit{{ID: "mc1", Name: "Circuit 1", Supply: &mcSupply, PumpOn: true}},
	}
}

func eventsByID(events []StateUpdateEvent) map[string]StateUpdateEvent {
	byID := map[string]StateUpdateEvent{}
	for _, e := range events {
		byID[e.StateUpdateEventId()] = e
	}
	return byID
}

func TestFirstSnapshotEmitsEverything(t *testing.T) {

	assert := assert.New(t)

	curr := testSnapshot()
	byID := eventsByID(InstallationToUpdateEvents(nil, curr))

	assert.Contains(byID, EntityID("inst1", SUFFIX_OUTSIDE_TEMP))
	assert.Contains(byID, EntityID("mc1", SUFFIX_SUPPLY))
	assert.Contains(byID, EntityID("mc1", SUFFIX_PUMP))
	assert.Contains(byID, EntityID("z1", ""))
	assert.Contains(byID, EntityID("z1", SUFFIX_HUMIDITY))
	assert.Contains(byID, EntityID("z1", SUFFIX_LOCK))

	climate, ok := byID[EntityID("z1", "")].(ClimateStateUpdateEvent)
	if assert.True(ok) {
		assert.Equal(21.5, *climate.CurrentTemp)
		assert.Equal(20.0, *climate.Setpoint)
		assert.Equal(OperationModeHeat, climate.Mode)
		assert.Equal("normal", climate.Preset)
	}
}

func TestUnchangedSnapshotEmitsNothing(t *testing.T) {

	assert := assert.New(t)

	events := InstallationToUpdateEvents(testSnapshot(), testSnapshot())
	assert.Empty(events, "identical snapshots produce no updates")
}

func TestSetpointChangeEmitsClimateEventOnly(t *testing.T) {

	assert := assert.New(t)

	prev := testSnapshot()
	curr := testSnapshot()
	setpoint := 22.0
	curr.Zones["z1"].Setpoint = &setpoint

	events := InstallationToUpdateEvents(prev, curr)
	if assert.Len(events, 1) {
		climate, ok := events[0].(ClimateStateUpdateEvent)
		if assert.True(ok) {
			assert.Equal(EntityID("z1", ""), climate.Id)
			assert.Equal(22.0, *climate.Setpoint)
		}
	}
}

func TestLockChangeEmitsLockEvent(t *testing.T) {

	assert := assert.New(t)

	prev := testSnapshot()
	curr := testSnapshot()
	curr.Zones["z1"].Locked = true

	byID := eventsByID(InstallationToUpdateEvents(prev, curr))
	lock, ok := byID[EntityID("z1", SUFFIX_LOCK)].(LockStateUpdateEvent)
	if assert.True(ok, "lock event emitted") {
		assert.True(lock.Locked)
	}
	assert.NotContains(byID, EntityID("z1", ""), "climate untouched by a lock flip")
}

func TestPumpToggleEmitsBinaryEvent(t *testing.T) {

	assert := assert.New(t)

	prev := testSnapshot()
	curr := testSnapshot()
	curr.MixedCircuits[0].PumpOn = false

	byID := eventsByID(InstallationToUpdateEvents(prev, curr))
	pump, ok := byID[EntityID("mc1", SUFFIX_PUMP)].(BinaryStateUpdateEvent)
	if assert.True(ok) {
		assert.False(pump.Value)
	}
}

func TestZoneEchoes(t *testing.T) {

	assert := assert.New(t)

	zone := testSnapshot().Zones["z1"]
	echoes := ZoneEchoes(zone)

	byType := map[CommandType]string{}
	for _, echo := range echoes {
		assert.Equal("z1", echo.ZoneID)
		byType[echo.Type] = echo.Value
	}

	assert.Equal("20.0", byType[CommandSetTemperature], "setpoint echoes the inbound payload form")
	assert.Equal("heat", byType[CommandSetMode])
	assert.Equal("normal", byType[CommandSetEnergyLevel])
	assert.Equal(mqtt.MQTT_PAYLOAD_UNLOCK, byType[CommandSetLock])

	zone.Locked = true
	for _, echo := range ZoneEchoes(zone) {
		if echo.Type == CommandSetLock {
			assert.Equal(mqtt.MQTT_PAYLOAD_LOCK, echo.Value)
		}
	}
}

func TestInstallationDiscovery(t *testing.T) {

	assert := assert.New(t)

	sensors, climates, locks := InstallationDiscovery("neasmart2mqtt", testSnapshot())

	assert.Len(climates, 1)
	assert.Len(locks, 1)

	var ids []string
	for _, s := range sensors {
		ids = append(ids, s.Id)
	}
	assert.Contains(ids, SENSOR_ID_BRIDGE_STATE)
	assert.Contains(ids, EntityID("inst1", SUFFIX_OUTSIDE_TEMP))
	assert.Contains(ids, EntityID("z1", SUFFIX_HUMIDITY))
	assert.Contains(ids, EntityID("mc1", SUFFIX_PUMP))
}
