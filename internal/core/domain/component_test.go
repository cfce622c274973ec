package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testInstallation() *Installation {
	setpoint := 20.0
	current := 21.5
	humidity := 45.0
	return &Installation{
		ID:   "inst1",
		Name: "Home",
		Mode: OperationModeHeat,
		Zones: map[string]*Zone{
			"z1": {
				ID: "z1", Number: 1, Name: "Living room", GroupID: "g1",
				CurrentTemp: &current, Setpoint: &setpoint, Humidity: &humidity,
				Mode: OperationModeHeat, EnergyLevel: "normal",
				Channels: []Channel{{ID: "ch1", ChannelZone: 1, ControllerNumber: 0}},
			},
			"z2": {
				// same zone number on another controller, no humidity sensor
				ID: "z2", Number: 1, Name: "Bedroom", GroupID: "g1",
				Mode: OperationModeHeat, EnergyLevel: "reduced", Locked: true,
				Channels: []Channel{{ID: "ch2", ChannelZone: 1, ControllerNumber: 1}},
			},
		},
		MixedCircuits: []MixedCircuit{{ID: "mc1", Name: "Circuit 1", PumpOn: true}},
	}
}

func TestEntityID(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("rehau_5f1a2b3c", EntityID("5f1a2b3c", ""))
	assert.Equal("rehau_5f1a2b3c_humidity", EntityID("5f1a2b3c", SUFFIX_HUMIDITY))
	assert.Equal("rehau_5f1a2b3c_lock", EntityID("5f1a2b3c", SUFFIX_LOCK))
}

// Entity identifiers come from the zone database id. Zone numbers repeat
// across controllers and must never leak into an identifier.
func TestEntityIDDistinctForSharedZoneNumber(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()
	instDevice := InstallationDevice(inst, BridgeDevice("neasmart2mqtt"))

	c1 := ZoneClimate(instDevice, inst.Zone("z1"))
	c2 := ZoneClimate(instDevice, inst.Zone("z2"))

	assert.NotEqual(c1.Id, c2.Id, "zones with the same number keep distinct entities")
	assert.NotEqual(c1.UniqueId, c2.UniqueId)
}

func TestZoneClimate(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()
	instDevice := InstallationDevice(inst, BridgeDevice("neasmart2mqtt"))

	climate := ZoneClimate(instDevice, inst.Zone("z1"))
	assert.Equal("rehau_z1", climate.Id)
	assert.Equal("Living room", climate.Name)
	assert.Equal([]string{"heat", "cool", "auto"}, climate.Modes)
	assert.Equal(10.0, climate.MinTemp)
	assert.Equal(32.0, climate.MaxTemp)
	assert.Equal(0.5, climate.TempStep)
	assert.Equal([]string{"normal", "reduced", "standby", "timed", "party", "vacation"}, climate.PresetModes)
}

func TestZoneSensors(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()
	instDevice := InstallationDevice(inst, BridgeDevice("neasmart2mqtt"))

	withHumidity := ZoneSensors(instDevice, inst.Zone("z1"))
	if assert.Len(withHumidity, 1) {
		assert.Equal("rehau_z1_humidity", withHumidity[0].Id)
		assert.Equal(PLATFORM_SENSOR, withHumidity[0].SensorType)
	}

	assert.Empty(ZoneSensors(instDevice, inst.Zone("z2")), "no humidity channel, no humidity entity")
}

func TestZoneLock(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()
	instDevice := InstallationDevice(inst, BridgeDevice("neasmart2mqtt"))

	lock := ZoneLock(instDevice, inst.Zone("z2"))
	assert.Equal("rehau_z2_lock", lock.Id)
	assert.Equal("Bedroom lock", lock.Name)
}

func TestInstallationSensors(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()
	instDevice := InstallationDevice(inst, BridgeDevice("neasmart2mqtt"))

	sensors := InstallationSensors(instDevice, inst)

	byID := map[string]GenericSensor{}
	for _, s := range sensors {
		byID[s.Id] = s
	}

	assert.Contains(byID, EntityID(inst.ID, SUFFIX_OUTSIDE_TEMP))
	assert.Contains(byID, EntityID("mc1", SUFFIX_SETPOINT))
	assert.Contains(byID, EntityID("mc1", SUFFIX_SUPPLY))
	assert.Contains(byID, EntityID("mc1", SUFFIX_RETURN))

	pump, ok := byID[EntityID("mc1", SUFFIX_PUMP)]
	if assert.True(ok, "pump entity present") {
		assert.Equal(PLATFORM_BINARY_SENSOR, pump.SensorType)
	}
}

func TestCommandAddress(t *testing.T) {

	assert := assert.New(t)

	inst := testInstallation()

	channelZone, controller, ok := inst.Zone("z2").CommandAddress()
	assert.True(ok)
	assert.Equal(1, channelZone)
	assert.Equal(1, controller)

	bare := &Zone{ID: "z3"}
	_, _, ok = bare.CommandAddress()
	assert.False(ok, "zone without channels is not addressable")
}
