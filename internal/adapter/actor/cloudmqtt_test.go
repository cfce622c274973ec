package actor

import (
	"encoding/json"
	"testing"

	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/mqtt"
	"neasmart2mqtt/internal/util"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testCloudActor() *CloudMQTTActor {
	cfg := util.LoadTestConfig()
	return NewTestCloudMQTTActor(&cfg, fakeTokens{}, zap.NewNop())
}

type fakeTokens struct{}

func (fakeTokens) AccessToken() string { return "test-token" }

func TestEncodeSetTemperatureCommand(t *testing.T) {

	assert := assert.New(t)

	payload, err := encodeCommand(domain.VendorCommandRequest{
		CommandID:        "c1",
		InstallationID:   "inst1",
		ChannelZone:      3,
		ControllerNumber: 1,
		Type:             domain.CommandSetTemperature,
		Payload:          "21.5",
	})
	if err != nil {
		t.Error(err)
		return
	}

	var cmd map[string]any
	assert.NoError(json.Unmarshal(payload, &cmd))
	assert.Equal(3.0, cmd["channelZone"])
	assert.Equal(1.0, cmd["controller"])
	assert.Equal(707.0, cmd["setpointTemperature"], "21.5C encodes as 70.7F raw")
}

func TestEncodeModeAndLevelCommands(t *testing.T) {

	assert := assert.New(t)

	payload, err := encodeCommand(domain.VendorCommandRequest{
		Type: domain.CommandSetMode, Payload: "cool", ChannelZone: 1,
	})
	assert.NoError(err)
	var cmd map[string]any
	assert.NoError(json.Unmarshal(payload, &cmd))
	assert.Equal(2.0, cmd["operationMode"])

	payload, err = encodeCommand(domain.VendorCommandRequest{
		Type: domain.CommandSetEnergyLevel, Payload: "vacation", ChannelZone: 1,
	})
	assert.NoError(err)
	assert.NoError(json.Unmarshal(payload, &cmd))
	assert.Equal(5.0, cmd["energyLevel"])
}

func TestEncodeLockCommand(t *testing.T) {

	assert := assert.New(t)

	payload, err := encodeCommand(domain.VendorCommandRequest{
		Type: domain.CommandSetLock, Payload: mqtt.MQTT_PAYLOAD_LOCK,
	})
	assert.NoError(err)
	var cmd map[string]any
	assert.NoError(json.Unmarshal(payload, &cmd))
	assert.Equal(true, cmd["locked"])

	_, err = encodeCommand(domain.VendorCommandRequest{
		Type: domain.CommandSetLock, Payload: "LOCKED",
	})
	assert.Error(err, "lock states are not lock commands")
}

func TestEncodeInvalidCommands(t *testing.T) {

	assert := assert.New(t)

	_, err := encodeCommand(domain.VendorCommandRequest{Type: domain.CommandSetTemperature, Payload: "warm"})
	assert.Error(err)

	_, err = encodeCommand(domain.VendorCommandRequest{Type: domain.CommandSetMode, Payload: "defrost"})
	assert.Error(err)

	_, err = encodeCommand(domain.VendorCommandRequest{Type: domain.CommandType("reboot"), Payload: "now"})
	assert.Error(err)
}

func TestParseUpdate(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	update := state.parseUpdate([]byte(`{
		"unique": "z1",
		"setpointTemperature": 707,
		"operationMode": 1,
		"energyLevel": 0,
		"locked": false
	}`))
	if !assert.NotNil(update) {
		return
	}

	byType := map[domain.CommandType]string{}
	for _, echo := range update.Echoes {
		assert.Equal("z1", echo.ZoneID)
		byType[echo.Type] = echo.Value
	}
	assert.Equal("21.5", byType[domain.CommandSetTemperature], "raw F x10 normalized to the command form")
	assert.Equal("heat", byType[domain.CommandSetMode])
	assert.Equal("normal", byType[domain.CommandSetEnergyLevel])
	assert.Equal(mqtt.MQTT_PAYLOAD_UNLOCK, byType[domain.CommandSetLock])
}

func TestParsePartialUpdate(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	update := state.parseUpdate([]byte(`{"unique": "z1", "locked": true}`))
	if assert.NotNil(update) {
		assert.Len(update.Echoes, 1, "only fields present in the update echo")
		assert.Equal(domain.CommandSetLock, update.Echoes[0].Type)
		assert.Equal(mqtt.MQTT_PAYLOAD_LOCK, update.Echoes[0].Value)
	}
}

// The 32767 no-sensor sentinel must not produce a setpoint echo.
func TestParseUpdateNoSensorSetpoint(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	update := state.parseUpdate([]byte(`{"unique": "z1", "setpointTemperature": 32767}`))
	if assert.NotNil(update) {
		assert.Empty(update.Echoes)
	}
}

func TestParseUpdateGarbage(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	assert.Nil(state.parseUpdate([]byte(`not json`)))
	assert.Nil(state.parseUpdate([]byte(`{"setpointTemperature": 707}`)), "update without a zone id is dropped")
}

func TestParseRejection(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	rejection := state.parseRejection([]byte(`{"unique": "z1", "type": "set_temperature", "reason": "out of range"}`))
	if assert.NotNil(rejection) {
		assert.Equal("z1", rejection.ZoneID)
		assert.Equal(domain.CommandType("set_temperature"), rejection.Type)
		assert.Equal("out of range", rejection.Reason)
	}

	assert.Nil(state.parseRejection([]byte(`{}`)))
}

func TestVendorTopics(t *testing.T) {

	assert := assert.New(t)

	state := testCloudActor()

	assert.Equal("users/user@example.com/installations/+/updates", state.updatesTopic())
	assert.Equal("users/user@example.com/installations/+/rejections", state.rejectionsTopic())
	assert.Equal("users/user@example.com/installations/inst1/commands", state.commandsTopic("inst1"))
}
