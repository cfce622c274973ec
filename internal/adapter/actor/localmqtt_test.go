package actor

import (
	"encoding/json"
	"testing"
	"time"

	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/mqtt"
	"neasmart2mqtt/internal/util"
	"neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLocalMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestLocalMQTTActor(&cfg, logger) })
	pid := context.Spawn(props)

	time.Sleep(1 * time.Second)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.NotNil(t, resp)

	setpoint := 21.5
	context.Send(pid, domain.PublishStateUpdateRequest{
		Event: domain.ClimateStateUpdateEvent{
			Id:       "rehau_z1",
			Setpoint: &setpoint,
			Mode:     domain.OperationModeHeat,
			Preset:   "normal",
		},
	})

	time.Sleep(1 * time.Second)

	context.Stop(pid)

	time.Sleep(1 * time.Second)

	as.Shutdown()
}

func testLocalActor() *LocalMQTTActor {
	cfg := util.LoadTestConfig()
	return NewTestLocalMQTTActor(&cfg, zap.NewNop())
}

func TestEvent2MQTTMessageClimate(t *testing.T) {

	assert := assert.New(t)

	state := testLocalActor()

	current := 21.5
	setpoint := 20.0
	msg := state.event2MQTTMessage(domain.ClimateStateUpdateEvent{
		Id:          "rehau_z1",
		CurrentTemp: &current,
		Setpoint:    &setpoint,
		Mode:        domain.OperationModeHeat,
		Preset:      "normal",
	})

	if assert.NotNil(msg) {
		assert.Equal("homeassistant/climate/rehau_z1/state", msg.topic)
		assert.True(msg.retain, "climate state survives HA restarts")

		var payload map[string]any
		assert.NoError(json.Unmarshal([]byte(msg.message), &payload))
		assert.Equal(21.5, payload["current_temperature"])
		assert.Equal(20.0, payload["temperature"])
		assert.Equal("heat", payload["mode"])
		assert.Equal("normal", payload["preset"])
	}
}

// An absent sensor publishes null, never a bogus temperature.
func TestEvent2MQTTMessageClimateNoSensor(t *testing.T) {

	assert := assert.New(t)

	state := testLocalActor()

	msg := state.event2MQTTMessage(domain.ClimateStateUpdateEvent{
		Id:   "rehau_z1",
		Mode: domain.OperationModeAuto,
	})

	if assert.NotNil(msg) {
		var payload map[string]any
		assert.NoError(json.Unmarshal([]byte(msg.message), &payload))
		assert.Nil(payload["current_temperature"])
		assert.Nil(payload["temperature"])
	}
}

func TestEvent2MQTTMessageLock(t *testing.T) {

	assert := assert.New(t)

	state := testLocalActor()

	msg := state.event2MQTTMessage(domain.LockStateUpdateEvent{Id: "rehau_z1_lock", Locked: true})
	if assert.NotNil(msg) {
		assert.Equal("homeassistant/lock/rehau_z1_lock/state", msg.topic)
		assert.Equal(mqtt.MQTT_PAYLOAD_LOCKED, msg.message)
	}

	msg = state.event2MQTTMessage(domain.LockStateUpdateEvent{Id: "rehau_z1_lock", Locked: false})
	if assert.NotNil(msg) {
		assert.Equal(mqtt.MQTT_PAYLOAD_UNLOCKED, msg.message)
	}
}

func TestEvent2MQTTMessageSensors(t *testing.T) {

	assert := assert.New(t)

	state := testLocalActor()

	msg := state.event2MQTTMessage(domain.FloatStateUpdateEvent{Id: "rehau_z1_humidity", Value: 45.2, Decimals: 0})
	if assert.NotNil(msg) {
		assert.Equal("homeassistant/sensor/rehau_z1_humidity/state", msg.topic)
		assert.Equal("45", msg.message)
	}

	msg = state.event2MQTTMessage(domain.FloatStateUpdateEvent{Id: "rehau_inst1_outside_temperature", Value: 15.04, Decimals: 1})
	if assert.NotNil(msg) {
		assert.Equal("15.0", msg.message)
	}

	msg = state.event2MQTTMessage(domain.BinaryStateUpdateEvent{Id: "rehau_mc1_pump", Value: true})
	if assert.NotNil(msg) {
		assert.Equal("homeassistant/binary_sensor/rehau_mc1_pump/state", msg.topic)
		assert.Equal(mqtt.MQTT_PAYLOAD_ON, msg.message)
	}
}

func TestEvent2MQTTMessageBridgeState(t *testing.T) {

	assert := assert.New(t)

	state := testLocalActor()

	msg := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: true})
	if assert.NotNil(msg) {
		assert.Equal("neasmart2mqtt/bridge/state", msg.topic)
		assert.Equal(mqtt.MQTT_PAYLOAD_ONLINE, msg.message)
		assert.True(msg.retain)
	}
}
