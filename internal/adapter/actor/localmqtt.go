package actor

import (
	"encoding/json"
	"fmt"
	"time"

	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/mqtt"
	"neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// LocalMQTTActor owns the connection to the Home Assistant broker: entity
// discovery, state publishing and the inbound command topics.
type LocalMQTTActor struct {
	config   *config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.Client
	topics   mqtt.Topics
	avTopic  string
	pending  int
	logger   *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedCommand
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

// climateStatePayload is the single JSON document behind every climate
// state template.
type climateStatePayload struct {
	CurrentTemperature *float64 `json:"current_temperature"`
	Temperature        *float64 `json:"temperature"`
	Mode               string   `json:"mode"`
	Preset             string   `json:"preset,omitempty"`
}

func NewLocalMQTTActor(config *config.Config, logger *zap.Logger) *LocalMQTTActor {
	act := &LocalMQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		topics:   mqtt.NewTopics(config.MQTT.HADiscoveryTopic),
		avTopic:  mqtt.BridgeStateTopic(config.MQTT.BaseTopic),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_LOCAL_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *LocalMQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *LocalMQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("localmqtt@starting started")

		state.client = mqtt.NewClient(mqtt.Options{
			Host:      state.config.MQTT.Host,
			Port:      state.config.MQTT.Port,
			Username:  state.config.MQTT.Username,
			Password:  state.config.MQTT.Password,
			ClientID:  fmt.Sprintf("%s_local", state.config.MQTT.BaseTopic),
			WillTopic: state.avTopic,
			OnConnectionLost: func(err error) {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			},
		})

		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("localmqtt@starting connected")

		state.client.Publish(state.avTopic, mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// one subscription per command wildcard, all must succeed
		wildcards := state.topics.CommandWildcards()
		state.pending = len(wildcards)
		for _, wildcard := range wildcards {
			state.client.Subscribe(wildcard, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
				cmd := state.topics.ParseCommand(m.Topic(), string(m.Payload()))
				if cmd != nil {
					ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
				}
			}, func(err error) {
				if err != nil {
					ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
				} else {
					ctx.Send(ctx.Self(), MQTTSubscribed{})
				}
			}, 1*time.Second)
		}
	case MQTTSubscribed:
		state.pending--
		if state.pending > 0 {
			return
		}
		// init completed, transition to default state
		state.logger.Debug("localmqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("localmqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("localmqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *LocalMQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("localmqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LOCAL_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("localmqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.PublishMessageRequest:
		state.logger.Debug("localmqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishStateUpdateRequest:
		state.logger.Debug("localmqtt@default PublishStateUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishStateUpdate(ctx, msg.Event, msg.Retain)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("localmqtt@default PublishDiscovery")
		err := state.publishDiscovery(msg.Sensors, msg.Climates, msg.Locks)
		if err != nil {
			state.logger.Error("localmqtt@default PublishDiscovery error", zap.Error(err))
		}
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		})
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("localmqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("localmqtt@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *LocalMQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatStateUpdateEvent:
		return &rawMessage{
			topic:   state.topics.State(domain.PLATFORM_SENSOR, msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinaryStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ON
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFF
		}
		return &rawMessage{
			topic:   state.topics.State(domain.PLATFORM_BINARY_SENSOR, msg.Id),
			message: stringMessage,
		}
	case domain.TextStateUpdateEvent:
		return &rawMessage{
			topic:   state.topics.State(domain.PLATFORM_SENSOR, msg.Id),
			message: msg.Value,
		}
	case domain.ClimateStateUpdateEvent:
		payload, err := json.Marshal(climateStatePayload{
			CurrentTemperature: msg.CurrentTemp,
			Temperature:        msg.Setpoint,
			Mode:               string(msg.Mode),
			Preset:             msg.Preset,
		})
		if err != nil {
			return nil
		}
		return &rawMessage{
			topic:   state.topics.State(domain.PLATFORM_CLIMATE, msg.Id),
			message: string(payload),
			retain:  true,
		}
	case domain.LockStateUpdateEvent:
		var stringMessage string
		if msg.Locked {
			stringMessage = mqtt.MQTT_PAYLOAD_LOCKED
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_UNLOCKED
		}
		return &rawMessage{
			topic:   state.topics.State(domain.PLATFORM_LOCK, msg.Id),
			message: stringMessage,
			retain:  true,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.avTopic,
			message: stringMessage,
			retain:  true,
		}
	default:
		return nil
	}
}

func (state *LocalMQTTActor) publishStateUpdate(ctx actor.Context, event domain.StateUpdateEvent, retain bool) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("localmqtt@publish: state publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *LocalMQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("localmqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *LocalMQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("localmqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("localmqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *LocalMQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("localmqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishStateUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("localmqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// publishDiscovery republishes every entity config. It runs on every reload
// cycle: discovery is idempotent on the HA side, and republishing heals
// entities lost to a broker restart or an HA restart.
func (state *LocalMQTTActor) publishDiscovery(sensors []domain.GenericSensor,
	climates []domain.GenericClimate, locks []domain.GenericLock) error {
	for i := range sensors {
		msg := mqtt.SensorToHADiscoveryMessage(state.topics, state.avTopic, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.topics.Discovery(sensors[i].SensorType, sensors[i].Id)
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range climates {
		msg := mqtt.ClimateToHADiscoveryMessage(state.topics, state.avTopic, climates[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.topics.Discovery(domain.PLATFORM_CLIMATE, climates[i].Id)
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range locks {
		msg := mqtt.LockToHADiscoveryMessage(state.topics, state.avTopic, locks[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := state.topics.Discovery(domain.PLATFORM_LOCK, locks[i].Id)
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

func (state *LocalMQTTActor) stop() {
	state.logger.Debug("localmqtt: disconnect")
	if state.client != nil {
		state.client.Publish(state.avTopic, mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

// Dummy actor for tests: accepts every publish and records nothing.
func NewTestLocalMQTTActor(config *config.Config, logger *zap.Logger) *LocalMQTTActor {
	act := &LocalMQTTActor{
		config:   config,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		topics:   mqtt.NewTopics(config.MQTT.HADiscoveryTopic),
		avTopic:  mqtt.BridgeStateTopic(config.MQTT.BaseTopic),
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_LOCAL_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *LocalMQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_LOCAL_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishStateUpdateRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishStateUpdateResponse{})
		}
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	case domain.PublishDiscoveryRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{})
	}
}
