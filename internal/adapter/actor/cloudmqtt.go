package actor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/mqtt"
	"neasmart2mqtt/internal/neasmart"
	"neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	DefaultVendorMQTTHost = "mqtt.neasmart.rehau.com"
	DefaultVendorMQTTPort = 8883
)

// AccessTokenSource yields the current access token. The vendor broker
// authenticates with it as the MQTT password, so reconnects after a token
// rotation must read a fresh one.
type AccessTokenSource interface {
	AccessToken() string
}

// CloudMQTTActor owns the connection to the vendor's broker: it publishes
// command messages and forwards pushed zone updates and rejections upward.
type CloudMQTTActor struct {
	config   *config.Config
	tokens   AccessTokenSource
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   *mqtt.Client
	pending  int
	logger   *zap.Logger
}

// vendorCommand is the wire shape of a command message on the vendor broker.
// Temperatures travel raw (Fahrenheit x 10), modes and levels as their
// numeric codes.
type vendorCommand struct {
	ChannelZone         int   `json:"channelZone"`
	Controller          int   `json:"controller"`
	SetpointTemperature *int  `json:"setpointTemperature,omitempty"`
	OperationMode       *int  `json:"operationMode,omitempty"`
	EnergyLevel         *int  `json:"energyLevel,omitempty"`
	Locked              *bool `json:"locked,omitempty"`
}

// vendorUpdate is a pushed zone change. Absent fields stay nil.
type vendorUpdate struct {
	Unique              string `json:"unique"`
	SetpointTemperature *int   `json:"setpointTemperature"`
	OperationMode       *int   `json:"operationMode"`
	EnergyLevel         *int   `json:"energyLevel"`
	Locked              *bool  `json:"locked"`
}

type commandPublishResult struct {
	CommandID string
	ReplyTo   *actor.PID
	Error     error
}

type vendorRejection struct {
	Unique string `json:"unique"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func NewCloudMQTTActor(config *config.Config, tokens AccessTokenSource, logger *zap.Logger) *CloudMQTTActor {
	act := &CloudMQTTActor{
		config:   config,
		tokens:   tokens,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *CloudMQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CloudMQTTActor) vendorHost() (string, int) {
	host := state.config.Vendor.MQTTHost
	port := state.config.Vendor.MQTTPort
	if host == "" {
		host = DefaultVendorMQTTHost
	}
	if port == 0 {
		port = DefaultVendorMQTTPort
	}
	return host, port
}

func (state *CloudMQTTActor) updatesTopic() string {
	return fmt.Sprintf("users/%s/installations/+/updates", state.config.Account.Email)
}

func (state *CloudMQTTActor) rejectionsTopic() string {
	return fmt.Sprintf("users/%s/installations/+/rejections", state.config.Account.Email)
}

func (state *CloudMQTTActor) commandsTopic(installationID string) string {
	return fmt.Sprintf("users/%s/installations/%s/commands", state.config.Account.Email, installationID)
}

func (state *CloudMQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("cloudmqtt@starting started")

		host, port := state.vendorHost()
		state.client = mqtt.NewClient(mqtt.Options{
			Host:     host,
			Port:     port,
			ClientID: fmt.Sprintf("%s_cloud", state.config.MQTT.BaseTopic),
			CredentialsProvider: func() (string, string) {
				return state.config.Account.Email, state.tokens.AccessToken()
			},
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
		}, 15*time.Second)

	case MQTTConnected:
		state.logger.Debug("cloudmqtt@starting connected")

		state.pending = 2
		state.client.Subscribe(state.updatesTopic(), 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
			update := state.parseUpdate(m.Payload())
			if update != nil {
				ctx.Send(ctx.Self(), *update)
			}
		}, state.subscribeContinuation(ctx), 2*time.Second)

		state.client.Subscribe(state.rejectionsTopic(), 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
			rejection := state.parseRejection(m.Payload())
			if rejection != nil {
				ctx.Send(ctx.Self(), *rejection)
			}
		}, state.subscribeContinuation(ctx), 2*time.Second)
	case MQTTSubscribed:
		state.pending--
		if state.pending > 0 {
			return
		}
		state.logger.Debug("cloudmqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		state.logger.Error("cloudmqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("cloudmqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CloudMQTTActor) subscribeContinuation(ctx actor.Context) func(error) {
	return func(err error) {
		if err != nil {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		} else {
			ctx.Send(ctx.Self(), MQTTSubscribed{})
		}
	}
}

func (state *CloudMQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("cloudmqtt@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD_MQTT,
			Healthy: state.client.IsConnected(),
			State:   "idle",
		})
	case domain.VendorCommandRequest:
		state.logger.Debug("cloudmqtt@default VendorCommandRequest", zap.String("type", string(msg.Type)))
		state.publishCommand(ctx, msg)
	case domain.VendorZoneUpdate:
		ctx.Send(ctx.Parent(), msg)
	case domain.VendorRejectionEvent:
		state.logger.Debug("cloudmqtt@default VendorRejectionEvent", zap.String("zone", msg.ZoneID))
		ctx.Send(ctx.Parent(), msg)
	case MQTTConnectionLost:
		state.logger.Error("cloudmqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("cloudmqtt@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *CloudMQTTActor) publishCommand(ctx actor.Context, msg domain.VendorCommandRequest) {
	replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)

	payload, err := encodeCommand(msg)
	if err != nil {
		// a command the vendor wire cannot express is a rejection, not a crash
		state.logger.Warn("cloudmqtt@default unencodable command", zap.Error(err))
		ctx.Send(replyTo, domain.VendorCommandResponse{
			CommandID: msg.CommandID,
			Rejected:  true,
			Reason:    err.Error(),
		})
		return
	}

	commandID := msg.CommandID
	state.client.Publish(state.commandsTopic(msg.InstallationID), payload, 1, false, func(err error) {
		ctx.Send(ctx.Self(), commandPublishResult{CommandID: commandID, ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.CommandPublishResultReceive)
}

func (state *CloudMQTTActor) CommandPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case commandPublishResult:
		if msg.Error != nil {
			state.logger.Error("cloudmqtt@publishing could not publish a command", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.VendorCommandResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
				CommandID: msg.CommandID,
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("cloudmqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func encodeCommand(msg domain.VendorCommandRequest) ([]byte, error) {
	cmd := vendorCommand{
		ChannelZone: msg.ChannelZone,
		Controller:  msg.ControllerNumber,
	}
	switch msg.Type {
	case domain.CommandSetTemperature:
		celsius, err := strconv.ParseFloat(msg.Payload, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid temperature %q", msg.Payload)
		}
		raw := neasmart.RawOf(celsius)
		cmd.SetpointTemperature = &raw
	case domain.CommandSetMode:
		raw, ok := neasmart.OperationModeRaw(domain.OperationMode(msg.Payload))
		if !ok {
			return nil, fmt.Errorf("invalid operation mode %q", msg.Payload)
		}
		cmd.OperationMode = &raw
	case domain.CommandSetEnergyLevel:
		raw, ok := neasmart.EnergyLevelRaw(msg.Payload)
		if !ok {
			return nil, fmt.Errorf("invalid energy level %q", msg.Payload)
		}
		cmd.EnergyLevel = &raw
	case domain.CommandSetLock:
		switch msg.Payload {
		case mqtt.MQTT_PAYLOAD_LOCK:
			locked := true
			cmd.Locked = &locked
		case mqtt.MQTT_PAYLOAD_UNLOCK:
			locked := false
			cmd.Locked = &locked
		default:
			return nil, fmt.Errorf("invalid lock payload %q", msg.Payload)
		}
	default:
		return nil, fmt.Errorf("unknown command type %q", msg.Type)
	}
	return json.Marshal(cmd)
}

// parseUpdate turns a pushed zone change into state echoes, normalized to
// the same string forms commands use so the tracker can compare them.
func (state *CloudMQTTActor) parseUpdate(payload []byte) *domain.VendorZoneUpdate {
	var update vendorUpdate
	if err := json.Unmarshal(payload, &update); err != nil || update.Unique == "" {
		state.logger.Warn("cloudmqtt: unparseable update", zap.ByteString("payload", payload))
		return nil
	}

	var echoes []domain.StateEcho
	if update.SetpointTemperature != nil {
		if c := neasmart.CelsiusOf(*update.SetpointTemperature); c != nil {
			echoes = append(echoes, domain.StateEcho{
				ZoneID: update.Unique,
				Type:   domain.CommandSetTemperature,
				Value:  strconv.FormatFloat(*c, 'f', 1, 64),
			})
		}
	}
	if update.OperationMode != nil {
		echoes = append(echoes, domain.StateEcho{
			ZoneID: update.Unique,
			Type:   domain.CommandSetMode,
			Value:  string(neasmart.OperationModeOf(*update.OperationMode)),
		})
	}
	if update.EnergyLevel != nil {
		echoes = append(echoes, domain.StateEcho{
			ZoneID: update.Unique,
			Type:   domain.CommandSetEnergyLevel,
			Value:  neasmart.EnergyLevelOf(*update.EnergyLevel),
		})
	}
	if update.Locked != nil {
		value := mqtt.MQTT_PAYLOAD_UNLOCK
		if *update.Locked {
			value = mqtt.MQTT_PAYLOAD_LOCK
		}
		echoes = append(echoes, domain.StateEcho{
			ZoneID: update.Unique,
			Type:   domain.CommandSetLock,
			Value:  value,
		})
	}
	return &domain.VendorZoneUpdate{Echoes: echoes}
}

func (state *CloudMQTTActor) parseRejection(payload []byte) *domain.VendorRejectionEvent {
	var rejection vendorRejection
	if err := json.Unmarshal(payload, &rejection); err != nil || rejection.Unique == "" {
		state.logger.Warn("cloudmqtt: unparseable rejection", zap.ByteString("payload", payload))
		return nil
	}
	return &domain.VendorRejectionEvent{
		ZoneID: rejection.Unique,
		Type:   domain.CommandType(rejection.Type),
		Reason: rejection.Reason,
	}
}

func (state *CloudMQTTActor) stop() {
	state.logger.Debug("cloudmqtt: disconnect")
	if state.client != nil {
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func NewTestCloudMQTTActor(config *config.Config, tokens AccessTokenSource, logger *zap.Logger) *CloudMQTTActor {
	act := &CloudMQTTActor{
		config:   config,
		tokens:   tokens,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_CLOUD_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *CloudMQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CLOUD_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.VendorCommandRequest:
		if replyTo := actorutil.ForRequest(msg).ReplyTo(ctx); replyTo != nil {
			ctx.Send(replyTo, domain.VendorCommandResponse{CommandID: msg.CommandID})
		}
	}
}
