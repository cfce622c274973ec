package actor

import (
	"fmt"
	"strconv"
	"time"

	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/mqtt"
	. "neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultConfirmTimeout = 30 * time.Second
	// terminal commands stay queryable for a while, then get reaped
	commandRetention = 5 * time.Minute
)

// TrackerActor runs the per-command state machine
// pending -> confirmed | rejected | timeout-no-change.
//
// The vendor broker silently drops commands that would change nothing, so a
// timed-out command whose previous value equals the requested value is a
// no-op, not a failure. Commands to the same zone run strictly one at a
// time; otherwise two in-flight commands would race on the previous-value
// bookkeeping the no-op detection depends on.
type TrackerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config         *config.Config
	cloudMQTTActor *actor.PID
	store          *service.SnapshotStore
	eventStream    *eventstream.EventStream

	commands  map[string]*domain.Command
	zoneQueue map[string][]string
	timeouts  map[string]scheduler.CancelFunc

	logger *zap.Logger
}

type commandTimeout struct {
	CommandID string
}

type commandReap struct {
	CommandID string
}

func NewTrackerActor(config *config.Config, cloudMQTTActor *actor.PID, store *service.SnapshotStore,
	eventStream *eventstream.EventStream, logger *zap.Logger) *TrackerActor {
	act := &TrackerActor{
		config:         config,
		cloudMQTTActor: cloudMQTTActor,
		store:          store,
		eventStream:    eventStream,
		behavior:       actor.NewBehavior(),
		stash:          &Stash{},
		commands:       map[string]*domain.Command{},
		zoneQueue:      map[string][]string{},
		timeouts:       map[string]scheduler.CancelFunc{},
		logger:         ActorLogger(domain.ACTOR_ID_TRACKER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *TrackerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TrackerActor) confirmTimeout() time.Duration {
	if state.config.CommandConfig.ConfirmTimeoutMillis > 0 {
		return time.Duration(state.config.CommandConfig.ConfirmTimeoutMillis) * time.Millisecond
	}
	return defaultConfirmTimeout
}

func (state *TrackerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("tracker@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("tracker@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TrackerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("tracker@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TRACKER,
			Healthy: true,
			State:   "idle",
		})
	case domain.IssueCommandRequest:
		state.logger.Debug("tracker@default IssueCommandRequest",
			zap.String("zone", msg.ZoneID), zap.String("type", string(msg.Type)))
		state.issueCommand(ctx, msg)
	case domain.CommandStatusRequest:
		cmd := state.commands[msg.CommandID]
		if cmd == nil {
			ForRequest(msg).Respond(ctx, domain.CommandStatusResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: fmt.Errorf("unknown command %s", msg.CommandID),
				},
			})
			return
		}
		copied := *cmd
		ForRequest(msg).Respond(ctx, domain.CommandStatusResponse{Command: &copied})
	case domain.StateEcho:
		state.handleEcho(ctx, msg)
	case domain.VendorZoneUpdate:
		for _, echo := range msg.Echoes {
			state.handleEcho(ctx, echo)
		}
	case domain.VendorCommandResponse:
		state.handleVendorResponse(ctx, msg)
	case domain.VendorRejectionEvent:
		state.handleVendorRejection(ctx, msg)
	case commandTimeout:
		state.handleTimeout(ctx, msg.CommandID)
	case commandReap:
		state.logger.Debug("tracker@default reap", zap.String("command", msg.CommandID))
		delete(state.commands, msg.CommandID)
	default:
		state.logger.Debug("tracker@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *TrackerActor) issueCommand(ctx actor.Context, msg domain.IssueCommandRequest) {
	newValue, err := normalizeCommandValue(msg.Type, msg.Payload)
	if err != nil {
		ForRequest(msg).Respond(ctx, domain.IssueCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		})
		return
	}

	zone := state.store.Zone(msg.InstallationID, msg.ZoneID)
	if zone == nil {
		ForRequest(msg).Respond(ctx, domain.IssueCommandResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: fmt.Errorf("unknown zone %s", msg.ZoneID),
			},
		})
		return
	}

	cmd := &domain.Command{
		ID:             uuid.NewString(),
		InstallationID: msg.InstallationID,
		ZoneID:         msg.ZoneID,
		Type:           msg.Type,
		Payload:        msg.Payload,
		IssuedAt:       time.Now(),
		PreviousValue:  currentZoneValue(zone, msg.Type),
		NewValue:       newValue,
		State:          domain.CommandStatePending,
	}
	state.commands[cmd.ID] = cmd

	state.zoneQueue[cmd.ZoneID] = append(state.zoneQueue[cmd.ZoneID], cmd.ID)
	if len(state.zoneQueue[cmd.ZoneID]) == 1 {
		state.dispatch(ctx, cmd)
	}

	ForRequest(msg).Respond(ctx, domain.IssueCommandResponse{CommandID: cmd.ID})
}

// dispatch sends the head-of-queue command to the vendor broker and arms
// its confirmation timeout.
func (state *TrackerActor) dispatch(ctx actor.Context, cmd *domain.Command) {
	zone := state.store.Zone(cmd.InstallationID, cmd.ZoneID)
	channelZone, controllerNumber, ok := zone.CommandAddress()
	if !ok {
		state.terminate(ctx, cmd, domain.CommandStateRejected)
		return
	}

	ctx.Request(state.cloudMQTTActor, domain.VendorCommandRequest{
		CommandID:        cmd.ID,
		InstallationID:   cmd.InstallationID,
		ChannelZone:      channelZone,
		ControllerNumber: controllerNumber,
		Type:             cmd.Type,
		Payload:          cmd.Payload,
	})

	state.timeouts[cmd.ID] = state.scheduler.RequestOnce(state.confirmTimeout(), ctx.Self(), commandTimeout{CommandID: cmd.ID})
}

func (state *TrackerActor) handleEcho(ctx actor.Context, echo domain.StateEcho) {
	cmd := state.pendingFor(echo.ZoneID, echo.Type)
	if cmd == nil {
		return
	}
	if echo.Value == cmd.NewValue {
		state.logger.Debug("tracker@default echo confirms command",
			zap.String("command", cmd.ID), zap.String("value", echo.Value))
		state.terminate(ctx, cmd, domain.CommandStateConfirmed)
	}
}

func (state *TrackerActor) handleVendorResponse(ctx actor.Context, msg domain.VendorCommandResponse) {
	cmd := state.commands[msg.CommandID]
	if cmd == nil || cmd.State != domain.CommandStatePending {
		return
	}
	if msg.HasResponseError() {
		state.logger.Error("tracker@default command publish failed",
			zap.String("command", cmd.ID), zap.Error(msg.GetResponseError()))
		state.terminate(ctx, cmd, domain.CommandStateRejected)
	} else if msg.Rejected {
		state.logger.Warn("tracker@default command rejected",
			zap.String("command", cmd.ID), zap.String("reason", msg.Reason))
		state.terminate(ctx, cmd, domain.CommandStateRejected)
	}
}

func (state *TrackerActor) handleVendorRejection(ctx actor.Context, msg domain.VendorRejectionEvent) {
	cmd := state.pendingFor(msg.ZoneID, msg.Type)
	if cmd == nil {
		return
	}
	state.logger.Warn("tracker@default vendor rejection",
		zap.String("command", cmd.ID), zap.String("reason", msg.Reason))
	state.terminate(ctx, cmd, domain.CommandStateRejected)
}

func (state *TrackerActor) handleTimeout(ctx actor.Context, commandID string) {
	cmd := state.commands[commandID]
	if cmd == nil || cmd.State != domain.CommandStatePending {
		return
	}
	if cmd.PreviousValue == cmd.NewValue {
		// silence after a zero-effect command is the vendor discarding it
		state.logger.Debug("tracker@default zero-effect command dropped",
			zap.String("command", cmd.ID))
		state.terminate(ctx, cmd, domain.CommandStateTimeoutNoChange)
	} else {
		state.logger.Warn("tracker@default command lost",
			zap.String("command", cmd.ID), zap.String("zone", cmd.ZoneID))
		state.terminate(ctx, cmd, domain.CommandStateRejected)
	}
}

// pendingFor returns the in-flight command for a zone if it matches the
// type. Only the head of the zone queue is ever in flight.
func (state *TrackerActor) pendingFor(zoneID string, cmdType domain.CommandType) *domain.Command {
	queue := state.zoneQueue[zoneID]
	if len(queue) == 0 {
		return nil
	}
	cmd := state.commands[queue[0]]
	if cmd == nil || cmd.State != domain.CommandStatePending || cmd.Type != cmdType {
		return nil
	}
	return cmd
}

func (state *TrackerActor) terminate(ctx actor.Context, cmd *domain.Command, terminal domain.CommandState) {
	cmd.State = terminal
	if terminal == domain.CommandStateConfirmed {
		now := time.Now()
		cmd.ConfirmedAt = &now
	}
	if cancel, ok := state.timeouts[cmd.ID]; ok {
		cancel()
		delete(state.timeouts, cmd.ID)
	}

	state.eventStream.Publish(domain.CommandOutcomeEvent{
		CommandID:   cmd.ID,
		ZoneID:      cmd.ZoneID,
		State:       cmd.State,
		ConfirmedAt: cmd.ConfirmedAt,
	})

	state.scheduler.RequestOnce(commandRetention, ctx.Self(), commandReap{CommandID: cmd.ID})

	// advance the zone queue
	queue := state.zoneQueue[cmd.ZoneID]
	if len(queue) > 0 && queue[0] == cmd.ID {
		queue = queue[1:]
	}
	if len(queue) == 0 {
		delete(state.zoneQueue, cmd.ZoneID)
		return
	}
	state.zoneQueue[cmd.ZoneID] = queue
	if next := state.commands[queue[0]]; next != nil {
		state.dispatch(ctx, next)
	}
}

// normalizeCommandValue canonicalizes a payload so echoes compare equal.
func normalizeCommandValue(cmdType domain.CommandType, payload string) (string, error) {
	switch cmdType {
	case domain.CommandSetTemperature:
		celsius, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return "", fmt.Errorf("invalid temperature %q", payload)
		}
		return strconv.FormatFloat(celsius, 'f', 1, 64), nil
	case domain.CommandSetMode:
		switch domain.OperationMode(payload) {
		case domain.OperationModeHeat, domain.OperationModeCool, domain.OperationModeAuto, domain.OperationModeManual:
			return payload, nil
		}
		return "", fmt.Errorf("invalid operation mode %q", payload)
	case domain.CommandSetEnergyLevel:
		switch payload {
		case "normal", "reduced", "standby", "timed", "party", "vacation":
			return payload, nil
		}
		return "", fmt.Errorf("invalid energy level %q", payload)
	case domain.CommandSetLock:
		switch payload {
		case mqtt.MQTT_PAYLOAD_LOCK, mqtt.MQTT_PAYLOAD_UNLOCK:
			return payload, nil
		}
		return "", fmt.Errorf("invalid lock payload %q", payload)
	}
	return "", fmt.Errorf("unknown command type %q", cmdType)
}

// currentZoneValue reads the zone's present value for a command type in the
// same canonical form.
func currentZoneValue(zone *domain.Zone, cmdType domain.CommandType) string {
	switch cmdType {
	case domain.CommandSetTemperature:
		if zone.Setpoint == nil {
			return ""
		}
		return strconv.FormatFloat(*zone.Setpoint, 'f', 1, 64)
	case domain.CommandSetMode:
		return string(zone.Mode)
	case domain.CommandSetEnergyLevel:
		return zone.EnergyLevel
	case domain.CommandSetLock:
		if zone.Locked {
			return mqtt.MQTT_PAYLOAD_LOCK
		}
		return mqtt.MQTT_PAYLOAD_UNLOCK
	}
	return ""
}
