package actor

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	adactor "neasmart2mqtt/internal/adapter/actor"
	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/mqtt"
	. "neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type FetcherActorProvider func() *adactor.FetcherActor

type LocalMQTTActorProvider func() *adactor.LocalMQTTActor

type CloudMQTTActorProvider func() *adactor.CloudMQTTActor

var trackedActors = []string{
	domain.ACTOR_ID_FETCHER,
	domain.ACTOR_ID_LOCAL_MQTT,
	domain.ACTOR_ID_CLOUD_MQTT,
	domain.ACTOR_ID_POLLER,
	domain.ACTOR_ID_TRACKER,
}

// MasterActor owns the whole actor tree: the vendor-side adapters, the
// poller and the command tracker, plus the health-check fan-out used by the
// REST layer.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	store              *service.SnapshotStore

	fetcherActor   *actor.PID
	localMQTTActor *actor.PID
	cloudMQTTActor *actor.PID
	pollerActor    *actor.PID
	trackerActor   *actor.PID

	fetcherProvider   FetcherActorProvider
	localMQTTProvider LocalMQTTActorProvider
	cloudMQTTProvider CloudMQTTActorProvider

	logger *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

func NewMasterActor(config config.Config, store *service.SnapshotStore, eventStream *eventstream.EventStream,
	fetcherProvider FetcherActorProvider, localMQTTProvider LocalMQTTActorProvider,
	cloudMQTTProvider CloudMQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:            config,
		behavior:          actor.NewBehavior(),
		stash:             &Stash{},
		store:             store,
		eventStream:       eventStream,
		fetcherProvider:   fetcherProvider,
		localMQTTProvider: localMQTTProvider,
		cloudMQTTProvider: cloudMQTTProvider,
		logger:            ActorLogger(domain.ACTOR_ID_MASTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		fetcherPID, err := state.startFetcherActor(ctx)
		if err != nil {
			panic(err)
		}
		state.fetcherActor = fetcherPID

		localMQTTPID, err := state.startLocalMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.localMQTTActor = localMQTTPID

		cloudMQTTPID, err := state.startCloudMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.cloudMQTTActor = cloudMQTTPID

		trackerPID, err := state.startTrackerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.trackerActor = trackerPID

		pollerPID, err := state.startPollerActor(ctx)
		if err != nil {
			panic(err)
		}
		state.pollerActor = pollerPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, target := range []*actor.PID{state.fetcherActor, state.localMQTTActor,
			state.cloudMQTTActor, state.pollerActor, state.trackerActor} {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(target, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{Healthy: false}
			})
		}
		ctx.SetReceiveTimeout(1 * time.Second)
		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			state.routeCommand(ctx, *msg.Command)
		}
	case domain.IssueCommandResponse:
		// outcome of an MQTT-initiated command; errors only get logged
		if msg.HasResponseError() {
			state.logger.Warn("master@default command not accepted", zap.Error(msg.GetResponseError()))
		}
	case domain.IssueCommandRequest:
		ctx.Forward(state.trackerActor)
	case domain.CommandStatusRequest:
		ctx.Forward(state.trackerActor)
	case domain.VendorZoneUpdate:
		// live vendor push: echoes feed the tracker, and the poller refreshes
		ctx.Send(state.trackerActor, msg)
		ctx.Send(state.pollerActor, msg)
	case domain.VendorRejectionEvent:
		ctx.Send(state.trackerActor, msg)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_CLOUD_MQTT) {
			state.logger.Error("master@default cloud mqtt terminated")
			panic(errors.New("cloud mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// routeCommand converts a local MQTT command into a tracker command. The
// entity ID is rehau_<zoneDatabaseID> with an optional _lock suffix.
func (state *MasterActor) routeCommand(ctx actor.Context, cmd mqtt.ParsedCommand) {
	zoneID := strings.TrimPrefix(cmd.EntityID, "rehau_")
	zoneID = strings.TrimSuffix(zoneID, "_"+domain.SUFFIX_LOCK)

	var cmdType domain.CommandType
	switch cmd.Command {
	case "set_temperature":
		cmdType = domain.CommandSetTemperature
	case "set_mode":
		cmdType = domain.CommandSetMode
	case "set_preset":
		cmdType = domain.CommandSetEnergyLevel
	case "set_lock":
		cmdType = domain.CommandSetLock
	default:
		state.logger.Warn("master@default unknown command", zap.String("command", cmd.Command))
		return
	}

	inst, zone := state.store.FindZone(zoneID)
	if zone == nil {
		state.logger.Warn("master@default command for unknown zone", zap.String("zone", zoneID))
		return
	}

	selfRef := (*domain.ActorRef)(ctx.Self())
	ctx.Send(state.trackerActor, domain.IssueCommandRequest{
		ActorRequestMixIn: domain.ActorRequestMixIn{ReplyToRef: selfRef},
		InstallationID:    inst.ID,
		ZoneID:            zoneID,
		Type:              cmdType,
		Payload:           cmd.Payload,
	})
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy && msg.Id != "" {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) startFetcherActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.fetcherProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_FETCHER)
}

func (state *MasterActor) startLocalMQTTActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.localMQTTProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_LOCAL_MQTT)
}

func (state *MasterActor) startCloudMQTTActor(ctx actor.Context) (*actor.PID, error) {
	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.cloudMQTTProvider()
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_CLOUD_MQTT)
}

func (state *MasterActor) startTrackerActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTrackerActor(&state.config, state.cloudMQTTActor, state.store, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_TRACKER)
}

func (state *MasterActor) startPollerActor(ctx actor.Context) (*actor.PID, error) {
	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewAllForOneStrategy(1, 10*time.Second, decider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&state.config, state.fetcherActor, state.localMQTTActor,
			state.trackerActor, state.store, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_POLLER)
}

func (state *healthCheckResult) reset() {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(trackedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range trackedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
