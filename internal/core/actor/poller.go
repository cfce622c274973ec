package actor

import (
	"fmt"
	"time"

	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/core/events"
	"neasmart2mqtt/internal/core/service"
	. "neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const defaultZoneReloadInterval = 60 * time.Second

// PollerActor drives the periodic zone reload: fetch a fresh snapshot,
// republish discovery, diff against the previous snapshot and push the
// resulting updates and echoes.
type PollerActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	config         *config.Config
	fetcherActor   *actor.PID
	localMQTTActor *actor.PID
	trackerActor   *actor.PID
	store          *service.SnapshotStore

	logger *zap.Logger
}

type zoneReloadTick struct {
}

func NewPollerActor(config *config.Config, fetcherActor, localMQTTActor, trackerActor *actor.PID,
	store *service.SnapshotStore, logger *zap.Logger) *PollerActor {
	act := &PollerActor{
		config:         config,
		fetcherActor:   fetcherActor,
		localMQTTActor: localMQTTActor,
		trackerActor:   trackerActor,
		store:          store,
		behavior:       actor.NewBehavior(),
		stash:          &Stash{},
		logger:         ActorLogger(domain.ACTOR_ID_POLLER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *PollerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *PollerActor) reloadInterval() time.Duration {
	if state.config.PollerConfig.ZoneReloadIntervalMillis > 0 {
		return time.Duration(state.config.PollerConfig.ZoneReloadIntervalMillis) * time.Millisecond
	}
	return defaultZoneReloadInterval
}

func (state *PollerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("poller@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		ctx.Send(ctx.Self(), zoneReloadTick{})
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("poller@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("poller@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_POLLER,
			Healthy: true,
			State:   "idle",
		})
	case zoneReloadTick:
		state.logger.Debug("poller@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.fetcherActor, domain.GetInstallationRequest{}, 95*time.Second), func(err error) any {
			return domain.GetInstallationResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.BecomeStacked(state.WaitingReloadReceive)
	case domain.VendorZoneUpdate:
		// a pushed vendor change is a hint that the snapshot is stale
		state.logger.Debug("poller@default vendor update, reloading")
		ctx.Send(ctx.Self(), zoneReloadTick{})
	default:
		state.logger.Debug("poller@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) WaitingReloadReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetInstallationResponse:
		if msg.HasResponseError() {
			// keep the previous snapshot, retry on the next tick
			state.logger.Error("poller@waiting reload failed", zap.Error(msg.GetResponseError()))
		} else if msg.Installation != nil {
			state.applySnapshot(ctx, msg.Installation)
		}
		state.scheduler.RequestOnce(state.reloadInterval(), ctx.Self(), zoneReloadTick{})
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case zoneReloadTick:
		// collapse reload requests that piled up while fetching
	default:
		state.logger.Debug("poller@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *PollerActor) applySnapshot(ctx actor.Context, inst *domain.Installation) {
	state.logger.Debug("poller@waiting snapshot", zap.String("installation", inst.ID),
		zap.Int("zones", len(inst.Zones)))

	prev := state.store.Get(inst.ID)
	state.store.Put(inst)

	// discovery goes out on every cycle, not just the first: a restarted HA
	// would otherwise never relearn the entities
	if state.config.MQTT.HADiscoveryEnable {
		sensors, climates, locks := events.InstallationDiscovery(state.config.MQTT.BaseTopic, inst)
		ctx.Send(state.localMQTTActor, domain.PublishDiscoveryRequest{
			Sensors:  sensors,
			Climates: climates,
			Locks:    locks,
		})
	}

	for _, ev := range events.InstallationToUpdateEvents(prev, inst) {
		ctx.Send(state.localMQTTActor, domain.PublishStateUpdateRequest{Event: ev})
	}

	for _, echo := range events.InstallationEchoes(inst) {
		ctx.Send(state.trackerActor, echo)
	}
}
