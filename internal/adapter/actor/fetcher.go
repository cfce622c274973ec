package actor

import (
	"context"
	"fmt"
	"time"

	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/neasmart"
	"neasmart2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const fetchTimeout = 60 * time.Second

// InstallationFetcher is the slice of the vendor client this actor uses.
type InstallationFetcher interface {
	FetchInstallation(ctx context.Context, installRef string) (*domain.Installation, error)
}

var _ InstallationFetcher = (*neasmart.Client)(nil)

// FetcherActor serializes vendor API access. A fetch runs as a background
// task while the actor stashes everything else, so concurrent requesters
// never trigger overlapping cloud calls.
type FetcherActor struct {
	behavior   actor.Behavior
	stash      *actorutil.Stash
	client     InstallationFetcher
	installRef string
	logger     *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewFetcherActor(client InstallationFetcher, installRef string, logger *zap.Logger) *FetcherActor {
	act := &FetcherActor{
		client:     client,
		installRef: installRef,
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_FETCHER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *FetcherActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *FetcherActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("fetcher@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_FETCHER,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetInstallationRequest:
		state.logger.Debug("fetcher@default: GetInstallationRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getInstallation),
			mapTaskResult[domain.GetInstallationResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetInstallationResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(fetchTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingFetch)
	default:
		state.logger.Debug("fetcher@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *FetcherActor) WaitingFetch(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("fetcher@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		ctx.Send(msg.replyTo, msg.message)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("fetcher@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (a *FetcherActor) getInstallation() (*domain.GetInstallationResponse, error) {
	fetchCtx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	inst, err := a.client.FetchInstallation(fetchCtx, a.installRef)
	if err != nil {
		a.logger.Error("installation fetch failed", zap.Error(err))
		return nil, err
	}
	return &domain.GetInstallationResponse{
		Installation: inst,
	}, nil
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
