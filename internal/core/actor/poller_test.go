package actor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	adactor "neasmart2mqtt/internal/adapter/actor"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// captureActor records every message it receives.
type captureActor struct {
	messages chan any
}

func (a *captureActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started, *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		a.messages <- msg
	}
}

func (a *captureActor) drain(timeout time.Duration) []any {
	var out []any
	for {
		select {
		case msg := <-a.messages:
			out = append(out, msg)
		case <-time.After(timeout):
			return out
		}
	}
}

type countingFetcher struct {
	calls atomic.Int32
}

func (f *countingFetcher) FetchInstallation(ctx context.Context, installRef string) (*domain.Installation, error) {
	f.calls.Add(1)
	return trackerTestInstallation(), nil
}

type pollerFixture struct {
	as      *actor.ActorSystem
	context *actor.RootContext
	poller  *actor.PID
	local   *captureActor
	tracker *captureActor
	fetcher *countingFetcher
	store   *service.SnapshotStore
}

func newPollerFixture(t *testing.T, discovery bool, reloadMillis uint32) *pollerFixture {
	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = discovery
	cfg.PollerConfig.ZoneReloadIntervalMillis = reloadMillis

	logger := zap.NewNop()

	fetcher := &countingFetcher{}
	fetcherPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewFetcherActor(fetcher, "", logger)
	}))

	local := &captureActor{messages: make(chan any, 64)}
	localPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return local }))

	tracker := &captureActor{messages: make(chan any, 64)}
	trackerPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return tracker }))

	store := service.NewSnapshotStore()

	poller, err := context.SpawnNamed(actor.PropsFromProducer(func() actor.Actor {
		return NewPollerActor(&cfg, fetcherPID, localPID, trackerPID, store, logger)
	}), "poller")
	if err != nil {
		t.Fatal(err)
	}

	return &pollerFixture{as: as, context: context, poller: poller,
		local: local, tracker: tracker, fetcher: fetcher, store: store}
}

func (f *pollerFixture) shutdown() {
	f.context.Stop(f.poller)
	f.as.Shutdown()
}

func TestPollerFirstCyclePublishesEverything(t *testing.T) {

	assert := assert.New(t)

	f := newPollerFixture(t, true, 60000)
	defer f.shutdown()

	deadline := time.Now().Add(5 * time.Second)
	for f.store.Get("inst1") == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.NotNil(f.store.Get("inst1"), "snapshot stored")

	var discoveries, updates int
	for _, msg := range f.local.drain(300 * time.Millisecond) {
		switch msg.(type) {
		case domain.PublishDiscoveryRequest:
			discoveries++
		case domain.PublishStateUpdateRequest:
			updates++
		}
	}
	assert.Equal(1, discoveries, "discovery goes out with the first snapshot")
	assert.Greater(updates, 0, "first snapshot publishes all states")

	var echoes int
	for _, msg := range f.tracker.drain(300 * time.Millisecond) {
		if _, ok := msg.(domain.StateEcho); ok {
			echoes++
		}
	}
	assert.Equal(4, echoes, "one echo per command type for the single zone")
}

func TestPollerUnchangedReloadRepublishesDiscoveryOnly(t *testing.T) {

	assert := assert.New(t)

	f := newPollerFixture(t, true, 200)
	defer f.shutdown()

	// wait for at least two full cycles
	deadline := time.Now().Add(5 * time.Second)
	for f.fetcher.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.GreaterOrEqual(f.fetcher.calls.Load(), int32(2))

	var discoveries, updates int
	for _, msg := range f.local.drain(300 * time.Millisecond) {
		switch msg.(type) {
		case domain.PublishDiscoveryRequest:
			discoveries++
		case domain.PublishStateUpdateRequest:
			updates++
		}
	}
	assert.GreaterOrEqual(discoveries, 2, "discovery repeats every cycle")
	// climate + lock from the first cycle, nothing from later ones
	assert.LessOrEqual(updates, 2, "identical snapshots add no updates")
}

func TestPollerDisabledDiscovery(t *testing.T) {

	assert := assert.New(t)

	f := newPollerFixture(t, false, 60000)
	defer f.shutdown()

	deadline := time.Now().Add(5 * time.Second)
	for f.store.Get("inst1") == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	for _, msg := range f.local.drain(300 * time.Millisecond) {
		if _, ok := msg.(domain.PublishDiscoveryRequest); ok {
			t.Fatal("discovery published although disabled")
		}
	}
	assert.NotNil(f.store.Get("inst1"))
}

func TestPollerReloadsOnVendorUpdate(t *testing.T) {

	assert := assert.New(t)

	f := newPollerFixture(t, false, 60000)
	defer f.shutdown()

	deadline := time.Now().Add(5 * time.Second)
	for f.fetcher.calls.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	before := f.fetcher.calls.Load()

	f.context.Send(f.poller, domain.VendorZoneUpdate{})

	deadline = time.Now().Add(5 * time.Second)
	for f.fetcher.calls.Load() == before && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.Greater(f.fetcher.calls.Load(), before, "pushed vendor change forces a reload")
}
