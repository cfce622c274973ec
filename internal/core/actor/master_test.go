package actor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	adactor "neasmart2mqtt/internal/adapter/actor"
	"neasmart2mqtt/internal/core/domain"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/mqtt"
	"neasmart2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeInstallationFetcher struct{}

func (f fakeInstallationFetcher) FetchInstallation(ctx context.Context, installRef string) (*domain.Installation, error) {
	return trackerTestInstallation(), nil
}

type fakeAccessTokenSource struct{}

func (f fakeAccessTokenSource) AccessToken() string { return "test-token" }

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	store := service.NewSnapshotStore()
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, store, es, func() *adactor.FetcherActor {
			return adactor.NewFetcherActor(fakeInstallationFetcher{}, "", logger)
		}, func() *adactor.LocalMQTTActor {
			return adactor.NewTestLocalMQTTActor(&cfg, logger)
		}, func() *adactor.CloudMQTTActor {
			return adactor.NewTestCloudMQTTActor(&cfg, fakeAccessTokenSource{}, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	context.Stop(pid)

	as.Shutdown()
}

// The poller feeds the first snapshot into the store shortly after boot.
func TestMasterActorLoadsSnapshot(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	store := service.NewSnapshotStore()
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, store, es, func() *adactor.FetcherActor {
			return adactor.NewFetcherActor(fakeInstallationFetcher{}, "", logger)
		}, func() *adactor.LocalMQTTActor {
			return adactor.NewTestLocalMQTTActor(&cfg, logger)
		}, func() *adactor.CloudMQTTActor {
			return adactor.NewTestCloudMQTTActor(&cfg, fakeAccessTokenSource{}, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.Get("inst1") == nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	inst := store.Get("inst1")
	if assert.NotNil(inst, "snapshot loaded after boot") {
		assert.NotNil(inst.Zone("z1"))
	}

	context.Stop(pid)

	as.Shutdown()
}

// A command arriving on a local MQTT topic ends up in the tracker keyed by
// the zone database ID, with the installation resolved from the store.
func TestMasterRoutesLocalCommandToTracker(t *testing.T) {

	assert := assert.New(t)

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logger := zap.NewNop()

	store := service.NewSnapshotStore()
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, store, es, func() *adactor.FetcherActor {
			return adactor.NewFetcherActor(fakeInstallationFetcher{}, "", logger)
		}, func() *adactor.LocalMQTTActor {
			return adactor.NewTestLocalMQTTActor(&cfg, logger)
		}, func() *adactor.CloudMQTTActor {
			return adactor.NewTestCloudMQTTActor(&cfg, fakeAccessTokenSource{}, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	deadline := time.Now().Add(5 * time.Second)
	for store.Get("inst1") == nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if !assert.NotNil(store.Get("inst1"), "snapshot loaded after boot") {
		return
	}

	var mu sync.Mutex
	var outcomes []domain.CommandOutcomeEvent
	sub := es.Subscribe(func(evt interface{}) {
		if outcome, ok := evt.(domain.CommandOutcomeEvent); ok {
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}
	})
	defer es.Unsubscribe(sub)

	// cool never gets echoed back, so the tracker times the command out
	context.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedCommand{
		EntityID: "rehau_z1", Command: "set_mode", Payload: "cool",
	}})

	deadline = time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(outcomes)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if assert.Len(outcomes, 1, "command reached the tracker") {
		assert.Equal("z1", outcomes[0].ZoneID)
		assert.Equal(domain.CommandStateRejected, outcomes[0].State)
	}

	context.Stop(pid)

	as.Shutdown()
}
