package neasmart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeTokenSource struct {
	token       string
	invalidated atomic.Int32
}

func (f *fakeTokenSource) AccessToken() string { return f.token }

func (f *fakeTokenSource) EnsureValidToken(ctx context.Context) error { return nil }

func (f *fakeTokenSource) Invalidate() {
	f.invalidated.Add(1)
	f.token = "rotated-token"
}

func TestClientFetchInstallation(t *testing.T) {

	assert := assert.New(t)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal("/users/me/installations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write(installationJSON(zoneJSON("z1", 1)))
	}))
	defer srv.Close()

	tokens := &fakeTokenSource{token: "tok-1"}
	client := NewClient(srv.URL, tokens, zap.NewNop())

	inst, err := client.FetchInstallation(context.Background(), "")
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal("inst1", inst.ID)
	assert.Equal("Bearer tok-1", gotAuth)
}

func TestClientFetchInstallationByRef(t *testing.T) {

	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(installationJSON(zoneJSON("z1", 1)))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &fakeTokenSource{token: "tok"}, zap.NewNop())

	inst, err := client.FetchInstallation(context.Background(), "inst1")
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal("inst1", inst.ID)

	_, err = client.FetchInstallation(context.Background(), "inst404")
	assert.Error(err, "unknown install ref fails")
}

func TestClientRepairsSessionOn401(t *testing.T) {

	assert := assert.New(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal("Bearer rotated-token", r.Header.Get("Authorization"))
		w.Write(installationJSON(zoneJSON("z1", 1)))
	}))
	defer srv.Close()

	tokens := &fakeTokenSource{token: "stale-token"}
	client := NewClient(srv.URL, tokens, zap.NewNop())

	inst, err := client.FetchInstallation(context.Background(), "")
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal("inst1", inst.ID)
	assert.Equal(int32(1), tokens.invalidated.Load(), "one repair attempt")
	assert.Equal(int32(2), calls.Load())
}

func TestClientSecond401Fails(t *testing.T) {

	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, &fakeTokenSource{token: "tok"}, zap.NewNop())

	_, err := client.FetchInstallation(context.Background(), "")
	assert.Error(err, "no endless retry loop on persistent 401")
}
