package server

import (
	"fmt"
	"net/http"
	"time"

	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/token"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port         uint
	httpLog      bool
	rootContext  *actor.RootContext
	masterActor  *actor.PID
	store        *service.SnapshotStore
	tokenManager *token.Manager
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	store *service.SnapshotStore, tokenManager *token.Manager) *http.Server {
	NewServer := &Server{
		port:         cfg.Port,
		rootContext:  rootContext,
		masterActor:  masterActor,
		store:        store,
		tokenManager: tokenManager,
		httpLog:      cfg.HttpLog,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
