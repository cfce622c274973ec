package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "neasmart2mqtt/internal/adapter/actor"
	"neasmart2mqtt/internal/auth"
	"neasmart2mqtt/internal/config"
	"neasmart2mqtt/internal/core/actor"
	"neasmart2mqtt/internal/core/service"
	"neasmart2mqtt/internal/mail"
	"neasmart2mqtt/internal/neasmart"
	"neasmart2mqtt/internal/server"
	"neasmart2mqtt/internal/token"
	"neasmart2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, tokenManager *token.Manager, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	tokenManager.Cleanup()

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// login plumbing: mail poller + auth engine + token manager
	tokenManager, err := tokenManagerFromConfig(cfg, logger)
	if err != nil {
		panic(err)
	}
	if err := tokenManager.Start(context.Background()); err != nil {
		panic(fmt.Sprintf("initial login failed: %s", err))
	}

	apiClient := neasmart.NewClient(cfg.Vendor.APIBase, tokenManager, logger)

	store := service.NewSnapshotStore()
	es := &eventstream.EventStream{}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, store, es,
			fetcherActorProvider(cfg, apiClient, logger),
			localMQTTActorProvider(cfg, logger),
			cloudMQTTActorProvider(cfg, tokenManager, logger),
			logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, store, tokenManager)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, tokenManager, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => NEASMART_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("NEASMART_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("neasmart")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// required params
	if cfg.Account.Email == "" || cfg.Account.Password == "" {
		return nil, errors.New("config params account.email and account.password are required")
	}
	// the cloud always challenges a fresh login over email, so a reachable
	// mailbox is not optional
	if cfg.Mailbox.Host == "" || cfg.Mailbox.Username == "" {
		return nil, errors.New("config params mailbox.host and mailbox.username are required")
	}

	// check bounds
	if cfg.Mailbox.PollIntervalMillis < 500 {
		return nil, errors.New("config param mailbox.poll_interval_millis should be >= 500")
	}
	if cfg.PollerConfig.ZoneReloadIntervalMillis < 5000 {
		return nil, errors.New("config param poller.zone_reload_interval_millis should be >= 5000")
	}
	if cfg.TokenConfig.RefreshIntervalMillis < 10000 {
		return nil, errors.New("config param token.refresh_interval_millis should be >= 10000")
	}
	if cfg.CommandConfig.ConfirmTimeoutMillis < 1000 {
		return nil, errors.New("config param command.confirm_timeout_millis should be >= 1000")
	}

	return &cfg, nil
}

func tokenManagerFromConfig(cfg *config.Config, logger *zap.Logger) (*token.Manager, error) {

	dialer, err := mail.NewDialer(cfg.Mailbox, logger)
	if err != nil {
		return nil, err
	}
	poller := mail.NewPoller(dialer, time.Duration(cfg.Mailbox.PollIntervalMillis)*time.Millisecond, logger)

	direct, err := auth.NewDirectTransport(30 * time.Second)
	if err != nil {
		return nil, err
	}
	var browser auth.Transport
	if cfg.BrowserConfig.Enable {
		browser = auth.NewBrowserTransport(time.Duration(cfg.BrowserConfig.IdleTimeoutMillis)*time.Millisecond, logger)
	}

	senderFilter := cfg.Mailbox.SenderFilter
	if senderFilter == "" {
		senderFilter = auth.DefaultSenderFilter
	}

	engine := auth.NewEngine(auth.EngineConfig{
		Endpoints:    auth.DefaultEndpoints(),
		ClientID:     auth.DefaultClientID,
		SenderFilter: senderFilter,
		MFATimeout:   time.Duration(cfg.Mailbox.WaitTimeoutMillis) * time.Millisecond,
	}, direct, browser, poller, logger)

	return token.NewManager(engine, cfg.Account.Email, cfg.Account.Password,
		time.Duration(cfg.TokenConfig.RefreshIntervalMillis)*time.Millisecond, logger), nil
}

func fetcherActorProvider(cfg *config.Config, client *neasmart.Client, logger *zap.Logger) actor.FetcherActorProvider {
	return func() *adactor.FetcherActor {
		return adactor.NewFetcherActor(client, cfg.Account.InstallRef, logger)
	}
}

func localMQTTActorProvider(cfg *config.Config, logger *zap.Logger) actor.LocalMQTTActorProvider {
	return func() *adactor.LocalMQTTActor {
		return adactor.NewLocalMQTTActor(cfg, logger)
	}
}

func cloudMQTTActorProvider(cfg *config.Config, tokens adactor.AccessTokenSource, logger *zap.Logger) actor.CloudMQTTActorProvider {
	return func() *adactor.CloudMQTTActor {
		return adactor.NewCloudMQTTActor(cfg, tokens, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "neasmart2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mailbox.provider", "pop3")
	viper.SetDefault("mailbox.port", 995)
	viper.SetDefault("mailbox.poll_interval_millis", 2000)
	viper.SetDefault("mailbox.wait_timeout_millis", 600000)
	viper.SetDefault("poller.zone_reload_interval_millis", 60000)
	viper.SetDefault("token.refresh_interval_millis", 21600000)
	viper.SetDefault("command.confirm_timeout_millis", 30000)
	viper.SetDefault("browser.enable", true)
	viper.SetDefault("browser.idle_timeout_millis", 120000)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.Account.Password = "*redacted*"
	cfg.Mailbox.Password = "*redacted*"
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
