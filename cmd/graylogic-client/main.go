// Gray Logic Client - headless client core for the Gray Logic platform.
//
// This is the main entry point. It connects to the platform over WebSocket or
// MQTT, logs in with the configured credentials, follows the active place's
// security and climate subsystems, and serves the local control API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-client/internal/api"
	"github.com/nerrad567/gray-logic-client/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-client/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-client/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-client/internal/listener"
	"github.com/nerrad567/gray-logic-client/internal/model"
	"github.com/nerrad567/gray-logic-client/internal/platform"
	"github.com/nerrad567/gray-logic-client/internal/session"
	"github.com/nerrad567/gray-logic-client/internal/subsystem"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/climate"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/security"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Client",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// All listener and callback work runs on this loop.
	loop := listener.NewLoop()
	go loop.Run(ctx)

	store := model.NewStore()
	store.SetLogger(log.Component("model"))

	client := platform.NewClient(cfg.GetRequestTimeout())
	client.SetLogger(log.Component("platform"))

	dial, closeLink, err := platformDialer(cfg, log)
	if err != nil {
		return err
	}
	defer closeLink()

	if err := client.Connect(ctx, dial); err != nil {
		return err
	}
	defer func() {
		log.Info("closing platform client")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing platform client", "error", closeErr)
		}
	}()

	mirror := client.Mirror(store)
	defer mirror.Unregister()

	sessions := session.New(session.Config{LoadTimeout: cfg.GetLoadTimeout()}, session.Deps{
		Transport: client,
		Store:     store,
		Executor:  loop,
		Logger:    log.Component("session"),
	})
	sessions.Start()
	defer sessions.Close()

	base := subsystem.Deps{Store: store, Fetcher: client, Executor: loop}

	secDeps := security.Deps{
		Deps:              base,
		Requester:         client,
		CountdownInterval: cfg.GetCountdownInterval(),
		LoadTimeout:       cfg.GetLoadTimeout(),
	}
	secDeps.Logger = log.Component("security")
	sec := security.New(secDeps)
	defer sec.Close()

	climDeps := climate.Deps{
		Deps:        base,
		Requester:   client,
		LoadTimeout: cfg.GetLoadTimeout(),
	}
	climDeps.Logger = log.Component("climate")
	clim := climate.New(climDeps)
	defer clim.Close()

	hub := api.NewHub(cfg.WebSocket, log.Component("api"))
	go hub.Run(ctx)

	regs := &listener.Group{}
	defer regs.Unregister()
	regs.Add(
		sec.SetCallback(hub),
		clim.SetCallback(hub.Climate()),
		sessions.AddStateListener(hub.SessionStateChanged),
	)

	binder := newPlaceBinder(ctx, sessions, cfg.GetLoadTimeout(), log.Component("binder"), sec, clim)
	defer binder.wait()
	regs.Add(
		sessions.AddPlaceListener(binder.bindAsync),
		sessions.SetLogoutCallback(binder),
	)

	if cfg.API.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Session:  sessions,
			Security: sec,
			Climate:  clim,
			Cache:    store,
			Link:     client,
			Hub:      hub,
			Version:  version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("local API disabled")
	}

	creds := platform.Credentials{Username: cfg.Session.Username, Password: cfg.Session.Password}
	binder.setLogin(creds, cfg.Session.PlaceID)
	if creds.Username != "" {
		if err := binder.login(); err != nil {
			return fmt.Errorf("starting login: %w", err)
		}
	} else {
		log.Warn("no session credentials configured, staying logged out")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("Gray Logic Client stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// platformDialer builds the Dialer for the configured link. The returned
// cleanup releases anything the link depends on, such as the MQTT broker
// connection.
func platformDialer(cfg *config.Config, log *logging.Logger) (platform.Dialer, func(), error) {
	switch cfg.Platform.Link {
	case config.LinkMQTT:
		broker, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		broker.SetLogger(log.Component("mqtt"))
		brokerState := broker.AddStateListener(func(connected bool, err error) {
			if connected {
				log.Info("MQTT connected to broker")
				return
			}
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", broker.ClientID(),
		)
		cleanup := func() {
			brokerState.Unregister()
			log.Info("disconnecting from MQTT")
			if closeErr := broker.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}
		return platform.MQTTDialer(broker), cleanup, nil

	default:
		log.Info("using WebSocket platform link", "url", cfg.Platform.URL)
		dial := platform.WebSocketDialer(cfg.Platform.URL, nil, int64(cfg.Platform.MaxMessageSize), log.Component("platform.ws"))
		return dial, func() {}, nil
	}
}
