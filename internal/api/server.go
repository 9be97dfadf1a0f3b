package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-client/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-client/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-client/internal/session"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/climate"
	"github.com/nerrad567/gray-logic-client/internal/subsystem/security"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SessionService is the session surface the API needs.
type SessionService interface {
	Session() *session.Session
	State() session.State
	ChangeActivePlace(ctx context.Context, placeID string) error
	Logout(ctx context.Context) error
}

// SecurityService is the security controller surface the API needs.
type SecurityService interface {
	View() security.View
	Arm(ctx context.Context, mode security.Mode) error
	ArmBypassed(ctx context.Context, mode security.Mode) error
	Disarm(ctx context.Context) error
}

// ClimateService is the climate controller surface the API needs.
type ClimateService interface {
	View() climate.View
	SetHVACMode(ctx context.Context, mode string) error
}

// CacheStats reports the size of the model cache.
type CacheStats interface {
	Len() int
}

// LinkStatus reports whether the platform link is up.
type LinkStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Session  SessionService
	Security SecurityService
	Climate  ClimateService // optional
	Cache    CacheStats     // optional
	Link     LinkStatus     // optional
	Hub      *Hub           // If set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the local control API.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	session   SessionService
	security  SecurityService
	climate   ClimateService
	cache     CacheStats
	link      LinkStatus
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, session, security)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if deps.Security == nil {
		return nil, fmt.Errorf("security service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		session:   deps.Session,
		security:  deps.Security,
		climate:   deps.Climate,
		cache:     deps.Cache,
		link:      deps.Link,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected) and launches the HTTP listener
// in a background goroutine. The server can be stopped with Close().
//
// Returns:
//   - error: If the listen address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
