package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/sunwatch/internal/export"
	"github.com/nerrad567/sunwatch/internal/infrastructure/config"
	"github.com/nerrad567/sunwatch/internal/infrastructure/logging"
	"github.com/nerrad567/sunwatch/internal/infrastructure/metrics"
	"github.com/nerrad567/sunwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/sunwatch/internal/refresh"
	"github.com/nerrad567/sunwatch/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ServerName identifies the service in status responses.
const ServerName = "Sunwatch API Server"

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Cache    *refresh.Cache
	Exporter *export.Writer
	Metrics  *metrics.Metrics
	MQTT     *mqtt.Client // optional
	Bridge   *mqtt.Bridge // optional
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	cache     *refresh.Cache
	exporter  *export.Writer
	metrics   *metrics.Metrics
	mqtt      *mqtt.Client
	bridge    *mqtt.Bridge
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("refresh cache is required")
	}
	if deps.Exporter == nil {
		return nil, fmt.Errorf("exporter is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger.With("component", "api"),
		cache:     deps.Cache,
		exporter:  deps.Exporter,
		metrics:   deps.Metrics,
		mqtt:      deps.MQTT,
		bridge:    deps.Bridge,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves HTTP in a background goroutine.
//
// The WebSocket hub is started and subscribed to cache publications so every
// new snapshot reaches connected clients.
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startHub(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startHub creates the WebSocket hub and feeds it from the cache.
func (s *Server) startHub(ctx context.Context) {
	s.hub = NewHub(s.wsCfg, s.logger, s.metrics)
	s.hub.SetSnapshotSource(s.cache.Current)
	go s.hub.Run(ctx)

	hub := s.hub
	s.cache.Subscribe(func(snap *telemetry.Snapshot) {
		hub.Broadcast(ChannelSnapshot, snap)
	})
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
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

// HealthCheck verifies the API server is running.
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
