package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/motion-bridge/internal/capture"
	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/motion-bridge/internal/notify"
	"github.com/nerrad567/motion-bridge/internal/sampler"
	"github.com/nerrad567/motion-bridge/internal/server"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ProtocolStatus is the view of the UDP protocol server the API needs.
// *server.Server satisfies it.
type ProtocolStatus interface {
	LastClient() net.Addr
	RespondToExit() bool
	SetRespondToExit(v bool)
	Stats() server.Stats
}

// SamplerStatus reports sampler counters. *sampler.Scheduler satisfies it.
type SamplerStatus interface {
	Stats() sampler.Stats
}

// NotificationStatus reports queue counters. *notify.Queue satisfies it.
type NotificationStatus interface {
	Dropped() uint64
	Delivered() uint64
	Pending() int
}

// NotificationHistory returns recent notifications. *notify.History
// satisfies it.
type NotificationHistory interface {
	Recent() []notify.Notification
}

// Tester runs the manual hardware checks. *control.Tester satisfies it.
type Tester interface {
	TestRumble(ctx context.Context, id int) error
	TestSpeaker(id int) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Logger        *logging.Logger
	Registry      *device.Registry
	Protocol      ProtocolStatus
	Sampler       SamplerStatus
	Notifications NotificationStatus
	History       NotificationHistory
	Tester        Tester
	Captures      capture.Repository // nil when the archive is disabled
	Hub           *Hub               // required; also wired as a notification consumer
	Version       string
}

// Server is the HTTP status API.
//
// It is created with New and started with Start. Close stops the listener
// and disconnects WebSocket clients.
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	registry      *device.Registry
	protocol      ProtocolStatus
	sampler       SamplerStatus
	notifications NotificationStatus
	history       NotificationHistory
	tester        Tester
	captures      capture.Repository
	hub           *Hub
	version       string
	startTime     time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server. The server is not started until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Protocol == nil {
		return nil, fmt.Errorf("protocol server is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("websocket hub is required")
	}

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		registry:      deps.Registry,
		protocol:      deps.Protocol,
		sampler:       deps.Sampler,
		notifications: deps.Notifications,
		history:       deps.History,
		tester:        deps.Tester,
		captures:      deps.Captures,
		hub:           deps.Hub,
		version:       deps.Version,
		startTime:     time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. The hub
// is run until Close or until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, stop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer stop()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

var _ server.EventPublisher = (*Hub)(nil)
