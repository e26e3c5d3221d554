// Package server implements the UDP protocol server that bridges motion
// controllers to a single remote client.
//
// The receive loop handles one datagram at a time and replies to whoever
// sent the most recent one. Sampling runs on its own goroutine (see package
// sampler); the two meet only at the per-device locks in the registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/gesture"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
	"github.com/nerrad567/motion-bridge/internal/notify"
	"github.com/nerrad567/motion-bridge/internal/protocol"
)

// Notification texts pushed by the server.
const (
	MessageConnected    = "User connected!"
	MessageDisconnected = "User disconnected."
)

// Logger is the logging surface of the server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopSink struct{}

func (noopSink) Push(string) {}

// CaptureRecorder archives matched capture sessions.
type CaptureRecorder interface {
	RecordCapture(ctx context.Context, result gesture.Result) error
}

// EventPublisher announces matched capture sessions to live subscribers.
type EventPublisher interface {
	PublishCapture(result gesture.Result) error
}

// EventPublishers fans an event out to several publishers.
type EventPublishers []EventPublisher

// PublishCapture publishes to every publisher and joins the failures.
func (p EventPublishers) PublishCapture(result gesture.Result) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishCapture(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Options configures a Server.
type Options struct {
	Config   config.ServerConfig
	Registry *device.Registry

	// Matcher defaults to a Fixed matcher returning NoMatch.
	Matcher gesture.Matcher

	// Notifier defaults to discarding notifications.
	Notifier notify.Sink

	// Recorder and Events are optional. Their failures are logged and never
	// change the reply.
	Recorder CaptureRecorder
	Events   EventPublisher

	Logger Logger
	Now    func() time.Time
}

// Stats are cumulative request counters.
type Stats struct {
	Requests uint64 `json:"requests"`
	Unknown  uint64 `json:"unknown"`
	Errors   uint64 `json:"errors"`
}

// Server is the UDP protocol server.
type Server struct {
	cfg      config.ServerConfig
	registry *device.Registry
	matcher  gesture.Matcher
	notifier notify.Sink
	recorder CaptureRecorder
	events   EventPublisher
	logger   Logger
	now      func() time.Time

	respondToExit atomic.Bool
	lastClient    atomic.Pointer[net.UDPAddr]

	connMu    sync.Mutex
	conn      *net.UDPConn
	closeOnce sync.Once

	requests atomic.Uint64
	unknown  atomic.Uint64
	failed   atomic.Uint64
}

// New creates a Server. Call Listen, then Serve.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}

	s := &Server{
		cfg:      opts.Config,
		registry: opts.Registry,
		matcher:  opts.Matcher,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		events:   opts.Events,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if s.matcher == nil {
		s.matcher = gesture.Fixed{Result: gesture.NoMatch}
	}
	if s.notifier == nil {
		s.notifier = noopSink{}
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.cfg.MaxDatagramSize <= 0 {
		s.cfg.MaxDatagramSize = protocol.MaxDatagramSize
	}
	s.respondToExit.Store(opts.Config.RespondToExit)

	return s, nil
}

// Listen binds the UDP socket on the configured host and port.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("%w: resolving %s: %w", ErrSocketFailure, addr, err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("%w: binding %s: %w", ErrSocketFailure, addr, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.logger.Info("protocol server listening", "addr", conn.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	conn := s.getConn()
	if conn == nil {
		return nil
	}
	return conn.LocalAddr()
}

func (s *Server) getConn() *net.UDPConn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// Serve receives and dispatches datagrams until ctx is cancelled (returns
// nil) or the client sends "e" while the exit policy is enabled (returns
// ErrClientExit after the echo was sent). Socket errors are logged and the
// loop keeps going.
func (s *Server) Serve(ctx context.Context) error {
	conn := s.getConn()
	if conn == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	defer stop()

	buf := make([]byte, s.cfg.MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("receive failed", "error", err)
			continue
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])
		s.lastClient.Store(addr)

		reply, ok, exit := s.Handle(ctx, packet)
		if ok {
			if _, err := conn.WriteToUDP(reply, addr); err != nil {
				s.logger.Warn("send failed", "client", addr.String(), "error", err)
			}
		}
		if exit {
			s.logger.Info("client requested exit", "client", addr.String())
			return ErrClientExit
		}
	}
}

// Close closes the socket. Safe to call more than once.
func (s *Server) Close() error {
	conn := s.getConn()
	if conn == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		err = conn.Close()
	})
	return err
}

// LastClient returns the address of the most recent sender, or nil.
func (s *Server) LastClient() net.Addr {
	addr := s.lastClient.Load()
	if addr == nil {
		return nil
	}
	return addr
}

// SetRespondToExit changes the exit policy at runtime.
func (s *Server) SetRespondToExit(v bool) {
	s.respondToExit.Store(v)
	s.logger.Info("exit policy changed", "respond_to_exit", v)
}

// RespondToExit reports whether "e" stops the server.
func (s *Server) RespondToExit() bool {
	return s.respondToExit.Load()
}

// Stats returns the cumulative request counters.
func (s *Server) Stats() Stats {
	return Stats{
		Requests: s.requests.Load(),
		Unknown:  s.unknown.Load(),
		Errors:   s.failed.Load(),
	}
}
