package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Brownie44l1/rawhttp/internal/middleware"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/telemetry"
)

// ErrServerClosed is returned by Serve after Shutdown or Close.
var ErrServerClosed = errors.New("server: closed")

const maxAcceptDelay = time.Second

// Server owns the route table and middleware pipeline and serves one request
// per accepted connection. Both are frozen when Serve starts, so connection
// workers read them without locking.
type Server struct {
	config   Config
	router   *router.Router
	pipeline *middleware.Pipeline
	Logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   atomic.Bool
	wg       sync.WaitGroup
}

type options struct {
	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMeterProvider overrides the global MeterProvider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithTracerProvider overrides the global TracerProvider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New creates a server for r and p. A nil pipeline is treated as empty.
func New(config Config, r *router.Router, p *middleware.Pipeline, opts ...Option) (*Server, error) {
	if r == nil {
		return nil, errors.New("server: nil router")
	}
	if p == nil {
		p = middleware.NewPipeline()
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %w", err)
	}

	o := options{
		logger:         slog.Default(),
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	metrics, err := NewMetrics(o.meterProvider.Meter(telemetry.InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("server: metrics: %w", err)
	}

	return &Server{
		config:   config,
		router:   r,
		pipeline: p,
		Logger:   o.logger,
		metrics:  metrics,
		tracer:   o.tracerProvider.Tracer(telemetry.InstrumentationName),
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ln)
}

// Serve freezes the router and pipeline, then accepts connections on ln
// until Shutdown or Close. Each connection gets its own goroutine. It always
// returns a non-nil error.
func (s *Server) Serve(ln net.Listener) error {
	s.router.Freeze()
	s.pipeline.Freeze()

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	routes := s.router.Routes()
	for _, route := range routes {
		s.Logger.Debug("route",
			"method", string(route.Method),
			"pattern", route.Pattern,
			"wildcard", route.IsWildcard(),
			"prefix", route.Prefix(),
		)
	}
	pre, post := s.pipeline.Len()
	s.Logger.Info("server listening",
		"addr", ln.Addr().String(),
		"routes", len(routes),
		"pre_middleware", pre,
		"post_middleware", post,
	)

	var delay time.Duration
	for {
		rwc, err := ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return ErrServerClosed
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.Logger.Error("accept failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		if !s.track(rwc) {
			rwc.Close()
			return ErrServerClosed
		}
		go func() {
			defer s.untrack(rwc)
			s.newConn(rwc).serve(context.Background())
		}()
	}
}

// track registers an accepted connection with the wait group. It refuses
// connections that arrive after the server was closed.
func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown stops accepting and waits for in-flight connections to finish.
// If ctx ends first the remaining connections are closed and ctx's error is
// returned.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.closeListener()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.Logger.Info("server stopped")
		return err
	case <-ctx.Done():
		s.closeConns()
		return ctx.Err()
	}
}

// Close stops accepting and drops every open connection immediately.
func (s *Server) Close() error {
	err := s.closeListener()
	s.closeConns()
	return err
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed.Store(true)
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}
