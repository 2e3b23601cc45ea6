// Package server owns the query listener and the per-connection exchange.
//
// Ownership boundary:
// - TCP accept loop, one goroutine per connection
// - connection lifecycle (AwaitingRequest -> Processing -> Responding -> Done)
// - ops HTTP surface (health, readiness, metrics)
//
// Connections share no mutable state. The counter root and frame limits are
// fixed at construction. There are no read or write deadlines: a peer that
// never sends a request holds its goroutine until it disconnects or the
// server shuts down.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/barcoded/internal/observability"
	"github.com/danmuck/barcoded/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const nodeName = "barcoded"

// Config is the runtime shape consumed by Server.
type Config struct {
	Listen  string
	OpsAddr string
	Limits  frame.Limits
}

// Server accepts query connections and hands each to a Handler.
type Server struct {
	cfg     Config
	handler *Handler
	logger  zerolog.Logger

	router   *gin.Engine
	appeared time.Time
	ready    atomic.Bool
	active   atomic.Int64
	served   atomic.Uint64

	wg sync.WaitGroup
}

func New(cfg Config, agg Aggregator) *Server {
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	logger := log.Logger.With().Str("component", "server").Logger()
	return &Server{
		cfg:      cfg,
		handler:  NewHandler(agg, cfg.Limits, logger),
		logger:   logger,
		appeared: time.Now(),
	}
}

// Run serves queries and, when configured, the ops HTTP surface until ctx is
// cancelled or either listener fails.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ListenAndServe(gctx)
	})
	if strings.TrimSpace(s.cfg.OpsAddr) != "" {
		g.Go(func() error {
			return s.serveOps(gctx)
		})
	}
	return g.Wait()
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.Listen))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then closes the listener,
// closes in-flight connections and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	s.ready.Store(true)
	defer s.ready.Store(false)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	s.active.Add(1)
	defer s.active.Add(-1)

	// Shutdown unblocks a handler parked on read or write.
	release := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer release()

	res := s.handler.Serve(ctx, conn)
	if res.Responded {
		s.served.Add(1)
	}
}

// ActiveConnections reports handlers currently running.
func (s *Server) ActiveConnections() int64 {
	return s.active.Load()
}

// Served reports connections that received a Response.
func (s *Server) Served() uint64 {
	return s.served.Load()
}

func (s *Server) serveOps(ctx context.Context) error {
	srv := &http.Server{
		Addr:              strings.TrimSpace(s.cfg.OpsAddr),
		Handler:           s.OpsRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info().Str("addr", srv.Addr).Msg("ops listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// OpsRouter builds the health/readiness/metrics router once.
func (s *Server) OpsRouter() *gin.Engine {
	if s.router != nil {
		return s.router
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger))
	r.Use(observability.RequestMetricsMiddleware(nodeName))
	s.router = r
	s.registerRoutes()
	return r
}
