// Package gateway assembles the HTTP server: route registration, rate
// limiting, the WebSocket event stream, and graceful shutdown ordering.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/config"
)

// RouteRegistrar is implemented by every handler group in httpapi.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Server is the gateway HTTP server.
type Server struct {
	cfg        config.ServerConfig
	events     bus.EventPublisher
	handlers   []RouteRegistrar
	limiter    *rate.Limiter // nil = rate limiting disabled
	wsHub      *eventHub
	httpServer *http.Server
}

// NewServer creates a gateway server broadcasting events from the given bus.
func NewServer(cfg config.ServerConfig, events bus.EventPublisher, handlers ...RouteRegistrar) *Server {
	s := &Server{
		cfg:      cfg,
		events:   events,
		handlers: handlers,
		wsHub:    newEventHub(),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitRPS*2)
	}
	return s
}

// BuildMux assembles all routes.
func (s *Server) BuildMux() *http.ServeMux {
	mux := http.NewServeMux()
	for _, h := range s.handlers {
		h.RegisterRoutes(mux)
	}
	mux.HandleFunc("GET /v1/events", s.wsHub.handleWS)
	return mux
}

// rateLimit applies the global token-bucket limiter to every request.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully: stop accepting, close event stream clients, and give
// in-flight requests a bounded grace period.
func (s *Server) Start(ctx context.Context) error {
	if s.events != nil {
		s.events.Subscribe("gateway-ws", s.wsHub.broadcast)
		defer s.events.Unsubscribe("gateway-ws")
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.rateLimit(s.BuildMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", s.cfg.Addr())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("gateway shutting down")
	s.wsHub.closeAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
