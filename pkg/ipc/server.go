// Package ipc serves the HTTP control surface for a running view: status,
// start/stop, live configuration, Prometheus metrics and a websocket event
// stream.
package ipc

import (
	"context"
	"crypto/subtle"
	stdliberrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odvcencio/autotap/pkg/autoclick"
	apperrors "github.com/odvcencio/autotap/pkg/errors"
	"github.com/odvcencio/autotap/pkg/logging"
	"github.com/odvcencio/autotap/pkg/telemetry"
)

// Loop is the part of a view the server drives. *autoclick.Controller and
// *autotap.View both satisfy it.
type Loop interface {
	Start() error
	Stop()
	State() autoclick.LoopState
	Config() autoclick.Config
	Apply(cfg autoclick.Config)
	Metrics() *autoclick.Metrics
}

// Config configures the server.
type Config struct {
	BindAddress string
	Token       string
	Version     string
	PageURL     string
}

// Server exposes a Loop over HTTP.
type Server struct {
	cfg       Config
	loop      Loop
	telemetry *telemetry.Hub
	exporter  *telemetry.PromExporter
	logger    *logging.Logger
	hub       *Hub

	httpServer *http.Server
}

// NewServer builds a server. The telemetry hub and exporter are optional; a
// nil exporter leaves /metrics unmounted.
func NewServer(cfg Config, loop Loop, hub *telemetry.Hub, exporter *telemetry.PromExporter, logger *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		loop:      loop,
		telemetry: hub,
		exporter:  exporter,
		logger:    logger,
		hub:       NewHub(),
	}
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.securityHeadersMiddleware)

	router.Get("/healthz", s.handleHealthz)
	if s.exporter != nil {
		router.Method(http.MethodGet, "/metrics", s.exporter.Handler())
	}

	router.Group(func(r chi.Router) {
		r.Use(s.originMiddleware)
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleStatus)
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Put("/config", s.handleConfig)
		r.Get("/events", s.handleEvents)
	})
	return router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.validateStartupConfig(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	go s.forwardTelemetry(ctx)

	serverErr := make(chan error, 1)
	go func() {
		_ = s.logger.Info(logging.CategoryServer, "server.listening",
			fmt.Sprintf("serving control API on %s", s.cfg.BindAddress), nil)
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) validateStartupConfig() error {
	if strings.TrimSpace(s.cfg.BindAddress) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "server bind address is empty")
	}
	if s.loop == nil {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "server requires a loop")
	}
	if !isLoopbackBindAddress(s.cfg.BindAddress) && strings.TrimSpace(s.cfg.Token) == "" {
		return apperrors.New(apperrors.ErrCodeConfigInvalid,
			fmt.Sprintf("refusing to bind control API to %q without a token", s.cfg.BindAddress)).
			WithRemediation("bind to 127.0.0.1", "set server.token or AUTOTAP_SERVER_TOKEN")
	}
	return nil
}

// forwardTelemetry relays hub events to websocket clients.
func (s *Server) forwardTelemetry(ctx context.Context) {
	if s.telemetry == nil {
		return
	}
	events, unsubscribe := s.telemetry.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.hub.Broadcast(event)
		}
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(s.cfg.Token)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		provided := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if provided == "" {
			provided = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			respondError(w, http.StatusUnauthorized, stdliberrors.New("missing or invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originMiddleware rejects browser requests sent from another origin.
// Requests without an Origin header, such as from curl, pass.
func (s *Server) originMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !sameOrigin(origin, r.Host) {
			_ = s.logger.Warn(logging.CategoryServer, "request.cross_origin",
				fmt.Sprintf("rejected %s %s from origin %q", r.Method, r.URL.Path, origin), nil)
			respondError(w, http.StatusForbidden,
				apperrors.New(apperrors.ErrCodeInvalidInput, "cross-origin requests are not allowed").
					WithContext("origin", origin))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func isLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	switch strings.ToLower(host) {
	case "localhost":
		return true
	case "0.0.0.0", "::":
		return false
	default:
		ip := net.ParseIP(host)
		if ip == nil {
			return false
		}
		return ip.IsLoopback()
	}
}
