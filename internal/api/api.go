// Package api provides the HTTP server for WarfarinBot.
//
// It mounts the transport webhooks (LINE /callback, Twilio /twilio/webhook), readiness and health
// endpoints, the receipts listing and the optional dialogue console, and runs one response
// handler per messaging service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/messaging"
	"github.com/BTreeMap/WarfarinBot/internal/store"
)

const (
	// DefaultAddr is used when no address is configured.
	DefaultAddr = ":10000"
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// Opts holds configuration for the HTTP server.
type Opts struct {
	Addr            string
	DialogueConsole bool
}

// Option defines a configuration option for the HTTP server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithDialogueConsole enables POST /dialogue, which drives the dialogue without a transport.
func WithDialogueConsole(enabled bool) Option {
	return func(o *Opts) { o.DialogueConsole = enabled }
}

type lineWebhook interface {
	CallbackHandler(w http.ResponseWriter, r *http.Request)
}

type twilioWebhook interface {
	TwilioWebhookHandler(w http.ResponseWriter, r *http.Request)
}

// Server wires messaging services, the dialogue and the store behind one HTTP router.
type Server struct {
	st       store.Store
	dialogue flow.Handler
	services []messaging.Service
	opts     Opts
	started  time.Time
}

// NewServer creates a Server. At least one service is expected; with none the server only
// exposes health, receipts and the console.
func NewServer(st store.Store, dialogue flow.Handler, services []messaging.Service, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Creating API server", "addr", cfg.Addr, "services", len(services), "console", cfg.DialogueConsole)
	return &Server{
		st:       st,
		dialogue: dialogue,
		services: services,
		opts:     cfg,
		started:  time.Now(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/", s.indexHandler)
	r.Get("/health", s.healthHandler)
	r.Get("/receipts", s.receiptsHandler)

	for _, svc := range s.services {
		switch h := svc.(type) {
		case lineWebhook:
			r.Post("/callback", h.CallbackHandler)
			slog.Debug("Mounted LINE webhook", "path", "/callback")
		case twilioWebhook:
			r.Post("/twilio/webhook", h.TwilioWebhookHandler)
			slog.Debug("Mounted Twilio webhook", "path", "/twilio/webhook")
		}
	}

	if s.opts.DialogueConsole {
		r.Post("/dialogue", s.dialogueHandler)
		slog.Warn("Dialogue console enabled; POST /dialogue accepts unauthenticated input")
	}
	return r
}

// Run starts the services and their response handlers, then serves HTTP until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	for _, svc := range s.services {
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("start %s service: %w", svc.Name(), err)
		}
		messaging.NewResponseHandler(svc, s.dialogue, s.st).Start(ctx)
		messaging.RecordReceipts(ctx, svc, s.st)
	}

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("WarfarinBot API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down gracefully...")
	case serveErr = <-errCh:
		slog.Error("API server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API server forced to shutdown", "error", err)
	}
	for _, svc := range s.services {
		if err := svc.Stop(); err != nil {
			slog.Error("Failed to stop messaging service", "transport", svc.Name(), "error", err)
		}
	}
	slog.Info("WarfarinBot API stopped")
	return serveErr
}
