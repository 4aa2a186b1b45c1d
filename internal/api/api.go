// Package api provides HTTP handlers and the main API server logic for the
// sales agent.
//
// It exposes RESTful endpoints for managing clients, campaigns and leads,
// reading conversation history, triggering follow-ups and bulk sends, and
// receiving provider webhooks. The API integrates with the store,
// conversation, messaging and scheduler modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigdata5911/sales-agent/internal/agent"
	"github.com/bigdata5911/sales-agent/internal/conversation"
	"github.com/bigdata5911/sales-agent/internal/genai"
	"github.com/bigdata5911/sales-agent/internal/messaging"
	"github.com/bigdata5911/sales-agent/internal/scheduler"
	"github.com/bigdata5911/sales-agent/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	FollowUpDelay  time.Duration
	SweepCron      string
	SendInitialOff bool
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithFollowUpDelay sets how long a contacted lead sits quiet before the
// follow-up sweep picks it up.
func WithFollowUpDelay(d time.Duration) Option {
	return func(o *Opts) { o.FollowUpDelay = d }
}

// WithSweepCron sets the cron expression for the follow-up sweep.
func WithSweepCron(expr string) Option {
	return func(o *Opts) { o.SweepCron = expr }
}

// WithoutAutoInitialMessage disables sending the opening message when a
// lead is ingested.
func WithoutAutoInitialMessage() Option {
	return func(o *Opts) { o.SendInitialOff = true }
}

// Server holds the API dependencies.
type Server struct {
	st          store.Store
	msgService  messaging.Service
	handler     *conversation.Handler
	sched       *scheduler.Scheduler
	addr        string
	autoInitial bool
}

// NewServer creates an API server over already-constructed dependencies.
func NewServer(st store.Store, msgService messaging.Service, handler *conversation.Handler, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		st:          st,
		msgService:  msgService,
		handler:     handler,
		addr:        addr,
		autoInitial: !cfg.SendInitialOff,
	}
}

// Run constructs the full application from options and serves until the
// context is cancelled: store, generation client, decision agent,
// conversation handler, follow-up sweep and HTTP API.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, msgService messaging.Service, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := newStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	gaClient, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create generation client: %w", err)
	}

	handler := conversation.NewHandler(st, agent.New(gaClient), msgService)

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer msgService.Stop()
	go handler.Run(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	sweeper := scheduler.NewFollowUpSweeper(st, handler, cfg.FollowUpDelay)
	if err := sweeper.Register(sched, cfg.SweepCron); err != nil {
		return fmt.Errorf("failed to schedule follow-up sweep: %w", err)
	}

	server := NewServer(st, msgService, handler, apiOpts...)
	server.sched = sched
	return server.Serve(ctx)
}

// newStore picks a backend from the configured DSN.
func newStore(opts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("api: no database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		return store.NewPostgresStore(opts...)
	}
	return store.NewSQLiteStore(opts...)
}

// Routes returns the HTTP mux with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/v1/clients", s.clientsHandler)
	mux.HandleFunc("/api/v1/clients/", s.clientRouter)
	mux.HandleFunc("/api/v1/campaigns", s.campaignsHandler)
	mux.HandleFunc("/api/v1/campaigns/", s.campaignRouter)
	mux.HandleFunc("/api/v1/leads", s.leadsHandler)
	mux.HandleFunc("/api/v1/leads/", s.leadRouter)
	mux.HandleFunc("/api/v1/messages/bulk", s.bulkSendHandler)
	mux.HandleFunc("/api/v1/analytics", s.analyticsHandler)
	if ts, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/whatsapp", ts.WebhookHandler)
	}
	return mux
}

// Serve runs the HTTP server until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: API listening", "addr", s.addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
