// Package httpapi is the control surface of the agent: queue tasks, watch
// the scheduler and manage the experience memory over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"taskpilot/internal/application/port/input"
	"taskpilot/internal/application/port/output"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

type Config struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// MaxBodyBytes bounds task and import payloads.
	MaxBodyBytes int64
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		RequestTimeout:  60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    32 << 20,
	}
}

type Server struct {
	cfg       Config
	scheduler input.TaskScheduler
	memory    input.ExperienceMemory
	metrics   http.Handler
	logger    output.LoggerPort
}

// NewServer wires the handlers. memory and metrics may be nil, in which case
// their routes answer 503 and 404.
func NewServer(
	cfg Config,
	scheduler input.TaskScheduler,
	memory input.ExperienceMemory,
	metrics http.Handler,
	logger output.LoggerPort,
) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Server{
		cfg:       cfg,
		scheduler: scheduler,
		memory:    memory,
		metrics:   metrics,
		logger:    logger.WithField("component", "httpapi"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(httplog.NewLogger("taskpilot", httplog.Options{JSON: true, Concise: true})))
	r.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/tasks", s.handleAddTask)
	r.Get("/status", s.handleStatus)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Post("/clear", s.handleClear)
	r.Get("/history", s.handleHistory)
	r.Get("/knowledge", s.handleKnowledge)

	r.Route("/memory", func(r chi.Router) {
		r.Get("/stats", s.handleMemoryStats)
		r.Post("/clear", s.handleMemoryClear)
		r.Get("/export", s.handleMemoryExport)
		r.Post("/import", s.handleMemoryImport)
	})

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Control API shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
