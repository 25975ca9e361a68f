// Package server exposes the render pipeline over HTTP. The surface is
// deliberately thin: handlers decode, delegate to the pipeline and encode.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docgen-service/internal/common/alerting"
	"docgen-service/internal/common/config"
	"docgen-service/internal/common/logger"
	"docgen-service/internal/pipeline"
	"docgen-service/internal/stats"
	"docgen-service/internal/storage"
)

type Server struct {
	config    *config.Config
	pipeline  *pipeline.Pipeline
	templates *storage.TemplateStore
	stats     stats.Recorder
	notifier  alerting.Notifier
	logger    logger.Logger

	httpServer *http.Server
}

func New(cfg *config.Config, pipe *pipeline.Pipeline, templates *storage.TemplateStore, rec stats.Recorder, notifier alerting.Notifier, log logger.Logger) *Server {
	if notifier == nil {
		notifier = alerting.NoopNotifier{}
	}
	s := &Server{
		config:    cfg,
		pipeline:  pipe,
		templates: templates,
		stats:     rec,
		notifier:  notifier,
		logger:    log,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Millisecond,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the chi mux. Exposed for tests.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.config.Server.RequestTimeout) * time.Millisecond))

	r.Route("/api", func(r chi.Router) {
		r.Post("/documents", s.handleDocuments)
		r.Post("/documents/batch", s.handleDocumentsBatch)
		r.Post("/validate", s.handleValidate)
		r.Get("/selftest", s.handleSelftest)
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) Start() error {
	s.logger.Info("http server starting", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
