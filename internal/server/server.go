// Package server provides the HTTP API for custseg.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/custseg/internal/config"
	"github.com/hyperjump/custseg/internal/storage"
	"go.uber.org/zap"
)

// Server is the HTTP server for the segmentation API.
type Server struct {
	segmentation config.SegmentationConfig
	storage      storage.Storage
	config       *config.ServerConfig
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. seg is the default
// segmentation config; requests may override the cluster count, names, and seed.
func NewServer(
	seg *config.SegmentationConfig,
	storage storage.Storage,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		segmentation: *seg,
		storage:      storage,
		config:       cfg,
		logger:       logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1/segmentations", func(r chi.Router) {
		r.Post("/", s.handleCreateSegmentation)
		r.Get("/", s.handleListSegmentations)
		r.Get("/{id}", s.handleGetSegmentation)
		r.Delete("/{id}", s.handleDeleteSegmentation)
	})
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
