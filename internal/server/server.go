// Package server exposes the resolution pipeline over HTTP to the browser
// extension's background worker.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/crossroads-ai-hack-2025/fact-it/internal/model"
)

// Pipeline is the slice of the resolution pipeline the API serves.
type Pipeline interface {
	Resolve(ctx context.Context, domain, htmlSample string, forceStatic bool) (*model.Resolution, error)
	ReportValidation(ctx context.Context, report model.ValidationReport) error
	CacheStats(ctx context.Context) (*model.CacheStats, error)
	ClearCache(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	pipeline   Pipeline
	router     http.Handler
	httpServer *http.Server
}

// New wires a server around the pipeline.
func New(pipeline Pipeline) *Server {
	s := &Server{pipeline: pipeline}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
