// Package server exposes the analysis engine as an HTTP job service: REST
// job lifecycle, SSE progress streaming, Prometheus metrics, and report
// persistence through the store.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwbudde/framedelta/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager  *JobManager
	addr        string
	dataDir     string
	reportStore store.Store
	server      *http.Server
}

// NewServer creates a new HTTP server. reportStore may be nil, in which
// case completed reports are held in memory only.
func NewServer(addr, dataDir string, reportStore store.Store) *Server {
	return &Server{
		jobManager:  NewJobManager(),
		addr:        addr,
		dataDir:     dataDir,
		reportStore: reportStore,
	}
}

// Handler builds the route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealthz reports liveness
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Route based on subpath
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleCancelJob(w, r, jobID)
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "report":
		s.handleGetReport(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config JobConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	// Validate config
	if config.Input == "" {
		http.Error(w, "input is required", http.StatusBadRequest)
		return
	}
	if config.Raw && (config.Width <= 0 || config.Height <= 0) {
		http.Error(w, "width and height are required for raw input", http.StatusBadRequest)
		return
	}
	if config.Threshold == 0 {
		config.Threshold = 2.0
	}
	if config.BlockSize <= 0 {
		config.BlockSize = 8192
	}

	// Create job and start the worker in the background
	job := s.jobManager.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.registerCancel(job.ID, cancel)
	go func() {
		defer cancel()
		runJob(ctx, s.jobManager, s.reportStore, s.dataDir, job.ID)
	}()

	writeJSON(w, http.StatusCreated, job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
}

// handleGetJobStatus handles GET /api/v1/jobs/:id
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	response := map[string]interface{}{
		"id":            job.ID,
		"state":         job.State,
		"config":        job.Config,
		"framesRead":    job.FramesRead,
		"pairsScored":   job.PairsScored,
		"keyframeCount": job.KeyframeCount,
		"elapsed":       elapsed.Seconds(),
		"startTime":     job.StartTime,
		"endTime":       job.EndTime,
		"error":         job.Error,
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetReport handles GET /api/v1/jobs/:id/report
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, jobID string) {
	if report, ok := s.jobManager.GetReport(jobID); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}

	// Fall back to the store so reports survive process restarts.
	if s.reportStore != nil {
		if report, err := s.reportStore.LoadReport(jobID); err == nil {
			writeJSON(w, http.StatusOK, report)
			return
		}
	}

	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	http.Error(w, fmt.Sprintf("No report for job in state %s", job.State), http.StatusNotFound)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	if !s.jobManager.Cancel(jobID) {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": jobID, "state": "cancelling"})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
