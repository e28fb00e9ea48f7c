package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/lahc"
	"github.com/cwbudde/lahc/internal/problem"
	"github.com/cwbudde/lahc/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      *store.FSStore
	metrics    *Metrics
	addr       string
	server     *http.Server

	// progressInterval throttles SSE progress events.
	progressInterval time.Duration

	baseCtx  context.Context
	stopJobs context.CancelFunc
	workers  sync.WaitGroup
}

// NewServer creates a new HTTP server. When st is nil jobs are neither
// checkpointed nor traced.
func NewServer(addr string, st *store.FSStore) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager:       NewJobManager(),
		store:            st,
		metrics:          NewMetrics(),
		addr:             addr,
		progressInterval: 500 * time.Millisecond,
		baseCtx:          ctx,
		stopJobs:         cancel,
	}
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/problems", s.handleProblems)
	mux.HandleFunc("/api/v1/checkpoints", s.handleCheckpoints)
	mux.Handle("/metrics", s.metrics.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown interrupts all running jobs, waits for their workers and then
// gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server", "running_jobs", len(s.jobManager.GetRunningJobs()))
	s.stopJobs()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) deps() workerDeps {
	deps := workerDeps{
		jobs:             s.jobManager,
		metrics:          s.metrics,
		progressInterval: s.progressInterval,
	}
	if s.store != nil {
		deps.store = s.store
		deps.traceDir = s.store.BaseDir()
	}
	return deps
}

// startJob launches the worker of a pending job.
func (s *Server) startJob(jobID string) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobManager.setCancel(jobID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.jobManager.release(jobID)
		if err := runJob(ctx, s.deps(), jobID); err != nil {
			slog.Debug("Worker returned error", "job_id", jobID, "error", err)
		}
	}()
}

// CreateJobRequest is the body of POST /api/v1/jobs.
type CreateJobRequest struct {
	JobConfig

	// ResumeFrom names a stored checkpoint whose best state seeds the run.
	ResumeFrom string `json:"resumeFrom,omitempty"`
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
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "", "status":
		s.handleGetJobStatus(w, r, jobID)
	case "cancel":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCancelJob(w, r, jobID)
	case "best":
		s.handleGetBest(w, r, jobID)
	case "trace":
		s.handleGetTrace(w, r, jobID)
	case "stream":
		s.handleJobStream(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read body: %v", err), http.StatusBadRequest)
		return
	}
	var req CreateJobRequest
	var present map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &present); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	config := resolveJobConfig(req.JobConfig, present)
	if config.Problem == "" {
		http.Error(w, "problem is required", http.StatusBadRequest)
		return
	}
	if _, err := problem.Lookup(config.Problem); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := engineConfig(config).Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if config.CheckpointInterval < 0 {
		http.Error(w, "checkpointInterval cannot be negative", http.StatusBadRequest)
		return
	}

	var checkpoint *store.Checkpoint
	if req.ResumeFrom != "" {
		if s.store == nil {
			http.Error(w, "resume requires a checkpoint store", http.StatusBadRequest)
			return
		}
		var err error
		checkpoint, err = s.store.LoadCheckpoint(req.ResumeFrom)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := checkpoint.IsCompatible(config); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	job := s.jobManager.CreateJob(config)
	if checkpoint != nil {
		s.jobManager.UpdateJob(job.ID, func(j *Job) {
			j.ResumedFrom = checkpoint.JobID
			j.InitialState = checkpoint.BestState
		})
		job.ResumedFrom = checkpoint.JobID
	}
	s.metrics.jobCreated(config.Problem)

	s.startJob(job.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// resolveJobConfig fills the search fields a request left out with the
// engine defaults. An explicit zero is kept for stepsMinimum and
// stepsIdleFraction, where it is a valid setting; historyLength 0 is never
// valid and also selects the default.
func resolveJobConfig(config JobConfig, present map[string]json.RawMessage) JobConfig {
	if config.HistoryLength == 0 {
		config.HistoryLength = lahc.DefaultHistoryLength
	}
	if _, ok := present["stepsMinimum"]; !ok {
		config.StepsMinimum = lahc.DefaultStepsMinimum
	}
	if _, ok := present["stepsIdleFraction"]; !ok {
		config.StepsIdleFraction = lahc.DefaultStepsIdleFraction
	}
	return config
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// StatusResponse is the body of GET /api/v1/jobs/:id/status.
type StatusResponse struct {
	*Job
	Elapsed        float64 `json:"elapsed"`
	StepsPerSecond float64 `json:"stepsPerSecond"`
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
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

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Job:            job,
		Elapsed:        elapsed.Seconds(),
		StepsPerSecond: stepsPerSecond(job.Step, elapsed),
	})
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	err := s.jobManager.CancelJob(jobID)
	switch {
	case errors.Is(err, ErrJobFinished):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	slog.Info("Cancellation requested", "job_id", jobID)
	w.WriteHeader(http.StatusAccepted)
}

// handleGetBest handles GET /api/v1/jobs/:id/best
func (s *Server) handleGetBest(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if len(job.BestState) == 0 {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(job.BestState)
}

// handleGetTrace handles GET /api/v1/jobs/:id/trace
func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if s.store == nil {
		http.Error(w, "Tracing disabled", http.StatusNotFound)
		return
	}

	entries, err := store.ReadTrace(s.store.BaseDir(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "No trace yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ProblemInfo describes a registered problem.
type ProblemInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DefaultCopy string `json:"defaultCopy"`
}

// handleProblems handles GET /api/v1/problems
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := problem.Names()
	infos := make([]ProblemInfo, 0, len(names))
	for _, name := range names {
		runner, err := problem.Lookup(name)
		if err != nil {
			continue
		}
		infos = append(infos, ProblemInfo{
			Name:        runner.Name(),
			Description: runner.Description(),
			DefaultCopy: string(runner.DefaultCopy()),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := []store.CheckpointInfo{}
	if s.store != nil {
		var err error
		if infos, err = s.store.ListCheckpoints(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
