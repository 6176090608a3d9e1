package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/loadsim/pkg/metrics"
	"github.com/rmax-ai/loadsim/pkg/reports"
	"github.com/rmax-ai/loadsim/pkg/scenario"
	"github.com/rmax-ai/loadsim/pkg/signals"
	"github.com/rmax-ai/loadsim/pkg/simulation"
	"github.com/rmax-ai/loadsim/pkg/tasks"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// Interfaces for dependencies to enable mocking

type TaskRegistry interface {
	Launch(spec tasks.Spec, fn tasks.Func) (tasks.Task, error)
	Get(id string) (tasks.Task, error)
	List() []tasks.Task
	Cancel(id string) (tasks.Task, error)
	Wait(ctx context.Context, id string) (tasks.Task, error)
	Running() int
}

type LogGenerator interface {
	Generate(ctx context.Context, level, message string, count int) (signals.LogResult, error)
}

type MetricEmitter interface {
	Emit(ctx context.Context, name string, value float64, unit string) signals.MetricResult
}

type TraceGenerator interface {
	Generate(ctx context.Context, services int, errorRate float64) (signals.TraceResult, error)
}

// Options wires the server's collaborators. Registry, Logs, Metrics and
// Traces are required; the rest are optional.
type Options struct {
	Addr    string
	Version string
	Logger  *slog.Logger

	Registry  TaskRegistry
	Workloads []simulation.Workload
	Logs      LogGenerator
	Metrics   MetricEmitter
	Traces    TraceGenerator

	// Collectors receives the request counter. Gatherer backs /metrics and
	// defaults to prometheus.DefaultGatherer.
	Collectors *metrics.Collectors
	Gatherer   prometheus.Gatherer

	// History enables GET /api/tasks/history.
	History reports.RunStore

	// Signals enables GET /api/signals.
	Signals signals.Reader

	// ScenarioRunner enables POST /api/scenarios.
	ScenarioRunner ScenarioRunner

	// StaticFS is served on every path not claimed by the API.
	StaticFS fs.FS

	// CancelWait bounds how long DELETE /api/tasks/{id} waits for the task
	// to stop before answering.
	CancelWait time.Duration
}

// ScenarioRunner executes a scripted scenario against this server.
type ScenarioRunner interface {
	Run(ctx context.Context, sc scenario.Scenario) (scenario.Report, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	opts      Options
	logger    *slog.Logger
	workloads map[simulation.Kind]simulation.Workload
	handler   http.Handler
	server    *http.Server
}

// NewServer creates a new API server instance
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Addr == "" {
		opts.Addr = ":5000"
	}
	if opts.CancelWait <= 0 {
		opts.CancelWait = 2 * time.Second
	}

	s := &Server{
		opts:      opts,
		logger:    opts.Logger,
		workloads: make(map[simulation.Kind]simulation.Workload, len(opts.Workloads)),
	}
	for _, w := range opts.Workloads {
		s.workloads[w.Kind()] = w
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/simulate/memory", s.handleSimulate(simulation.KindMemory))
	mux.HandleFunc("/api/simulate/cpu", s.handleSimulate(simulation.KindCPU))
	mux.HandleFunc("/api/simulate/disk", s.handleSimulate(simulation.KindDisk))

	mux.HandleFunc("/api/logs", s.handleLogs)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/traces", s.handleTraces)
	mux.HandleFunc("/api/signals", s.handleSignals)

	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/history", s.handleHistory)
	mux.HandleFunc("/api/tasks/", s.handleTask)

	mux.HandleFunc("/api/scenarios", s.handleScenario)

	// Unknown API paths never fall through to the SPA
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	// Static file handler (catch-all for SPA)
	mux.Handle("/", s.handleStatic())

	// Middleware: Logging, Panic Recovery, Security Headers, CORS
	s.handler = s.withLogging(s.withRecovery(withSecureHeaders(withCORS(mux))))

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	s.logger.Info("server_starting", "addr", s.server.Addr, "version", s.opts.Version)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server_stopping")
	return s.server.Shutdown(ctx)
}

// handleHealth returns simple status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.opts.Version,
		Running: s.opts.Registry.Running(),
	})
}
