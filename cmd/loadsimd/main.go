package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/loadsim/pkg/api"
	"github.com/rmax-ai/loadsim/pkg/blob"
	"github.com/rmax-ai/loadsim/pkg/client"
	"github.com/rmax-ai/loadsim/pkg/metrics"
	"github.com/rmax-ai/loadsim/pkg/reports"
	"github.com/rmax-ai/loadsim/pkg/scenario"
	"github.com/rmax-ai/loadsim/pkg/signals"
	"github.com/rmax-ai/loadsim/pkg/simulation"
	"github.com/rmax-ai/loadsim/pkg/store"
	"github.com/rmax-ai/loadsim/pkg/store/redis"
	"github.com/rmax-ai/loadsim/pkg/tasks"
	"github.com/rmax-ai/loadsim/pkg/telemetry"
	"github.com/rmax-ai/loadsim/web"
)

var version = "dev"

const pruneInterval = time.Hour

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "loadsimd: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config) error {
	logger, err := telemetry.NewLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("system_started", "component", "loadsimd", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Exporter:       cfg.OTelExporter,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	collectors := metrics.New(prometheus.DefaultRegisterer)

	// Scratch files left behind by a killed process
	scratch := blob.NewLocalBlobStore(cfg.ScratchDir)
	if n, err := scratch.Purge(ctx, simulation.IsScratchKey); err != nil {
		logger.Warn("scratch_purge_failed", "dir", cfg.ScratchDir, "error", err)
	} else if n > 0 {
		logger.Info("scratch_purged", "dir", cfg.ScratchDir, "files", n)
	}

	var (
		sink   signals.Sink = signals.NopSink{}
		reader signals.Reader
		rdb    *goredis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		stream := redis.NewStreamSink(rdb, cfg.RedisStream, redis.DefaultMaxLen)
		if err := stream.Ping(ctx); err != nil {
			logger.Warn("redis_unavailable", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("signal_sink_connected", "addr", cfg.RedisAddr, "stream", stream.Stream())
		}
		sink, reader = stream, stream
	}

	var (
		st      *store.Store
		journal tasks.Journal
		history reports.RunStore
	)
	if cfg.DBPath != "" {
		st, err = store.NewStore(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open task journal: %w", err)
		}
		journal, history = st, st
		logger.Info("store_initialized", "path", cfg.DBPath)

		if cfg.HistoryRetention > 0 {
			go pruneLoop(ctx, st, cfg.HistoryRetention, logger)
		}
	}

	registry := tasks.NewRegistry(tasks.Options{
		MaxRunning: cfg.MaxTasks,
		Retention:  cfg.TaskRetention,
		Journal:    journal,
		Observer:   collectors,
		Notifier:   signals.TaskNotifier{Sink: sink, Logger: logger},
		Logger:     logger,
	})

	emitter, err := signals.NewMetricEmitter(logger, providers.Meter(), sink, collectors)
	if err != nil {
		return err
	}

	assets, err := staticAssets(cfg)
	if err != nil {
		return err
	}

	opts := api.Options{
		Addr:     cfg.Addr,
		Version:  version,
		Logger:   logger,
		Registry: registry,
		Workloads: []simulation.Workload{
			simulation.NewMemory(simulation.SystemMemory, logger),
			simulation.NewCPU(logger),
			simulation.NewDisk(scratch, cfg.SharedScratch, logger),
		},
		Logs:       signals.NewLogGenerator(logger, sink, collectors),
		Metrics:    emitter,
		Traces:     signals.NewTraceSimulator(providers.Tracer(), logger, sink, collectors),
		Collectors: collectors,
		Gatherer:   prometheus.DefaultGatherer,
		StaticFS:   assets,
	}
	if history != nil {
		opts.History = history
	}
	if reader != nil {
		opts.Signals = reader
	}
	if cfg.Scenarios {
		opts.ScenarioRunner = scenario.NewRunner(client.NewClient(selfURL(cfg.Addr)), logger)
	}
	srv := api.NewServer(opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_initiated")
	case err := <-errCh:
		if err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("task shutdown: %w", err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if st != nil {
		if err := st.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}

func staticAssets(cfg Config) (fs.FS, error) {
	switch cfg.WebAssetsMode {
	case "embedded":
		assets, err := web.Assets()
		if err != nil {
			return nil, fmt.Errorf("failed to load embedded web assets: %w", err)
		}
		return assets, nil
	case "fs":
		return os.DirFS(cfg.WebDir), nil
	default:
		return nil, nil
	}
}

// selfURL is the loopback URL scenarios use to reach this daemon.
func selfURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return client.DefaultEndpoint
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// pruneLoop deletes journaled runs older than retention, once at start and
// then every pruneInterval.
func pruneLoop(ctx context.Context, st *store.Store, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		n, err := st.PruneRuns(ctx, time.Now().Add(-retention))
		if err != nil {
			logger.Warn("history_prune_failed", "error", err)
		} else if n > 0 {
			logger.Info("history_pruned", "rows", n, "retention", retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
