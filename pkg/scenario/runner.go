package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rmax-ai/loadsim/pkg/client"
)

// Client is the subset of the SDK a scenario drives.
type Client interface {
	Simulate(ctx context.Context, kind string, req client.SimulationRequest) (*client.SimulationResponse, error)
	GenerateLogs(ctx context.Context, req client.LogRequest) (*client.LogResponse, error)
	EmitMetric(ctx context.Context, req client.MetricRequest) (*client.MetricResponse, error)
	GenerateTrace(ctx context.Context, req client.TraceRequest) (*client.TraceResponse, error)
	GetTask(ctx context.Context, id string) (*client.Task, error)
	CancelTask(ctx context.Context, id string) (*client.Task, error)
}

const defaultPollInterval = 250 * time.Millisecond

// Runner executes scenarios against a loadsim API.
type Runner struct {
	client       Client
	logger       *slog.Logger
	pollInterval time.Duration
}

func NewRunner(c Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{client: c, logger: logger, pollInterval: defaultPollInterval}
}

// Run executes the steps in order and evaluates the invariants. The error is
// non-nil only for an invalid scenario; call failures are counted in the report.
func (r *Runner) Run(ctx context.Context, sc Scenario) (Report, error) {
	if err := sc.Validate(); err != nil {
		return Report{}, err
	}
	if sc.Seed == 0 {
		sc.Seed = time.Now().UnixNano()
	}
	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	r.logger.Info("scenario_started", "name", sc.Name, "seed", sc.Seed, "steps", len(sc.Steps))
	start := time.Now()

	rep := Report{
		ScenarioName: sc.Name,
		Seed:         sc.Seed,
		Steps:        make([]*StepStats, len(sc.Steps)),
	}
	for i, st := range sc.Steps {
		stats := &StepStats{Name: st.label(i), Kind: st.Kind}
		rep.Steps[i] = stats
		if ctx.Err() != nil {
			continue
		}
		r.runStep(ctx, sc.Seed, i, st, stats)

		rep.TotalRequests += stats.Requests
		rep.TotalErrors += stats.Errors
		rep.TotalTasks += stats.Tasks
		rep.TotalFailed += stats.Failed
	}
	rep.Elapsed = time.Since(start)
	rep.Interrupted = ctx.Err() != nil

	evaluateInvariants(&rep, sc.Invariants)

	rep.Success = !rep.Interrupted
	for _, inv := range rep.Invariants {
		if !inv.Passed {
			rep.Success = false
			break
		}
	}

	r.logger.Info("scenario_finished",
		"name", sc.Name,
		"elapsed_ms", rep.Elapsed.Milliseconds(),
		"requests", rep.TotalRequests,
		"errors", rep.TotalErrors,
		"success", rep.Success,
	)
	return rep, nil
}

func (r *Runner) runStep(ctx context.Context, seed int64, idx int, st Step, stats *StepStats) {
	if err := sleepCtx(ctx, st.Delay); err != nil {
		return
	}

	repeat := max(st.Repeat, 1)
	workers := min(max(st.Concurrency, 1), repeat)

	var (
		next atomic.Int64
		mu   sync.Mutex
		ids  []string
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(uint64(seed), uint64(idx*1000+w)))

			for first := true; next.Add(1) <= int64(repeat); first = false {
				if !first {
					if err := sleepCtx(ctx, st.Interval+jitter(rng, st.Jitter)); err != nil {
						return
					}
				}
				if ctx.Err() != nil {
					return
				}

				taskID, err := r.call(ctx, st)
				atomic.AddUint64(&stats.Requests, 1)
				if err != nil {
					atomic.AddUint64(&stats.Errors, 1)
					r.logger.Warn("scenario_call_failed", "step", stats.Name, "error", err)
					continue
				}
				if taskID != "" {
					mu.Lock()
					ids = append(ids, taskID)
					mu.Unlock()
				}
			}
		}(w)
	}
	wg.Wait()

	stats.TaskIDs = ids
	stats.Tasks = uint64(len(ids))

	if !st.Cancel && !st.Wait {
		return
	}
	for _, id := range ids {
		var (
			task *client.Task
			err  error
		)
		if st.Cancel {
			task, err = r.client.CancelTask(ctx, id)
		} else {
			task, err = r.waitTask(ctx, id)
		}
		if err != nil {
			r.logger.Warn("scenario_task_lookup_failed", "step", stats.Name, "task_id", id, "error", err)
			continue
		}
		if task.State == "failed" {
			stats.Failed++
		}
	}
}

// call performs one API call and returns the launched task id, if any.
func (r *Runner) call(ctx context.Context, st Step) (string, error) {
	switch st.Kind {
	case KindMemory, KindCPU, KindDisk:
		pct := 50.0
		if st.Percentage != nil {
			pct = *st.Percentage
		}
		resp, err := r.client.Simulate(ctx, string(st.Kind), client.SimulationRequest{Percentage: pct, Duration: st.Duration})
		if err != nil {
			return "", err
		}
		return resp.TaskID, nil
	case KindLogs:
		_, err := r.client.GenerateLogs(ctx, client.LogRequest{Level: st.Level, Message: st.Message, Count: st.Count})
		return "", err
	case KindMetric:
		_, err := r.client.EmitMetric(ctx, client.MetricRequest{Name: st.Metric, Value: st.Value, Unit: st.Unit})
		return "", err
	case KindTrace:
		_, err := r.client.GenerateTrace(ctx, client.TraceRequest{Services: st.Services, ErrorRate: st.ErrorRate})
		return "", err
	default:
		return "", fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

// waitTask polls until the task leaves the running state.
func (r *Runner) waitTask(ctx context.Context, id string) (*client.Task, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		task, err := r.client.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if !task.Running() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func jitter(rng *rand.Rand, limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rng.Int64N(int64(limit)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func evaluateInvariants(rep *Report, invariants []Invariant) {
	for _, inv := range invariants {
		scope := inv.Scope
		if scope == "" {
			scope = "global"
		}
		expected := fmt.Sprintf("%s %.2f", inv.Condition, inv.Value)

		var requests, errs, tasks, failed uint64
		if scope == "global" {
			requests, errs, tasks, failed = rep.TotalRequests, rep.TotalErrors, rep.TotalTasks, rep.TotalFailed
		} else {
			st := rep.step(scope)
			if st == nil {
				rep.Invariants = append(rep.Invariants, InvariantResult{
					Metric: inv.Metric, Scope: scope, Expected: expected, Actual: "N/A", Passed: false,
				})
				continue
			}
			requests, errs, tasks, failed = st.Requests, st.Errors, st.Tasks, st.Failed
		}

		var actual float64
		switch inv.Metric {
		case "error_rate":
			actual = ratio(errs, requests)
		case "task_failure_rate":
			actual = ratio(failed, tasks)
		case "requests":
			actual = float64(requests)
		case "errors":
			actual = float64(errs)
		case "tasks":
			actual = float64(tasks)
		}

		var passed bool
		switch inv.Condition {
		case ">":
			passed = actual > inv.Value
		case ">=":
			passed = actual >= inv.Value
		case "<":
			passed = actual < inv.Value
		case "<=":
			passed = actual <= inv.Value
		case "==":
			passed = math.Abs(actual-inv.Value) < 0.0001
		}

		rep.Invariants = append(rep.Invariants, InvariantResult{
			Metric:   inv.Metric,
			Scope:    scope,
			Expected: expected,
			Actual:   fmt.Sprintf("%.4f", actual),
			Passed:   passed,
		})
	}
}

func ratio(n, d uint64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (rep *Report) step(name string) *StepStats {
	for _, st := range rep.Steps {
		if st.Name == name {
			return st
		}
	}
	return nil
}
