package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rmax-ai/loadsim/pkg/client"
	"github.com/rmax-ai/loadsim/pkg/scenario"
	"github.com/rmax-ai/loadsim/pkg/telemetry"
)

var version = "dev"

const usage = `Usage: loadsim [-api URL] <command> [flags]

Commands:
  simulate <memory|cpu|disk>  start a resource simulation
  logs                        generate synthetic log lines
  metric                      emit a custom metric
  trace                       generate a synthetic trace
  tasks                       list tasks
  task <id>                   show one task
  cancel <id>                 cancel a running task
  history                     export the task-run journal
  signals                     show recent signals
  run <scenario.yaml>         run a scenario and print a report
  version                     print the client version
`

// errScenarioFailed makes the process exit non-zero without printing twice.
var errScenarioFailed = errors.New("scenario failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errScenarioFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("loadsim", flag.ContinueOnError)
	apiURL := global.String("api", envOr("LOADSIM_API", client.DefaultEndpoint), "Base URL of loadsimd")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	c := client.NewClient(*apiURL)
	cmd, rest := global.Arg(0), global.Args()[1:]

	switch cmd {
	case "simulate":
		return cmdSimulate(ctx, c, rest, out)
	case "logs":
		return cmdLogs(ctx, c, rest, out)
	case "metric":
		return cmdMetric(ctx, c, rest, out)
	case "trace":
		return cmdTrace(ctx, c, rest, out)
	case "tasks":
		return cmdTasks(ctx, c, out)
	case "task", "cancel":
		if len(rest) != 1 {
			return fmt.Errorf("usage: loadsim %s <id>", cmd)
		}
		var (
			t   *client.Task
			err error
		)
		if cmd == "task" {
			t, err = c.GetTask(ctx, rest[0])
		} else {
			t, err = c.CancelTask(ctx, rest[0])
		}
		if err != nil {
			return err
		}
		printTasks(out, []client.Task{*t})
		return nil
	case "history":
		return cmdHistory(ctx, c, rest, out)
	case "signals":
		return cmdSignals(ctx, c, rest, out)
	case "run":
		return cmdRun(ctx, c, rest, out)
	case "version":
		fmt.Fprintf(out, "loadsim %s\n", version)
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func cmdSimulate(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	pct := fs.Float64("percentage", 50, "Target load percentage")
	dur := fs.String("duration", "00:30", "Duration as MM:SS")
	if len(args) == 0 {
		return errors.New("usage: loadsim simulate <memory|cpu|disk> [-percentage N] [-duration MM:SS]")
	}
	kind := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	resp, err := c.Simulate(ctx, kind, client.SimulationRequest{Percentage: *pct, Duration: *dur})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\nStatus: %s | Task: %s\n", resp.Message, resp.Status, resp.TaskID)
	return nil
}

func cmdLogs(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	level := fs.String("level", "INFO", "Log level (INFO, WARN, ERROR)")
	msg := fs.String("message", "Test log message", "Log message")
	count := fs.Int("count", 1, "Number of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.GenerateLogs(ctx, client.LogRequest{Level: *level, Message: *msg, Count: *count})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func cmdMetric(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("metric", flag.ContinueOnError)
	name := fs.String("name", "custom_metric", "Metric name")
	value := fs.Float64("value", 0, "Metric value")
	unit := fs.String("unit", "Count", "Metric unit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.EmitMetric(ctx, client.MetricRequest{Name: *name, Value: *value, Unit: *unit})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Message)
	return nil
}

func cmdTrace(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	services := fs.Int("services", 3, "Number of services in the trace")
	errorRate := fs.Float64("error-rate", 0.1, "Per-span failure probability")
	if err := fs.Parse(args); err != nil {
		return err
	}

	resp, err := c.GenerateTrace(ctx, client.TraceRequest{Services: *services, ErrorRate: errorRate})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\nTrace: %s\n", resp.Message, resp.TraceID)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPAN\tPARENT\tSERVICE\tDURATION\tSTATUS")
	for _, s := range resp.Spans {
		parent := "-"
		if s.ParentID != nil {
			parent = *s.ParentID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.3fs\t%s\n", s.SpanID, parent, s.Service, s.Duration, s.Status)
	}
	return tw.Flush()
}

func cmdTasks(ctx context.Context, c *client.Client, out io.Writer) error {
	list, err := c.ListTasks(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d running\n", list.Running)
	printTasks(out, list.Tasks)
	return nil
}

func printTasks(out io.Writer, tasks []client.Task) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tLOAD\tDURATION\tSTATUS\tSTATE\tSTARTED")
	for _, t := range tasks {
		state := t.State
		if t.Error != "" {
			state += " (" + t.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%ds\t%s\t%s\t%s\n",
			t.ID, t.Kind, t.Percentage, t.DurationSeconds, t.Status, state, t.StartedAt.Local().Format(time.TimeOnly))
	}
	tw.Flush()
}

func cmdHistory(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var opts client.HistoryOptions
	fs.StringVar(&opts.Format, "format", "csv", "Output format (csv, json)")
	fs.StringVar(&opts.Report, "report", "runs", "Report (runs, summary)")
	fs.StringVar(&opts.Kind, "kind", "", "Only this workload kind")
	fs.StringVar(&opts.State, "state", "", "Only this final state")
	fs.IntVar(&opts.Limit, "limit", 0, "Maximum rows")
	since := fs.Duration("since", 0, "Only runs started within this window")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *since > 0 {
		opts.From = time.Now().Add(-*since)
	}

	data, err := c.History(ctx, opts)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func cmdSignals(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("signals", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Number of signals")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sigs, err := c.Signals(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tFIELDS")
	for _, s := range sigs {
		fmt.Fprintf(tw, "%s\t%s\t%v\n", s.At.Local().Format(time.TimeOnly), s.Kind, s.Fields)
	}
	return tw.Flush()
}

func cmdRun(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output results as JSON")
	outputFile := fs.String("out", "", "Write output to file instead of stdout")
	logLevel := fs.String("log-level", "warn", "Runner log level")
	if len(args) == 0 {
		return errors.New("usage: loadsim run <scenario.yaml> [-json] [-out FILE]")
	}
	path := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	logger, err := telemetry.NewLogger(os.Stderr, "text", *logLevel)
	if err != nil {
		return err
	}

	report, err := scenario.NewRunner(c, logger).Run(ctx, sc)
	if err != nil {
		return err
	}
	if err := writeReport(out, report, *jsonOutput, *outputFile); err != nil {
		return err
	}
	if !report.Success {
		return errScenarioFailed
	}
	return nil
}
