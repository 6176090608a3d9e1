package reports

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rmax-ai/loadsim/pkg/store"
)

// RunsReport exports journaled task runs, one row per run.
type RunsReport struct {
	store  RunStore
	format ReportFormat
}

func NewRunsReport(s RunStore, format ReportFormat) *RunsReport {
	return &RunsReport{store: s, format: format}
}

func (r *RunsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	runs, err := r.store.ListRuns(ctx, params.filter())
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}

	if r.format == ReportFormatJSON {
		if runs == nil {
			runs = []store.TaskRun{}
		}
		return writeJSON(runs)
	}

	headers := []string{"task_id", "kind", "percentage", "duration_seconds", "status", "state", "error", "started_at", "finished_at"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := ""
		if run.FinishedAt != nil {
			finished = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			run.TaskID,
			run.Kind,
			strconv.FormatFloat(run.Percentage, 'f', -1, 64),
			strconv.Itoa(run.DurationSeconds),
			run.Status,
			run.State,
			run.Error,
			run.StartedAt.UTC().Format(time.RFC3339),
			finished,
		})
	}
	return writeCSV(headers, rows)
}
