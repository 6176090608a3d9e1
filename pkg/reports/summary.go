package reports

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// SummaryRow aggregates runs sharing a kind and final state.
type SummaryRow struct {
	Kind                   string  `json:"kind"`
	State                  string  `json:"state"`
	Runs                   int     `json:"runs"`
	AvgPercentage          float64 `json:"avgPercentage"`
	TotalDurationSeconds   int     `json:"totalDurationSeconds"`
	ObservedRuntimeSeconds float64 `json:"observedRuntimeSeconds"`
}

// SummaryReport aggregates journaled runs by kind and state.
type SummaryReport struct {
	store  RunStore
	format ReportFormat
}

func NewSummaryReport(s RunStore, format ReportFormat) *SummaryReport {
	return &SummaryReport{store: s, format: format}
}

func (r *SummaryReport) Summarize(ctx context.Context, params ReportParams) ([]SummaryRow, error) {
	runs, err := r.store.ListRuns(ctx, params.filter())
	if err != nil {
		return nil, fmt.Errorf("failed to query task runs: %w", err)
	}

	type key struct{ kind, state string }
	groups := map[key]*SummaryRow{}
	for _, run := range runs {
		k := key{run.Kind, run.State}
		row, ok := groups[k]
		if !ok {
			row = &SummaryRow{Kind: run.Kind, State: run.State}
			groups[k] = row
		}
		row.Runs++
		row.AvgPercentage += run.Percentage
		row.TotalDurationSeconds += run.DurationSeconds
		if run.FinishedAt != nil {
			row.ObservedRuntimeSeconds += run.FinishedAt.Sub(run.StartedAt).Seconds()
		}
	}

	out := make([]SummaryRow, 0, len(groups))
	for _, row := range groups {
		row.AvgPercentage /= float64(row.Runs)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].State < out[j].State
	})
	return out, nil
}

func (r *SummaryReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	rows, err := r.Summarize(ctx, params)
	if err != nil {
		return nil, err
	}

	if r.format == ReportFormatJSON {
		return writeJSON(rows)
	}

	headers := []string{"kind", "state", "runs", "avg_percentage", "total_duration_seconds", "observed_runtime_seconds"}
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Kind,
			row.State,
			strconv.Itoa(row.Runs),
			strconv.FormatFloat(row.AvgPercentage, 'f', 2, 64),
			strconv.Itoa(row.TotalDurationSeconds),
			strconv.FormatFloat(row.ObservedRuntimeSeconds, 'f', 3, 64),
		})
	}
	return writeCSV(headers, records)
}
