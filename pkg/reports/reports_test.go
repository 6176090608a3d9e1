package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rmax-ai/loadsim/pkg/store"
)

type mockRunStore struct {
	runs       []store.TaskRun
	lastFilter store.RunFilter
	err        error
}

func (m *mockRunStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]store.TaskRun, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	var out []store.TaskRun
	for _, r := range m.runs {
		if filter.Kind != "" && r.Kind != filter.Kind {
			continue
		}
		if filter.State != "" && r.State != filter.State {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func seedRuns() []store.TaskRun {
	start := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	done := start.Add(30 * time.Second)
	short := start.Add(10 * time.Second)
	return []store.TaskRun{
		{TaskID: "t1", Kind: "cpu", Percentage: 40, DurationSeconds: 30, Status: "good", State: "completed", StartedAt: start, FinishedAt: &done},
		{TaskID: "t2", Kind: "cpu", Percentage: 60, DurationSeconds: 30, Status: "warning", State: "completed", StartedAt: start, FinishedAt: &done},
		{TaskID: "t3", Kind: "disk", Percentage: 90, DurationSeconds: 60, Status: "critical", State: "failed", Error: "disk write: no space, left", StartedAt: start, FinishedAt: &short},
		{TaskID: "t4", Kind: "memory", Percentage: 50, DurationSeconds: 120, Status: "warning", State: "running", StartedAt: start},
	}
}

func readCSV(t *testing.T, r io.Reader) [][]string {
	t.Helper()
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	return records
}

func TestRunsReport_CSV(t *testing.T) {
	st := &mockRunStore{runs: seedRuns()}
	gen := NewRunsReport(st, ReportFormatCSV)

	r, err := gen.Generate(context.Background(), ReportParams{Limit: 10})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records := readCSV(t, r)

	if len(records) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(records))
	}
	if records[0][0] != "task_id" || records[0][8] != "finished_at" {
		t.Errorf("unexpected headers: %v", records[0])
	}
	if records[3][6] != "disk write: no space, left" {
		t.Errorf("error column not preserved: %q", records[3][6])
	}
	if records[1][7] != "2026-02-01T09:00:00Z" || records[1][8] != "2026-02-01T09:00:30Z" {
		t.Errorf("unexpected timestamps: %v", records[1])
	}
	if records[4][8] != "" {
		t.Errorf("running task should have empty finished_at, got %q", records[4][8])
	}
	if st.lastFilter.Limit != 10 {
		t.Errorf("limit not forwarded: %+v", st.lastFilter)
	}
}

func TestRunsReport_JSON(t *testing.T) {
	st := &mockRunStore{runs: seedRuns()}
	gen := NewRunsReport(st, ReportFormatJSON)

	r, err := gen.Generate(context.Background(), ReportParams{Kind: "cpu"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var runs []store.TaskRun
	if err := json.NewDecoder(r).Decode(&runs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 cpu runs, got %d", len(runs))
	}
	if runs[0].TaskID != "t1" || runs[1].TaskID != "t2" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestRunsReport_EmptyJSONIsArray(t *testing.T) {
	gen := NewRunsReport(&mockRunStore{runs: []store.TaskRun{}}, ReportFormatJSON)
	r, err := gen.Generate(context.Background(), ReportParams{Kind: "none"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	data, _ := io.ReadAll(r)
	if string(data) != "[]\n" {
		t.Errorf("unexpected body %q", data)
	}
}

func TestSummaryReport(t *testing.T) {
	gen := NewSummaryReport(&mockRunStore{runs: seedRuns()}, ReportFormatCSV)

	rows, err := gen.Summarize(context.Background(), ReportParams{})
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 groups, got %d: %+v", len(rows), rows)
	}

	cpu := rows[0]
	if cpu.Kind != "cpu" || cpu.State != "completed" || cpu.Runs != 2 {
		t.Errorf("unexpected cpu group: %+v", cpu)
	}
	if cpu.AvgPercentage != 50 {
		t.Errorf("expected avg 50, got %v", cpu.AvgPercentage)
	}
	if cpu.TotalDurationSeconds != 60 || cpu.ObservedRuntimeSeconds != 60 {
		t.Errorf("unexpected durations: %+v", cpu)
	}
	if rows[1].Kind != "disk" || rows[2].Kind != "memory" {
		t.Errorf("groups not sorted: %+v", rows)
	}
	if rows[2].ObservedRuntimeSeconds != 0 {
		t.Errorf("running task should not add runtime: %+v", rows[2])
	}

	r, err := gen.Generate(context.Background(), ReportParams{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	records := readCSV(t, r)
	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(records))
	}
	if records[1][3] != "50.00" {
		t.Errorf("expected formatted avg, got %q", records[1][3])
	}
}

func TestReports_StoreError(t *testing.T) {
	st := &mockRunStore{err: errors.New("db locked")}
	for _, gen := range []Generator{NewRunsReport(st, ReportFormatCSV), NewSummaryReport(st, ReportFormatJSON)} {
		if _, err := gen.Generate(context.Background(), ReportParams{}); err == nil {
			t.Error("expected error from failing store")
		}
	}
}

func TestNewReportGenerator(t *testing.T) {
	st := &mockRunStore{}

	if g, err := NewReportGenerator(ReportTypeRuns, ReportFormatCSV, st); err != nil {
		t.Errorf("runs: %v", err)
	} else if _, ok := g.(*RunsReport); !ok {
		t.Errorf("expected *RunsReport, got %T", g)
	}
	if g, err := NewReportGenerator(ReportTypeSummary, ReportFormatJSON, st); err != nil {
		t.Errorf("summary: %v", err)
	} else if _, ok := g.(*SummaryReport); !ok {
		t.Errorf("expected *SummaryReport, got %T", g)
	}
	if _, err := NewReportGenerator("bogus", ReportFormatCSV, st); err == nil {
		t.Error("expected error for unknown type")
	}
	if _, err := NewReportGenerator(ReportTypeRuns, "xml", st); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestReportFormat_ContentType(t *testing.T) {
	if ReportFormatJSON.ContentType() != "application/json" {
		t.Error("json content type")
	}
	if ReportFormatCSV.ContentType() != "text/csv" {
		t.Error("csv content type")
	}
}
