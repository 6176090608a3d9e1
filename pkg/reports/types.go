package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/loadsim/pkg/store"
)

type ReportType string

const (
	ReportTypeRuns    ReportType = "runs"
	ReportTypeSummary ReportType = "summary"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatJSON ReportFormat = "json"
)

// ContentType returns the MIME type for the format.
func (f ReportFormat) ContentType() string {
	if f == ReportFormatJSON {
		return "application/json"
	}
	return "text/csv"
}

type ReportParams struct {
	Start time.Time
	End   time.Time
	Kind  string
	State string
	Limit int
}

func (p ReportParams) filter() store.RunFilter {
	return store.RunFilter{Kind: p.Kind, State: p.State, From: p.Start, To: p.End, Limit: p.Limit}
}

// RunStore is the journal access reports need.
type RunStore interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.TaskRun, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}
