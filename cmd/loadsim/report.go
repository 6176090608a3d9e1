package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rmax-ai/loadsim/pkg/scenario"
)

func writeReport(out io.Writer, rep scenario.Report, jsonFmt bool, filePath string) error {
	var output []byte

	if jsonFmt {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		output = append(data, '\n')
	} else {
		output = formatReport(rep)
	}

	if filePath != "" {
		if err := os.WriteFile(filePath, output, 0o644); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", filePath, err)
		}
		fmt.Fprintf(out, "Report written to %s\n", filePath)
		return nil
	}
	_, err := out.Write(output)
	return err
}

func formatReport(rep scenario.Report) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n--- Scenario Report: %s ---\n", rep.ScenarioName)
	fmt.Fprintf(&buf, "Elapsed: %s | Seed: %d\n", rep.Elapsed.Round(time.Millisecond), rep.Seed)
	fmt.Fprintf(&buf, "Requests: %d | Errors: %d | Tasks: %d | Failed: %d\n",
		rep.TotalRequests, rep.TotalErrors, rep.TotalTasks, rep.TotalFailed)
	if rep.Interrupted {
		buf.WriteString("Run was interrupted before all steps finished\n")
	}

	if len(rep.Steps) > 0 {
		buf.WriteString("\nSteps:\n")
		for _, st := range rep.Steps {
			fmt.Fprintf(&buf, "  %-20s %-7s requests=%d errors=%d tasks=%d failed=%d\n",
				st.Name, st.Kind, st.Requests, st.Errors, st.Tasks, st.Failed)
		}
	}

	if len(rep.Invariants) > 0 {
		buf.WriteString("\nInvariants:\n")
		for _, inv := range rep.Invariants {
			status := "FAIL"
			if inv.Passed {
				status = "PASS"
			}
			fmt.Fprintf(&buf, "[%s] %s (%s): Expected %s, Got %s\n", status, inv.Metric, inv.Scope, inv.Expected, inv.Actual)
		}
	}

	result := "FAILED"
	if rep.Success {
		result = "PASSED"
	}
	fmt.Fprintf(&buf, "\nResult: %s\n", result)
	return buf.Bytes()
}
