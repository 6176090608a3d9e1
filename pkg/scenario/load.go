package scenario

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a scenario file (YAML or JSON).
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

var validConditions = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "==": true}

var validMetrics = map[string]bool{
	"error_rate":        true,
	"task_failure_rate": true,
	"requests":          true,
	"errors":            true,
	"tasks":             true,
}

// Validate reports every problem found in the scenario.
func (s Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("scenario name is required"))
	}
	if len(s.Steps) == 0 {
		errs = append(errs, errors.New("scenario has no steps"))
	}
	if s.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}

	names := make(map[string]bool, len(s.Steps))
	for i, st := range s.Steps {
		label := st.label(i)
		switch st.Kind {
		case KindMemory, KindCPU, KindDisk, KindLogs, KindMetric, KindTrace:
		default:
			errs = append(errs, fmt.Errorf("step %s: unknown kind %q", label, st.Kind))
		}
		if st.Repeat < 0 || st.Concurrency < 0 {
			errs = append(errs, fmt.Errorf("step %s: repeat and concurrency must not be negative", label))
		}
		if st.Delay < 0 || st.Interval < 0 || st.Jitter < 0 {
			errs = append(errs, fmt.Errorf("step %s: delay, interval and jitter must not be negative", label))
		}
		if names[label] {
			errs = append(errs, fmt.Errorf("step %s: duplicate name", label))
		}
		names[label] = true
	}

	for _, inv := range s.Invariants {
		if !validMetrics[inv.Metric] {
			errs = append(errs, fmt.Errorf("invariant: unknown metric %q", inv.Metric))
		}
		if !validConditions[inv.Condition] {
			errs = append(errs, fmt.Errorf("invariant %s: unknown condition %q", inv.Metric, inv.Condition))
		}
		if inv.Scope != "" && inv.Scope != "global" && !names[inv.Scope] {
			errs = append(errs, fmt.Errorf("invariant %s: unknown scope %q", inv.Metric, inv.Scope))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid scenario: %w", errors.Join(errs...))
	}
	return nil
}

// label is the step name, or "<kind>-<index>" when unnamed.
func (st Step) label(i int) string {
	if st.Name != "" {
		return st.Name
	}
	return fmt.Sprintf("%s-%d", st.Kind, i)
}
