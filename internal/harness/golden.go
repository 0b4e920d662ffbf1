package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chronicle/internal/ir"
)

// TraceSnapshot is the golden-file view of a scenario run: what each step
// did and the history it left behind. Row ids and timestamps are omitted.
type TraceSnapshot struct {
	ScenarioName string
	Steps        []StepEvent
	History      []HistoryEntry
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Steps:        result.Steps,
		History:      result.History,
	}
}

// toCanonicalMap converts the snapshot to the plain values MarshalCanonical
// accepts. Zero-valued optional fields are left out.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, ev := range s.Steps {
		m := map[string]any{
			"step": ev.Step,
			"op":   ev.Op,
		}
		if ev.Rule != "" {
			m["rule"] = ev.Rule
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		if ev.Op == "undo" {
			m["undone"] = ev.Undone
			m["blocked"] = ev.Blocked
		}
		steps[i] = m
	}

	history := make([]any, len(s.History))
	for i, h := range s.History {
		m := map[string]any{
			"turn": h.Turn,
			"seq":  h.Seq,
			"rule": h.Rule,
			"args": h.Args,
		}
		if h.Irreversible {
			m["irreversible"] = true
		}
		history[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"history":       history,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against the golden file
// named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
