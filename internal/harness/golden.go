package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is what golden files record for a run.
type TraceSnapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Policy       string         `json:"policy"`
	Trace        []TraceEvent   `json:"trace"`
	Requests     []RequestEvent `json:"requests"`
	Final        Carts          `json:"final"`
	Notices      []string       `json:"notices"`
}

// Snapshot builds the golden record of result.
func Snapshot(scenario *Scenario, result *Result) TraceSnapshot {
	policy := scenario.Policy
	if policy == "" {
		policy = "last-response-wins"
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		Policy:       policy,
		Trace:        result.Trace,
		Requests:     result.Requests,
		Final:        result.Final,
		Notices:      result.Notices,
	}
}

// MarshalSnapshot encodes a snapshot as indented JSON. Map keys are sorted,
// so equal runs encode to equal bytes.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario could not run. A snapshot mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t, scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// running the scenario again.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(Snapshot(scenario, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
