package harness

import (
	"fmt"
	"path/filepath"
	"sort"
	"testing"
)

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is a scenario that did not pass.
type ScenarioFailure struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the scenario files in dir, sorted by name.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir loads every scenario in dir and rejects duplicate names, which
// would share a golden file.
func LoadDir(dir string) ([]*Scenario, []string, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, nil, err
	}

	names := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		if other, dup := names[s.Name]; dup {
			return nil, nil, fmt.Errorf("%s: scenario name %q is also used by %s", path, s.Name, other)
		}
		names[s.Name] = path
		scenarios = append(scenarios, s)
	}
	return scenarios, paths, nil
}

// RunDir runs every scenario in dir and summarises the outcome. A scenario
// that cannot run at all counts as failed.
func RunDir(t testing.TB, dir string, opts ...Option) (*SuiteResult, error) {
	scenarios, paths, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{TotalScenarios: len(scenarios)}
	for i, s := range scenarios {
		result, err := Run(t, s, opts...)
		var errs []string
		switch {
		case err != nil:
			errs = []string{err.Error()}
		case !result.Pass:
			errs = result.Errors
		}
		if len(errs) == 0 {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, ScenarioFailure{Name: s.Name, Path: paths[i], Errors: errs})
	}
	return suite, nil
}
