package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files at path: the file itself, or
// every .yaml and .yml file below a directory, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Results  []ScenarioOutcome `json:"results"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Name  string `json:"name,omitempty"`
	Path  string `json:"path"`
	Error string `json:"error"`
}

// RunSuite loads and runs every scenario file in paths.
// A scenario that fails to load or run is recorded as a failure and the
// suite carries on.
func (h *Harness) RunSuite(ctx context.Context, paths []string) *SuiteResult {
	suite := &SuiteResult{}

	for _, path := range paths {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Error: fmt.Sprintf("failed to load scenario: %v", err)})
			continue
		}

		result, err := h.Run(ctx, scenario)
		if err != nil {
			suite.fail(ScenarioFailure{Name: scenario.Name, Path: path, Error: fmt.Sprintf("scenario execution failed: %v", err)})
			continue
		}
		suite.Results = append(suite.Results, ScenarioOutcome{Name: scenario.Name, Path: path, Result: result})

		if !result.Pass {
			suite.fail(ScenarioFailure{
				Name:  scenario.Name,
				Path:  path,
				Error: fmt.Sprintf("scenario assertions failed: %s", strings.Join(result.Errors, "; ")),
			})
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
