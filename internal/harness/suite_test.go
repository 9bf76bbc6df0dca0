package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFindScenarios_Sorted(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", minimalScenario)
	writeScenario(t, dir, "a.yml", minimalScenario)
	writeScenario(t, dir, "notes.txt", "ignored")

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)
}

func TestFindScenarios_Empty(t *testing.T) {
	_, err := FindScenarios(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenarios found")
}

func TestLoadDir_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "one.yaml", minimalScenario)
	writeScenario(t, dir, "two.yaml", minimalScenario)

	_, _, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "minimal" is also used by`)
}

func TestLoadDir_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "bad.yaml", "name: bad\n")

	_, _, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "description is required")
}

func TestRunDir_CountsFailures(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", minimalScenario)
	failing := writeScenario(t, dir, "fail.yaml", strings.Replace(
		strings.Replace(minimalScenario, "name: minimal", "name: wrong_cart", 1),
		"    product: m-1\n",
		"    product: m-1\n  - type: cart\n    cart: server\n    items: { m-1: 5 }\n", 1))

	suite, err := RunDir(t, dir)
	require.NoError(t, err)

	assert.Equal(t, 2, suite.TotalScenarios)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 1, suite.Failed)
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "wrong_cart", suite.Failures[0].Name)
	assert.Equal(t, failing, suite.Failures[0].Path)
	require.Len(t, suite.Failures[0].Errors, 1)
	assert.Contains(t, suite.Failures[0].Errors[0], "server cart {m-1: 5}")
}

func TestRunDir_CheckedInScenarios(t *testing.T) {
	suite, err := RunDir(t, scenarioDir)
	require.NoError(t, err)
	assert.Zero(t, suite.Failed, "failures: %+v", suite.Failures)
	assert.Equal(t, suite.TotalScenarios, suite.Passed)
}
