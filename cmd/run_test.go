// cmd/run_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjbeckett/stepflow/api/schemas"
	"github.com/mjbeckett/stepflow/internal/catalog"
	"github.com/mjbeckett/stepflow/internal/engine"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRunOptionsFromFileStepArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.json")
	writeTestFile(t, path, `[
		{"action": "goto", "url": "https://example.com"},
		{"action": "click", "target": "#go"}
	]`)

	opts, err := runOptionsFromFile(path, engine.RunOptions{})
	require.NoError(t, err)
	require.Len(t, opts.Steps, 2)
	assert.Equal(t, schemas.ActionGoto, opts.Steps[0].Action)
	assert.Equal(t, "steps.json", opts.Goal)
}

func TestRunOptionsFromFileScenarioObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	writeTestFile(t, path, `{
		"id": "smoke",
		"name": "Smoke test",
		"project_id": "proj-1",
		"steps": [{"action": "screenshot"}]
	}`)

	opts, err := runOptionsFromFile(path, engine.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "smoke", opts.ScenarioID)
	assert.Equal(t, "proj-1", opts.ProjectID)
	assert.Equal(t, "Smoke test", opts.Goal)
	require.Len(t, opts.Steps, 1)
}

func TestRunOptionsFromFileEmptySteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	writeTestFile(t, path, `[]`)

	_, err := runOptionsFromFile(path, engine.RunOptions{})
	assert.Error(t, err)
}

func TestRunOptionsFromScenarioWiresUIMaps(t *testing.T) {
	dataDir := t.TempDir()
	writeTestFile(t, filepath.Join(dataDir, "scenarios", "checkout.json"), `{
		"name": "Checkout",
		"project_id": "proj-1",
		"steps": [{"action": "click", "target": "checkout.pay"}]
	}`)
	writeTestFile(t, filepath.Join(dataDir, "ui_maps", "m1.json"), `{
		"name": "checkout",
		"project_id": "proj-1",
		"elements": {"pay": {"primary": "#pay"}}
	}`)

	cat := catalog.New(dataDir)
	opts, err := runOptionsFromScenario(cat, "checkout", engine.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "checkout", opts.ScenarioID)
	assert.Equal(t, "proj-1", opts.ProjectID)
	assert.Equal(t, "Checkout", opts.Goal)
	require.Contains(t, opts.UIMapsByName, "checkout")
	assert.Equal(t, "#pay", opts.UIMapsByName["checkout"]["pay"].Primary)
}

func TestRunOptionsFromScenarioMissing(t *testing.T) {
	cat := catalog.New(t.TempDir())
	_, err := runOptionsFromScenario(cat, "ghost", engine.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
