// internal/runstore/store_test.go
package runstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjbeckett/stepflow/api/schemas"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(runID, status string) *schemas.RunResult {
	return &schemas.RunResult{
		RunID:      runID,
		Status:     status,
		Goal:       "checkout smoke test",
		ProjectID:  "proj-1",
		ScenarioID: "checkout",
		Steps: []schemas.StepResult{
			{
				Index:      0,
				Path:       []int{0},
				Action:     schemas.ActionGoto,
				Status:     schemas.StepSuccess,
				Selector:   "https://app.example.com",
				DurationMs: 412,
				NetworkRequests: []schemas.NetworkRequest{
					{URL: "https://app.example.com/api/session", Method: "GET", Status: 200, DurationMs: 88, ResponseSize: 1024},
				},
				Logs: []string{"Executing action: goto"},
			},
			{
				Index:      1,
				Path:       []int{1},
				Action:     schemas.ActionClick,
				Status:     schemas.StepFailed,
				Error:      "click failed for selectors [#pay]: #pay: not visible",
				DurationMs: 5003,
			},
		},
		StartTime:       "2026-08-31T10:00:00Z",
		EndTime:         "2026-08-31T10:00:06Z",
		TotalDurationMs: 6000,
		ArtifactDir:     "/tmp/artifacts/20260831-100000_abcd1234",
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := sampleResult("run-1", schemas.RunFailed)
	require.NoError(t, store.SaveResult(ctx, want))

	got, err := store.LoadResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingRunIsNil(t *testing.T) {
	store := openTestStore(t)
	got, err := store.LoadResult(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveResultUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleResult("run-1", schemas.RunRunning)
	require.NoError(t, store.SaveResult(ctx, first))

	second := sampleResult("run-1", schemas.RunCompleted)
	require.NoError(t, store.SaveResult(ctx, second))

	got, err := store.LoadResult(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, schemas.RunCompleted, got.Status)

	summaries, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := sampleResult("run-a", schemas.RunCompleted)
	a.StartTime = "2026-08-31T09:00:00Z"
	b := sampleResult("run-b", schemas.RunCompleted)
	b.StartTime = "2026-08-31T11:00:00Z"
	c := sampleResult("run-c", schemas.RunCompleted)
	c.ProjectID = "proj-other"
	c.StartTime = "2026-08-31T10:00:00Z"

	for _, r := range []*schemas.RunResult{a, b, c} {
		require.NoError(t, store.SaveResult(ctx, r))
	}

	all, err := store.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-b", all[0].RunID)
	assert.Equal(t, "run-c", all[1].RunID)
	assert.Equal(t, "run-a", all[2].RunID)

	filtered, err := store.ListRuns(ctx, "proj-1", 0)
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	limited, err := store.ListRuns(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-b", limited[0].RunID)
}
