// api/schemas/results.go
package schemas

import (
	"fmt"
	"strings"
	"time"
)

// Step and run statuses.
const (
	StepSuccess = "success"
	StepFailed  = "failed"
	StepSkipped = "skipped"

	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// NetworkRequest records one completed or failed browser request, scoped to
// the step that was active when it settled.
type NetworkRequest struct {
	URL          string `json:"url"`
	Method       string `json:"method"`
	Status       int    `json:"status,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	ResponseSize int64  `json:"response_size"`
	Error        string `json:"error,omitempty"`
}

// StepResult is created exactly once per executed step. Path identifies the
// step structurally: a top-level step is [i], a sub-scenario step is
// [i, j], and so on for deeper recursion, so indices never collide regardless
// of nesting depth or sub-step count.
type StepResult struct {
	Index           int              `json:"index"`
	Path            []int            `json:"path"`
	Action          Action           `json:"action"`
	Status          string           `json:"status"`
	Name            string           `json:"name,omitempty"`
	Selector        string           `json:"selector,omitempty"`
	Screenshot      string           `json:"screenshot,omitempty"`
	Error           string           `json:"error,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
	NetworkRequests []NetworkRequest `json:"network_requests"`
	Logs            []string         `json:"logs"`
}

// PathString renders the structural path for display and artifact naming,
// e.g. "03" for a top-level step or "03-01" for its second sub-step.
func PathString(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = fmt.Sprintf("%02d", p)
	}
	return strings.Join(parts, "-")
}

// RunResult aggregates one execution of a scenario's steps. It is created
// with status "running", mutated only by the engine, and persisted exactly
// once at run end.
type RunResult struct {
	RunID           string       `json:"run_id"`
	Status          string       `json:"status"`
	Goal            string       `json:"goal"`
	ProjectID       string       `json:"project_id,omitempty"`
	ScenarioID      string       `json:"scenario_id,omitempty"`
	Steps           []StepResult `json:"steps"`
	StartTime       string       `json:"start_time,omitempty"`
	EndTime         string       `json:"end_time,omitempty"`
	TotalDurationMs int64        `json:"total_duration_ms"`
	ArtifactDir     string       `json:"artifact_dir"`
	VideoPath       string       `json:"video_path,omitempty"`
}

// Timestamp formats t the way run records store wall-clock times.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
