// internal/engine/driver.go
package engine

import (
	"context"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// LaunchOptions selects how a browser session is brought up for one run.
type LaunchOptions struct {
	Headless bool
	// Channel picks a non-default browser binary ("chrome", "chrome-beta",
	// "msedge"). Empty selects the allocator default.
	Channel string
	// Args are extra command-line switches for the browser process.
	Args []string
	// UserDataDir enables a persistent profile when non-empty.
	UserDataDir string
	RecordVideo bool
	// ArtifactDir is the run's artifact directory; the session stores video
	// frames beneath it when recording.
	ArtifactDir string
}

// Driver launches browser sessions. It is a consumed capability: the engine
// owns orchestration only, never rendering or transport.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one live browser page plus its surrounding context. Every
// element operation takes the selector to act on and a hard timeout; a call
// that cannot complete within it returns an error rather than hanging the
// run.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	CurrentURL(ctx context.Context) (string, error)

	Click(ctx context.Context, selector string, timeout time.Duration) error
	DoubleClick(ctx context.Context, selector string, timeout time.Duration) error
	Hover(ctx context.Context, selector string, timeout time.Duration) error
	Focus(ctx context.Context, selector string, timeout time.Duration) error
	Check(ctx context.Context, selector string, timeout time.Duration) error
	Uncheck(ctx context.Context, selector string, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	Fill(ctx context.Context, selector, value string, timeout time.Duration) error
	Type(ctx context.Context, selector, value string, timeout time.Duration) error
	SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error
	Press(ctx context.Context, selector, key string, timeout time.Duration) error

	InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	WaitTextContains(ctx context.Context, selector, substr string, timeout time.Duration) error

	Evaluate(ctx context.Context, script string) error
	Screenshot(ctx context.Context, path string) error

	IsFileInput(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	SetInputFiles(ctx context.Context, selector, path string, timeout time.Duration) error
	UploadViaChooser(ctx context.Context, selector, path string, timeout time.Duration) error

	CaptureStorageState(ctx context.Context) (*schemas.AuthState, error)
	AddCookies(ctx context.Context, cookies []schemas.Cookie) error

	Monitor() NetworkMonitor
	// VideoPath returns the location of recorded video material, or "" when
	// the session is not recording.
	VideoPath() string
	Close(ctx context.Context) error
}

// NetworkMonitor observes the session's request lifecycle events and buffers
// settled requests per step.
type NetworkMonitor interface {
	// BeginStep resets the per-step request and console buffers.
	BeginStep()
	// StepRequests returns the requests that settled during the current step.
	StepRequests() []schemas.NetworkRequest
	// StepConsole returns console lines captured during the current step.
	StepConsole() []string
	// Drain blocks until no requests are pending, polling at the given
	// interval, up to the ceiling. It returns the number of requests still
	// pending (0 when fully drained) and how long it waited.
	Drain(ctx context.Context, ceiling, poll time.Duration) (pending int, waited time.Duration)
	// SetEmit installs a hook invoked for every settled request as it
	// arrives. Pass nil to disable.
	SetEmit(fn func(schemas.NetworkRequest))
}

// ScenarioLoader resolves scenario ids for run_scenario and ensure_auth.
// A missing scenario is (nil, nil).
type ScenarioLoader interface {
	LoadScenario(id string) (*schemas.Scenario, error)
}

// ResourceResolver turns "resource:<id>" tokens into filesystem paths.
// Non-token inputs pass through unchanged.
type ResourceResolver interface {
	ResolveResource(token, projectID string) (string, error)
}

// AuthStore persists browser storage state keyed by (project id, state name).
type AuthStore interface {
	Exists(projectID, stateName string) bool
	Save(projectID, stateName string, state *schemas.AuthState) error
	Load(projectID, stateName string) (*schemas.AuthState, error)
}

// ResultStore durably persists finalized run results addressable by run id.
type ResultStore interface {
	SaveResult(ctx context.Context, result *schemas.RunResult) error
}
