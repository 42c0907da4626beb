// internal/engine/engine.go

// Package engine executes declarative browser scenarios: it drives a browser
// session through an ordered list of steps, resolving symbolic element
// targets, substituting extracted variables, recursing into sub-scenarios,
// and aggregating per-step outcomes into a replayable run result.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultStepTimeout applies to steps without an explicit timeout.
	DefaultStepTimeout = 5 * time.Second
	// DefaultDrainCeiling caps the post-action wait for in-flight requests.
	DefaultDrainCeiling = 30 * time.Second
	// drainPoll is the pending-request polling interval during the drain wait.
	drainPoll = 100 * time.Millisecond
	// loggedInSelectorWait bounds the ensure_auth visibility check.
	loggedInSelectorWait = 3 * time.Second
)

// Options configures an Engine.
type Options struct {
	DefaultStepTimeout  time.Duration
	NetworkDrainCeiling time.Duration
	EventBufferSize     int
}

// Engine orchestrates scenario runs. It holds injected collaborators only;
// all per-run state lives in a runContext threaded through execution, so
// concurrent runs never share accidental state.
type Engine struct {
	driver    Driver
	scenarios ScenarioLoader
	resources ResourceResolver
	auth      AuthStore
	results   ResultStore
	logger    *zap.Logger
	opts      Options
}

// New creates an engine. scenarios, resources, auth and results may be nil;
// the corresponding step kinds then fail with a configuration error instead
// of panicking.
func New(driver Driver, scenarios ScenarioLoader, resources ResourceResolver, auth AuthStore, results ResultStore, logger *zap.Logger, opts Options) *Engine {
	if opts.DefaultStepTimeout <= 0 {
		opts.DefaultStepTimeout = DefaultStepTimeout
	}
	if opts.NetworkDrainCeiling <= 0 {
		opts.NetworkDrainCeiling = DefaultDrainCeiling
	}
	if opts.EventBufferSize <= 0 {
		opts.EventBufferSize = 256
	}
	return &Engine{
		driver:    driver,
		scenarios: scenarios,
		resources: resources,
		auth:      auth,
		results:   results,
		logger:    logger.Named("engine"),
		opts:      opts,
	}
}

// RunOptions parameterizes one run.
type RunOptions struct {
	Steps        []schemas.Step
	UIMap        map[string]schemas.ElementSpec            // legacy single map
	UIMapsByName map[string]map[string]schemas.ElementSpec // project maps keyed by name
	Goal         string
	Timeout      time.Duration // default step timeout override, 0 keeps the engine default
	Headed       bool
	RecordVideo  bool
	ProjectID    string
	ScenarioID   string

	BrowserChannel string
	BrowserArgs    []string
	UserDataDir    string

	// ArtifactRoot is the directory under which the run's artifact directory
	// is created.
	ArtifactRoot string
}

// Run is one scheduled execution. Cancellation is cooperative: Cancel sets a
// flag observed at step boundaries and never interrupts an in-flight driver
// operation.
type Run struct {
	ID     string
	engine *Engine
	opts   RunOptions
	bus    *Bus

	cancelled atomic.Bool
}

// NewRun allocates a run id and progress bus for the given options.
func (e *Engine) NewRun(opts RunOptions) *Run {
	return &Run{
		ID:     uuid.NewString()[:8],
		engine: e,
		opts:   opts,
		bus:    NewBus(e.opts.EventBufferSize),
	}
}

// Cancel requests cooperative cancellation. Thread-safe.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
}

// Events subscribes to the run's ordered progress stream. Subscribe before
// calling Execute to observe the run from its first step.
func (r *Run) Events() <-chan schemas.Event {
	return r.bus.Subscribe()
}

// runContext carries all per-run state through every (possibly recursive)
// step execution.
type runContext struct {
	ctx            context.Context
	run            *Run
	session        Session
	monitor        NetworkMonitor
	vars           *Variables
	uiMap          map[string]schemas.ElementSpec
	uiMapsByName   map[string]map[string]schemas.ElementSpec
	projectID      string
	artifactDir    string
	defaultTimeout time.Duration
	drainCeiling   time.Duration
	result         *schemas.RunResult
	logger         *zap.Logger
}

func (rc *runContext) cancelled() bool {
	return rc.run.cancelled.Load() || rc.ctx.Err() != nil
}

// Execute performs the run: launches a session, iterates steps through the
// dispatcher, applies the cancellation and continue-on-error policy, and
// finalizes and persists the result. The returned RunResult is always
// non-nil and always persisted, even when the run fails or is cancelled;
// only fatal session-launch errors surface as a non-nil error.
func (r *Run) Execute(ctx context.Context) (*schemas.RunResult, error) {
	e := r.engine
	started := time.Now()

	artifactDir := filepath.Join(r.opts.ArtifactRoot, fmt.Sprintf("%s_%s", started.Format("20060102-150405"), r.ID))
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	result := &schemas.RunResult{
		RunID:       r.ID,
		Status:      schemas.RunRunning,
		Goal:        r.opts.Goal,
		ProjectID:   r.opts.ProjectID,
		ScenarioID:  r.opts.ScenarioID,
		Steps:       []schemas.StepResult{},
		StartTime:   schemas.Timestamp(started),
		ArtifactDir: artifactDir,
	}

	logger := e.logger.With(zap.String("run_id", r.ID))
	logger.Info("Starting run.",
		zap.String("goal", r.opts.Goal),
		zap.Int("steps", len(r.opts.Steps)),
		zap.String("artifact_dir", artifactDir))

	session, err := e.driver.Launch(ctx, LaunchOptions{
		Headless:    !r.opts.Headed,
		Channel:     r.opts.BrowserChannel,
		Args:        r.opts.BrowserArgs,
		UserDataDir: r.opts.UserDataDir,
		RecordVideo: r.opts.RecordVideo,
		ArtifactDir: artifactDir,
	})
	if err != nil {
		result.Status = schemas.RunFailed
		r.finalize(ctx, result, started, logger)
		r.bus.Publish(schemas.Event{Type: schemas.EventError, RunID: r.ID, Message: err.Error()})
		r.bus.Close()
		return result, fmt.Errorf("failed to launch browser session: %w", err)
	}

	defaultTimeout := r.opts.Timeout
	if defaultTimeout <= 0 {
		defaultTimeout = e.opts.DefaultStepTimeout
	}

	rc := &runContext{
		ctx:            ctx,
		run:            r,
		session:        session,
		monitor:        session.Monitor(),
		vars:           NewVariables(),
		uiMap:          r.opts.UIMap,
		uiMapsByName:   r.opts.UIMapsByName,
		projectID:      r.opts.ProjectID,
		artifactDir:    artifactDir,
		defaultTimeout: defaultTimeout,
		drainCeiling:   e.opts.NetworkDrainCeiling,
		result:         result,
		logger:         logger,
	}

	// Forward settled network requests onto the progress stream as they
	// arrive.
	rc.monitor.SetEmit(func(req schemas.NetworkRequest) {
		nr := req
		r.bus.Publish(schemas.Event{Type: schemas.EventNetwork, RunID: r.ID, Request: &nr})
	})

	for idx := range r.opts.Steps {
		step := r.opts.Steps[idx]
		if rc.cancelled() {
			logger.Info("Run cancelled.", zap.Int("at_step", idx+1))
			// A non-optional failure that already settled the status is not
			// erased by a later cancellation.
			if result.Status == schemas.RunRunning {
				result.Status = schemas.RunCancelled
			}
			break
		}

		logger.Info("Executing step.",
			zap.Int("step", idx+1),
			zap.Int("total", len(r.opts.Steps)),
			zap.String("action", string(step.Action)))
		r.bus.Publish(schemas.Event{Type: schemas.EventStepStart, RunID: r.ID, StepIndex: idx, Step: &step})

		stepResult := e.executeStep(rc, step, []int{idx})
		result.Steps = append(result.Steps, stepResult)
		r.bus.Publish(schemas.Event{Type: schemas.EventStepEnd, RunID: r.ID, StepIndex: idx, Result: &stepResult})

		if stepResult.Status == schemas.StepFailed {
			logger.Warn("Step failed.", zap.String("error", stepResult.Error))
			if !step.Optional {
				result.Status = schemas.RunFailed
			}
			if !step.ContinueOnError {
				break
			}
			logger.Info("Continuing after failed step.")
		}
	}

	result.VideoPath = session.VideoPath()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := session.Close(closeCtx); err != nil {
		logger.Warn("Error closing browser session.", zap.Error(err))
	}
	closeCancel()

	r.finalize(ctx, result, started, logger)
	r.bus.Publish(schemas.Event{Type: schemas.EventComplete, RunID: r.ID, Run: result})
	r.bus.Close()
	return result, nil
}

// finalize stamps end time/duration, settles the terminal status and persists
// the result to the artifact directory and the durable run store.
func (r *Run) finalize(ctx context.Context, result *schemas.RunResult, started time.Time, logger *zap.Logger) {
	ended := time.Now()
	result.EndTime = schemas.Timestamp(ended)
	result.TotalDurationMs = ended.Sub(started).Milliseconds()
	if result.Status == schemas.RunRunning {
		result.Status = schemas.RunCompleted
	}

	if data, err := json.MarshalIndent(result, "", "  "); err == nil {
		path := filepath.Join(result.ArtifactDir, "result.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Warn("Failed to write result artifact.", zap.Error(err))
		}
	}

	if r.engine.results != nil {
		if err := r.engine.results.SaveResult(ctx, result); err != nil {
			logger.Warn("Failed to persist run result.", zap.Error(err))
		}
	}

	logger.Info("Run finished.",
		zap.String("status", result.Status),
		zap.Int64("total_duration_ms", result.TotalDurationMs))
}

// resolveLocalURL passes absolute http(s)/file URLs through and resolves
// anything else as a local file path relative to the working directory.
func resolveLocalURL(raw string) string {
	for _, prefix := range []string{"http://", "https://", "file://"} {
		if len(raw) >= len(prefix) && raw[:len(prefix)] == prefix {
			return raw
		}
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return raw
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}
