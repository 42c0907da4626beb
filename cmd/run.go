// cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mjbeckett/stepflow/api/schemas"
	"github.com/mjbeckett/stepflow/internal/authstate"
	"github.com/mjbeckett/stepflow/internal/browser"
	"github.com/mjbeckett/stepflow/internal/catalog"
	"github.com/mjbeckett/stepflow/internal/config"
	"github.com/mjbeckett/stepflow/internal/engine"
	"github.com/mjbeckett/stepflow/internal/observability"
	"github.com/mjbeckett/stepflow/internal/runstore"
)

var runJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [scenario-ids...]",
		Short: "Executes stored scenarios (or a steps file) against a real browser",
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("engine.record_video", cmd.Flags().Lookup("record-video")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			stepsFile, _ := cmd.Flags().GetString("file")
			if len(args) == 0 && stepsFile == "" {
				return fmt.Errorf("provide at least one scenario id or --file")
			}

			components, err := initializeRunComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			headed, _ := cmd.Flags().GetBool("headed")
			recordVideo := cfg.Engine.RecordVideo
			projectID, _ := cmd.Flags().GetString("project")
			goal, _ := cmd.Flags().GetString("goal")
			stepTimeout, _ := cmd.Flags().GetDuration("step-timeout")
			channel, _ := cmd.Flags().GetString("channel")
			userDataDir, _ := cmd.Flags().GetString("user-data-dir")
			browserArgs, _ := cmd.Flags().GetStringArray("browser-arg")
			parallel, _ := cmd.Flags().GetInt("parallel")
			if parallel < 1 {
				parallel = 1
			}

			base := engine.RunOptions{
				Goal:           goal,
				Timeout:        stepTimeout,
				Headed:         headed,
				RecordVideo:    recordVideo,
				ProjectID:      projectID,
				BrowserChannel: channel,
				BrowserArgs:    browserArgs,
				UserDataDir:    userDataDir,
				ArtifactRoot:   cfg.Storage.ArtifactsDir,
			}

			var runSpecs []engine.RunOptions
			if stepsFile != "" {
				opts, err := runOptionsFromFile(stepsFile, base)
				if err != nil {
					return err
				}
				runSpecs = append(runSpecs, opts)
			}
			for _, scenarioID := range args {
				opts, err := runOptionsFromScenario(components.Catalog, scenarioID, base)
				if err != nil {
					return err
				}
				runSpecs = append(runSpecs, opts)
			}

			results := make([]*schemas.RunResult, len(runSpecs))
			g := new(errgroup.Group)
			g.SetLimit(parallel)
			for i, spec := range runSpecs {
				g.Go(func() error {
					run := components.Engine.NewRun(spec)
					go consumeEvents(run.Events(), logger)

					// A signal cancels cooperatively: the run finishes its
					// current step, then finalizes and persists.
					watchDone := make(chan struct{})
					go func() {
						select {
						case <-ctx.Done():
							run.Cancel()
						case <-watchDone:
						}
					}()

					result, err := run.Execute(context.Background())
					close(watchDone)
					results[i] = result
					return err
				})
			}
			execErr := g.Wait()

			anyFailed := false
			for _, result := range results {
				if result == nil {
					anyFailed = true
					continue
				}
				fmt.Printf("run %s: %s (%d steps, %dms)\n",
					result.RunID, result.Status, len(result.Steps), result.TotalDurationMs)
				fmt.Printf("  artifacts: %s\n", result.ArtifactDir)
				if result.Status != schemas.RunCompleted {
					anyFailed = true
				}
			}
			if execErr != nil {
				return execErr
			}
			if anyFailed {
				return fmt.Errorf("one or more runs did not complete successfully")
			}
			return nil
		},
	}

	runCmd.Flags().String("file", "", "JSON file with a step list to run instead of a stored scenario")
	runCmd.Flags().String("project", "", "project id for UI map, resource and auth state lookups")
	runCmd.Flags().String("goal", "", "human-readable description of what the run verifies")
	runCmd.Flags().Bool("headed", false, "show the browser window")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().Bool("record-video", false, "record a screencast of the run")
	runCmd.Flags().Duration("step-timeout", 0, "default per-step timeout (0 uses engine.default_step_timeout)")
	runCmd.Flags().String("channel", "", "browser channel (chrome, chrome-beta, chrome-dev, msedge)")
	runCmd.Flags().String("user-data-dir", "", "persistent browser profile directory")
	runCmd.Flags().StringArray("browser-arg", nil, "extra browser command-line argument (repeatable)")
	runCmd.Flags().Int("parallel", 1, "maximum scenarios executing concurrently")

	return runCmd
}

// runComponents bundles everything a run needs so setup and teardown stay in
// one place.
type runComponents struct {
	Catalog *catalog.Catalog
	Auth    *authstate.Store
	Runs    *runstore.Store
	Engine  *engine.Engine
}

func (c *runComponents) Close() {
	if c.Runs != nil {
		c.Runs.Close()
	}
}

func initializeRunComponents(cfg *config.Config, logger *zap.Logger) (*runComponents, error) {
	cat := catalog.New(cfg.Storage.DataDir)

	auth, err := authstate.NewStore(filepath.Join(cfg.Storage.DataDir, "auth_states"))
	if err != nil {
		return nil, fmt.Errorf("failed to open auth state store: %w", err)
	}

	runs, err := runstore.Open(cfg.Storage.RunsDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	driver := browser.NewDriver(cfg.Browser, logger)
	eng := engine.New(driver, cat, cat, auth, runs, logger, engine.Options{
		DefaultStepTimeout:  cfg.Engine.DefaultStepTimeout,
		NetworkDrainCeiling: cfg.Engine.NetworkDrainCeiling,
		EventBufferSize:     cfg.Engine.EventBufferSize,
	})

	return &runComponents{Catalog: cat, Auth: auth, Runs: runs, Engine: eng}, nil
}

// runOptionsFromScenario loads the stored scenario and its project's UI maps.
func runOptionsFromScenario(cat *catalog.Catalog, scenarioID string, base engine.RunOptions) (engine.RunOptions, error) {
	scenario, err := cat.LoadScenario(scenarioID)
	if err != nil {
		return base, fmt.Errorf("failed to load scenario %q: %w", scenarioID, err)
	}
	if scenario == nil {
		return base, fmt.Errorf("scenario %q not found", scenarioID)
	}

	opts := base
	opts.Steps = scenario.Steps
	opts.ScenarioID = scenario.ID
	if opts.ProjectID == "" {
		opts.ProjectID = scenario.ProjectID
	}
	if opts.Goal == "" {
		opts.Goal = scenario.Name
	}

	if opts.ProjectID != "" {
		maps, err := cat.LoadUIMapsForProject(opts.ProjectID)
		if err != nil {
			return base, fmt.Errorf("failed to load UI maps for project %q: %w", opts.ProjectID, err)
		}
		opts.UIMapsByName = maps
	}
	if scenario.UIMapID != "" {
		uiMap, err := cat.LoadUIMap(scenario.UIMapID)
		if err != nil {
			return base, fmt.Errorf("failed to load UI map %q: %w", scenario.UIMapID, err)
		}
		if uiMap != nil {
			opts.UIMap = uiMap.Elements
		}
	}
	return opts, nil
}

// runOptionsFromFile reads an ad-hoc step list: either a bare JSON array of
// steps or a scenario object with a "steps" field.
func runOptionsFromFile(path string, base engine.RunOptions) (engine.RunOptions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read steps file: %w", err)
	}

	opts := base
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := runJSON.Unmarshal(data, &opts.Steps); err != nil {
			return base, fmt.Errorf("failed to parse steps file: %w", err)
		}
	} else {
		var scenario schemas.Scenario
		if err := runJSON.Unmarshal(data, &scenario); err != nil {
			return base, fmt.Errorf("failed to parse steps file: %w", err)
		}
		opts.Steps = scenario.Steps
		opts.ScenarioID = scenario.ID
		if opts.ProjectID == "" {
			opts.ProjectID = scenario.ProjectID
		}
		if opts.Goal == "" {
			opts.Goal = scenario.Name
		}
	}

	if len(opts.Steps) == 0 {
		return base, fmt.Errorf("steps file %q contains no steps", path)
	}
	if opts.Goal == "" {
		opts.Goal = filepath.Base(path)
	}
	return opts, nil
}

// consumeEvents drains a run's progress stream, logging step transitions.
func consumeEvents(events <-chan schemas.Event, logger *zap.Logger) {
	for ev := range events {
		switch ev.Type {
		case schemas.EventStepStart:
			if ev.Step != nil {
				logger.Info("step started",
					zap.String("run_id", ev.RunID),
					zap.Int("step", ev.StepIndex+1),
					zap.String("action", string(ev.Step.Action)))
			}
		case schemas.EventStepEnd:
			if ev.Result != nil {
				logger.Info("step finished",
					zap.String("run_id", ev.RunID),
					zap.String("path", schemas.PathString(ev.Result.Path)),
					zap.String("status", ev.Result.Status),
					zap.Int64("duration_ms", ev.Result.DurationMs))
			}
		case schemas.EventNetwork:
			if ev.Request != nil {
				logger.Debug("network request",
					zap.String("run_id", ev.RunID),
					zap.String("url", ev.Request.URL),
					zap.Int("status", ev.Request.Status))
			}
		case schemas.EventError:
			logger.Error("run error", zap.String("run_id", ev.RunID), zap.String("message", ev.Message))
		case schemas.EventComplete:
			if ev.Run != nil {
				logger.Info("run complete",
					zap.String("run_id", ev.RunID),
					zap.String("status", ev.Run.Status))
			}
		}
	}
}
