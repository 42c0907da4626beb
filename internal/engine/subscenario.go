// internal/engine/subscenario.go
package engine

import (
	"fmt"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// doRunScenario loads a stored scenario and executes its steps inline,
// appending each sub-step's result to the run with a path that extends the
// invoking step's position. Failures propagate to the parent step unless
// the failing sub-step opted out via optional or continue_on_error.
func (e *Engine) doRunScenario(rc *runContext, step schemas.Step, path []int, stepValue string, timeout time.Duration, logs *stepLogs) (string, error) {
	scenarioID := step.ScenarioID
	if scenarioID == "" {
		scenarioID = stepValue
	}
	if scenarioID == "" {
		return "", fmt.Errorf("run_scenario action requires 'scenario_id' parameter")
	}
	if e.scenarios == nil {
		return "", fmt.Errorf("no scenario loader configured")
	}

	sub, err := e.scenarios.LoadScenario(scenarioID)
	if err != nil {
		return "", fmt.Errorf("load scenario %q: %w", scenarioID, err)
	}
	if sub == nil {
		return "", fmt.Errorf("scenario %q not found", scenarioID)
	}

	logs.logf("Running sub-scenario %q (%d steps)", scenarioID, len(sub.Steps))

	if err := e.runSubSteps(rc, sub.Steps, path, logs); err != nil {
		return "", fmt.Errorf("sub-scenario %q: %w", scenarioID, err)
	}
	return "run_scenario:" + scenarioID, nil
}

// runSubSteps executes an inline step list under the given parent path.
// Results are appended to the run's step list as they complete so the
// progress stream sees them in execution order.
func (e *Engine) runSubSteps(rc *runContext, steps []schemas.Step, parent []int, logs *stepLogs) error {
	for subIdx, subStep := range steps {
		if rc.cancelled() {
			return fmt.Errorf("run cancelled")
		}

		subPath := append(append([]int(nil), parent...), subIdx)
		rc.run.bus.Publish(schemas.Event{
			Type:      schemas.EventStepStart,
			RunID:     rc.run.ID,
			StepIndex: subIdx,
			Step:      &subStep,
		})

		subResult := e.executeStep(rc, subStep, subPath)
		rc.result.Steps = append(rc.result.Steps, subResult)

		rc.run.bus.Publish(schemas.Event{
			Type:      schemas.EventStepEnd,
			RunID:     rc.run.ID,
			StepIndex: subIdx,
			Result:    &subResult,
		})

		if subResult.Status == schemas.StepFailed {
			if subStep.Optional || subStep.ContinueOnError {
				logs.logf("Sub-step %s failed but is non-blocking, continuing",
					schemas.PathString(subPath))
				continue
			}
			return fmt.Errorf("step %s (%s) failed: %s",
				schemas.PathString(subPath), subStep.Action, subResult.Error)
		}
	}
	return nil
}
