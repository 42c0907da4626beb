// internal/engine/dispatch.go
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// selectorOp is one driver operation tried against each candidate selector.
type selectorOp func(ctx context.Context, selector string, timeout time.Duration) error

// stepLogs accumulates a step's log trail and mirrors each line onto the
// progress stream.
type stepLogs struct {
	rc    *runContext
	lines []string
}

func (l *stepLogs) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	l.lines = append(l.lines, line)
	l.rc.logger.Debug(line)
	l.rc.run.bus.Publish(schemas.Event{Type: schemas.EventLog, RunID: l.rc.run.ID, Message: line})
}

// take returns the collected lines plus any console output the browser
// produced during the step.
func (l *stepLogs) take() []string {
	return append(l.lines, l.rc.monitor.StepConsole()...)
}

// executeStep runs a single step to completion and converts every failure
// into a failed StepResult; errors never abort the run loop from here.
// path is the step's structural position ([i] top-level, [i, j] for the j-th
// step of a sub-scenario invoked at step i, and so on).
func (e *Engine) executeStep(rc *runContext, step schemas.Step, path []int) schemas.StepResult {
	started := time.Now()

	timeout := rc.defaultTimeout
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout) * time.Millisecond
	}

	rc.monitor.BeginStep()
	logs := &stepLogs{rc: rc}

	stepURL := rc.vars.Substitute(step.URL)
	stepTarget := rc.vars.Substitute(step.Target)
	stepValue := rc.vars.Substitute(step.Value)

	logs.logf("Executing action: %s", step.Action)

	used, err := e.dispatch(rc, step, path, stepURL, stepTarget, stepValue, timeout, logs)

	index := path[len(path)-1]
	result := schemas.StepResult{
		Index:  index,
		Path:   append([]int(nil), path...),
		Action: step.Action,
		Name:   step.Name,
	}

	if err == nil {
		shot := filepath.Join(rc.artifactDir, fmt.Sprintf("%s_%s.png", schemas.PathString(path), step.Action))
		if serr := rc.session.Screenshot(rc.ctx, shot); serr != nil {
			logs.logf("Failed to capture screenshot: %v", serr)
			shot = ""
		}

		// Block until network activity triggered by the action settles. A
		// ceiling overflow is a soft warning, never a step failure.
		pending, waited := rc.monitor.Drain(rc.ctx, rc.drainCeiling, drainPoll)
		if pending > 0 {
			logs.logf("Network wait timeout (%s), %d requests still pending", rc.drainCeiling, pending)
		} else if waited > 200*time.Millisecond {
			logs.logf("All network requests completed (%.1fs)", waited.Seconds())
		}

		duration := time.Since(started).Milliseconds()
		logs.logf("Completed successfully in %dms", duration)

		result.Status = schemas.StepSuccess
		result.Selector = used
		result.Screenshot = shot
		result.DurationMs = duration
		result.NetworkRequests = rc.monitor.StepRequests()
		result.Logs = logs.take()
		return result
	}

	logs.logf("Failed with error: %v", err)

	// Best-effort error screenshot; a failure to take it is swallowed.
	errShot := filepath.Join(rc.artifactDir, fmt.Sprintf("%s_%s_error.png", schemas.PathString(path), step.Action))
	if serr := rc.session.Screenshot(rc.ctx, errShot); serr != nil {
		errShot = ""
	}

	result.Status = schemas.StepFailed
	result.Error = err.Error()
	result.Screenshot = errShot
	result.DurationMs = time.Since(started).Milliseconds()
	result.NetworkRequests = rc.monitor.StepRequests()
	result.Logs = logs.take()
	return result
}

// dispatch maps the step's action kind to a concrete driver operation. The
// switch is exhaustive over the closed Action set; unknown values land in the
// default arm and fail the step.
func (e *Engine) dispatch(
	rc *runContext,
	step schemas.Step,
	path []int,
	stepURL, stepTarget, stepValue string,
	timeout time.Duration,
	logs *stepLogs,
) (string, error) {
	switch step.Action {
	case schemas.ActionGoto:
		if stepURL == "" {
			return "", fmt.Errorf("goto action requires 'url' parameter")
		}
		target := resolveLocalURL(stepURL)
		logs.logf("Navigating to: %s", target)
		if err := rc.session.Navigate(rc.ctx, target, timeout); err != nil {
			return "", err
		}
		return target, nil

	case schemas.ActionClick:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.Click)
	case schemas.ActionDblClick:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.DoubleClick)
	case schemas.ActionHover:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.Hover)
	case schemas.ActionFocus:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.Focus)
	case schemas.ActionCheck:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.Check)
	case schemas.ActionUncheck:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.Uncheck)
	case schemas.ActionScroll:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.ScrollIntoView)
	case schemas.ActionWaitFor:
		return e.withTarget(rc, step.Action, stepTarget, timeout, rc.session.WaitVisible)

	case schemas.ActionFill:
		return e.withTarget(rc, step.Action, stepTarget, timeout,
			func(ctx context.Context, sel string, to time.Duration) error {
				return rc.session.Fill(ctx, sel, stepValue, to)
			})
	case schemas.ActionType:
		return e.withTarget(rc, step.Action, stepTarget, timeout,
			func(ctx context.Context, sel string, to time.Duration) error {
				return rc.session.Type(ctx, sel, stepValue, to)
			})
	case schemas.ActionSelect:
		return e.withTarget(rc, step.Action, stepTarget, timeout,
			func(ctx context.Context, sel string, to time.Duration) error {
				return rc.session.SelectOption(ctx, sel, stepValue, to)
			})
	case schemas.ActionPress:
		key := stepValue
		if key == "" {
			key = "Enter"
		}
		return e.withTarget(rc, step.Action, stepTarget, timeout,
			func(ctx context.Context, sel string, to time.Duration) error {
				return rc.session.Press(ctx, sel, key, to)
			})
	case schemas.ActionAssertText:
		return e.withTarget(rc, step.Action, stepTarget, timeout,
			func(ctx context.Context, sel string, to time.Duration) error {
				return rc.session.WaitTextContains(ctx, sel, stepValue, to)
			})

	case schemas.ActionExtract:
		return e.doExtract(rc, step, stepTarget, timeout, logs)

	case schemas.ActionRunJS:
		script := stepValue
		if script == "" {
			return "", fmt.Errorf("run_js action requires 'value' parameter")
		}
		logs.logf("Executing JavaScript: %s", truncate(script, 100))
		if err := rc.session.Evaluate(rc.ctx, script); err != nil {
			return "", err
		}
		return "javascript", nil

	case schemas.ActionScreenshot:
		logs.logf("Taking screenshot")
		return "screenshot", nil

	case schemas.ActionWait:
		ms := 1000
		if stepValue != "" {
			parsed, err := strconv.Atoi(strings.TrimSpace(stepValue))
			if err != nil {
				return "", fmt.Errorf("wait action requires a millisecond value: %w", err)
			}
			ms = parsed
		}
		logs.logf("Waiting for %dms", ms)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-rc.ctx.Done():
			return "", rc.ctx.Err()
		}
		return fmt.Sprintf("wait:%dms", ms), nil

	case schemas.ActionRunScenario:
		return e.doRunScenario(rc, step, path, stepValue, timeout, logs)

	case schemas.ActionUploadFile:
		return e.doUploadFile(rc, step, stepTarget, stepValue, timeout, logs)

	case schemas.ActionPasteImage:
		return e.doPasteImage(rc, step, stepValue, logs)

	case schemas.ActionSaveAuthState:
		return e.doSaveAuthState(rc, step, stepValue, logs)

	case schemas.ActionLoadAuthState:
		return e.doLoadAuthState(rc, step, stepValue, logs)

	case schemas.ActionEnsureAuth:
		return e.doEnsureAuth(rc, step, path, timeout, logs)

	default:
		return "", fmt.Errorf("unsupported action %q", step.Action)
	}
}

// withTarget resolves the symbolic target and applies op across the
// candidates. An empty selector list is a precondition failure; the driver
// is never invoked.
func (e *Engine) withTarget(rc *runContext, action schemas.Action, target string, timeout time.Duration, op selectorOp) (string, error) {
	selectors := ResolveSelectors(target, rc.uiMap, rc.uiMapsByName)
	if len(selectors) == 0 {
		return "", fmt.Errorf("target %q not found and no selectors available", target)
	}
	rc.logger.Debug("Resolved target.", zap.String("target", target), zap.Strings("selectors", selectors))
	return performWithSelectors(rc.ctx, action, selectors, timeout, op)
}

// performWithSelectors is the deterministic ordered-retry at the core of the
// dispatcher: candidates are tried in declared order, each candidate's error
// is recorded, and the step fails with the aggregate only when every
// candidate is exhausted.
func performWithSelectors(ctx context.Context, action schemas.Action, selectors []string, timeout time.Duration, op selectorOp) (string, error) {
	var errs []string
	for _, sel := range selectors {
		if err := op(ctx, sel, timeout); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", sel, err))
			continue
		}
		return sel, nil
	}
	return "", fmt.Errorf("%s failed for selectors %v: %s", action, selectors, strings.Join(errs, "; "))
}

// doExtract reads element text into the variable store. The variable name
// comes from save_as, falling back to the raw value field.
func (e *Engine) doExtract(rc *runContext, step schemas.Step, stepTarget string, timeout time.Duration, logs *stepLogs) (string, error) {
	varName := step.SaveAs
	if varName == "" {
		varName = step.Value
	}
	if varName == "" {
		return "", fmt.Errorf("extract action requires 'save_as' or 'value' parameter for variable name")
	}
	if stepTarget == "" {
		return "", fmt.Errorf("extract action requires 'target' parameter")
	}

	selectors := ResolveSelectors(stepTarget, rc.uiMap, rc.uiMapsByName)
	var extracted string
	for _, sel := range selectors {
		text, err := rc.session.InnerText(rc.ctx, sel, timeout)
		if err != nil {
			continue
		}
		extracted = text
		logs.logf("Extracted %q from %q -> {{%s}}", truncate(text, 80), sel, varName)
		break
	}

	rc.vars.Set(varName, strings.TrimSpace(extracted))
	return fmt.Sprintf("extract:%s=%s", varName, truncate(extracted, 50)), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
