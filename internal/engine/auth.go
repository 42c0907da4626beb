// internal/engine/auth.go
package engine

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

const defaultLoginURLPattern = "/login"

// doSaveAuthState snapshots the session's cookies and origin storage under
// a named state for the current project.
func (e *Engine) doSaveAuthState(rc *runContext, step schemas.Step, stepValue string, logs *stepLogs) (string, error) {
	stateName := step.StateName
	if stateName == "" {
		stateName = stepValue
	}
	if stateName == "" {
		stateName = "default"
	}
	if e.auth == nil {
		return "", fmt.Errorf("no auth state store configured")
	}

	state, err := rc.session.CaptureStorageState(rc.ctx)
	if err != nil {
		return "", fmt.Errorf("capture storage state: %w", err)
	}
	if err := e.auth.Save(rc.projectID, stateName, state); err != nil {
		return "", err
	}
	logs.logf("Saved auth state %q (%d cookies, %d origins)",
		stateName, len(state.Cookies), len(state.Origins))
	return "save_auth_state:" + stateName, nil
}

// doLoadAuthState restores a previously saved state into the live session.
// Cookies apply globally; localStorage can only be written into the origin
// currently loaded, so entries for other origins are skipped with a note.
func (e *Engine) doLoadAuthState(rc *runContext, step schemas.Step, stepValue string, logs *stepLogs) (string, error) {
	stateName := step.StateName
	if stateName == "" {
		stateName = stepValue
	}
	if stateName == "" {
		stateName = "default"
	}
	if e.auth == nil {
		return "", fmt.Errorf("no auth state store configured")
	}

	state, err := e.auth.Load(rc.projectID, stateName)
	if err != nil {
		return "", err
	}
	if err := e.applyAuthState(rc, state, logs); err != nil {
		return "", err
	}
	logs.logf("Loaded auth state %q", stateName)
	return "load_auth_state:" + stateName, nil
}

func (e *Engine) applyAuthState(rc *runContext, state *schemas.AuthState, logs *stepLogs) error {
	if len(state.Cookies) > 0 {
		if err := rc.session.AddCookies(rc.ctx, state.Cookies); err != nil {
			return fmt.Errorf("restore cookies: %w", err)
		}
		logs.logf("Restored %d cookies", len(state.Cookies))
	}

	if len(state.Origins) == 0 {
		return nil
	}
	current, err := rc.session.CurrentURL(rc.ctx)
	if err != nil {
		return err
	}
	currentOrigin := originOf(current)
	for _, origin := range state.Origins {
		if originOf(origin.Origin) != currentOrigin {
			logs.logf("Skipping localStorage for %s (current origin is %s)", origin.Origin, currentOrigin)
			continue
		}
		for _, item := range origin.LocalStorage {
			script := fmt.Sprintf("localStorage.setItem(%q, %q)", item.Name, item.Value)
			if err := rc.session.Evaluate(rc.ctx, script); err != nil {
				return fmt.Errorf("restore localStorage %q: %w", item.Name, err)
			}
		}
		logs.logf("Restored %d localStorage entries for %s", len(origin.LocalStorage), origin.Origin)
	}
	return nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return strings.TrimSuffix(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}

// doEnsureAuth is the composite login guard: restore a stored state if one
// exists, probe the check URL for an authenticated session, and only when
// the probe fails run the login scenario and persist the fresh state.
func (e *Engine) doEnsureAuth(rc *runContext, step schemas.Step, path []int, timeout time.Duration, logs *stepLogs) (string, error) {
	stateName := step.StateName
	if stateName == "" {
		stateName = "default"
	}
	if step.CheckURL == "" {
		return "", fmt.Errorf("ensure_auth action requires 'check_url' parameter")
	}
	if step.LoginScenarioID == "" {
		return "", fmt.Errorf("ensure_auth action requires 'login_scenario_id' parameter")
	}
	if e.auth == nil {
		return "", fmt.Errorf("no auth state store configured")
	}
	if e.scenarios == nil {
		return "", fmt.Errorf("no scenario loader configured")
	}

	if e.auth.Exists(rc.projectID, stateName) {
		state, err := e.auth.Load(rc.projectID, stateName)
		if err != nil {
			return "", err
		}
		if err := e.applyAuthState(rc, state, logs); err != nil {
			return "", err
		}
		logs.logf("Applied stored auth state %q", stateName)
	} else {
		logs.logf("No stored auth state %q for project %q", stateName, rc.projectID)
	}

	checkURL := resolveLocalURL(step.CheckURL)
	if err := rc.session.Navigate(rc.ctx, checkURL, timeout); err != nil {
		return "", fmt.Errorf("navigate to check URL: %w", err)
	}

	if e.isLoggedIn(rc, step, logs) {
		logs.logf("Session already authenticated, skipping login")
		return fmt.Sprintf("ensure_auth:%s:skipped", stateName), nil
	}

	login, err := e.scenarios.LoadScenario(step.LoginScenarioID)
	if err != nil {
		return "", fmt.Errorf("load login scenario %q: %w", step.LoginScenarioID, err)
	}
	if login == nil {
		return "", fmt.Errorf("login scenario %q not found", step.LoginScenarioID)
	}

	logs.logf("Running login scenario %q (%d steps)", step.LoginScenarioID, len(login.Steps))
	if err := e.runSubSteps(rc, login.Steps, path, logs); err != nil {
		return "", fmt.Errorf("login scenario %q: %w", step.LoginScenarioID, err)
	}

	state, err := rc.session.CaptureStorageState(rc.ctx)
	if err != nil {
		return "", fmt.Errorf("capture storage state after login: %w", err)
	}
	if err := e.auth.Save(rc.projectID, stateName, state); err != nil {
		return "", err
	}
	logs.logf("Saved fresh auth state %q", stateName)

	if err := rc.session.Navigate(rc.ctx, checkURL, timeout); err != nil {
		return "", fmt.Errorf("navigate back to check URL: %w", err)
	}
	return fmt.Sprintf("ensure_auth:%s:logged_in", stateName), nil
}

// isLoggedIn probes the current page for an authenticated session. The URL
// test always runs: landing on the login page means logged out no matter
// what else is rendered. A configured logged-in marker selector is an
// additional requirement on top of it.
func (e *Engine) isLoggedIn(rc *runContext, step schemas.Step, logs *stepLogs) bool {
	pattern := step.LoginURLPattern
	if pattern == "" {
		pattern = defaultLoginURLPattern
	}
	current, err := rc.session.CurrentURL(rc.ctx)
	if err != nil {
		logs.logf("Could not read current URL: %v", err)
		return false
	}
	if strings.Contains(current, pattern) {
		logs.logf("Current URL %q matches login pattern %q", current, pattern)
		return false
	}

	if step.LoggedInSelector != "" {
		visible := false
		for _, sel := range ResolveSelectors(step.LoggedInSelector, rc.uiMap, rc.uiMapsByName) {
			if err := rc.session.WaitVisible(rc.ctx, sel, loggedInSelectorWait); err == nil {
				visible = true
				break
			}
		}
		if !visible {
			logs.logf("Logged-in marker %q not visible", step.LoggedInSelector)
			return false
		}
	}
	return true
}
