// internal/engine/fakes_test.go
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// fakeSession implements Session with overridable function fields. Every
// call is recorded so tests can assert on the exact driver traffic.
type fakeSession struct {
	mu    sync.Mutex
	calls []string

	navigateFn    func(url string) error
	clickFn       func(selector string) error
	waitVisibleFn func(selector string) error
	fillFn        func(selector, value string) error
	innerTextFn   func(selector string) (string, error)
	evaluateFn    func(script string) error
	currentURL    string
	storageState  *schemas.AuthState

	monitor *fakeMonitor
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		monitor:    &fakeMonitor{},
		currentURL: "https://app.example.com/dashboard",
	}
}

func (f *fakeSession) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeSession) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	f.record("navigate:" + url)
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakeSession) CurrentURL(ctx context.Context) (string, error) {
	return f.currentURL, nil
}

func (f *fakeSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("click:" + selector)
	if f.clickFn != nil {
		return f.clickFn(selector)
	}
	return nil
}

func (f *fakeSession) DoubleClick(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("dblclick:" + selector)
	return nil
}

func (f *fakeSession) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("hover:" + selector)
	return nil
}

func (f *fakeSession) Focus(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("focus:" + selector)
	return nil
}

func (f *fakeSession) Check(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("check:" + selector)
	return nil
}

func (f *fakeSession) Uncheck(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("uncheck:" + selector)
	return nil
}

func (f *fakeSession) ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("scroll:" + selector)
	return nil
}

func (f *fakeSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	f.record("wait_visible:" + selector)
	if f.waitVisibleFn != nil {
		return f.waitVisibleFn(selector)
	}
	return nil
}

func (f *fakeSession) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	f.record(fmt.Sprintf("fill:%s=%s", selector, value))
	if f.fillFn != nil {
		return f.fillFn(selector, value)
	}
	return nil
}

func (f *fakeSession) Type(ctx context.Context, selector, value string, timeout time.Duration) error {
	f.record(fmt.Sprintf("type:%s=%s", selector, value))
	return nil
}

func (f *fakeSession) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	f.record(fmt.Sprintf("select:%s=%s", selector, value))
	return nil
}

func (f *fakeSession) Press(ctx context.Context, selector, key string, timeout time.Duration) error {
	f.record(fmt.Sprintf("press:%s=%s", selector, key))
	return nil
}

func (f *fakeSession) InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	f.record("inner_text:" + selector)
	if f.innerTextFn != nil {
		return f.innerTextFn(selector)
	}
	return "", fmt.Errorf("no text handler for %s", selector)
}

func (f *fakeSession) WaitTextContains(ctx context.Context, selector, substr string, timeout time.Duration) error {
	f.record(fmt.Sprintf("wait_text:%s~%s", selector, substr))
	return nil
}

func (f *fakeSession) Evaluate(ctx context.Context, script string) error {
	f.record("evaluate")
	if f.evaluateFn != nil {
		return f.evaluateFn(script)
	}
	return nil
}

func (f *fakeSession) Screenshot(ctx context.Context, path string) error {
	f.record("screenshot")
	return nil
}

func (f *fakeSession) IsFileInput(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	f.record("is_file_input:" + selector)
	return true, nil
}

func (f *fakeSession) SetInputFiles(ctx context.Context, selector, path string, timeout time.Duration) error {
	f.record(fmt.Sprintf("set_input_files:%s=%s", selector, path))
	return nil
}

func (f *fakeSession) UploadViaChooser(ctx context.Context, selector, path string, timeout time.Duration) error {
	f.record(fmt.Sprintf("upload_chooser:%s=%s", selector, path))
	return nil
}

func (f *fakeSession) CaptureStorageState(ctx context.Context) (*schemas.AuthState, error) {
	f.record("capture_storage")
	if f.storageState != nil {
		return f.storageState, nil
	}
	return &schemas.AuthState{Cookies: []schemas.Cookie{}, Origins: []schemas.OriginState{}}, nil
}

func (f *fakeSession) AddCookies(ctx context.Context, cookies []schemas.Cookie) error {
	f.record(fmt.Sprintf("add_cookies:%d", len(cookies)))
	return nil
}

func (f *fakeSession) Monitor() NetworkMonitor { return f.monitor }
func (f *fakeSession) VideoPath() string       { return "" }

func (f *fakeSession) Close(ctx context.Context) error {
	f.record("close")
	return nil
}

// fakeMonitor is a no-traffic NetworkMonitor.
type fakeMonitor struct {
	mu       sync.Mutex
	requests []schemas.NetworkRequest
	console  []string
}

func (m *fakeMonitor) BeginStep() {
	m.mu.Lock()
	m.requests = nil
	m.console = nil
	m.mu.Unlock()
}

func (m *fakeMonitor) StepRequests() []schemas.NetworkRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schemas.NetworkRequest(nil), m.requests...)
}

func (m *fakeMonitor) StepConsole() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.console...)
}

func (m *fakeMonitor) Drain(ctx context.Context, ceiling, poll time.Duration) (int, time.Duration) {
	return 0, 0
}

func (m *fakeMonitor) SetEmit(fn func(schemas.NetworkRequest)) {}

// fakeDriver hands out a prepared session, or fails the launch.
type fakeDriver struct {
	session   *fakeSession
	launchErr error
}

func (d *fakeDriver) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if d.launchErr != nil {
		return nil, d.launchErr
	}
	return d.session, nil
}

// fakeScenarios serves scenarios from a map. Missing ids are (nil, nil).
type fakeScenarios struct {
	scenarios map[string]*schemas.Scenario
}

func (f *fakeScenarios) LoadScenario(id string) (*schemas.Scenario, error) {
	return f.scenarios[id], nil
}

// fakeAuth is an in-memory AuthStore.
type fakeAuth struct {
	mu     sync.Mutex
	states map[string]*schemas.AuthState
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{states: make(map[string]*schemas.AuthState)}
}

func (f *fakeAuth) key(projectID, stateName string) string {
	return projectID + "/" + stateName
}

func (f *fakeAuth) Exists(projectID, stateName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.states[f.key(projectID, stateName)]
	return ok
}

func (f *fakeAuth) Save(projectID, stateName string, state *schemas.AuthState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[f.key(projectID, stateName)] = state
	return nil
}

func (f *fakeAuth) Load(projectID, stateName string) (*schemas.AuthState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[f.key(projectID, stateName)]
	if !ok {
		return nil, fmt.Errorf("auth state %q not found for project %q", stateName, projectID)
	}
	return state, nil
}

// fakeResults records saved run results.
type fakeResults struct {
	mu    sync.Mutex
	saved []*schemas.RunResult
}

func (f *fakeResults) SaveResult(ctx context.Context, result *schemas.RunResult) error {
	f.mu.Lock()
	f.saved = append(f.saved, result)
	f.mu.Unlock()
	return nil
}
