// internal/browser/monitor.go
package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// pendingRequest tracks one in-flight network request from RequestWillBeSent
// until LoadingFinished or LoadingFailed settles it.
type pendingRequest struct {
	url    string
	method string
	status int
	start  time.Time
}

// Monitor listens to the tab's CDP network and console events. Requests are
// keyed by the protocol's RequestID, so concurrent hits on the same URL are
// tracked independently. Settled requests and console lines accumulate in
// per-step buffers reset by BeginStep.
type Monitor struct {
	logger *zap.Logger

	// The context for the browser tab this monitor is attached to.
	sessionCtx     context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu           sync.RWMutex
	pending      map[network.RequestID]*pendingRequest
	stepRequests []schemas.NetworkRequest
	stepConsole  []string
	emit         func(schemas.NetworkRequest)

	isStarted bool
}

// NewMonitor creates a network monitor for one session.
func NewMonitor(sessionCtx context.Context, logger *zap.Logger) *Monitor {
	return &Monitor{
		sessionCtx: sessionCtx,
		logger:     logger.Named("monitor"),
		pending:    make(map[network.RequestID]*pendingRequest),
	}
}

// Start enables the CDP domains and begins listening. Idempotent.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isStarted {
		return nil
	}

	m.listenerCtx, m.cancelListener = context.WithCancel(m.sessionCtx)
	go m.listen()

	if err := chromedp.Run(ctx, network.Enable(), runtime.Enable()); err != nil {
		m.cancelListener()
		return err
	}

	m.isStarted = true
	m.logger.Debug("Network monitor started.")
	return nil
}

// Stop halts event collection. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelListener != nil {
		m.cancelListener()
		m.cancelListener = nil
	}
	m.isStarted = false
}

func (m *Monitor) listen() {
	chromedp.ListenTarget(m.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			m.handleRequestWillBeSent(e)
		case *network.EventResponseReceived:
			m.handleResponseReceived(e)
		case *network.EventLoadingFinished:
			m.handleLoadingFinished(e)
		case *network.EventLoadingFailed:
			m.handleLoadingFailed(e)
		case *runtime.EventConsoleAPICalled:
			m.handleConsoleAPICalled(e)
		}
	})
}

func (m *Monitor) handleRequestWillBeSent(e *network.EventRequestWillBeSent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A redirect settles the previous request under this ID.
	if e.RedirectResponse != nil {
		if prev, ok := m.pending[e.RequestID]; ok {
			prev.status = int(e.RedirectResponse.Status)
			m.settleLocked(e.RequestID, prev, 0, "")
		}
	}

	m.pending[e.RequestID] = &pendingRequest{
		url:    e.Request.URL,
		method: e.Request.Method,
		start:  time.Now(),
	}
}

func (m *Monitor) handleResponseReceived(e *network.EventResponseReceived) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[e.RequestID]; ok {
		p.status = int(e.Response.Status)
	}
}

func (m *Monitor) handleLoadingFinished(e *network.EventLoadingFinished) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[e.RequestID]; ok {
		m.settleLocked(e.RequestID, p, int64(e.EncodedDataLength), "")
	}
}

func (m *Monitor) handleLoadingFailed(e *network.EventLoadingFailed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[e.RequestID]; ok {
		m.settleLocked(e.RequestID, p, 0, e.ErrorText)
	}
}

// settleLocked converts a pending request into a finished record and removes
// it from the in-flight set. Caller holds m.mu.
func (m *Monitor) settleLocked(id network.RequestID, p *pendingRequest, size int64, errText string) {
	req := schemas.NetworkRequest{
		URL:          p.url,
		Method:       p.method,
		Status:       p.status,
		DurationMs:   time.Since(p.start).Milliseconds(),
		ResponseSize: size,
		Error:        errText,
	}
	delete(m.pending, id)
	m.stepRequests = append(m.stepRequests, req)
	if m.emit != nil {
		// The hook runs on the CDP event goroutine; subscribers must not
		// block for long.
		m.emit(req)
	}
}

func (m *Monitor) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var parts []string
	for _, arg := range e.Args {
		if len(arg.Value) > 0 {
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	line := "console." + string(e.Type) + ": " + strings.Join(parts, " ")

	m.mu.Lock()
	m.stepConsole = append(m.stepConsole, line)
	m.mu.Unlock()
}

// BeginStep resets the per-step buffers. In-flight requests carry over so a
// request started late in one step still settles and drains in the next.
func (m *Monitor) BeginStep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepRequests = nil
	m.stepConsole = nil
}

// StepRequests returns the requests settled since the last BeginStep.
func (m *Monitor) StepRequests() []schemas.NetworkRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.NetworkRequest, len(m.stepRequests))
	copy(out, m.stepRequests)
	return out
}

// StepConsole returns console lines captured since the last BeginStep.
func (m *Monitor) StepConsole() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.stepConsole))
	copy(out, m.stepConsole)
	return out
}

// SetEmit installs a hook for settled requests. Pass nil to disable.
func (m *Monitor) SetEmit(fn func(schemas.NetworkRequest)) {
	m.mu.Lock()
	m.emit = fn
	m.mu.Unlock()
}

// Drain polls until no requests are in flight or the ceiling elapses. It
// returns the number still pending (0 when fully drained) and the time spent
// waiting.
func (m *Monitor) Drain(ctx context.Context, ceiling, poll time.Duration) (int, time.Duration) {
	started := time.Now()
	deadline := started.Add(ceiling)

	for {
		m.mu.RLock()
		inflight := len(m.pending)
		m.mu.RUnlock()

		if inflight == 0 {
			return 0, time.Since(started)
		}
		if time.Now().After(deadline) {
			m.logger.Debug("Network drain ceiling reached.", zap.Int("pending", inflight))
			return inflight, time.Since(started)
		}

		select {
		case <-ctx.Done():
			return inflight, time.Since(started)
		case <-time.After(poll):
		}
	}
}
