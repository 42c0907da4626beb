// internal/browser/session.go
package browser

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mjbeckett/stepflow/internal/engine"
)

// Session is one live browser tab backed by a dedicated Chrome process. All
// operations run against the tab context combined with the caller's context
// so session death and operation deadlines both interrupt a call.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	logger      *zap.Logger

	monitor  *Monitor
	recorder *Recorder

	mu       sync.Mutex
	isClosed bool
}

var _ engine.Session = (*Session)(nil)

// run executes chromedp actions under the session lifetime, the caller's
// context, and an optional per-operation timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()

	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the document body to be ready.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL reports the page's current location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Evaluate runs a script in the page, discarding its result.
func (s *Session) Evaluate(ctx context.Context, script string) error {
	return s.run(ctx, 10*time.Second, chromedp.Evaluate(script, nil))
}

// evaluateInto runs a script and unmarshals its result into res.
func (s *Session) evaluateInto(ctx context.Context, script string, res interface{}, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Evaluate(script, res))
}

// Screenshot captures the full page as PNG at path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, 15*time.Second, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

// Monitor returns the session's network monitor.
func (s *Session) Monitor() engine.NetworkMonitor {
	return s.monitor
}

// VideoPath returns the directory holding recorded frames, or "" when the
// session is not recording.
func (s *Session) VideoPath() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.Dir()
}

// Close terminates the session and its browser process. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	if s.recorder != nil {
		if err := s.recorder.Stop(ctx); err != nil {
			s.logger.Warn("Error stopping screencast recorder.", zap.Error(err))
		}
	}
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	if s.monitor != nil {
		s.monitor.Stop()
	}
	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}
