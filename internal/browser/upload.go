// internal/browser/upload.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// IsFileInput reports whether the selector resolves to an <input type=file>,
// which supports direct file assignment without a native chooser dialog.
func (s *Session) IsFileInput(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) throw new Error('element not found');
		return el.tagName === 'INPUT' && el.type === 'file';
	})()`, selector)

	var isInput bool
	if err := s.evaluateInto(ctx, script, &isInput, timeout); err != nil {
		return false, err
	}
	return isInput, nil
}

// SetInputFiles assigns a file directly to an <input type=file>.
func (s *Session) SetInputFiles(ctx context.Context, selector, path string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.SetUploadFiles(selector, []string{path}, chromedp.ByQuery),
	)
}

// UploadViaChooser clicks an element that opens a native file chooser and
// intercepts the dialog, assigning the file to the input that requested it.
// The interception must be armed before the click, since the chooser event
// fires synchronously with it.
func (s *Session) UploadViaChooser(ctx context.Context, selector, path string, timeout time.Duration) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}

	chooserOpened := make(chan *page.EventFileChooserOpened, 1)
	listenCtx, cancelListen := context.WithCancel(s.ctx)
	defer cancelListen()
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventFileChooserOpened); ok {
			select {
			case chooserOpened <- e:
			default:
			}
		}
	})

	err := chromedp.Run(runCtx,
		page.SetInterceptFileChooserDialog(true),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}
	// Always disarm interception, even when the chooser never opens.
	defer func() {
		cleanupCtx, cancelCleanup := context.WithTimeout(detach(s.ctx), 5*time.Second)
		defer cancelCleanup()
		_ = chromedp.Run(cleanupCtx, page.SetInterceptFileChooserDialog(false))
	}()

	select {
	case ev := <-chooserOpened:
		return chromedp.Run(runCtx, chromedp.ActionFunc(func(c context.Context) error {
			return dom.SetFileInputFiles([]string{path}).
				WithBackendNodeID(ev.BackendNodeID).
				Do(c)
		}))
	case <-runCtx.Done():
		return fmt.Errorf("file chooser did not open after clicking %q: %w", selector, runCtx.Err())
	}
}
