// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// combineContext creates a new context derived from ctx1 (the session context,
// which carries the CDP target) that is canceled when either ctx1 or ctx2
// (the operational context) is canceled. Deriving from ctx1 preserves the
// connection values chromedp needs.
func combineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext inherits values (the CDP target) from its parent but
// ignores the parent's deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// detach returns a context carrying ctx's values that is not canceled when
// ctx is. Used for cleanup work that must outlive the operation that
// triggered it.
func detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
