// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Click waits for the element to be visible, then clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// DoubleClick waits for the element, then double-clicks it.
func (s *Session) DoubleClick(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.DoubleClick(selector, chromedp.ByQuery),
	)
}

// Hover moves the mouse pointer to the element's center. Dispatching a real
// mouse-move through CDP triggers CSS :hover and JS mouseover handlers,
// which a synthetic event would not.
func (s *Session) Hover(ctx context.Context, selector string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		el.scrollIntoView({ block: 'center', inline: 'center' });
		const r = el.getBoundingClientRect();
		return { x: r.left + r.width / 2, y: r.top + r.height / 2 };
	})()`, selector)

	var center *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, &center),
		chromedp.ActionFunc(func(c context.Context) error {
			if center == nil {
				return fmt.Errorf("element %q not found for hover", selector)
			}
			return input.DispatchMouseEvent(input.MouseMoved, center.X, center.Y).Do(c)
		}),
	)
}

// Focus gives the element keyboard focus.
func (s *Session) Focus(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
	)
}

// setChecked drives a checkbox through the DOM and fires the input and
// change events frameworks listen for; setting .checked alone fires neither.
func (s *Session) setChecked(ctx context.Context, selector string, checked bool, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) throw new Error('element not found');
		if (el.checked !== %t) {
			el.checked = %t;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
		}
	})()`, selector, checked, checked)

	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, nil),
	)
}

// Check sets a checkbox to the checked state.
func (s *Session) Check(ctx context.Context, selector string, timeout time.Duration) error {
	return s.setChecked(ctx, selector, true, timeout)
}

// Uncheck clears a checkbox.
func (s *Session) Uncheck(ctx context.Context, selector string, timeout time.Duration) error {
	return s.setChecked(ctx, selector, false, timeout)
}

// ScrollIntoView scrolls the element into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
	)
}

// WaitVisible blocks until the element is visible or the timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Fill replaces the field's value in one shot.
func (s *Session) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
}

// Type clears the field and then sends the value as individual key events,
// so per-keystroke listeners fire.
func (s *Session) Type(ctx context.Context, selector, value string, timeout time.Duration) error {
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// SelectOption picks a <select> option by value, falling back to visible
// label, and fires input/change.
func (s *Session) SelectOption(ctx context.Context, selector, value string, timeout time.Duration) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) throw new Error('element not found');
		const want = %q;
		let matched = false;
		for (const opt of el.options) {
			if (opt.value === want || opt.label === want || opt.text === want) {
				el.value = opt.value;
				matched = true;
				break;
			}
		}
		if (!matched) throw new Error('no option matching ' + JSON.stringify(want));
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	})()`, selector, value)

	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, nil),
	)
}

// namedKeys maps step-level key names to the control runes chromedp's
// keyboard layer understands. Single printable characters pass through.
var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
	"PageUp":     kb.PageUp,
	"PageDown":   kb.PageDown,
}

// Press sends a single named key or character to the element.
func (s *Session) Press(ctx context.Context, selector, key string, timeout time.Duration) error {
	keys, ok := namedKeys[key]
	if !ok {
		keys = key
	}
	return s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, keys, chromedp.ByQuery),
	)
}

// InnerText returns the element's rendered text content.
func (s *Session) InnerText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return text, nil
}

// WaitTextContains polls the element's text until it contains substr or the
// timeout elapses.
func (s *Session) WaitTextContains(ctx context.Context, selector, substr string, timeout time.Duration) error {
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var lastText string
	for {
		var text string
		err := chromedp.Run(runCtx,
			chromedp.Text(selector, &text, chromedp.ByQuery),
		)
		if err == nil {
			if strings.Contains(text, substr) {
				return nil
			}
			lastText = text
		}

		select {
		case <-runCtx.Done():
			return fmt.Errorf("text %q not found in %q within %s (last text: %q)",
				substr, selector, timeout, truncateText(lastText, 120))
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
