// internal/browser/storage.go
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// CaptureStorageState snapshots the session's cookies and the current
// origin's localStorage. Only the loaded origin's storage is readable from
// the page, so the snapshot holds at most one origin entry.
func (s *Session) CaptureStorageState(ctx context.Context) (*schemas.AuthState, error) {
	state := &schemas.AuthState{
		Cookies: []schemas.Cookie{},
		Origins: []schemas.OriginState{},
	}

	var origin struct {
		Origin string                     `json:"origin"`
		Items  []schemas.LocalStorageItem `json:"items"`
	}
	localStorageScript := `(() => {
		const items = [];
		try {
			for (let i = 0; i < localStorage.length; i++) {
				const k = localStorage.key(i);
				if (k) items.push({ name: k, value: localStorage.getItem(k) });
			}
		} catch (e) { /* storage disabled */ }
		return { origin: location.origin, items: items };
	})()`

	err := s.run(ctx, 15*time.Second,
		chromedp.ActionFunc(func(c context.Context) error {
			cookies, err := storage.GetCookies().Do(c)
			if err != nil {
				return err
			}
			for _, ck := range cookies {
				state.Cookies = append(state.Cookies, schemas.Cookie{
					Name:     ck.Name,
					Value:    ck.Value,
					Domain:   ck.Domain,
					Path:     ck.Path,
					Expires:  ck.Expires,
					HTTPOnly: ck.HTTPOnly,
					Secure:   ck.Secure,
					SameSite: string(ck.SameSite),
				})
			}
			return nil
		}),
		chromedp.Evaluate(localStorageScript, &origin),
	)
	if err != nil {
		return nil, err
	}

	if origin.Origin != "" && origin.Origin != "null" && len(origin.Items) > 0 {
		state.Origins = append(state.Origins, schemas.OriginState{
			Origin:       origin.Origin,
			LocalStorage: origin.Items,
		})
	}
	return state, nil
}

// AddCookies installs cookies into the browser's cookie jar. They apply to
// all subsequent requests regardless of the currently loaded page.
func (s *Session) AddCookies(ctx context.Context, cookies []schemas.Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	return s.run(ctx, 10*time.Second, chromedp.ActionFunc(func(c context.Context) error {
		return storage.SetCookies(params).Do(c)
	}))
}
