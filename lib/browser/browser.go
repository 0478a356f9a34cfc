// Package browser is the port through which the rest of the codebase drives
// a live browser tab. It is implemented once against chromedp (Launcher,
// page) and once as a deterministic fake in browsertest.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionInvalid means the underlying tab or browser is gone
	// (window closed, target crashed, devtools connection dropped).
	ErrSessionInvalid = errors.New("browser: session invalid")
	// ErrTimeout means a bounded wait ran past its ceiling.
	ErrTimeout = errors.New("browser: wait timed out")
	// ErrNoSuchOption means a <select> has no option with the requested
	// visible text.
	ErrNoSuchOption = errors.New("browser: no such option")
	// ErrNotFound means no element matched a selector.
	ErrNotFound = errors.New("browser: element not found")
)

// IsDead reports whether err proves the session can no longer be used.
func IsDead(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}

type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Page is one live navigation context. Implementations are not safe for
// concurrent use, callers serialize access.
//
// Selectors are CSS selectors (document.querySelector semantics).
type Page interface {
	Navigate(ctx context.Context, url string) error
	// CurrentURL is the liveness probe, it fails with ErrSessionInvalid when
	// the session is gone.
	CurrentURL(ctx context.Context) (string, error)

	Click(ctx context.Context, selector string) error
	// SelectByText chooses the option of a <select> whose trimmed visible
	// text equals text exactly and fires the change event.
	SelectByText(ctx context.Context, selector, text string) error
	// SetValue assigns the value property of an input directly and fires
	// input/change events, no keystrokes are simulated.
	SetValue(ctx context.Context, selector, value string) error
	// Eval runs a short script in the page, out may be nil.
	Eval(ctx context.Context, script string, out any) error

	// Count is the number of elements matching selector.
	Count(ctx context.Context, selector string) (int, error)
	// OuterHTML of the first element matching selector.
	OuterHTML(ctx context.Context, selector string) (string, error)
	// Screenshot writes a png capture of the first element matching selector
	// into path.
	Screenshot(ctx context.Context, selector, path string) error
	Cookies(ctx context.Context) ([]Cookie, error)

	// Waiter returns a bounded-wait helper whose every wait gives up after
	// timeout.
	Waiter(timeout time.Duration) Waiter

	// Close releases the tab and the browser process behind it, calling it
	// more than once is a no-op.
	Close() error
}

// Waiter polls a live page until some condition holds, failing with
// ErrTimeout once its ceiling is exceeded.
type Waiter interface {
	PresenceOf(ctx context.Context, selector string) error
	ClickableOf(ctx context.Context, selector string) error
	Until(ctx context.Context, cond Condition) error
}

// Condition is polled by Waiter.Until, returning an error aborts the wait.
type Condition func(ctx context.Context, page Page) (bool, error)

// OptionsLoaded is satisfied once the <select> matched by selector has more
// options than just its placeholder.
func OptionsLoaded(selector string) Condition {
	return func(ctx context.Context, page Page) (bool, error) {
		n, err := page.Count(ctx, selector+" option")
		if err != nil {
			return false, err
		}
		return n > 1, nil
	}
}

// Launcher starts new pages.
type Launcher interface {
	Launch(ctx context.Context) (Page, error)
}
