package browsertest

import (
	"context"
	"ecourts-backend/lib/browser"
	"errors"
	"sync"
	"time"
)

var ErrLaunchFailed = errors.New("browsertest: launch failed")

// Launcher hands out fake pages serving Portal.
type Launcher struct {
	Portal Portal
	// LaunchErrors is how many Launch calls fail before one succeeds.
	LaunchErrors int
	// BrokenPages is how many launched pages fail to navigate anywhere,
	// counted after LaunchErrors.
	BrokenPages int
	// OpDelay is slept inside every page call, widening the window in
	// which overlapping calls would be caught.
	OpDelay time.Duration

	mu       sync.Mutex
	launches int
	pages    []*Page
}

func (l *Launcher) Launch(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	if l.LaunchErrors > 0 {
		l.LaunchErrors--
		return nil, ErrLaunchFailed
	}

	broken := false
	if l.BrokenPages > 0 {
		l.BrokenPages--
		broken = true
	}
	page := newPage(len(l.pages)+1, l.Portal, l.OpDelay, broken)
	l.pages = append(l.pages, page)
	return page, nil
}

// Launches counts every Launch call, failed ones included.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Pages returns every page successfully launched, oldest first.
func (l *Launcher) Pages() []*Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Page, len(l.pages))
	copy(out, l.pages)
	return out
}

// Last returns the most recently launched page.
func (l *Launcher) Last() *Page {
	pages := l.Pages()
	if len(pages) == 0 {
		return nil
	}
	return pages[len(pages)-1]
}
