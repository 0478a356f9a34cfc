package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// messages the devtools protocol produces once a target or its browser
// has gone away.
var deadMessages = []string{
	"target closed",
	"no target with given id",
	"session with given id not found",
	"inspected target navigated or closed",
	"websocket: close",
	"broken pipe",
	"connection reset",
	"use of closed network connection",
}

// classify maps a chromedp error into this package's error taxonomy.
// tabCtx is the context of the tab itself, callCtx the context the caller
// gave the operation.
func classify(tabCtx, callCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if tabCtx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	if errors.Is(err, chromedp.ErrInvalidContext) ||
		errors.Is(err, chromedp.ErrChannelClosed) ||
		errors.Is(err, chromedp.ErrInvalidTarget) {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}

	msg := strings.ToLower(err.Error())
	for _, dead := range deadMessages {
		if strings.Contains(msg, dead) {
			return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, chromedp.ErrPollingTimeout) {
		if callCtx.Err() == context.Canceled {
			return callCtx.Err()
		}
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) && callCtx.Err() != nil {
		return callCtx.Err()
	}
	return err
}
