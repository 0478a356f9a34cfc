package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const pollInterval = time.Millisecond * 250

type chromedpWaiter struct {
	page    *chromedpPage
	timeout time.Duration
}

func (w chromedpWaiter) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.timeout)
}

func (w chromedpWaiter) PresenceOf(ctx context.Context, selector string) error {
	ctx, cancel := w.bounded(ctx)
	defer cancel()
	err := w.page.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("presence of %s: %w", selector, err)
	}
	return nil
}

func (w chromedpWaiter) ClickableOf(ctx context.Context, selector string) error {
	err := w.Until(ctx, func(ctx context.Context, page Page) (bool, error) {
		var clickable bool
		err := page.Eval(ctx, clickableScript(selector), &clickable)
		return clickable, err
	})
	if err != nil {
		return fmt.Errorf("clickable of %s: %w", selector, err)
	}
	return nil
}

func (w chromedpWaiter) Until(ctx context.Context, cond Condition) error {
	ctx, cancel := w.bounded(ctx)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		ok, err := cond(ctx, w.page)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return classify(w.page.tabCtx, ctx, ctx.Err())
		case <-ticker.C:
		}
	}
}
