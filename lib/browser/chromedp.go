package browser

import (
	"context"
	"ecourts-backend/internal/assert"
	"ecourts-backend/internal/telemetry"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

const (
	report_launcher_launch = "launcher.launch"
	report_page_close      = "page.close"
)

type ChromedpOptions struct {
	Headless bool
	// RemoteURL is the devtools websocket url of an already running browser
	// (ex. a headless-shell container), when set no local process is started.
	RemoteURL string
	UserAgent string
	// LaunchesPerSecond bounds how quickly new browsers are started, 0
	// means unlimited.
	LaunchesPerSecond float64
	// StartTimeout bounds how long starting the browser may take.
	StartTimeout time.Duration
}

// ChromedpLauncher starts one browser per Launch so sessions of different
// principals share no cookies or storage. With a RemoteURL every page is a
// new tab of the remote browser instead.
type ChromedpLauncher struct {
	opts    ChromedpOptions
	limiter *rate.Limiter
	tel     telemetry.API
}

func NewChromedpLauncher(opts ChromedpOptions, tel telemetry.API) *ChromedpLauncher {
	assert.NotNil(tel, "telemetry")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.LaunchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.LaunchesPerSecond), 1)
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = time.Second * 30
	}

	return &ChromedpLauncher{
		opts:    opts,
		limiter: limiter,
		tel:     telemetry.NewScopedAPI("browser", tel),
	}
}

func (l *ChromedpLauncher) allocator() (context.Context, context.CancelFunc) {
	if l.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), l.opts.RemoteURL)
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-logging", true),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
	)
	// chromium refuses to sandbox itself as root, which is the norm inside
	// containers.
	if os.Geteuid() == 0 {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

func (l *ChromedpLauncher) Launch(ctx context.Context) (Page, error) {
	err := l.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := l.allocator()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	p := &chromedpPage{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		tel:         l.tel,
	}

	// the first Run allocates the browser, it must run on the tab context
	// itself since cancelling a derived context there would kill the
	// browser, so the start timeout is enforced from the outside.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx, network.Enable())
	}()

	timer := time.NewTimer(l.opts.StartTimeout)
	defer timer.Stop()
	select {
	case err = <-started:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %s", l.opts.StartTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		p.Close()
		l.tel.ReportWarning(report_launcher_launch, err)
		return nil, err
	}
	return p, nil
}

type chromedpPage struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	tel         telemetry.API

	closeOnce sync.Once
}

// run executes actions on the tab bounded by the caller's ctx.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.tabCtx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, p.tabCtx.Err())
	}

	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return classify(p.tabCtx, ctx, chromedp.Run(runCtx, actions...))
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) CurrentURL(ctx context.Context) (string, error) {
	var location string
	err := p.run(ctx, chromedp.Location(&location))
	return location, err
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	var ok bool
	err := p.run(ctx, chromedp.Evaluate(ClickScript(selector), &ok))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nil
}

func (p *chromedpPage) SelectByText(ctx context.Context, selector, text string) error {
	var result string
	err := p.run(ctx, chromedp.Evaluate(selectByTextScript(selector, text), &result))
	if err != nil {
		return err
	}
	switch result {
	case "ok":
		return nil
	case "nooption":
		return fmt.Errorf("%w: %q in %s", ErrNoSuchOption, text, selector)
	default:
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
}

func (p *chromedpPage) SetValue(ctx context.Context, selector, value string) error {
	var ok bool
	err := p.run(ctx, chromedp.Evaluate(setValueScript(selector, value), &ok))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nil
}

func (p *chromedpPage) Eval(ctx context.Context, script string, out any) error {
	return p.run(ctx, chromedp.Evaluate(script, out))
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.run(ctx, chromedp.Evaluate(countScript(selector), &n))
	return n, err
}

func (p *chromedpPage) OuterHTML(ctx context.Context, selector string) (string, error) {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	var html string
	err = p.run(ctx, chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	return html, err
}

func (p *chromedpPage) Screenshot(ctx context.Context, selector, path string) error {
	var buf []byte
	err := p.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0600)
}

func (p *chromedpPage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	out := make([]Cookie, len(cookies))
	for i, c := range cookies {
		out[i] = Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path}
	}
	return out, nil
}

func (p *chromedpPage) Waiter(timeout time.Duration) Waiter {
	return chromedpWaiter{page: p, timeout: timeout}
}

func (p *chromedpPage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		// graceful close of the target first, a dead browser makes this fail
		// which is fine since the allocator cancel below kills the process.
		if p.tabCtx.Err() == nil {
			err = chromedp.Cancel(p.tabCtx)
			if err != nil {
				p.tel.ReportDebug(report_page_close, err)
				err = nil
			}
		}
		p.tabCancel()
		p.allocCancel()
	})
	return err
}
