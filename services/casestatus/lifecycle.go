package casestatus

import (
	"context"
	"ecourts-backend/internal/assert"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/scrapers/ecourts"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type LifecycleOptions struct {
	// BaseURL is the portal landing page every session starts from.
	BaseURL string
	// WaitTimeout bounds every wait on the portal.
	WaitTimeout time.Duration
	// CreateAttempts is how many times starting a session is tried.
	CreateAttempts int
	// CreateBackoff is slept between attempts.
	CreateBackoff time.Duration
}

// Manager creates, probes, and closes the browser sessions held by a
// Registry. Every method taking an *entry expects it to be locked.
type Manager struct {
	launcher browser.Launcher
	registry *Registry
	opts     LifecycleOptions
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewManager(
	launcher browser.Launcher,
	registry *Registry,
	opts LifecycleOptions,
	time chrono.TimeAPI,
	tel telemetry.API,
) *Manager {
	assert.NotNil(launcher, "launcher")
	assert.NotNil(registry, "registry")
	assert.NotNil(time, "time")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.BaseURL, "base url")
	assert.Positive(opts.WaitTimeout, "wait timeout")
	assert.Positive(opts.CreateAttempts, "create attempts")

	return &Manager{
		launcher: launcher,
		registry: registry,
		opts:     opts,
		time:     time,
		tel:      tel,
	}
}

// Ensure makes sure principal has a live session, reusing the current one
// when it still answers and replacing it otherwise.
func (m *Manager) Ensure(ctx context.Context, principal string) error {
	e := m.registry.acquire(principal)
	defer e.mu.Unlock()

	_, err := m.ensure(ctx, e)
	e.publish(m.time.Now())
	return err
}

// ForceReset closes principal's session, whatever state it is in.
func (m *Manager) ForceReset(principal string) {
	e := m.registry.acquire(principal)
	defer e.mu.Unlock()

	m.discard(e, "reset")
	e.lost = false
	e.publish(m.time.Now())
}

// Close closes principal's session and drops its entry. Closing a
// principal without a session does nothing.
func (m *Manager) Close(principal string) {
	e, ok := m.registry.lookup(principal)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	m.discard(e, "close")
	m.registry.remove(e)
}

// CloseAll closes every session, used on shutdown.
func (m *Manager) CloseAll() {
	for _, e := range m.registry.all() {
		e.mu.Lock()
		if !e.removed {
			m.discard(e, "shutdown")
			m.registry.remove(e)
		}
		e.mu.Unlock()
	}
}

// alive probes the entry's session. A session the browser reports dead is
// closed and marked lost, any other probe failure is returned and the
// session kept.
func (m *Manager) alive(ctx context.Context, e *entry) (bool, error) {
	if e.session == nil {
		return false, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.opts.WaitTimeout)
	defer cancel()
	_, err := e.session.page.CurrentURL(probeCtx)
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	m.tel.ReportWarning(report_lifecycle_probe, e.principal, err)
	if !browser.IsDead(err) {
		return false, err
	}

	m.discard(e, "probe failed")
	e.lost = true
	return false, nil
}

func (m *Manager) ensure(ctx context.Context, e *entry) (*session, error) {
	live, err := m.alive(ctx, e)
	if err != nil {
		return nil, newError(ErrTimeout, StageLanding, err, "the browser session did not answer in time")
	}
	if live {
		return e.session, nil
	}

	s, err := m.create(ctx, e.principal)
	if err != nil {
		return nil, err
	}
	e.session = s
	e.lost = false
	return s, nil
}

// discard closes the entry's session if it has one. The page is closed
// exactly once, the session is forgotten even if closing fails.
func (m *Manager) discard(e *entry, reason string) {
	if e.session == nil {
		return
	}
	page := e.session.page
	e.session = nil

	err := page.Close()
	if err != nil {
		m.tel.ReportWarning(report_lifecycle_close, e.principal, err)
	}
	m.tel.ReportDebug("closed session", "principal", e.principal, "reason", reason)

	attrs := metric.WithAttributes(attribute.String("reason", reason))
	sessionsClosed.Add(context.Background(), 1, attrs)
	sessionsActive.Add(context.Background(), -1)
}

func (m *Manager) create(ctx context.Context, principal string) (*session, error) {
	ctx, span := tracer.Start(ctx, "lifecycle:create")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= m.opts.CreateAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				span.SetStatus(codes.Error, "cancelled")
				return nil, newError(ErrDriverUnavailable, StageLanding, ctx.Err(), "gave up starting a browser session")
			case <-time.After(m.opts.CreateBackoff):
			}
		}

		s, err := m.launch(ctx)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			span.SetStatus(codes.Ok, "")
			sessionsCreated.Add(ctx, 1)
			sessionsActive.Add(ctx, 1)
			m.tel.ReportDebug("created session", "principal", principal, "attempt", attempt)
			return s, nil
		}

		lastErr = err
		m.tel.ReportWarning(report_lifecycle_create, principal, fmt.Errorf("attempt %d: %w", attempt, err))
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "failed to start browser session")
	m.tel.ReportBroken(report_lifecycle_create, principal, lastErr)
	return nil, newError(
		ErrDriverUnavailable, StageLanding, lastErr,
		"could not start a browser session after %d attempts", m.opts.CreateAttempts,
	)
}

// launch starts a page and walks it from the landing page into the
// case-status form. A page that fails on the way is closed.
func (m *Manager) launch(ctx context.Context) (*session, error) {
	page, err := m.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	waiter := page.Waiter(m.opts.WaitTimeout)

	err = m.bootstrap(ctx, page, waiter)
	if err != nil {
		closeErr := page.Close()
		return nil, errors.Join(fmt.Errorf("bootstrap: %w", err), closeErr)
	}

	return &session{
		page:    page,
		waiter:  waiter,
		created: m.time.Now(),
		stage:   StageLanding,
	}, nil
}

func (m *Manager) bootstrap(ctx context.Context, page browser.Page, waiter browser.Waiter) error {
	err := page.Navigate(ctx, m.opts.BaseURL)
	if err != nil {
		return err
	}
	err = waiter.PresenceOf(ctx, ecourts.SelCaseStatusLink)
	if err != nil {
		return err
	}
	return page.Click(ctx, ecourts.SelCaseStatusLink)
}
