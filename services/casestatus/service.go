// Package casestatus drives the case-status portal on behalf of many
// principals at once. Every principal owns at most one browser session,
// walked through the portal's form one stage at a time.
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
	"slices"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

type Options struct {
	Lifecycle LifecycleOptions
	// SettleDelay is slept after changing a dropdown and after submitting,
	// the portal reloads parts of the form asynchronously.
	SettleDelay time.Duration
	// LinkDelay is slept after activating each case link and the order
	// pdf control.
	LinkDelay time.Duration
	// IdleTimeout is how long an untouched session is kept, 0 keeps
	// sessions until they are closed explicitly.
	IdleTimeout time.Duration
	// ReapInterval is how often idle sessions are looked for.
	ReapInterval time.Duration
	// TempDir is where captcha captures are staged, empty uses the
	// system's temporary directory.
	TempDir string
	Pdf     PdfOptions
}

func DefaultOptions() Options {
	return Options{
		Lifecycle: LifecycleOptions{
			BaseURL:        ecourts.DefaultBaseURL,
			WaitTimeout:    20 * time.Second,
			CreateAttempts: 2,
			CreateBackoff:  2 * time.Second,
		},
		SettleDelay:  2 * time.Second,
		LinkDelay:    time.Second,
		IdleTimeout:  15 * time.Minute,
		ReapInterval: time.Minute,
		Pdf:          DefaultPdfOptions(),
	}
}

type Service struct {
	registry *Registry
	manager  *Manager
	pdf      *pdfFetcher
	opts     Options
	time     chrono.TimeAPI
	tel      telemetry.API
}

func NewService(launcher browser.Launcher, opts Options, time chrono.TimeAPI, tel telemetry.API) (*Service, error) {
	assert.NotNil(tel, "telemetry")

	scoped := telemetry.NewScopedAPI("casestatus", tel)
	registry := NewRegistry()
	pdf, err := newPdfFetcher(opts.Pdf, scoped)
	if err != nil {
		return nil, err
	}

	return &Service{
		registry: registry,
		manager:  NewManager(launcher, registry, opts.Lifecycle, time, scoped),
		pdf:      pdf,
		opts:     opts,
		time:     time,
		tel:      scoped,
	}, nil
}

func (s *Service) Manager() *Manager {
	return s.manager
}

// Sessions lists every principal the service knows about.
func (s *Service) Sessions() []SessionInfo {
	return s.registry.Snapshot()
}

// CloseSession closes principal's session, it is a no-op when there is
// none.
func (s *Service) CloseSession(principal string) {
	s.manager.Close(principal)
	s.tel.ReportCount(report_registry_size, int64(s.registry.Len()))
}

// Shutdown closes every session.
func (s *Service) Shutdown() {
	s.manager.CloseAll()
}

type stageFunc func(ctx context.Context, sess *session) error

// onSession runs fn against principal's session while holding the
// principal's lock. When fresh is set the session is replaced by a new one
// first, otherwise fn only runs if a live session exists already.
func (s *Service) onSession(
	ctx context.Context,
	principal string,
	op string,
	stage Stage,
	fresh bool,
	fn stageFunc,
) (err error) {
	ctx, span := tracer.Start(ctx, "casestatus:"+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("principal", principal),
		attribute.String("stage", stage.String()),
	)

	start := time.Now()
	defer func() {
		outcome := "ok"
		if kerr, ok := AsError(err); ok {
			outcome = string(kerr.Kind)
		} else if err != nil {
			outcome = "error"
		}
		stageDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("stage", stage.String()),
			attribute.String("outcome", outcome),
		))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			return
		}
		span.SetStatus(codes.Ok, "")
	}()

	e := s.registry.acquire(principal)
	defer e.mu.Unlock()
	defer func() {
		e.publish(s.time.Now())
	}()

	err = s.enter(ctx, e, stage, fresh)
	if err != nil {
		return err
	}

	err = fn(ctx, e.session)
	if browser.IsDead(err) {
		s.tel.ReportWarning(report_lifecycle_probe, principal, err)
		s.manager.discard(e, "died")
		e.lost = true
		return newError(ErrSessionReset, stage, err, "the browser session was lost, start over by listing states")
	}
	return err
}

func (s *Service) enter(ctx context.Context, e *entry, stage Stage, fresh bool) error {
	if fresh {
		s.manager.discard(e, "restart")
		e.lost = false
		_, err := s.manager.ensure(ctx, e)
		return err
	}

	hadSession := e.session != nil || e.lost
	live, err := s.manager.alive(ctx, e)
	if err != nil {
		return newError(ErrTimeout, stage, err, "the browser session did not answer in time")
	}
	if live {
		return nil
	}
	if hadSession {
		return newError(ErrSessionReset, stage, nil, "the browser session was lost, start over by listing states")
	}
	return newError(ErrBadRequest, stage, nil, "no case status flow in progress, start by listing states")
}

// classify turns a failure of the portal into an *Error. Errors proving
// the session is dead are passed through untouched so onSession can
// recognize them.
func (s *Service) classify(stage Stage, report string, err error, doing string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if browser.IsDead(err) || errors.Is(err, context.Canceled) {
		return err
	}

	switch {
	case errors.Is(err, browser.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		s.tel.ReportWarning(report, err)
		return newError(ErrTimeout, stage, err, "timed out %s", doing)
	case errors.Is(err, browser.ErrNoSuchOption):
		return newError(ErrInvalidSelection, stage, err, "the portal no longer offers that option")
	}
	s.tel.ReportBroken(report, err)
	return newError(ErrExtractionFailed, stage, err, "unexpected portal response %s", doing)
}

// sleep waits d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func requireValue(stage Stage, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return newError(ErrBadRequest, stage, nil, "%s is required", field)
	}
	return nil
}

// requireSelection fails with ErrInvalidSelection when a dropdown choice
// is left empty.
func requireSelection(stage Stage, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return newError(ErrInvalidSelection, stage, nil, "a %s must be selected", field)
	}
	return nil
}

// checkSelection fails with ErrInvalidSelection unless value is exactly
// one of the offered options.
func checkSelection(stage Stage, field, value string, offered []string) error {
	if slices.Contains(offered, value) {
		return nil
	}
	msg := fmt.Sprintf("%s %q is not one of the %d offered options", field, value, len(offered))
	hint, ok := closestOption(value, offered)
	if ok {
		msg += fmt.Sprintf(", did you mean %q?", hint)
	}
	return &Error{Kind: ErrInvalidSelection, Stage: stage, Message: msg}
}

const suggestionThreshold = 0.85

func closestOption(value string, offered []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return "", false
	}

	var mostSimilarity float64
	var mostSimilar string
	for _, opt := range offered {
		candidate := strings.ToLower(opt)
		if candidate == needle {
			return opt, true
		}
		similarity := matchr.JaroWinkler(needle, candidate, false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = opt
		}
	}
	return mostSimilar, mostSimilarity >= suggestionThreshold
}
