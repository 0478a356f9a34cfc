package chrono

import (
	"context"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/timezone"
	"fmt"

	"github.com/robfig/cron/v3"
)

// CronAPI runs callbacks on a cron schedule.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is CronAPI over github.com/robfig/cron/v3, schedules are
// interpreted in Asia/Kolkata.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron starts a scheduler that runs until Stop.
func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	cronner := cron.New(
		cron.WithLogger(logger),
		cron.WithLocation(timezone.Location),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	cronner.Start()
	return StandardCron{cron: cronner}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// Stop stops scheduling and returns a context done once running jobs
// have returned.
func (s StandardCron) Stop() context.Context {
	return s.cron.Stop()
}

type cronLogger struct {
	tel telemetry.API
}

func (l cronLogger) params(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out = append(out, fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return out
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, l.params(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.tel.ReportBroken("job", append([]any{fmt.Errorf("%s: %w", msg, err)}, l.params(keysAndValues)...)...)
}
