package auditlog

import (
	"context"
	"ecourts-backend/internal/chrono"
	"log/slog"
	"time"
)

const retentionSchedule = "@hourly"

// ScheduleRetention prunes entries older than keep every hour. A keep of 0
// keeps everything and schedules nothing.
func (s Store) ScheduleRetention(ctx context.Context, cron chrono.CronAPI, clock chrono.TimeAPI, keep time.Duration) error {
	if keep <= 0 {
		return nil
	}
	return cron.Cron(retentionSchedule, func() {
		s.prune(ctx, clock.Now().Add(-keep))
	})
}

func (s Store) prune(ctx context.Context, cutoff time.Time) {
	if ctx.Err() != nil {
		return
	}
	deleted, err := s.Prune(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "prune audit logs", "err", err)
		return
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "pruned audit logs", "deleted", deleted, "cutoff", cutoff)
	}
}
