package casestatus

import (
	"context"
	"time"
)

// ReapIdle closes the sessions of principals that have not been served
// since before now minus the idle timeout and returns how many it closed.
// An operation in flight is waited for, a session it touched is kept.
func (s *Service) ReapIdle(now time.Time) int {
	if s.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.opts.IdleTimeout)

	reaped := 0
	for _, e := range s.registry.all() {
		if e.idleSince().After(cutoff) {
			continue
		}

		e.mu.Lock()
		if !e.removed && !e.idleSince().After(cutoff) {
			s.manager.discard(e, "idle")
			s.registry.remove(e)
			reaped++
		}
		e.mu.Unlock()
	}

	if reaped > 0 {
		s.tel.ReportDebug("reaped idle sessions", "count", reaped)
	}
	s.tel.ReportCount(report_registry_size, int64(s.registry.Len()))
	return reaped
}

// RunReaper sweeps for idle sessions every reap interval until ctx ends.
func (s *Service) RunReaper(ctx context.Context) {
	if s.opts.IdleTimeout <= 0 || s.opts.ReapInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.opts.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle(s.time.Now())
		}
	}
}
