package telemetry

import (
	"strings"
	"sync"
)

// Report is a single call captured by Recorder.
type Report struct {
	Level  string
	Id     string
	Params []any
}

// Recorder is an API that keeps every report in memory, tests use it to
// assert on what was reported.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

func (r *Recorder) add(level, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Level: level, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r *Recorder) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.add("count", id, []any{count})
}

// Reports returns a copy of everything reported so far.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of a level whose id ends with suffix. ScopedAPI
// prefixes ids with its namespace so suffix matching is usually what you want.
func (r *Recorder) Find(level, suffix string) []Report {
	var out []Report
	for _, report := range r.Reports() {
		if report.Level == level && strings.HasSuffix(report.Id, suffix) {
			out = append(out, report)
		}
	}
	return out
}
