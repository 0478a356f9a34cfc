package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("go.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")
var childProcessGauge, _ = meter.Int64Gauge("child_process_count")

// InstrumentPerfStats periodically records host and runtime gauges until ctx
// is cancelled. Child processes are tracked as well since every browser
// session is backed by a chromium process tree.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
		if err != nil {
			slog.Warn("failed to inspect own process", "err", err)
		}

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second*5, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else if err != nil {
					slog.Warn("failed to read cpu usage", "err", err)
				}

				if self != nil {
					children, err := self.ChildrenWithContext(ctx)
					if err == nil || err == process.ErrorNoChildren {
						childProcessGauge.Record(ctx, int64(len(children)))
					}
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
