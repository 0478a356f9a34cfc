package main

import (
	"context"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/lib/telemetry"
	"log/slog"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	tel, err := telemetry.SetupFromEnv(ctx, "casestatus-server")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	// SetupFromEnv reinstalls the logger from telemetry.json5.
	if verbose {
		telemetry.InitSlog(true)
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	go func() {
		<-ctx.Done()
		err := tel.Shutdown(context.Background())
		if err != nil {
			slog.Error("shutdown telemetry", "err", err)
		}
	}()
	telemetry.InstrumentPerfStats(ctx)
}
