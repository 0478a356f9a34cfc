package main

import (
	"context"
	"ecourts-backend/internal/chrono"
	"ecourts-backend/internal/telemetry"
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/configutil"
	"ecourts-backend/lib/serviceutil"
	"ecourts-backend/services/auditlog"
	auditdb "ecourts-backend/services/auditlog/db"
	authdb "ecourts-backend/services/auth/db"
	"ecourts-backend/services/auth/verifier"
	"ecourts-backend/services/casestatus"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the configuration file.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfigWithDefaults(*configPath, defaultConfig())
	if os.IsNotExist(err) {
		slog.Warn("config not found, using defaults", "path", *configPath)
		cfg, err = defaultConfig(), nil
	}
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	database, err := cfg.Database.OpenDB(authdb.Schema + "\n" + auditdb.Schema)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}
	defer database.Close()

	clock := chrono.NewStandardTime()
	tel := telemetry.SlogAPI{}

	launcher := browser.NewChromedpLauncher(cfg.launcherOptions(), tel)
	service, err := casestatus.NewService(launcher, cfg.serviceOptions(*verbose), clock, tel)
	if err != nil {
		serviceutil.Fatal("init casestatus", err)
	}
	defer service.Shutdown()

	audit := auditlog.NewStore(database)

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := casestatus.NewHandler(service, casestatus.HandlerOptions{
		Verifier: verifier.NewVerifier(database),
		Audit:    audit,
		Metrics:  metrics,
		Time:     clock,
		Tel:      tel,
	})

	cron := chrono.NewStandardCron(tel)
	defer func() {
		<-cron.Stop().Done()
	}()
	keep := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	err = audit.ScheduleRetention(ctx, cron, clock, keep)
	if err != nil {
		serviceutil.Fatal("schedule audit retention", err)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serviceutil.StartHttpServer(ctx, cfg.ListenPort, handler)
	})
	group.Go(func() error {
		service.RunReaper(ctx)
		return nil
	})

	err = group.Wait()
	if err != nil && err != context.Canceled {
		slog.Error("server stopped", "err", err)
	}
	slog.Info("closing sessions", "count", len(service.Sessions()))
}
