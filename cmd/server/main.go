package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"

	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/serviceutil"
	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/db"
	"automarket-backend/internal/historyapi"
	"automarket-backend/internal/scrapers/registry"
	"automarket-backend/internal/service"

	"connectrpc.com/connect"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the configuration file.")
	retryNow := flag.Bool("retry", false, "Retry every failed history immediately on run.")
	flag.Parse()

	telemetry.InitSlog(*verbose)
	ctx := serviceutil.SignalContext()

	config, err := loadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	t, err := telemetry.Setup(ctx, "automarket-server", config.Telemetry)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	slog.Info("opening database...")
	dbtx, err := db.Open(ctx, config.Database)
	if err != nil {
		serviceutil.Fatal("open database", err)
	}
	defer dbtx.Close()

	tel := telemetry.SlogAPI{}
	qry := db.New(dbtx)
	store := historyapi.NewDBStore(qry)

	impl := historyapi.NewImplementation(
		store,
		historyapi.RegistryFactory(config.Registry, registry.WithTelemetryAPI(tel)),
		historyapi.WithCustomTelemetryAPI(tel),
	)
	svc := service.NewHistoryService(
		service.NewCoreAPIs(qry, db.NewMakeTx(dbtx), service.WithCustomTelemetryAPI(tel)),
		impl,
		store,
	)

	mux := http.NewServeMux()
	mux.Handle(service.NewHistoryServiceHandler(
		svc,
		config.AccessToken,
		connect.WithInterceptors(serviceutil.NewConnectOtelInterceptor()),
	))

	if config.RetryFailedCron != "" {
		cron := chrono.NewStandardCron(tel)
		defer cron.Stop()

		err = cron.Cron(config.RetryFailedCron, func() {
			err := svc.RetryFailed(ctx)
			if err != nil {
				slog.Warn("retry failed histories", "err", err.Error())
			}
		})
		if err != nil {
			serviceutil.Fatal("schedule failed history retries", err)
		}
	}
	if *retryNow {
		go func() {
			err := svc.RetryFailed(ctx)
			if err != nil {
				slog.Warn("retry failed histories", "err", err.Error())
			}
		}()
	}

	serviceutil.StartHttpServer(ctx, config.Port, mux)
}
