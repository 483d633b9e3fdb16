package historyapi

import (
	"automarket-backend/internal/components/assert"
	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/telemetry"

	"go.opentelemetry.io/otel"
)

const (
	report_impl_refresh_for_listing = "impl.refresh-for-listing"
	report_impl_fetch_skipped       = "impl.fetch-skipped"
	report_impl_fetch_failed        = "impl.fetch-failed"
	report_impl_fetch_unexpected    = "impl.fetch-unexpected"
)

var tracer = otel.Tracer("automarket/historyapi")

// Implementation drives history refreshes for listings and records their outcome.
type Implementation struct {
	store   Store
	factory FetcherFactory
	tel     telemetry.API
	time    chrono.API
}

func NewImplementation(
	store Store,
	factory FetcherFactory,
	opts ...ImplementationOption,
) Implementation {
	assert.NotNil(store, "store")
	assert.NotNil(factory, "fetcher factory")

	var cfg implementationCfg
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.tel == nil {
		cfg.tel = telemetry.SlogAPI{}
	}
	if cfg.time == nil {
		cfg.time = chrono.NewStandardImpl()
	}

	return Implementation{
		store:   store,
		factory: factory,
		tel:     telemetry.NewScopedAPI("historyapi", cfg.tel),
		time:    cfg.time,
	}
}

type ImplementationOption func(cfg *implementationCfg)

type implementationCfg struct {
	tel  telemetry.API
	time chrono.API
}

func WithCustomTelemetryAPI(tel telemetry.API) ImplementationOption {
	return func(cfg *implementationCfg) {
		cfg.tel = tel
	}
}

func WithCustomChronoAPI(time chrono.API) ImplementationOption {
	return func(cfg *implementationCfg) {
		cfg.time = time
	}
}
