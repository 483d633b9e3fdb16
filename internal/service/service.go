package service

import (
	"context"

	"automarket-backend/internal/components/assert"
	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/db"
	"automarket-backend/internal/historyapi"
)

// HistoryAPI describes the methods that change stored histories. It is effectively the
// "write" API.
//
// note: there should not be any cron jobs running in here, cron jobs should only exist on the
// very top level (whatever uses Service)
type HistoryAPI interface {
	// RefreshForListing makes one attempt at fetching the history of a listing and returns
	// the stored outcome.
	RefreshForListing(ctx context.Context, listingId int64) (historyapi.Record, error)
}

// HistoryQueryAPI describes the methods that read stored histories. It is effectively the
// "read" API.
type HistoryQueryAPI interface {
	Reload(ctx context.Context, listingId int64) (historyapi.Record, error)
	List(ctx context.Context, status historyapi.Status) ([]historyapi.Record, error)
}

const (
	report_history_refresh      = "history.refresh"
	report_history_get          = "history.get"
	report_history_list         = "history.list"
	report_history_retry_failed = "history.retry-failed"
	report_history_retry_count  = "history.retry-count"
	report_listing_set          = "listing.set"
	report_listing_delete       = "listing.delete"

	report_db_query = "db.query"
)

type coreAPIs struct {
	db     *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
	time   chrono.API
}

// NewCoreAPIs initializes a collection of common APIs all services need to run.
func NewCoreAPIs(db *db.Queries, makeTx db.MakeTx, options ...CoreAPIsOption) coreAPIs {
	assert.NotNil(db, "db")
	assert.NotNil(makeTx, "makeTx")

	cfg := coreAPIsConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	apis := coreAPIs{
		db:     db,
		makeTx: makeTx,
		tel:    telemetry.SlogAPI{},
		time:   chrono.NewStandardImpl(),
	}
	if cfg.tel != nil {
		apis.tel = cfg.tel
	}
	if cfg.time != nil {
		apis.time = cfg.time
	}

	apis.tel = telemetry.NewScopedAPI("service", apis.tel)

	return apis
}

type coreAPIsConfig struct {
	tel  telemetry.API
	time chrono.API
}

type CoreAPIsOption func(cfg *coreAPIsConfig)

func WithCustomTelemetryAPI(tel telemetry.API) CoreAPIsOption {
	return func(cfg *coreAPIsConfig) {
		cfg.tel = tel
	}
}

func WithCustomChronoAPI(time chrono.API) CoreAPIsOption {
	return func(cfg *coreAPIsConfig) {
		cfg.time = time
	}
}

// HistoryService implements automarket.history.v1.HistoryService
type HistoryService struct {
	coreAPIs

	api   HistoryAPI
	query HistoryQueryAPI
}

// NewHistoryService creates a HistoryService
func NewHistoryService(coreAPIs coreAPIs, api HistoryAPI, query HistoryQueryAPI) HistoryService {
	assert.NotNil(api, "history API implementation")
	assert.NotNil(query, "history query API implementation")

	return HistoryService{
		coreAPIs: coreAPIs,
		api:      api,
		query:    query,
	}
}
