package historyapi

import (
	"context"
	"sync"

	"automarket-backend/internal/scrapers/registry"
)

// Fetcher is the part of registry.Client the orchestrator uses.
//
// note: fault injection point
type Fetcher interface {
	Fetch(ctx context.Context, vin, registrationNumber, firstRegistrationDate string) (registry.Result, error)
}

// FetcherFactory is called once per refresh, an error matching
// registry.ErrMissingConfiguration makes the refresh end as skipped.
type FetcherFactory func() (Fetcher, error)

// RegistryFactory builds a registry.Client the first time it is needed and hands out the
// same client afterwards, so the rate limit and close failure count span every refresh.
// A configuration error is returned on every call.
func RegistryFactory(config registry.Config, opts ...registry.Option) FetcherFactory {
	var mutex sync.Mutex
	var client *registry.Client

	return func() (Fetcher, error) {
		mutex.Lock()
		defer mutex.Unlock()

		if client != nil {
			return client, nil
		}
		created, err := registry.NewClient(config, opts...)
		if err != nil {
			return nil, err
		}
		client = created
		return client, nil
	}
}
