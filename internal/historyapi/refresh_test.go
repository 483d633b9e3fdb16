package historyapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/telemetry"
	"automarket-backend/internal/db"
	"automarket-backend/internal/scrapers/registry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testClockStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	calls     int
	result    registry.Result
	err       error
	panicWith any
}

func (f *fakeFetcher) Fetch(ctx context.Context, vin, registrationNumber, firstRegistrationDate string) (registry.Result, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result, f.err
}

func (f *fakeFetcher) factory() FetcherFactory {
	return func() (Fetcher, error) {
		return f, nil
	}
}

type testEnv struct {
	qry   *db.Queries
	store DBStore
	tel   *telemetry.Recorder
	clock chrono.API
}

func newTestEnv(t testing.TB, step time.Duration) *testEnv {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	dbtx, err := db.Open(ctx, db.Config{File: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		dbtx.Close()
	})

	qry := db.New(dbtx)
	return &testEnv{
		qry:   qry,
		store: NewDBStore(qry),
		tel:   telemetry.NewRecorder(),
		clock: chrono.NewSteppedImpl(testClockStart, step),
	}
}

func (e *testEnv) createListing(t testing.TB, vin, registrationNumber, firstRegistrationDate string) int64 {
	id, err := e.qry.CreateListing(context.Background(), db.CreateListingParams{
		Vin:                   vin,
		RegistrationNumber:    registrationNumber,
		FirstRegistrationDate: firstRegistrationDate,
		Now:                   testClockStart.UnixMilli(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *testEnv) implementation(factory FetcherFactory) Implementation {
	return NewImplementation(
		e.store,
		factory,
		WithCustomTelemetryAPI(e.tel),
		WithCustomChronoAPI(e.clock),
	)
}

func (e *testEnv) refresh(t testing.TB, impl Implementation, listingId int64) Record {
	record, err := impl.RefreshForListing(context.Background(), listingId)
	if err != nil {
		t.Fatal(err)
	}
	return record
}

func TestRefreshSuccess(t *testing.T) {
	env := newTestEnv(t, time.Second)
	listingId := env.createListing(t, "wvwzzz1jzxw000001", "WA12345", "2015-04-01")

	fetcher := &fakeFetcher{result: registry.Result{
		VehicleData:  map[string]any{"make": "VOLKSWAGEN", "mileage": []any{float64(1), float64(2)}},
		TimelineData: map[string]any{},
	}}
	record := env.refresh(t, env.implementation(fetcher.factory()), listingId)

	require.Equal(t, 1, fetcher.calls)
	require.Equal(t, StatusSuccess, record.Status)
	require.Nil(t, record.LastErrorMessage)
	require.Equal(t, "WVWZZZ1JZXW000001", record.Vin)
	require.False(t, record.FetchedAt.IsZero())

	expected := &Payload{
		VehicleData:  map[string]any{"make": "VOLKSWAGEN", "mileage": []any{float64(1), float64(2)}},
		TimelineData: map[string]any{},
	}
	if diff := cmp.Diff(expected, record.Payload); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestRefreshMissingFieldsSkips(t *testing.T) {
	env := newTestEnv(t, time.Second)

	cases := [][3]string{
		{"", "WA12345", "2015-04-01"},
		{"WVWZZZ1JZXW000001", " ", "2015-04-01"},
		{"WVWZZZ1JZXW000001", "WA12345", ""},
	}
	for _, c := range cases {
		listingId := env.createListing(t, c[0], c[1], c[2])
		fetcher := &fakeFetcher{}

		record := env.refresh(t, env.implementation(fetcher.factory()), listingId)
		require.Equal(t, 0, fetcher.calls)
		require.Equal(t, StatusSkipped, record.Status)
		require.Equal(t, messageMissingData, *record.LastErrorMessage)
		require.Nil(t, record.Payload)
		require.False(t, record.FetchedAt.IsZero())
	}
}

func TestRefreshFailureClearsPayload(t *testing.T) {
	env := newTestEnv(t, time.Second)
	listingId := env.createListing(t, "WVWZZZ1JZXW000001", "WA12345", "2015-04-01")

	fetcher := &fakeFetcher{result: registry.Result{
		VehicleData:  map[string]any{"a": float64(1)},
		TimelineData: map[string]any{"b": float64(2)},
	}}
	impl := env.implementation(fetcher.factory())
	record := env.refresh(t, impl, listingId)
	require.NotNil(t, record.Payload)

	for _, kind := range []error{registry.ErrRequestFailed, registry.ErrInvalidResponse} {
		fetcher.err = &registry.Error{
			Kind:    kind,
			Message: "vehicle-data request failed",
			Uri:     "https://registry.example/nforms/api/app/1/data/vehicle-data",
			Status:  502,
			Body:    "bad gateway",
		}
		record = env.refresh(t, impl, listingId)
		require.Equal(t, StatusFailed, record.Status)
		require.Nil(t, record.Payload)
		require.NotNil(t, record.LastErrorMessage)
		require.Equal(t, "vehicle-data request failed (status 502)", *record.LastErrorMessage)
	}

	warnings := env.tel.Filter(telemetry.LevelWarning)
	require.Len(t, warnings, 2)
	require.Equal(t, "historyapi: "+report_impl_fetch_failed, warnings[0].Id)
	require.Contains(t, warnings[0].Params, "https://registry.example/nforms/api/app/1/data/vehicle-data")
	require.Contains(t, warnings[0].Params, 502)
	require.Contains(t, warnings[0].Params, "bad gateway")
	require.Empty(t, env.tel.Filter(telemetry.LevelBroken))
}

func TestRefreshMissingConfigurationKeepsPayload(t *testing.T) {
	env := newTestEnv(t, time.Second)
	listingId := env.createListing(t, "WVWZZZ1JZXW000001", "WA12345", "2015-04-01")

	fetcher := &fakeFetcher{result: registry.Result{
		VehicleData:  map[string]any{"a": float64(1)},
		TimelineData: map[string]any{"b": float64(2)},
	}}
	before := env.refresh(t, env.implementation(fetcher.factory()), listingId)
	require.Equal(t, StatusSuccess, before.Status)

	// a client that cannot be built, like a deployment without a base url
	unconfigured := env.implementation(RegistryFactory(registry.Config{
		AppName:    "HistoriaPojazdu",
		ApiVersion: "1.0.0",
	}))
	after := env.refresh(t, unconfigured, listingId)

	require.Equal(t, StatusSkipped, after.Status)
	require.Contains(t, *after.LastErrorMessage, "base_url")
	if diff := cmp.Diff(before.Payload, after.Payload); diff != "" {
		t.Fatalf("payload changed (-before +after):\n%s", diff)
	}

	infos := env.tel.Filter(telemetry.LevelInfo)
	require.Len(t, infos, 1)
	require.Equal(t, "historyapi: "+report_impl_fetch_skipped, infos[0].Id)
	for _, param := range infos[0].Params {
		_, isErr := param.(error)
		require.False(t, isErr, "configuration skips are reported without detail")
	}
	require.Empty(t, env.tel.Filter(telemetry.LevelWarning))
}

func TestRefreshUnexpectedFailure(t *testing.T) {
	env := newTestEnv(t, time.Second)
	listingId := env.createListing(t, "WVWZZZ1JZXW000001", "WA12345", "2015-04-01")

	for _, fetcher := range []*fakeFetcher{
		{err: errors.New("connection pool exhausted")},
		{panicWith: "nil map"},
	} {
		record := env.refresh(t, env.implementation(fetcher.factory()), listingId)
		require.Equal(t, StatusFailed, record.Status)
		require.Nil(t, record.Payload)
		require.Equal(t, messageUnexpected, *record.LastErrorMessage)
	}

	broken := env.tel.Filter(telemetry.LevelBroken)
	require.Len(t, broken, 2)
	require.Contains(t, broken[0].Params, error(errors.New("connection pool exhausted")))
}

func TestRefreshSingleRecordIncreasingFetchedAt(t *testing.T) {
	// the clock never moves
	env := newTestEnv(t, 0)
	listingId := env.createListing(t, "WVWZZZ1JZXW000001", "WA12345", "2015-04-01")

	fetcher := &fakeFetcher{result: registry.Result{}}
	impl := env.implementation(fetcher.factory())

	var previous time.Time
	for i := 0; i < 5; i++ {
		record := env.refresh(t, impl, listingId)
		require.True(t, record.FetchedAt.After(previous), "fetchedAt %s is not after %s", record.FetchedAt, previous)
		previous = record.FetchedAt

		require.Equal(t, StatusSuccess, record.Status)
		require.NotNil(t, record.Payload.VehicleData)
		require.NotNil(t, record.Payload.TimelineData)
	}
	require.Equal(t, testClockStart.Add(4*time.Millisecond), previous)

	records, err := env.store.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, records, 1)
}

func TestRefreshUnknownListing(t *testing.T) {
	env := newTestEnv(t, time.Second)
	fetcher := &fakeFetcher{}

	_, err := env.implementation(fetcher.factory()).RefreshForListing(context.Background(), 404)
	require.ErrorIs(t, err, ErrListingNotFound)
	require.Equal(t, 0, fetcher.calls)

	_, err = env.store.Reload(context.Background(), 404)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestNextFetchedAt(t *testing.T) {
	now := testClockStart
	require.Equal(t, now, nextFetchedAt(time.Time{}, now))
	require.Equal(t, now, nextFetchedAt(now.Add(-time.Second), now))
	require.Equal(t, now.Add(time.Millisecond), nextFetchedAt(now, now))
	require.Equal(t, now.Add(time.Second+time.Millisecond), nextFetchedAt(now.Add(time.Second), now))
}

type fakeProvider struct {
	createStatus int
	cookies      bool
}

func (p fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/uslugi/engine/ng/index":
		if r.Method == http.MethodGet && p.cookies {
			http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "token", Path: "/"})
		}
		if r.Method == http.MethodGet {
			w.WriteHeader(p.createStatus)
		}
	case "/nforms/api/HistoriaPojazdu/1.0.0/data/vehicle-data":
		w.Write([]byte(`{"a":1}`))
	case "/nforms/api/HistoriaPojazdu/1.0.0/data/timeline-data":
		w.Write([]byte(`{"b":2}`))
	case "/nforms/api/HistoriaPojazdu/1.0.0/close":
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type countingTransport struct {
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestRefreshAgainstProvider(t *testing.T) {
	cases := []struct {
		name     string
		vin      string
		provider fakeProvider
		status   Status
		payload  *Payload
		message  string
		calls    int64
	}{
		{
			name:     "history available",
			vin:      "WVWZZZ1JZXW000001",
			provider: fakeProvider{createStatus: http.StatusOK, cookies: true},
			status:   StatusSuccess,
			payload: &Payload{
				VehicleData:  map[string]any{"a": float64(1)},
				TimelineData: map[string]any{"b": float64(2)},
			},
			calls: 5,
		},
		{
			name:     "create session server error",
			vin:      "WVWZZZ1JZXW000001",
			provider: fakeProvider{createStatus: http.StatusInternalServerError, cookies: true},
			status:   StatusFailed,
			message:  "500",
			calls:    2,
		},
		{
			name:     "create session without cookies",
			vin:      "WVWZZZ1JZXW000001",
			provider: fakeProvider{createStatus: http.StatusOK},
			status:   StatusFailed,
			message:  "cookies",
			calls:    2,
		},
		{
			name:     "listing without vin",
			vin:      "",
			provider: fakeProvider{createStatus: http.StatusOK, cookies: true},
			status:   StatusSkipped,
			message:  messageMissingData,
			calls:    0,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			server := httptest.NewServer(c.provider)
			defer server.Close()

			env := newTestEnv(t, time.Second)
			listingId := env.createListing(t, c.vin, "WA12345", "2015-04-01")

			transport := &countingTransport{}
			impl := env.implementation(RegistryFactory(
				registry.Config{
					BaseUrl:    server.URL,
					AppName:    "HistoriaPojazdu",
					ApiVersion: "1.0.0",
				},
				registry.WithTransport(transport),
				registry.WithTelemetryAPI(env.tel),
			))

			record := env.refresh(t, impl, listingId)
			require.Equal(t, c.status, record.Status)
			require.Equal(t, c.calls, transport.calls.Load())
			if diff := cmp.Diff(c.payload, record.Payload); diff != "" {
				t.Fatalf("unexpected payload (-want +got):\n%s", diff)
			}
			if c.message == "" {
				require.Nil(t, record.LastErrorMessage)
			} else {
				require.Contains(t, *record.LastErrorMessage, c.message)
			}
		})
	}
}
