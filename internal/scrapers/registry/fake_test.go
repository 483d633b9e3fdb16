package registry

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/telemetry"
)

const (
	testAppName    = "HistoriaPojazdu"
	testApiVersion = "1.0.0"
	testDataPrefix = "/nforms/api/" + testAppName + "/" + testApiVersion
)

type capturedRequest struct {
	Method      string
	Path        string
	Query       string
	Form        map[string]string
	Xsrf        string
	SessionId   string
	ContentType string
	Body        map[string]any
	// names of the cookies the client sent
	Cookies []string
}

// fakeRegistry mimics the registry portal, every field can be changed to make a step of
// the session misbehave.
type fakeRegistry struct {
	mutex    sync.Mutex
	requests []capturedRequest

	createStatus   int
	createCookies  []*http.Cookie
	authStatus     int
	vehicleStatus  int
	vehicleBody    string
	timelineStatus int
	timelineBody   string
	closeStatus    int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		createStatus: http.StatusOK,
		createCookies: []*http.Cookie{
			{Name: "JSESSIONID", Value: "session-1", Path: "/"},
			{Name: "XSRF-TOKEN", Value: "xsrf%2Btoken%3D%3D", Path: "/"},
		},
		authStatus:     http.StatusOK,
		vehicleStatus:  http.StatusOK,
		vehicleBody:    `{"a":1}`,
		timelineStatus: http.StatusOK,
		timelineBody:   `{"b":2}`,
		closeStatus:    http.StatusOK,
	}
}

func (f *fakeRegistry) Requests() []capturedRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]capturedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *fakeRegistry) Paths() []string {
	var out []string
	for _, req := range f.Requests() {
		out = append(out, req.Method+" "+req.Path)
	}
	return out
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	captured := capturedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		Xsrf:        r.Header.Get("X-Xsrf-Token"),
		SessionId:   r.Header.Get("Nf_wid"),
		ContentType: r.Header.Get("content-type"),
	}
	for _, cookie := range r.Cookies() {
		captured.Cookies = append(captured.Cookies, cookie.Name)
	}
	if r.Method == http.MethodPost && r.URL.Path == "/uslugi/engine/ng/index" {
		err := r.ParseForm()
		if err == nil {
			captured.Form = map[string]string{}
			for k := range r.PostForm {
				captured.Form[k] = r.PostForm.Get(k)
			}
		}
	}
	if r.Method == http.MethodPost && r.URL.Path != "/uslugi/engine/ng/index" {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured.Body)
	}

	f.mutex.Lock()
	f.requests = append(f.requests, captured)
	f.mutex.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/uslugi/engine/ng/index":
		for _, cookie := range f.createCookies {
			http.SetCookie(w, cookie)
		}
		w.WriteHeader(f.createStatus)
		w.Write([]byte("<html><body>form</body></html>"))
	case r.Method == http.MethodPost && r.URL.Path == "/uslugi/engine/ng/index":
		w.WriteHeader(f.authStatus)
	case r.Method == http.MethodPost && r.URL.Path == testDataPrefix+"/data/vehicle-data":
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(f.vehicleStatus)
		w.Write([]byte(f.vehicleBody))
	case r.Method == http.MethodPost && r.URL.Path == testDataPrefix+"/data/timeline-data":
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(f.timelineStatus)
		w.Write([]byte(f.timelineBody))
	case r.Method == http.MethodGet && r.URL.Path == testDataPrefix+"/close":
		w.WriteHeader(f.closeStatus)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type countingTransport struct {
	inner http.RoundTripper
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return t.inner.RoundTrip(req)
}

// spyCookieStore remembers every store it hands out so tests can inspect them after
// the session is gone.
type spyCookieStore struct {
	mutex  sync.Mutex
	stores []CookieStore
}

func (s *spyCookieStore) New() CookieStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	store := NewCookieStore()
	s.stores = append(s.stores, store)
	return store
}

func (s *spyCookieStore) Stores() []CookieStore {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]CookieStore(nil), s.stores...)
}

type testHarness struct {
	registry  *fakeRegistry
	server    *httptest.Server
	transport *countingTransport
	cookies   *spyCookieStore
	tel       *telemetry.Recorder
	client    *Client
}

var testClockStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestHarness(t testing.TB) *testHarness {
	registry := newFakeRegistry()
	server := httptest.NewServer(registry)
	t.Cleanup(server.Close)

	transport := &countingTransport{inner: http.DefaultTransport}
	cookies := &spyCookieStore{}
	tel := telemetry.NewRecorder()

	client, err := NewClient(
		Config{
			BaseUrl:        server.URL,
			AppName:        testAppName,
			ApiVersion:     testApiVersion,
			TimeoutSeconds: 5,
		},
		WithTransport(transport),
		WithCookieStore(cookies.New),
		WithTelemetryAPI(tel),
		WithChronoAPI(chrono.NewSteppedImpl(testClockStart, time.Millisecond)),
	)
	if err != nil {
		t.Fatal(err)
	}

	return &testHarness{
		registry:  registry,
		server:    server,
		transport: transport,
		cookies:   cookies,
		tel:       tel,
		client:    client,
	}
}
