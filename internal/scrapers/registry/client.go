package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"automarket-backend/internal/components/assert"
	"automarket-backend/internal/components/chrono"
	"automarket-backend/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch                = "client.fetch"
	report_client_phase                = "client.phase"
	report_client_close_session        = "client.close-session"
	report_client_close_session_failed = "client.close-session-failed"
)

var tracer = otel.Tracer("automarket/scrapers/registry")

// Vehicle identifies the vehicle a history is requested for, every field is required.
type Vehicle struct {
	Vin                   string
	RegistrationNumber    string
	FirstRegistrationDate string
}

// NormalizeVehicle trims every field and uppercases the vin and registration number, the
// registry matches them case sensitively.
func NormalizeVehicle(vin, registrationNumber, firstRegistrationDate string) Vehicle {
	return Vehicle{
		Vin:                   strings.ToUpper(strings.TrimSpace(vin)),
		RegistrationNumber:    strings.ToUpper(strings.TrimSpace(registrationNumber)),
		FirstRegistrationDate: strings.TrimSpace(firstRegistrationDate),
	}
}

// Complete reports if every identifying field is present.
func (v Vehicle) Complete() bool {
	return v.Vin != "" && v.RegistrationNumber != "" && v.FirstRegistrationDate != ""
}

// Result is the pair of documents the registry returns for a vehicle, both are passed
// through exactly as decoded.
type Result struct {
	VehicleData  map[string]any `json:"vehicleData"`
	TimelineData map[string]any `json:"timelineData"`
}

type Option func(c *Client)

// WithTransport replaces the http transport shared by every session.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = transport
	}
}

// WithRateLimiter replaces the limiter derived from Config.RequestsPerSecond.
func WithRateLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithCookieStore replaces the constructor of the cookie store given to each session.
func WithCookieStore(newStore func() CookieStore) Option {
	return func(c *Client) {
		c.newStore = newStore
	}
}

// WithMessageDump writes every http exchange of every session to the dump.
func WithMessageDump(dump *telemetry.MessageDump) Option {
	return func(c *Client) {
		c.dump = dump
	}
}

func WithTelemetryAPI(tel telemetry.API) Option {
	return func(c *Client) {
		c.tel = tel
	}
}

func WithChronoAPI(time chrono.API) Option {
	return func(c *Client) {
		c.time = time
	}
}

// Client fetches vehicle histories from the registry portal. It is safe for concurrent
// use, every Fetch runs in its own session with its own cookies and token.
type Client struct {
	config    Config
	baseUrl   *url.URL
	timeout   time.Duration
	transport http.RoundTripper
	limiter   *rate.Limiter
	newStore  func() CookieStore
	dump      *telemetry.MessageDump

	tel  telemetry.API
	time chrono.API

	closeFailures atomic.Int64
}

// NewClient validates the config and creates a client, an incomplete config results in an
// error matching ErrMissingConfiguration.
func NewClient(config Config, opts ...Option) (*Client, error) {
	baseUrl, err := config.validate()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(config.UserAgent) == "" {
		config.UserAgent = DefaultUserAgent
	}

	c := &Client{
		config:   config,
		baseUrl:  baseUrl,
		timeout:  config.timeout(),
		newStore: NewCookieStore,
		tel:      telemetry.SlogAPI{},
		time:     chrono.NewStandardImpl(),
	}
	for _, opt := range opts {
		opt(c)
	}

	assert.NotNil(c.tel, "telemetry")
	assert.NotNil(c.time, "chrono")
	assert.NotNil(c.newStore, "cookie store")

	c.tel = telemetry.NewScopedAPI("registry", c.tel)

	if c.transport == nil {
		c.transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	if config.BypassCloudflare {
		c.transport = cloudflarebp.AddCloudFlareByPass(c.transport)
	}
	if c.limiter == nil && config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return c, nil
}

// Fetch runs a complete session against the registry: create the session, authenticate it,
// request vehicle data then timeline data. The session is closed and its state discarded
// whatever the outcome.
//
// Missing identifying data fails with ErrRequestFailed before anything is sent.
func (c *Client) Fetch(ctx context.Context, vin, registrationNumber, firstRegistrationDate string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Client.Fetch")
	defer span.End()

	vehicle := NormalizeVehicle(vin, registrationNumber, firstRegistrationDate)
	span.SetAttributes(attribute.String("vehicle.vin", vehicle.Vin))

	if !vehicle.Complete() {
		err := &Error{
			Kind:    ErrRequestFailed,
			Message: "missing required data (vin, registration number and first registration date)",
		}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	s := c.openSession(vehicle)
	result, err := c.run(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportDebug(report_client_fetch, vehicle.Vin, err)
		return Result{}, err
	}
	return result, nil
}

func (c *Client) run(ctx context.Context, s *session) (Result, error) {
	defer c.closeSession(ctx, s)

	for _, p := range c.phases() {
		err := c.runPhase(ctx, s, p)
		if err != nil {
			return Result{}, err
		}
	}
	return s.result, nil
}

func (c *Client) runPhase(ctx context.Context, s *session, p phase) error {
	ctx, span := tracer.Start(ctx, p.name)
	defer span.End()

	c.tel.ReportDebug(report_client_phase, p.name)
	err := p.run(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// closeSession tells the registry the session is over, failures here never change the
// outcome of a fetch. The session state is always discarded afterwards.
func (c *Client) closeSession(ctx context.Context, s *session) {
	defer s.discard()

	ctx, span := tracer.Start(context.WithoutCancel(ctx), "close-session")
	defer span.End()

	uri := c.apiPath("close")
	res, err := s.http.R().
		SetContext(ctx).
		SetHeader(headerSessionToken, s.token).
		Get(uri)
	if err == nil && res.IsError() {
		err = fmt.Errorf("status %d", res.StatusCode())
	}
	if err != nil {
		span.RecordError(err)
		count := c.closeFailures.Add(1)
		c.tel.ReportDebug(report_client_close_session, uri, err)
		c.tel.ReportCount(report_client_close_session_failed, count)
	}
}

// CloseFailures returns how many sessions could not be closed cleanly since the client was
// created.
func (c *Client) CloseFailures() int64 {
	return c.closeFailures.Load()
}

func (c *Client) apiPath(endpoint string) string {
	return fmt.Sprintf(
		"/nforms/api/%s/%s/%s",
		url.PathEscape(c.config.AppName),
		url.PathEscape(c.config.ApiVersion),
		endpoint,
	)
}

func (c *Client) absolute(path string) string {
	return c.baseUrl.String() + path
}
