package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"automarket-backend/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const (
	headerXsrfToken    = "X-Xsrf-Token"
	headerSessionToken = "Nf_wid"
	formSessionToken   = "NF_WID"
)

// session is the state of a single conversation with the registry, it is never shared
// between fetches.
type session struct {
	vehicle Vehicle
	http    *resty.Client
	cookies CookieStore
	token   string
	result  Result
}

func (s *session) discard() {
	s.cookies.Clear()
	s.token = ""
}

type phase struct {
	name string
	run  func(ctx context.Context, s *session) error
}

func (c *Client) phases() []phase {
	return []phase{
		{name: "create-session", run: c.createSession},
		{name: "authenticate", run: c.authenticate},
		{name: "vehicle-data", run: c.fetchDocument("vehicle-data", func(s *session, doc map[string]any) {
			s.result.VehicleData = doc
		})},
		{name: "timeline-data", run: c.fetchDocument("timeline-data", func(s *session, doc map[string]any) {
			s.result.TimelineData = doc
		})},
	}
}

func (c *Client) openSession(vehicle Vehicle) *session {
	cookies := c.newStore()

	httpClient := resty.New()
	httpClient.SetTransport(c.transport)
	httpClient.SetCookieJar(cookies)
	httpClient.SetBaseURL(c.baseUrl.String())
	httpClient.SetHeader("user-agent", c.config.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(c.baseUrl.Hostname()))
	httpClient.SetTimeout(c.timeout)

	if c.limiter != nil {
		limiter := c.limiter
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, c.tel)
	if c.dump != nil {
		c.dump.Instrument(httpClient)
	}

	return &session{
		vehicle: vehicle,
		http:    httpClient,
		cookies: cookies,
	}
}

const bootstrapPath = "/uslugi/engine/ng/index"

// createSession opens the form application, the registry answers with the session
// cookies (XSRF-TOKEN among them).
func (c *Client) createSession(ctx context.Context, s *session) error {
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("xFormsAppName", c.config.AppName).
		Get(bootstrapPath)
	err = c.checkResponse(res, err, bootstrapPath, "create session failed")
	if err != nil {
		return err
	}

	if len(s.cookies.All()) == 0 {
		return &Error{
			Kind:    ErrRequestFailed,
			Message: "create session failed: server did not return required cookies",
			Uri:     c.absolute(bootstrapPath),
		}
	}
	return nil
}

// authenticate registers a fresh session token, every later request carries it.
func (c *Client) authenticate(ctx context.Context, s *session) error {
	token := fmt.Sprintf("%s:%d", c.config.AppName, c.time.Now().UnixMilli())

	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("xFormsAppName", c.config.AppName).
		SetFormData(map[string]string{
			formSessionToken: token,
		}).
		Post(bootstrapPath)
	err = c.checkResponse(res, err, bootstrapPath, "authenticate session failed")
	if err != nil {
		return err
	}

	s.token = token
	return nil
}

type documentRequest struct {
	RegistrationNumber    string `json:"registrationNumber"`
	VINNumber             string `json:"VINNumber"`
	FirstRegistrationDate string `json:"firstRegistrationDate"`
}

func (c *Client) fetchDocument(endpoint string, store func(s *session, doc map[string]any)) func(ctx context.Context, s *session) error {
	return func(ctx context.Context, s *session) error {
		path := c.apiPath(endpoint)

		xsrf, ok := xsrfToken(s.cookies.All())
		if !ok {
			return &Error{
				Kind:    ErrRequestFailed,
				Message: fmt.Sprintf("%s: missing XSRF-TOKEN cookie", endpoint),
				Uri:     c.absolute(path),
			}
		}

		res, err := s.http.R().
			SetContext(ctx).
			SetHeader("content-type", "application/json").
			SetHeader("accept", "application/json").
			SetHeader(headerXsrfToken, xsrf).
			SetHeader(headerSessionToken, s.token).
			SetBody(documentRequest{
				RegistrationNumber:    s.vehicle.RegistrationNumber,
				VINNumber:             s.vehicle.Vin,
				FirstRegistrationDate: s.vehicle.FirstRegistrationDate,
			}).
			Post(path)
		err = c.checkResponse(res, err, path, fmt.Sprintf("%s request failed", endpoint))
		if err != nil {
			return err
		}

		var doc map[string]any
		err = json.Unmarshal(res.Body(), &doc)
		if err != nil || doc == nil {
			return &Error{
				Kind:        ErrInvalidResponse,
				Message:     fmt.Sprintf("%s response is not a JSON object", endpoint),
				Uri:         c.absolute(path),
				Status:      res.StatusCode(),
				Body:        string(res.Body()),
				ContentType: res.Header().Get("content-type"),
				Cause:       err,
			}
		}

		store(s, doc)
		return nil
	}
}

// checkResponse turns transport faults and unexpected statuses into ErrRequestFailed.
func (c *Client) checkResponse(res *resty.Response, err error, path, message string) error {
	if err != nil {
		return &Error{
			Kind:    ErrRequestFailed,
			Message: fmt.Sprintf("%s: provider not responding", message),
			Uri:     c.absolute(path),
			Cause:   err,
		}
	}
	if res.StatusCode() != http.StatusOK {
		return &Error{
			Kind:        ErrRequestFailed,
			Message:     message,
			Uri:         c.absolute(path),
			Status:      res.StatusCode(),
			Body:        string(res.Body()),
			ContentType: res.Header().Get("content-type"),
		}
	}
	return nil
}
