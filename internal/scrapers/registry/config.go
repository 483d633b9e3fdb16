package registry

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseUrl        = "https://historiapojazdu.gov.pl"
	DefaultAppName        = "HistoriaPojazdu"
	DefaultTimeoutSeconds = 15
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// Config is the deployment configuration of the registry integration.
type Config struct {
	BaseUrl    string `json:"base_url"`
	AppName    string `json:"app_name"`
	ApiVersion string `json:"api_version"`
	// TimeoutSeconds applies to every request of a session, <= 0 means DefaultTimeoutSeconds.
	TimeoutSeconds int    `json:"timeout_seconds"`
	UserAgent      string `json:"user_agent"`
	// BypassCloudflare wraps the transport with browser-like TLS settings and headers.
	BypassCloudflare bool `json:"bypass_cloudflare"`
	// RequestsPerSecond limits requests to the provider across every session created
	// by a client, <= 0 disables the limit.
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultConfig returns the public portal defaults, the api version is release specific
// and is left for the deployment to fill in.
func DefaultConfig() Config {
	return Config{
		BaseUrl:        DefaultBaseUrl,
		AppName:        DefaultAppName,
		TimeoutSeconds: DefaultTimeoutSeconds,
		UserAgent:      DefaultUserAgent,
	}
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return time.Second * DefaultTimeoutSeconds
	}
	return time.Second * time.Duration(c.TimeoutSeconds)
}

// validate returns the parsed base url, or an ErrMissingConfiguration error naming every
// missing field.
func (c Config) validate() (*url.URL, error) {
	var missing []string
	if strings.TrimSpace(c.BaseUrl) == "" {
		missing = append(missing, "base_url")
	}
	if strings.TrimSpace(c.AppName) == "" {
		missing = append(missing, "app_name")
	}
	if strings.TrimSpace(c.ApiVersion) == "" {
		missing = append(missing, "api_version")
	}
	if len(missing) > 0 {
		return nil, &Error{
			Kind:    ErrMissingConfiguration,
			Message: fmt.Sprintf("vehicle history provider is not configured (missing %s)", strings.Join(missing, ", ")),
		}
	}

	baseUrl, err := url.Parse(strings.TrimRight(strings.TrimSpace(c.BaseUrl), "/"))
	if err != nil || baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, &Error{
			Kind:    ErrMissingConfiguration,
			Message: "vehicle history provider is not configured (invalid base_url)",
			Cause:   err,
		}
	}
	return baseUrl, nil
}
