// Package httpclient builds the HTTP client shared by every discovery stage.
// Redirects are followed, nothing is retried, and no credentials are
// attached here: stages that need auth headers add them per request.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout is the whole-request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies the client to the remote site.
const DefaultUserAgent = "siteconnect/1.0"

// Config contains configuration for the discovery HTTP client.
//
// Example configuration (HCL):
//
//	transport {
//	  timeout    = "30s"
//	  tls_verify = true
//	  user_agent = "siteconnect/1.0"
//	}
type Config struct {
	// Timeout for a single request, including redirects.
	// Default: 30 seconds
	Timeout time.Duration

	// TLSVerify controls TLS certificate verification.
	// Set to false only for development sites with self-signed certs.
	TLSVerify *bool

	// UserAgent is sent on every request.
	UserAgent string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		Timeout:   DefaultTimeout,
		TLSVerify: &tlsVerify,
		UserAgent: DefaultUserAgent,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got: %v", c.Timeout)
	}
	return nil
}

// New creates a configured HTTP client.
func New(cfg *Config) *http.Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := cleanhttp.DefaultPooledTransport()
	if cfg.TLSVerify != nil && !*cfg.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // user explicitly disabled verification
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &userAgentTransport{
			base:      transport,
			userAgent: userAgent,
		},
	}
}

// userAgentTransport sets User-Agent on requests that don't carry one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}
