package siteconnect

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// DefaultProbeTimeout bounds each auth probe.
const DefaultProbeTimeout = 10 * time.Second

const (
	authTestRoute = "auth/test"
	markerHeader  = "X-WCPOS"
	paramName     = "authorization"
)

// AuthCapability records which bearer transports a site accepts.
// SupportsHeaderAuth and SupportsParamAuth are never both false on a value
// returned by Probe.
type AuthCapability struct {
	SupportsHeaderAuth bool
	SupportsParamAuth  bool
	UseParamAuth       bool
}

// ProberConfig holds configuration for the Prober.
type ProberConfig struct {
	HTTPClient HTTPDoer
	Messages   Messages
	Logger     hclog.Logger

	// Timeout applied to each probe.
	// Default: DefaultProbeTimeout
	Timeout time.Duration
}

// Prober decides whether bearer credentials travel in the Authorization
// header or in a query parameter.
type Prober struct {
	client   HTTPDoer
	messages Messages
	logger   hclog.Logger
	timeout  time.Duration
}

// NewProber creates a new Prober.
func NewProber(cfg ProberConfig) *Prober {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Messages == nil {
		cfg.Messages = DefaultMessages()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}

	return &Prober{
		client:   cfg.HTTPClient,
		messages: cfg.Messages,
		logger:   cfg.Logger.Named("prober"),
		timeout:  cfg.Timeout,
	}
}

// Probe runs the header and query-parameter probes concurrently against
// <posAPIURL>auth/test and waits for both. token is used as-is when set;
// otherwise a throwaway token is minted. A probe that errors, times out or
// does not answer {"status":"success"} counts as unsupported.
func (p *Prober) Probe(ctx context.Context, posAPIURL, token string) (*AuthCapability, error) {
	if token == "" {
		var err error
		token, err = NewProbeToken()
		if err != nil {
			return nil, fmt.Errorf("failed to create probe token: %w", err)
		}
	}

	testURL := posAPIURL + authTestRoute

	var headerOK, paramOK bool
	var g errgroup.Group
	g.Go(func() error {
		headerOK = p.probe(ctx, "header", func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodGet, testURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+token)
			return req, nil
		})
		return nil
	})
	g.Go(func() error {
		paramOK = p.probe(ctx, "param", func() (*http.Request, error) {
			u, err := url.Parse(testURL)
			if err != nil {
				return nil, err
			}
			q := u.Query()
			q.Set(paramName, "Bearer "+token)
			// Spaces are sent as %20, not +.
			u.RawQuery = strings.ReplaceAll(q.Encode(), "+", "%20")
			return http.NewRequest(http.MethodGet, u.String(), nil)
		})
		return nil
	})
	// Probes never return errors; Wait is the join.
	_ = g.Wait()

	p.logger.Debug("auth probes finished",
		"pos_api_url", posAPIURL,
		"header", headerOK,
		"param", paramOK)

	capability, ok := decideTransport(headerOK, paramOK)
	if !ok {
		return nil, newError(KindNoAuthMethodSupported, p.messages.Sprintf(MsgNoAuthMethod),
			fmt.Errorf("both header and param auth probes failed against %s", testURL))
	}
	return capability, nil
}

// decideTransport applies the decision table: header is preferred, param is
// used only when header fails, and no support at all is reported as !ok.
func decideTransport(header, param bool) (*AuthCapability, bool) {
	if !header && !param {
		return nil, false
	}
	return &AuthCapability{
		SupportsHeaderAuth: header,
		SupportsParamAuth:  param,
		UseParamAuth:       !header && param,
	}, true
}

type authTestResponse struct {
	Status string `json:"status"`
}

func (p *Prober) probe(ctx context.Context, transport string, build func() (*http.Request, error)) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := build()
	if err != nil {
		p.logger.Debug("failed to build probe", "transport", transport, "error", err)
		return false
	}
	req = req.WithContext(ctx)
	req.Header.Set(markerHeader, "1")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", "transport", transport, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		p.logger.Debug("probe rejected", "transport", transport, "status", resp.StatusCode)
		return false
	}

	var body authTestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		p.logger.Debug("probe returned unreadable body", "transport", transport, "error", err)
		return false
	}
	if body.Status != "success" {
		p.logger.Debug("probe returned non-success status", "transport", transport, "status", body.Status)
		return false
	}
	return true
}

// NewProbeToken mints a short-lived JWT signed with a random key that is
// discarded immediately. It is only good for reaching the auth test route.
func NewProbeToken() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("error generating signing key: %w", err)
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    "siteconnect-probe",
		Subject:   "auth-transport-probe",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
