package siteconnect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"
	"github.com/tomnomnom/linkheader"
)

// APIRelation is the link relation WordPress uses to advertise its REST API
// index.
const APIRelation = "https://api.w.org/"

// fallbackIndexPath is the conventional REST index path, reachable even when
// proxies strip the Link header.
const fallbackIndexPath = "/wp-json/"

// HTTPDoer is the slice of *http.Client the stages depend on.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LocatorConfig holds configuration for the Locator.
type LocatorConfig struct {
	HTTPClient HTTPDoer
	Messages   Messages
	Logger     hclog.Logger
}

// Locator finds the absolute REST index URL of a site.
type Locator struct {
	client   HTTPDoer
	messages Messages
	logger   hclog.Logger
}

// NewLocator creates a new Locator.
func NewLocator(cfg LocatorConfig) *Locator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Messages == nil {
		cfg.Messages = DefaultMessages()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	return &Locator{
		client:   cfg.HTTPClient,
		messages: cfg.Messages,
		logger:   cfg.Logger.Named("locator"),
	}
}

// Locate returns the index URL for a normalized origin. The Link header on
// the origin wins; the /wp-json/ path is tried only when that yields nothing.
// There are no retries.
func (l *Locator) Locate(ctx context.Context, origin string) (string, error) {
	indexURL, err := l.fromLinkHeader(ctx, origin)
	if err == nil {
		l.logger.Debug("index found via link header", "origin", origin, "index_url", indexURL)
		return indexURL, nil
	}
	l.logger.Debug("link header discovery failed, trying fallback path",
		"origin", origin,
		"error", err)

	fallback := origin + fallbackIndexPath
	if err := l.head200(ctx, fallback); err != nil {
		l.logger.Warn("api discovery failed",
			"origin", origin,
			"fallback", fallback,
			"error", err)
		return "", newError(KindDiscovery, l.messages.Sprintf(MsgDiscoveryFailed), err)
	}

	l.logger.Debug("index found via fallback path", "origin", origin, "index_url", fallback)
	return fallback, nil
}

func (l *Locator) fromLinkHeader(ctx context.Context, origin string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, origin, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("head request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("head request returned status %d", resp.StatusCode)
	}

	values := resp.Header.Values("Link")
	if len(values) == 0 {
		return "", fmt.Errorf("no link header")
	}

	links := linkheader.ParseMultiple(values).FilterByRel(APIRelation)
	if len(links) == 0 || links[0].URL == "" {
		return "", fmt.Errorf("no link with rel %q", APIRelation)
	}

	return resolve(origin, links[0].URL)
}

func (l *Locator) head200(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("head request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("head request returned status %d", resp.StatusCode)
	}
	return nil
}

// resolve makes ref absolute relative to base.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid link target %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
