package siteconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-hclog"
)

// DefaultMinPluginVersion is the oldest POS plugin release the client
// supports without a warning.
const DefaultMinPluginVersion = "1.8.0"

// maxIndexSize caps how much of the index body is read.
const maxIndexSize = 10 << 20

// ValidatorConfig holds configuration for the Validator.
type ValidatorConfig struct {
	HTTPClient HTTPDoer
	Messages   Messages
	Logger     hclog.Logger

	// MinPluginVersion below which a compatibility warning is emitted.
	// Default: DefaultMinPluginVersion
	MinPluginVersion string
}

// Validator fetches a site's REST index and checks that it exposes what the
// POS client needs.
type Validator struct {
	client     HTTPDoer
	messages   Messages
	logger     hclog.Logger
	minVersion *semver.Version
}

// Discovery is the outcome of a successful validation.
type Discovery struct {
	Index     *IndexDocument
	Endpoints EndpointSet
	Warnings  []string
}

// NewValidator creates a new Validator.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Messages == nil {
		cfg.Messages = DefaultMessages()
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.MinPluginVersion == "" {
		cfg.MinPluginVersion = DefaultMinPluginVersion
	}

	minVersion, err := semver.NewVersion(cfg.MinPluginVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum plugin version %q: %w", cfg.MinPluginVersion, err)
	}

	return &Validator{
		client:     cfg.HTTPClient,
		messages:   cfg.Messages,
		logger:     cfg.Logger.Named("validator"),
		minVersion: minVersion,
	}, nil
}

// Validate fetches indexURL and runs the checks in order; the first failure
// aborts the rest. A plugin older than the minimum only produces a warning.
func (v *Validator) Validate(ctx context.Context, indexURL string) (*Discovery, error) {
	body, err := v.fetch(ctx, indexURL)
	if err != nil {
		v.logger.Warn("failed to fetch api index", "index_url", indexURL, "error", err)
		return nil, newError(KindAPINotFound, v.messages.Sprintf(MsgAPINotFound), err)
	}

	// 1. Must be a structured object.
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		if err == nil {
			err = fmt.Errorf("index is not a JSON object")
		}
		v.logger.Warn("api index is malformed", "index_url", indexURL, "error", err)
		return nil, newError(KindMalformedResponse, v.messages.Sprintf(MsgMalformedResponse), err)
	}

	// 2. Must expose a namespace list.
	namespaces, ok := namespaceList(obj)
	if !ok {
		return nil, newError(KindAPINotFound, v.messages.Sprintf(MsgAPINotFound),
			fmt.Errorf("index at %s has no namespaces list", indexURL))
	}

	// 3. Commerce and POS namespaces.
	if !containsString(namespaces, CommerceNamespace) {
		return nil, newError(KindCommerceAPIMissing, v.messages.Sprintf(MsgCommerceAPIMissing),
			fmt.Errorf("namespace %s not found", CommerceNamespace))
	}
	if !containsString(namespaces, POSNamespace) {
		return nil, newError(KindPOSPluginMissing, v.messages.Sprintf(MsgPOSPluginMissing),
			fmt.Errorf("namespace %s not found", POSNamespace))
	}

	// Metadata is best effort; unconvertible fields are dropped.
	doc, skipped, err := decodeIndex(obj, body)
	if err != nil {
		return nil, newError(KindMalformedResponse, v.messages.Sprintf(MsgMalformedResponse), err)
	}
	if len(skipped) > 0 {
		v.logger.Debug("ignoring unconvertible index fields", "index_url", indexURL, "fields", skipped)
	}

	// 4. Plugin version, non-fatal.
	var warnings []string
	if w := v.checkPluginVersion(doc.WCPOSVersion); w != "" {
		warnings = append(warnings, w)
	}

	// 5. Login endpoint.
	loginURL := doc.AuthorizationEndpoint()
	if loginURL == "" {
		return nil, newError(KindAuthEndpointMissing, v.messages.Sprintf(MsgAuthEndpointMissing),
			fmt.Errorf("authentication.wcpos.endpoints.authorization missing"))
	}

	endpoints := deriveEndpoints(indexURL, loginURL)
	v.logger.Debug("api index validated",
		"uuid", doc.UUID,
		"api_base_url", endpoints.APIBaseURL,
		"wcpos_version", doc.WCPOSVersion,
		"wc_version", doc.WCVersion)

	return &Discovery{
		Index:     doc,
		Endpoints: endpoints,
		Warnings:  warnings,
	}, nil
}

// checkPluginVersion returns a warning message when version is present,
// parseable, and older than the minimum.
func (v *Validator) checkPluginVersion(version string) string {
	if version == "" {
		return ""
	}
	current, err := semver.NewVersion(version)
	if err != nil {
		v.logger.Debug("unparseable plugin version, skipping check", "version", version, "error", err)
		return ""
	}
	if !current.LessThan(v.minVersion) {
		return ""
	}

	v.logger.Warn("pos plugin is older than the minimum supported version",
		"version", current.String(),
		"minimum", v.minVersion.String())
	return v.messages.Sprintf(MsgPluginOutdated, version, v.minVersion.Original())
}

func (v *Validator) fetch(ctx context.Context, indexURL string) ([]byte, error) {
	u, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("invalid index url: %w", err)
	}
	q := u.Query()
	q.Set("wcpos", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("index returned status %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

// snippet trims a body for log output.
func snippet(body []byte) string {
	const limit = 200
	body = bytes.TrimSpace(body)
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
