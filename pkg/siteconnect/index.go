package siteconnect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Capability namespaces a site must expose.
const (
	CommerceNamespace = "wc/v3"
	POSNamespace      = "wcpos/v1"
)

// Suffixes appended to the API base to derive the namespace URLs.
const (
	commerceSuffix = CommerceNamespace + "/"
	posSuffix      = POSNamespace + "/"
)

// IndexDocument is the decoded REST index of a site. Only the fields the
// pipeline depends on are typed; Raw keeps the whole document.
type IndexDocument struct {
	UUID           string                 `mapstructure:"uuid"`
	Name           string                 `mapstructure:"name"`
	Description    string                 `mapstructure:"description"`
	URL            string                 `mapstructure:"url"`
	Home           string                 `mapstructure:"home"`
	GMTOffset      string                 `mapstructure:"gmt_offset"`
	TimezoneString string                 `mapstructure:"timezone_string"`
	Namespaces     []string               `mapstructure:"namespaces"`
	Authentication map[string]interface{} `mapstructure:"authentication"`

	WCVersion       string `mapstructure:"wc_version"`
	WCPOSVersion    string `mapstructure:"wcpos_version"`
	WCPOSProVersion string `mapstructure:"wcpos_pro_version"`

	Raw json.RawMessage `mapstructure:"-"`
}

// HasNamespace reports whether the index lists ns.
func (d *IndexDocument) HasNamespace(ns string) bool {
	return containsString(d.Namespaces, ns)
}

// AuthorizationEndpoint returns authentication.wcpos.endpoints.authorization,
// or "" when any level is missing, not a string, or blank. A non-blank value
// is returned verbatim.
func (d *IndexDocument) AuthorizationEndpoint() string {
	return authorizationEndpoint(d.Authentication)
}

func authorizationEndpoint(auth map[string]interface{}) string {
	wcpos, ok := auth["wcpos"].(map[string]interface{})
	if !ok {
		return ""
	}
	endpoints, ok := wcpos["endpoints"].(map[string]interface{})
	if !ok {
		return ""
	}
	authorization, _ := endpoints["authorization"].(string)
	if strings.TrimSpace(authorization) == "" {
		return ""
	}
	return authorization
}

// decodeIndex maps a generic JSON object onto IndexDocument. Scalars are
// decoded weakly since sites report versions and offsets as either numbers
// or strings. Fields are decoded one at a time; a field whose value cannot
// be converted is left zero and its key is returned in skipped.
func decodeIndex(obj map[string]interface{}, raw []byte) (doc *IndexDocument, skipped []string, err error) {
	doc = &IndexDocument{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           doc,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		// namespaces and authentication are read straight from obj.
		if k == "namespaces" || k == "authentication" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := decoder.Decode(map[string]interface{}{k: obj[k]}); err != nil {
			skipped = append(skipped, k)
		}
	}

	if auth, ok := obj["authentication"].(map[string]interface{}); ok {
		doc.Authentication = auth
	}
	if namespaces, ok := namespaceList(obj); ok {
		doc.Namespaces = namespaces
	}
	doc.Raw = json.RawMessage(raw)
	return doc, skipped, nil
}

// namespaceList extracts the namespaces array, reporting false when the key
// is absent or not a list. Non-string entries are ignored.
func namespaceList(obj map[string]interface{}) ([]string, bool) {
	list, ok := obj["namespaces"].([]interface{})
	if !ok {
		return nil, false
	}
	namespaces := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			namespaces = append(namespaces, s)
		}
	}
	return namespaces, true
}

// EndpointSet holds the URLs derived from a validated index.
type EndpointSet struct {
	APIBaseURL     string
	CommerceAPIURL string
	POSAPIURL      string
	LoginURL       string
}

// deriveEndpoints normalizes indexURL to exactly one trailing slash and
// appends the namespace suffixes. loginURL is kept verbatim.
func deriveEndpoints(indexURL, loginURL string) EndpointSet {
	base := strings.TrimRight(indexURL, "/") + "/"
	return EndpointSet{
		APIBaseURL:     base,
		CommerceAPIURL: base + commerceSuffix,
		POSAPIURL:      base + posSuffix,
		LoginURL:       loginURL,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
