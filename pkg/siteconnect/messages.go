package siteconnect

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Messages renders user-visible text from a message key.
type Messages interface {
	Sprintf(key string, a ...interface{}) string
}

// Message keys.
const (
	MsgDiscoveringURL = "status.discovering_url"
	MsgDiscoveringAPI = "status.discovering_api"
	MsgTestingAuth    = "status.testing_auth"
	MsgSaving         = "status.saving"
	MsgConnected      = "status.connected"

	MsgMissingURL          = "error.missing_url"
	MsgDiscoveryFailed     = "error.discovery"
	MsgMalformedResponse   = "error.malformed_response"
	MsgAPINotFound         = "error.api_not_found"
	MsgCommerceAPIMissing  = "error.commerce_api_missing"
	MsgPOSPluginMissing    = "error.pos_plugin_missing"
	MsgAuthEndpointMissing = "error.auth_endpoint_missing"
	MsgNoAuthMethod        = "error.no_auth_method"
	MsgPersistence         = "error.persistence"
	MsgPersistenceInvalid  = "error.persistence_invalid"
	MsgPersistenceConflict = "error.persistence_conflict"
	MsgUnexpected          = "error.unexpected"

	MsgPluginOutdated = "warning.plugin_outdated"
)

var englishMessages = map[string]string{
	MsgDiscoveringURL: "Discovering site API",
	MsgDiscoveringAPI: "Checking WooCommerce POS API",
	MsgTestingAuth:    "Testing authorization",
	MsgSaving:         "Saving site",
	MsgConnected:      "Connected to %s",

	MsgMissingURL:          "Please enter a site URL",
	MsgDiscoveryFailed:     "Could not find the WordPress REST API for this site",
	MsgMalformedResponse:   "The site returned an unexpected response",
	MsgAPINotFound:         "The WordPress REST API is not available on this site",
	MsgCommerceAPIMissing:  "WooCommerce API not found. Is WooCommerce installed and active?",
	MsgPOSPluginMissing:    "WooCommerce POS plugin not found. Is it installed and active?",
	MsgAuthEndpointMissing: "WooCommerce POS did not provide a login endpoint",
	MsgNoAuthMethod:        "The site rejects authorization by header and by query parameter",
	MsgPersistence:         "Could not save the site connection",
	MsgPersistenceInvalid:  "The site returned incomplete details and could not be saved",
	MsgPersistenceConflict: "This site was saved by another connection attempt, please retry",
	MsgUnexpected:          "Something went wrong while connecting to the site",

	MsgPluginOutdated: "WooCommerce POS %s is older than the minimum supported version %s, please update the plugin",
}

// DefaultMessages returns the built-in English catalog.
func DefaultMessages() Messages {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range englishMessages {
		// SetString only fails on malformed tags.
		_ = builder.SetString(language.English, key, msg)
	}
	return NewMessages(message.NewPrinter(language.English, message.Catalog(builder)))
}

// NewMessages adapts a printer, typically built on a caller's translation
// catalog, to Messages.
func NewMessages(p *message.Printer) Messages {
	return printer{p: p}
}

type printer struct {
	p *message.Printer
}

func (m printer) Sprintf(key string, a ...interface{}) string {
	return m.p.Sprintf(key, a...)
}
