package siteconnect

import (
	"errors"
	"fmt"

	"github.com/iancoleman/strcase"
)

// Kind classifies a pipeline failure. Every kind is recoverable: a failed
// Connect leaves the orchestrator in the error state and a fresh call is
// required.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingParameter
	KindDiscovery
	KindMalformedResponse
	KindAPINotFound
	KindCommerceAPIMissing
	KindPOSPluginMissing
	KindAuthEndpointMissing
	KindNoAuthMethodSupported
	KindPersistence
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindMissingParameter:      "MissingParameter",
	KindDiscovery:             "DiscoveryError",
	KindMalformedResponse:     "MalformedResponse",
	KindAPINotFound:           "ApiNotFound",
	KindCommerceAPIMissing:    "CommerceApiMissing",
	KindPOSPluginMissing:      "PosPluginMissing",
	KindAuthEndpointMissing:   "AuthEndpointMissing",
	KindNoAuthMethodSupported: "NoAuthMethodSupported",
	KindPersistence:           "PersistenceFailure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code returns the snake_case form used as a structured log value.
func (k Kind) Code() string {
	return strcase.ToSnake(k.String())
}

// Error is the tagged result each stage returns to the orchestrator.
// Message is short and human-readable; Err carries the technical cause,
// which is logged but never shown to the user.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, siteconnect.ErrDiscovery).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrMissingParameter      = &Error{Kind: KindMissingParameter}
	ErrDiscovery             = &Error{Kind: KindDiscovery}
	ErrMalformedResponse     = &Error{Kind: KindMalformedResponse}
	ErrAPINotFound           = &Error{Kind: KindAPINotFound}
	ErrCommerceAPIMissing    = &Error{Kind: KindCommerceAPIMissing}
	ErrPOSPluginMissing      = &Error{Kind: KindPOSPluginMissing}
	ErrAuthEndpointMissing   = &Error{Kind: KindAuthEndpointMissing}
	ErrNoAuthMethodSupported = &Error{Kind: KindNoAuthMethodSupported}
	ErrPersistence           = &Error{Kind: KindPersistence}
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the Kind of err, or KindUnknown when err is not a pipeline
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
