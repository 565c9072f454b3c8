package siteconnect

import (
	"regexp"
	"strings"
	"unicode"
)

// schemePrefix matches one or more leading schemes, so "http://https://x"
// loses both.
var schemePrefix = regexp.MustCompile(`^(?:[A-Za-z][A-Za-z0-9+.-]*://\s*)+`)

// Candidate pairs the address the user typed with its canonical form.
type Candidate struct {
	OriginURL     string
	NormalizedURL string
}

// Normalize turns a user-supplied address into a canonical HTTPS origin: any
// scheme, surrounding whitespace and trailing slashes are removed and
// "https://" is prefixed. It never fails; Normalize("") is "https://".
func Normalize(address string) string {
	s := strings.TrimSpace(address)
	s = schemePrefix.ReplaceAllString(s, "")
	s = strings.TrimRightFunc(s, isTrailing)
	return "https://" + s
}

func isTrailing(r rune) bool {
	return r == '/' || unicode.IsSpace(r)
}

// NewCandidate runs Normalize and keeps the original input alongside.
func NewCandidate(address string) Candidate {
	return Candidate{
		OriginURL:     address,
		NormalizedURL: Normalize(address),
	}
}
