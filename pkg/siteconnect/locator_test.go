package siteconnect

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateViaLinkHeader(t *testing.T) {
	site := newTestSite()
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	got, err := l.Locate(context.Background(), testSiteURL)
	require.NoError(t, err)
	assert.Equal(t, testSiteURL+"/wp-json/", got)
	assert.Equal(t, []string{"HEAD /"}, site.requests())
}

func TestLocateLinkHeaderAmongOthers(t *testing.T) {
	site := newTestSite()
	site.LinkHeader = `<https://shop.example.com/feed/>; rel="alternate", <https://shop.example.com/?rest_route=/>; rel="https://api.w.org/"`
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	got, err := l.Locate(context.Background(), testSiteURL)
	require.NoError(t, err)
	assert.Equal(t, testSiteURL+"/?rest_route=/", got)
}

func TestLocateRelativeLink(t *testing.T) {
	site := newTestSite()
	site.LinkHeader = `</shop/wp-json/>; rel="https://api.w.org/"`
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	got, err := l.Locate(context.Background(), testSiteURL)
	require.NoError(t, err)
	assert.Equal(t, testSiteURL+"/shop/wp-json/", got)
}

func TestLocateFallback(t *testing.T) {
	site := newTestSite()
	site.LinkHeader = ""
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	got, err := l.Locate(context.Background(), testSiteURL)
	require.NoError(t, err)
	assert.Equal(t, testSiteURL+"/wp-json/", got)
	assert.Equal(t, []string{"HEAD /", "HEAD /wp-json/"}, site.requests())
}

func TestLocateFallbackRequires200(t *testing.T) {
	site := newTestSite()
	site.LinkHeader = ""
	site.WPJSONStatus = http.StatusNoContent
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	_, err := l.Locate(context.Background(), testSiteURL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDiscovery))

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, DefaultMessages().Sprintf(MsgDiscoveryFailed), pe.Message)
}

func TestLocateNothingFound(t *testing.T) {
	site := newTestSite()
	site.LinkHeader = `<https://shop.example.com/feed/>; rel="alternate"`
	site.WPJSONStatus = http.StatusNotFound
	l := NewLocator(LocatorConfig{HTTPClient: serve(t, site)})

	_, err := l.Locate(context.Background(), testSiteURL)
	assert.True(t, errors.Is(err, ErrDiscovery))
}

func TestLocateUnreachable(t *testing.T) {
	l := NewLocator(LocatorConfig{HTTPClient: &http.Client{Transport: failingTransport{}}})

	_, err := l.Locate(context.Background(), testSiteURL)
	assert.True(t, errors.Is(err, ErrDiscovery))
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: no such host")
}
