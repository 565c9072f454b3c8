package siteconnect

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testSiteURL = "https://shop.example.com"

// testSite is a fake WordPress site serving just enough of the REST API for
// a connection.
type testSite struct {
	mu sync.Mutex
	siteConfig

	// Requests records method and path of every request.
	Requests []string
}

type siteConfig struct {
	UUID         string
	Name         string
	Namespaces   []string
	WCPOSVersion string

	// LinkHeader controls the Link header on HEAD /. Empty disables it.
	LinkHeader string

	// WPJSONStatus is returned for HEAD /wp-json/. Zero means 200.
	WPJSONStatus int

	// IndexBody overrides the generated index document.
	IndexBody string

	// LoginURL is authentication.wcpos.endpoints.authorization. Empty
	// omits the authentication block.
	LoginURL string

	HeaderAuth bool
	ParamAuth  bool

	// Gate, when set, blocks index requests until closed.
	Gate chan struct{}
}

func newTestSite() *testSite {
	return &testSite{siteConfig: siteConfig{
		UUID:         "2e6a4c0a-3f1d-4a8e-9c1b-5f2f5c7a9d10",
		Name:         "My Shop",
		Namespaces:   []string{"wp/v2", "wc/v3", "wcpos/v1"},
		WCPOSVersion: "1.8.0",
		LinkHeader:   `<` + testSiteURL + `/wp-json/>; rel="https://api.w.org/"`,
		LoginURL:     testSiteURL + "/wcpos-login/",
		HeaderAuth:   true,
		ParamAuth:    true,
	}}
}

func (s siteConfig) index() string {
	if s.IndexBody != "" {
		return s.IndexBody
	}
	doc := map[string]interface{}{
		"uuid":          s.UUID,
		"name":          s.Name,
		"description":   "Just another WordPress site",
		"url":           testSiteURL,
		"home":          testSiteURL,
		"gmt_offset":    0,
		"namespaces":    s.Namespaces,
		"wc_version":    "9.1.2",
		"wcpos_version": s.WCPOSVersion,
	}
	if s.LoginURL != "" {
		doc["authentication"] = map[string]interface{}{
			"wcpos": map[string]interface{}{
				"endpoints": map[string]interface{}{
					"authorization": s.LoginURL,
				},
			},
		}
	}
	b, _ := json.Marshal(doc)
	return string(b)
}

func (s *testSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.Requests = append(s.Requests, r.Method+" "+r.URL.Path)
	site := s.siteConfig
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/" && r.Method == http.MethodHead:
		if site.LinkHeader != "" {
			w.Header().Add("Link", site.LinkHeader)
		}
		w.WriteHeader(http.StatusOK)

	case r.URL.Path == "/wp-json/" && r.Method == http.MethodHead:
		status := site.WPJSONStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)

	case strings.TrimRight(r.URL.Path, "/") == "/wp-json" && r.Method == http.MethodGet:
		if site.Gate != nil {
			select {
			case <-site.Gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(site.index()))

	case r.URL.Path == "/wp-json/wcpos/v1/auth/test":
		ok := false
		if r.Header.Get(markerHeader) == "1" {
			if auth := r.Header.Get("Authorization"); auth != "" {
				ok = site.HeaderAuth && strings.HasPrefix(auth, "Bearer ")
			} else if auth := r.URL.Query().Get(paramName); auth != "" {
				ok = site.ParamAuth && strings.HasPrefix(auth, "Bearer ")
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"rest_forbidden"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success"}`))

	default:
		http.NotFound(w, r)
	}
}

func (s *testSite) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Requests...)
}

func (s *testSite) set(f func(*siteConfig)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.siteConfig)
}

// serve starts site over TLS and returns a client that routes every host to
// it, so the site answers as shop.example.com.
func serve(t *testing.T, site http.Handler) *http.Client {
	t.Helper()
	srv := httptest.NewTLSServer(site)
	t.Cleanup(srv.Close)

	tr := srv.Client().Transport.(*http.Transport).Clone()
	tr.TLSClientConfig.InsecureSkipVerify = true
	addr := srv.Listener.Addr().String()
	tr.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}
	return &http.Client{Transport: tr}
}
