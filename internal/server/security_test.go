package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sendrec/devicelab/internal/httputil"
)

func serveSecured(cfg SecurityConfig, inner http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(cfg)(inner).ServeHTTP(rec, req)
	return rec
}

var noop = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

func TestSecurityHeaders_CSPContainsNonce(t *testing.T) {
	var capturedNonce string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedNonce = httputil.NonceFromContext(r.Context())
	})

	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"}, inner)

	csp := rec.Header().Get("Content-Security-Policy")
	if capturedNonce == "" {
		t.Fatal("expected non-empty nonce in context")
	}
	if !strings.Contains(csp, "script-src 'self' 'nonce-"+capturedNonce+"'") {
		t.Errorf("CSP script-src should contain nonce, got: %s", csp)
	}
	if !strings.Contains(csp, "style-src 'self' 'nonce-"+capturedNonce+"'") {
		t.Errorf("CSP style-src should contain nonce, got: %s", csp)
	}
}

func TestSecurityHeaders_CSPOmitsUnsafeInline(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"}, noop)

	csp := rec.Header().Get("Content-Security-Policy")
	if strings.Contains(csp, "'unsafe-inline'") {
		t.Errorf("CSP should not contain 'unsafe-inline', got: %s", csp)
	}
}

func TestSecurityHeaders_CSPIncludesStorageEndpoint(t *testing.T) {
	rec := serveSecured(SecurityConfig{
		BaseURL:         "https://app.test",
		StorageEndpoint: "https://storage.example.com",
	}, noop)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self' https://storage.example.com") {
		t.Errorf("CSP connect-src should include storage endpoint, got: %s", csp)
	}
	if !strings.Contains(csp, "media-src 'self' data: https://storage.example.com;") {
		t.Errorf("CSP media-src should include storage endpoint, got: %s", csp)
	}
}

func TestSecurityHeaders_CSPIncludesMediaOrigin(t *testing.T) {
	rec := serveSecured(SecurityConfig{
		BaseURL:         "https://app.test",
		StorageEndpoint: "https://storage.example.com",
		MediaOrigin:     "https://cdn.example.com",
	}, noop)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "media-src 'self' data: https://storage.example.com https://cdn.example.com;") {
		t.Errorf("CSP media-src should include demo video origin, got: %s", csp)
	}
	if strings.Contains(csp, "connect-src 'self' https://storage.example.com https://cdn.example.com") {
		t.Errorf("media origin must not widen connect-src, got: %s", csp)
	}
}

func TestSecurityHeaders_CSPOmitsStorageWhenEmpty(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"}, noop)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self';") || strings.Contains(csp, "connect-src 'self' https://") {
		t.Errorf("CSP connect-src should be just 'self' when no storage endpoint, got: %s", csp)
	}
}

func TestSecurityHeaders_UniqueNoncePerRequest(t *testing.T) {
	var nonces []string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonces = append(nonces, httputil.NonceFromContext(r.Context()))
	})

	for range 3 {
		serveSecured(SecurityConfig{BaseURL: "https://app.test"}, inner)
	}

	if nonces[0] == nonces[1] || nonces[1] == nonces[2] {
		t.Errorf("expected unique nonces per request, got %v", nonces)
	}
}

func TestSecurityHeaders_PermissionsPolicyDeniesDevices(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"}, noop)

	pp := rec.Header().Get("Permissions-Policy")
	for _, want := range []string{"camera=()", "microphone=()", "geolocation=()"} {
		if !strings.Contains(pp, want) {
			t.Errorf("Permissions-Policy should contain %s, got: %s", want, pp)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		baseURL  string
		wantHSTS bool
	}{
		{"https://app.test", true},
		{"http://localhost:8080", false},
		{"", false},
	}
	for _, tt := range tests {
		rec := serveSecured(SecurityConfig{BaseURL: tt.baseURL}, noop)
		got := rec.Header().Get("Strict-Transport-Security") != ""
		if got != tt.wantHSTS {
			t.Errorf("BaseURL %q: HSTS present = %v, want %v", tt.baseURL, got, tt.wantHSTS)
		}
	}
}

func TestSecurityHeaders_FrameAncestors(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"}, noop)

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors 'self'") {
		t.Errorf("CSP should contain frame-ancestors 'self', got: %s", csp)
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Errorf("expected X-Frame-Options SAMEORIGIN, got %q", rec.Header().Get("X-Frame-Options"))
	}
}
