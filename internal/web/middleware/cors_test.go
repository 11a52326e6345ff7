package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func corsRequest(handler http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1/classes", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSLocalhostAlwaysAllowed(t *testing.T) {
	handler := CORS()(okHandler())

	for _, origin := range []string{"http://localhost:5173", "https://localhost", "http://localhost:3000"} {
		w := corsRequest(handler, http.MethodGet, origin)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("origin %s: Allow-Origin = %q, want the origin echoed", origin, got)
		}
	}
}

func TestCORSWhitelist(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://classes.example.com, https://admin.example.com")
	handler := CORS()(okHandler())

	w := corsRequest(handler, http.MethodGet, "https://classes.example.com")
	if w.Header().Get("Access-Control-Allow-Origin") != "https://classes.example.com" {
		t.Error("whitelisted origin should receive CORS headers")
	}

	w = corsRequest(handler, http.MethodGet, "https://evil.example.com")
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not receive CORS headers")
	}
	if w.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Error("unlisted origin must not receive method grants")
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	reached := false
	handler := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}))

	w := corsRequest(handler, http.MethodOptions, "http://localhost:5173")
	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", w.Code)
	}
	if reached {
		t.Error("preflight must not reach the next handler")
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())
	w := corsRequest(handler, http.MethodGet, "")

	if got := w.Header().Get("Content-Security-Policy"); got != "default-src 'none'; frame-ancestors 'none'" {
		t.Errorf("Content-Security-Policy = %q", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options header")
	}
}
