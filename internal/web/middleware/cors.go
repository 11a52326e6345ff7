package middleware

import (
	"net/http"
	"os"
	"strings"
)

// allowedOrigins builds the origin whitelist from the WEB_ALLOWED_ORIGINS
// environment variable, a comma separated list of exact origins.
func allowedOrigins() map[string]struct{} {
	origins := make(map[string]struct{})
	env := os.Getenv("WEB_ALLOWED_ORIGINS")
	if env == "" {
		return origins
	}
	for o := range strings.SplitSeq(env, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

// localhostOrigin reports whether origin is http(s)://localhost, with or
// without a port. Local frontends are always trusted.
func localhostOrigin(origin string) bool {
	for _, scheme := range []string{"http://localhost", "https://localhost"} {
		if origin == scheme || strings.HasPrefix(origin, scheme+":") {
			return true
		}
	}
	return false
}

func originAllowed(origin string, allowed map[string]struct{}) bool {
	if origin == "" {
		return false
	}
	if localhostOrigin(origin) {
		return true
	}
	_, ok := allowed[origin]
	return ok
}

// CORS returns middleware that grants cross-origin access to whitelisted
// origins only. The whitelist comes from WEB_ALLOWED_ORIGINS; localhost is
// always included so a frontend dev server can talk to the API. Preflight
// OPTIONS requests are answered directly without reaching the router.
func CORS() func(http.Handler) http.Handler {
	allowed := allowedOrigins()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(origin, allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders returns middleware that hardens every response. The server
// only ever emits JSON, so the content security policy denies everything and
// the responses refuse framing and content-type sniffing.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
