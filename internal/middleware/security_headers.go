package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders returns a middleware that adds security headers to all
// responses. The service has no browser-rendered surface of its own, but
// these responses may still land in one via the frontends that call it.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("X-DNS-Prefetch-Control", "off")
			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
			w.Header().Set("Permissions-Policy",
				"accelerometer=(), camera=(), geolocation=(), microphone=(), payment=(), usb=()")

			if config.Env == "production" {
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'")
				w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
				if r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https" {
					w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
				}
			} else {
				// Lenient in development so local tooling keeps working
				w.Header().Set("Content-Security-Policy",
					"default-src 'self' http: https: ws:; frame-ancestors 'self'; base-uri 'self'; form-action 'self'")
				w.Header().Set("Cross-Origin-Embedder-Policy", "credentialless")
			}

			next.ServeHTTP(w, r)
		})
	}
}
