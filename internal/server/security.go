package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sendrec/devicelab/internal/httputil"
)

type SecurityConfig struct {
	BaseURL         string
	StorageEndpoint string
	// MediaOrigin is where the hover-autoplay demo video is served from.
	MediaOrigin string
}

func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := strings.HasPrefix(cfg.BaseURL, "https://")

	connectSuffix := ""
	if cfg.StorageEndpoint != "" {
		connectSuffix = " " + cfg.StorageEndpoint
	}
	mediaSuffix := connectSuffix
	if cfg.MediaOrigin != "" && cfg.MediaOrigin != cfg.StorageEndpoint {
		mediaSuffix += " " + cfg.MediaOrigin
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, nonce := httputil.WithNonce(r)

			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "SAMEORIGIN")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), screen-wake-lock=(), display-capture=()")

			csp := fmt.Sprintf(
				"default-src 'self'; img-src 'self' data:; media-src 'self' data:%s; script-src 'self' 'nonce-%s'; style-src 'self' 'nonce-%s'; connect-src 'self'%s; frame-ancestors 'self';",
				mediaSuffix, nonce, nonce, connectSuffix,
			)
			w.Header().Set("Content-Security-Policy", csp)

			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
