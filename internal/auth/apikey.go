package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/sendrec/devicelab/internal/httputil"
)

const apiKeyHeader = "X-API-Key"

func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// RequireAPIKey guards operator endpoints with a static key, read from the
// X-API-Key header or a Bearer token. Only the key's hash is kept in memory.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	want := []byte(HashAPIKey(key))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(apiKeyHeader)
			if token == "" {
				token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if token == "" {
				httputil.WriteError(w, http.StatusUnauthorized, "api key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(HashAPIKey(token)), want) != 1 {
				httputil.WriteError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
