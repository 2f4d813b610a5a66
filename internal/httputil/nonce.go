package httputil

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
)

type nonceKey struct{}

func GenerateNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("httputil: failed to generate CSP nonce", "error", err)
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// WithNonce attaches a fresh script/style nonce to the request context.
func WithNonce(r *http.Request) (*http.Request, string) {
	nonce := GenerateNonce()
	return r.WithContext(ContextWithNonce(r.Context(), nonce)), nonce
}

func ContextWithNonce(ctx context.Context, nonce string) context.Context {
	return context.WithValue(ctx, nonceKey{}, nonce)
}

func NonceFromContext(ctx context.Context) string {
	v, _ := ctx.Value(nonceKey{}).(string)
	return v
}
