package httputil

import (
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ClientIP prefers the first X-Forwarded-For hop and strips the port from
// RemoteAddr otherwise.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ViewerHash returns a short keyed digest identifying a viewer without
// storing the raw IP or user agent.
func ViewerHash(key, ip, userAgent string) string {
	k := blake2b.Sum256([]byte(key))
	h, _ := blake2b.New256(k[:])
	h.Write([]byte(ip))
	h.Write([]byte{'|'})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
