package ingest

import (
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// UnknownIP is recorded when no forwarding header names the client.
const UnknownIP = "unknown"

// ClientIP returns the first X-Forwarded-For entry, then X-Real-IP, then
// UnknownIP. The daemon is expected to run behind a proxy that sets these.
func ClientIP(h http.Header) string {
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownIP
}

// IPHasher produces the stored ip_hash: keyed BLAKE2b-256, hex, truncated to
// 16 characters. The same salt always yields the same hash for an IP.
type IPHasher struct {
	key [32]byte
}

func NewIPHasher(salt string) *IPHasher {
	return &IPHasher{key: blake2b.Sum256([]byte(salt))}
}

func (h *IPHasher) Hash(ip string) string {
	return h.digest(ip)
}

// SessionFallback derives a session id for payloads that carry none. Events
// from the same IP and user agent on the same UTC day share a session.
func (h *IPHasher) SessionFallback(ipHash, userAgent, day string) string {
	return h.digest(ipHash, userAgent, day)
}

func (h *IPHasher) digest(parts ...string) string {
	mac, err := blake2b.New256(h.key[:])
	if err != nil {
		// Only possible with a key longer than 64 bytes.
		panic(err)
	}
	for i, p := range parts {
		if i > 0 {
			_, _ = mac.Write([]byte{0})
		}
		_, _ = mac.Write([]byte(p))
	}
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
