// Package metadata extracts client network metadata for audit enrichment.
package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"taxgate/pkg/requestcontext"
)

// ClientMetadata extracts the client IP address and a normalized User-Agent
// from the request and adds them to the context for handlers, services, and
// the audit pipeline. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		ua := NormalizeUserAgent(r.Header.Get("User-Agent"))

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, ua)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NormalizeUserAgent reduces a raw User-Agent header to "Browser Version (OS)"
// so audit records stay comparable across requests. Non-browser agents (curl,
// SDKs) fall back to the raw string, truncated to a sane length.
func NormalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}

	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name != "" && !ua.Bot() {
		normalized := name
		if version != "" {
			normalized += " " + version
		}
		if os := ua.OS(); os != "" {
			normalized += " (" + os + ")"
		}
		return normalized
	}

	const maxRawLen = 120
	if len(raw) > maxRawLen {
		return raw[:maxRawLen]
	}
	return raw
}

// ClientIPFromRequest extracts the real client IP, handling proxies and load
// balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// X-Real-IP is set by nginx and similar proxies.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for IPv4 and "[::1]:port" for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}

	return "unknown"
}
