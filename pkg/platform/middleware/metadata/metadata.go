package metadata

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"cashdesk/pkg/requestcontext"
)

// Device classes recorded on audit events.
const (
	DeviceTerminal = "terminal"
	DeviceMobile   = "mobile"
	DeviceBrowser  = "browser"
	DeviceBot      = "bot"
	DeviceUnknown  = "unknown"
)

// ClientMetadata extracts client IP address and User-Agent from the request
// and adds them, with a coarse device classification, to the context.
// This middleware should be applied early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIPFromRequest(r)
		userAgent := r.Header.Get("User-Agent")

		ctx := requestcontext.WithClientMetadata(r.Context(), ip, userAgent, ClassifyDevice(userAgent))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClassifyDevice maps a User-Agent to a device class. ATM and teller terminals
// talk to the API with non-browser HTTP clients, which classify as terminal.
func ClassifyDevice(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return DeviceUnknown
	}
	ua := useragent.New(raw)
	switch {
	case ua.Bot():
		return DeviceBot
	case ua.Mobile():
		return DeviceMobile
	}
	if name, _ := ua.Browser(); name != "" && ua.Mozilla() != "" {
		return DeviceBrowser
	}
	return DeviceTerminal
}

// ClientIPFromRequest extracts the real client IP from the request, handling proxies and load balancers.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port"; IPv6 is "[::1]:port"
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return strings.Trim(addr[:idx], "[]")
		}
		return addr
	}

	return "unknown"
}
