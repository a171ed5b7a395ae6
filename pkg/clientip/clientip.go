package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP used as the rate-limit and log key.
// With trustProxy the left-most X-Forwarded-For entry wins; otherwise only
// r.RemoteAddr is used, since the header is client-controlled.
func RealClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}
