package shared

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the first X-Forwarded-For hop, else the remote host.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// ClientIPs returns every X-Forwarded-For hop in order, else the remote host.
func ClientIPs(r *http.Request) []string {
	var out []string
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if value := strings.TrimSpace(hop); value != "" {
			out = append(out, value)
		}
	}
	if len(out) > 0 {
		return out
	}
	if ip := ClientIP(r); ip != "" {
		return []string{ip}
	}
	return nil
}
