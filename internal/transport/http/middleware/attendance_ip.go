package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/shared"
)

// AttendanceIPGuard only lets a request through when one of its client
// addresses, any X-Forwarded-For hop or the remote host, falls inside the
// allowed addresses or CIDR ranges. An empty allow-list lets everything through.
func AttendanceIPGuard(allowed []string) func(http.Handler) http.Handler {
	networks := parseNetworks(allowed)
	return func(next http.Handler) http.Handler {
		if len(networks) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidates := shared.ClientIPs(r)
			for _, raw := range candidates {
				addr, ok := parseClientAddr(raw)
				if !ok {
					continue
				}
				for _, network := range networks {
					if network.Contains(addr) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			requestID := GetRequestID(r.Context())
			slog.Warn("attendance marking blocked", "ips", candidates, "requestId", requestID)
			api.Fail(w, http.StatusForbidden, "network_not_allowed", "Attendance marking is not permitted from this network", requestID)
		})
	}
}

func parseNetworks(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(strings.TrimSpace(entry)); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		if addr, ok := parseClientAddr(entry); ok {
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return out
}

// parseClientAddr reads an address, folding IPv4-mapped IPv6 ("::ffff:a.b.c.d")
// to plain IPv4.
func parseClientAddr(raw string) (netip.Addr, bool) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "::ffff:")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
