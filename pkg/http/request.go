package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig holds configuration for client IP attribution
type IPConfig struct {
	TrustedProxies []string // CIDR ranges of trusted proxies

	// AssumeSingleProxy attributes requests to the first X-Forwarded-For entry when
	// no TrustedProxies are configured. It suits a deployment behind exactly one
	// reverse proxy and places no trust in the header beyond attribution.
	AssumeSingleProxy bool
}

// ExtractClientIP resolves the client address a request is attributed to.
//
// With TrustedProxies set, forwarded headers are honoured only when the peer is
// inside one of the ranges. Without them, the first X-Forwarded-For entry is used
// only if AssumeSingleProxy is set. Otherwise the peer address wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)
	if config == nil {
		return remoteIP
	}

	trustHeaders := false
	switch {
	case len(config.TrustedProxies) > 0:
		trustHeaders = isTrustedProxy(remoteIP, config.TrustedProxies)
	case config.AssumeSingleProxy:
		trustHeaders = true
	}
	if !trustHeaders {
		return remoteIP
	}

	if ip := firstForwardedFor(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
		return xri
	}

	return remoteIP
}

// firstForwardedFor returns the left-most valid address of an X-Forwarded-For value
func firstForwardedFor(xff string) string {
	if xff == "" {
		return ""
	}
	for _, ip := range strings.Split(xff, ",") {
		ip = strings.TrimSpace(ip)
		if isValidIP(ip) {
			return ip
		}
	}
	return ""
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}

// isTrustedProxy checks if an IP address is within any of the trusted proxy CIDR ranges
func isTrustedProxy(ip string, trustedProxies []string) bool {
	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if ipNet.Contains(clientIP) {
			return true
		}
	}

	return false
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
