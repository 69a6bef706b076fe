package http

import (
	"net"
	"net/http"
	"strings"
)

// UnknownIP is reported when no address can be resolved
const UnknownIP = "unknown"

// IPConfig holds configuration for client IP resolution
type IPConfig struct {
	// TrustedProxies restricts which peers may set forwarding headers.
	// Empty means forwarding headers are always honored.
	TrustedProxies []string

	nets []*net.IPNet
}

// NewIPConfig parses the trusted proxy CIDR ranges, skipping invalid ones
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{TrustedProxies: trustedProxies}
	for _, cidr := range trustedProxies {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		if !strings.Contains(cidr, "/") {
			if ip := net.ParseIP(cidr); ip != nil && ip.To4() != nil {
				cidr += "/32"
			} else {
				cidr += "/128"
			}
		}
		if _, ipNet, err := net.ParseCIDR(cidr); err == nil {
			cfg.nets = append(cfg.nets, ipNet)
		}
	}
	return cfg
}

// ExtractClientIP resolves the client address for a request.
//
// Order:
// 1. first segment of X-Forwarded-For
// 2. X-Real-IP
// 3. the socket address
// 4. "unknown"
//
// With trusted proxies configured, steps 1 and 2 apply only when the peer is
// one of them.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config == nil || config.trusts(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); isValidIP(first) {
				return first
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

func (c *IPConfig) trusts(ip string) bool {
	if len(c.TrustedProxies) == 0 {
		return true
	}
	nets := c.nets
	if nets == nil {
		// built as a literal rather than through NewIPConfig
		nets = NewIPConfig(c.TrustedProxies).nets
	}

	clientIP := net.ParseIP(ip)
	if clientIP == nil {
		return false
	}
	for _, ipNet := range nets {
		if ipNet.Contains(clientIP) {
			return true
		}
	}
	return false
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr == "" {
		return UnknownIP
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
