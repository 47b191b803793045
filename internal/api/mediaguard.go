package api

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rijan-wa/gateway/internal/apierr"
)

const (
	mediaMaxBytes     = 50 * 1024 * 1024
	mediaMaxRedirects = 5
	mediaTimeout      = 30 * time.Second
)

// mediaGuard enforces the SSRF protections of spec.md §4.G's "Media URL
// safety" paragraph on any mediaUrl a send request carries: scheme
// restricted to http/https, resolved host never loopback/link-local/
// RFC1918/CGNAT/ULA, and a bounded client for any gateway-side fetch.
type mediaGuard struct {
	client *http.Client
}

func newMediaGuard() *mediaGuard {
	return &mediaGuard{
		client: &http.Client{
			Timeout: mediaTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= mediaMaxRedirects {
					return fmt.Errorf("mediaguard: too many redirects")
				}
				return validateMediaURL(req.URL.String())
			},
		},
	}
}

// ValidateURL checks scheme and resolved address ranges without
// fetching the body.
func (g *mediaGuard) ValidateURL(rawURL string) error {
	if err := validateMediaURL(rawURL); err != nil {
		return apierr.Validation("%v", err)
	}
	return nil
}

func validateMediaURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("mediaguard: malformed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("mediaguard: scheme %q not allowed", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("mediaguard: missing host")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("mediaguard: resolve host %q: %w", host, err)
	}
	for _, ip := range ips {
		if isForbiddenIP(ip) {
			return fmt.Errorf("mediaguard: host %q resolves to a disallowed address range", host)
		}
	}
	return nil
}

// isForbiddenIP rejects loopback, link-local, RFC1918 private, CGNAT
// (100.64.0.0/10), and ULA IPv6 (fc00::/7) ranges.
func isForbiddenIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() {
		return true
	}
	if ip.IsUnspecified() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 100 && ip4[1]&0xc0 == 64 { // 100.64.0.0/10 (CGNAT)
			return true
		}
	} else {
		if ip[0]&0xfe == 0xfc { // fc00::/7 (ULA)
			return true
		}
	}
	return false
}

