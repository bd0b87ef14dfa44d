package utils

import (
	"net"
	"net/url"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// CanonicalHost returns a host name in canonical form:
// - Trimmed of surrounding whitespace and lowercased
// - No trailing dots and no port
// - Internationalized labels converted to their ASCII (punycode) form
func CanonicalHost(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if h, _, err := net.SplitHostPort(name); err == nil {
		name = h
	}
	name = strings.Trim(name, "[]")
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	if name == "" || isASCII(name) {
		return name
	}
	ascii, err := idna.Punycode.ToASCII(name)
	if err != nil {
		return name
	}
	return ascii
}

// HostFromURL extracts the canonical host of rawURL. A value without a
// scheme is treated as a bare host. It returns "" when no host can be found.
func HostFromURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		if i := strings.IndexAny(rawURL, "/?#"); i >= 0 {
			rawURL = rawURL[:i]
		}
		return CanonicalHost(rawURL)
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return CanonicalHost(u.Hostname())
	}
	return CanonicalHost(extractHostname(rawURL))
}

// extractHostname is a best-effort fallback for URLs net/url rejects, such as
// ones carrying unescaped characters in the path.
func extractHostname(rawURL string) string {
	start := strings.Index(rawURL, "//")
	if start < 0 {
		return ""
	}
	start += 2
	end := strings.IndexAny(rawURL[start:], "/:?#")
	if end < 0 {
		return rawURL[start:]
	}
	return rawURL[start : start+end]
}

// RegistrableDomain approximates the registrable part of host as its last
// two dot-separated labels. Multi-label public suffixes such as "co.uk" are
// not recognized: "a.example.co.uk" and "b.other.co.uk" both yield "co.uk".
// IP literals are returned unchanged.
func RegistrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	last := strings.LastIndexByte(host, '.')
	if last <= 0 {
		return host
	}
	prev := strings.LastIndexByte(host[:last], '.')
	return host[prev+1:]
}

// IsThirdParty reports whether a request to host issued by a page on
// pageHost is third-party. A request without a page host is first-party.
func IsThirdParty(host, pageHost string) bool {
	if pageHost == "" {
		return false
	}
	return RegistrableDomain(host) != RegistrableDomain(pageHost)
}

// IsDomainOrSubdomain reports whether host equals domain or is a subdomain
// of it. The match is anchored at a label boundary.
func IsDomainOrSubdomain(host, domain string) bool {
	if domain == "" || len(host) < len(domain) {
		return false
	}
	if len(host) == len(domain) {
		return host == domain
	}
	return strings.HasSuffix(host, domain) && host[len(host)-len(domain)-1] == '.'
}

// VisitSuffixes calls visit for host and every parent domain of it, from the
// most specific to the top-level label, until visit returns false.
func VisitSuffixes(host string, visit func(suffix string) bool) {
	for host != "" {
		if !visit(host) {
			return
		}
		i := strings.IndexByte(host, '.')
		if i < 0 {
			return
		}
		host = host[i+1:]
	}
}

// IsValidHostname reports whether name is usable as a domain anchor: a
// syntactically valid DNS name made of letters, digits, hyphens and
// underscores, with at least one dot-separated label.
func IsValidHostname(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-") {
		return false
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return !strings.Contains(name, "..")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
