package domain

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
)

// RequestContext describes one outgoing request being admitted.
type RequestContext struct {
	URL          string
	Host         string
	PageHost     string
	ResourceType ResourceType
}

// NewRequestContext builds a RequestContext from an absolute request URL, the
// page it was issued from (a URL or a bare host, possibly empty) and the
// resource type. Hosts are canonicalized.
func NewRequestContext(rawURL, page string, rt ResourceType) (RequestContext, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return RequestContext{}, fmt.Errorf("request url must not be empty")
	}
	host := utils.HostFromURL(rawURL)
	if host == "" {
		return RequestContext{}, fmt.Errorf("request url %q has no host", rawURL)
	}
	return RequestContext{
		URL:          rawURL,
		Host:         host,
		PageHost:     utils.HostFromURL(page),
		ResourceType: rt,
	}, nil
}

// IsThirdParty reports whether the request leaves the page's site.
func (r RequestContext) IsThirdParty() bool {
	return utils.IsThirdParty(r.Host, r.PageHost)
}

// URLTailLength bounds the URL portion of a cache key.
const URLTailLength = 128

// CacheKey identifies a memoized admission decision.
type CacheKey struct {
	Host    string
	URLTail string
}

// CacheKey derives the decision-cache key for the request. Page host and
// resource type are not part of the key.
func (r RequestContext) CacheKey() CacheKey {
	return CacheKey{Host: r.Host, URLTail: utils.URLTail(r.URL, URLTailLength)}
}
