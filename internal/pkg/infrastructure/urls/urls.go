package urls

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize strips the query portion from a raw service URL and extracts
// the declared layer name from the layers query parameter, matched case
// insensitively. The stripped URL is the deduplication key for
// capability lookups.
func Normalize(rawURL string) (string, string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		stripped, _, _ := strings.Cut(rawURL, "?")
		return stripped, ""
	}

	layerName := ""

	for key, values := range parsed.Query() {
		if strings.EqualFold(key, "layers") && len(values) > 0 {
			layerName = values[0]
		}
	}

	parsed.RawQuery = ""
	parsed.Fragment = ""

	return parsed.String(), layerName
}

// Policy decides whether requests to a target have to be relayed through
// the cross origin proxy, and rewrites URLs accordingly. The cache hint
// tags the rewritten URL with a cache lifetime such as "1d".
type Policy interface {
	ShouldUseProxy(rawURL string) bool
	GetURL(rawURL string, cacheHint string) string
}

// NewPolicy creates a policy that relays everything except targets whose
// host appears in openHosts. An empty proxy base URL disables relaying.
func NewPolicy(proxyBaseURL string, openHosts []string) Policy {
	p := &policy{
		proxyBaseURL: strings.TrimSuffix(proxyBaseURL, "/"),
		openHosts:    map[string]struct{}{},
	}

	for _, host := range openHosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			p.openHosts[host] = struct{}{}
		}
	}

	return p
}

type policy struct {
	proxyBaseURL string
	openHosts    map[string]struct{}
}

func (p *policy) ShouldUseProxy(rawURL string) bool {
	if p.proxyBaseURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return false
	}

	_, open := p.openHosts[strings.ToLower(parsed.Hostname())]
	return !open
}

func (p *policy) GetURL(rawURL string, cacheHint string) string {
	if cacheHint != "" {
		return fmt.Sprintf("%s/_%s/%s", p.proxyBaseURL, cacheHint, rawURL)
	}

	return fmt.Sprintf("%s/%s", p.proxyBaseURL, rawURL)
}

// ProxyIfNeeded rewrites rawURL through the relay when the policy says
// the target requires it. A nil policy never relays.
func ProxyIfNeeded(p Policy, rawURL string, cacheHint string) string {
	if p != nil && p.ShouldUseProxy(rawURL) {
		return p.GetURL(rawURL, cacheHint)
	}

	return rawURL
}
