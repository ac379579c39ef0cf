// Package redirect resolves search-grounding redirect links to their real
// destinations. Some providers cite sources through an indirection service;
// those links are useless to reporting, so every grounded citation passes
// through Resolve before it may appear in a result row.
package redirect

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultServiceHost is the grounding redirect host used by
	// search-grounded Gemini responses.
	DefaultServiceHost = "vertexaisearch.cloud.google.com"

	defaultTimeout = 5 * time.Second
	maxHops        = 5
)

// domainPattern matches a domain-shaped token inside a page title, e.g. the
// "acme.com" in "Acme Corp (acme.com)".
var domainPattern = regexp.MustCompile(`\b([a-z0-9][a-z0-9-]*(?:\.[a-z0-9][a-z0-9-]*)+)\b`)

// Resolver follows redirect-service URLs to their destination.
type Resolver struct {
	serviceHost string
	client      *http.Client
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithServiceHost overrides the redirect-service host to match against.
func WithServiceHost(host string) Option {
	return func(r *Resolver) {
		r.serviceHost = host
	}
}

// WithHTTPClient overrides the HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(r *Resolver) {
		r.client = hc
	}
}

// WithTimeout overrides the per-resolution timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.client.Timeout = d
	}
}

// New creates a Resolver bounded to 5 redirect hops and a 5 second timeout.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		serviceHost: DefaultServiceHost,
		client: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// IsServiceURL reports whether rawURL points at the redirect service. The
// full host:port is compared so a service pinned to a port never swallows
// other hosts on the same address.
func (r *Resolver) IsServiceURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == r.serviceHost || strings.HasSuffix(host, "."+r.serviceHost)
}

// Resolve maps a citation URL to a real destination. Non-service URLs pass
// through unchanged. Service URLs are resolved by following redirects with a
// HEAD request; when that fails or still lands on the service, a domain is
// derived from the accompanying title. An empty return means the caller must
// drop the citation, never cite the empty string.
func (r *Resolver) Resolve(ctx context.Context, rawURL, title string) string {
	if !r.IsServiceURL(rawURL) {
		return rawURL
	}

	if dest := r.follow(ctx, rawURL); dest != "" {
		return dest
	}
	return domainFromTitle(title)
}

// follow issues a HEAD request and accepts the final URL if it moved off the
// redirect service.
func (r *Resolver) follow(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ""
	}

	resp, err := r.client.Do(req)
	if err != nil {
		zap.L().Debug("redirect: head request failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return ""
	}
	defer resp.Body.Close() //nolint:errcheck

	final := resp.Request.URL.String()
	if final == rawURL || r.IsServiceURL(final) {
		return ""
	}
	return final
}

// domainFromTitle derives a URL from the citation title. Tries a
// domain-shaped token inside the title first; failing that, a title that is
// itself a bare domain (contains a dot, no spaces) is used directly.
func domainFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	if m := domainPattern.FindString(strings.ToLower(title)); m != "" {
		return "https://" + m
	}

	if strings.Contains(title, ".") && !strings.ContainsAny(title, " \t\n") {
		if strings.Contains(title, "://") {
			return title
		}
		return "https://" + title
	}

	return ""
}
