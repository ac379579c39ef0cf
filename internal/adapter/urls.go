package adapter

import (
	"regexp"
	"strings"
)

var (
	markdownLink = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)\)`)
	bareURL      = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
)

// extractURLs recovers source URLs from free text: markdown link targets and
// bare http(s) tokens, deduplicated in first-seen order. This is the fallback
// for providers with no structured citations.
func extractURLs(text string) []string {
	type hit struct {
		url string
		pos int
	}
	var hits []hit

	for _, m := range markdownLink.FindAllStringSubmatchIndex(text, -1) {
		hits = append(hits, hit{url: text[m[2]:m[3]], pos: m[2]})
	}
	for _, m := range bareURL.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{url: text[m[0]:m[1]], pos: m[0]})
	}

	// Positional order keeps first-seen semantics when both patterns hit.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var out []string
	seen := make(map[string]bool)
	for _, h := range hits {
		u := strings.TrimRight(h.url, ".,;:!?")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// dedupeURLs removes duplicates and empty entries, preserving first-seen order.
func dedupeURLs(urls []string) []string {
	var out []string
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
