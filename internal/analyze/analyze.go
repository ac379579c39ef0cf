// Package analyze holds the secondary-LLM stages of an audit: brand-mention
// classification, sentiment judgment, and competitor discovery. Classification
// and sentiment run against a small Anthropic model; discovery goes through
// the provider registry because it needs web search.
package analyze

import (
	"sync"

	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

// Analyzer performs classification and sentiment calls and accumulates their
// token usage. Safe for concurrent use.
type Analyzer struct {
	client anthropic.Client
	model  string

	usageMu sync.Mutex
	usage   anthropic.TokenUsage
}

// New creates an Analyzer backed by the given Anthropic model.
func New(client anthropic.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model}
}

// Usage returns the token usage accumulated across all calls so far.
func (a *Analyzer) Usage() anthropic.TokenUsage {
	a.usageMu.Lock()
	defer a.usageMu.Unlock()
	return a.usage
}

func (a *Analyzer) addUsage(u anthropic.TokenUsage) {
	a.usageMu.Lock()
	a.usage.InputTokens += u.InputTokens
	a.usage.OutputTokens += u.OutputTokens
	a.usage.CacheCreationInputTokens += u.CacheCreationInputTokens
	a.usage.CacheReadInputTokens += u.CacheReadInputTokens
	a.usageMu.Unlock()
}

// truncate bounds the answer text sent to the secondary model. Visibility
// answers from search-backed providers can run very long; everything relevant
// to mention or sentiment extraction is in the prose itself.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
