package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

const anthropicMaxTokens = 2048

// Anthropic runs the agentic web-search tool loop. Citations live in two
// places — inline text-block citations and web_search_tool_result blocks —
// and both are merged. Search-tool invocations are surfaced inline in the
// answer text for traceability but never contribute citations themselves.
type Anthropic struct {
	client  anthropic.Client
	cfg     model.ModelConfig
	maxUses int64
}

// AnthropicOption configures an Anthropic adapter.
type AnthropicOption func(*Anthropic)

// WithWebSearchMaxUses caps how many searches one invocation may run. Zero
// leaves the server default in place.
func WithWebSearchMaxUses(n int64) AnthropicOption {
	return func(a *Anthropic) {
		a.maxUses = n
	}
}

// NewAnthropic creates an Anthropic adapter for one model.
func NewAnthropic(client anthropic.Client, modelID, display string, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		client: client,
		cfg:    model.ModelConfig{Provider: "anthropic", ModelID: modelID, Display: display},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config implements Adapter.
func (a *Anthropic) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *Anthropic) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:            a.cfg.ModelID,
		MaxTokens:        anthropicMaxTokens,
		Messages:         []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature:      &temperature,
		WebSearch:        true,
		WebSearchMaxUses: a.maxUses,
	})
	if err != nil {
		return model.RawAnswer{}, err
	}

	var text strings.Builder
	var urls []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
			for _, cit := range block.Citations {
				if cit.URL != "" {
					urls = append(urls, cit.URL)
				}
			}
		case "server_tool_use":
			if block.Query != "" {
				text.WriteString(fmt.Sprintf("\n[Searching for: %s]\n", block.Query))
			}
		case "web_search_tool_result":
			for _, res := range block.Results {
				urls = append(urls, res.URL)
			}
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return model.RawAnswer{}, eris.Errorf("anthropic: empty response from %s", a.cfg.ModelID)
	}
	return model.RawAnswer{Text: text.String(), Sources: dedupeURLs(urls)}, nil
}
