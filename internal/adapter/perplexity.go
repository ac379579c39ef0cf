package adapter

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/perplexity"
)

// Perplexity answers are search-backed; where the citations live depends on
// the API version. Sources are taken from the first non-empty tier:
// search_results, then the legacy citations list, then a regex scan of the
// answer text.
type Perplexity struct {
	client perplexity.Client
	cfg    model.ModelConfig
}

// NewPerplexity creates a Perplexity adapter for one model.
func NewPerplexity(client perplexity.Client, modelID, display string) *Perplexity {
	return &Perplexity{
		client: client,
		cfg:    model.ModelConfig{Provider: "perplexity", ModelID: modelID, Display: display},
	}
}

// Config implements Adapter.
func (a *Perplexity) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *Perplexity) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model:       a.cfg.ModelID,
		Messages:    []perplexity.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return model.RawAnswer{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.RawAnswer{}, eris.Errorf("perplexity: empty response from %s", a.cfg.ModelID)
	}
	text := resp.Choices[0].Message.Content

	switch {
	case len(resp.SearchResults) > 0:
		urls := make([]string, 0, len(resp.SearchResults))
		for _, sr := range resp.SearchResults {
			urls = append(urls, sr.URL)
		}
		return model.RawAnswer{Text: text, Sources: dedupeURLs(urls)}, nil
	case len(resp.Citations) > 0:
		return model.RawAnswer{Text: text, Sources: dedupeURLs(resp.Citations)}, nil
	default:
		return model.RawAnswer{Text: text, Sources: extractURLs(text)}, nil
	}
}
