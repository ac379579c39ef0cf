package adapter

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/internal/redirect"
	"github.com/meridianlabs/visibility-cli/pkg/gemini"
)

// Gemini uses Google Search grounding. Every grounding URI points at the
// grounding redirect service and is resolved before inclusion; entries that
// cannot be resolved to a real destination are dropped, never cited raw.
type Gemini struct {
	client   gemini.Client
	resolver *redirect.Resolver
	cfg      model.ModelConfig
}

// NewGemini creates a Gemini adapter for one model.
func NewGemini(client gemini.Client, resolver *redirect.Resolver, modelID, display string) *Gemini {
	return &Gemini{
		client:   client,
		resolver: resolver,
		cfg:      model.ModelConfig{Provider: "gemini", ModelID: modelID, Display: display},
	}
}

// Config implements Adapter.
func (a *Gemini) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *Gemini) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:        a.cfg.ModelID,
		Prompt:       prompt,
		Temperature:  &temperature,
		GoogleSearch: true,
	})
	if err != nil {
		return model.RawAnswer{}, err
	}
	if len(resp.Candidates) == 0 {
		return model.RawAnswer{}, eris.Errorf("gemini: no candidates from %s", a.cfg.ModelID)
	}

	cand := resp.Candidates[0]
	text := cand.Text()
	if text == "" {
		return model.RawAnswer{}, eris.Errorf("gemini: empty response from %s", a.cfg.ModelID)
	}

	var urls []string
	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil {
				continue
			}
			resolved := a.resolver.Resolve(ctx, chunk.Web.URI, chunk.Web.Title)
			if resolved == "" || a.resolver.IsServiceURL(resolved) {
				zap.L().Debug("adapter: dropped unresolvable grounding citation",
					zap.String("uri", chunk.Web.URI),
					zap.String("title", chunk.Web.Title),
				)
				continue
			}
			urls = append(urls, resolved)
		}
	}

	return model.RawAnswer{Text: text, Sources: dedupeURLs(urls)}, nil
}
