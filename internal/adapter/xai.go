package adapter

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/xai"
)

// XAI uses Live Search and reads the structured citations list from the
// response; when the model answered from memory and cited nothing, URLs are
// recovered from the answer text the same way as for citation-less providers.
type XAI struct {
	client xai.Client
	cfg    model.ModelConfig
}

// NewXAI creates an xAI adapter for one model.
func NewXAI(client xai.Client, modelID, display string) *XAI {
	return &XAI{
		client: client,
		cfg:    model.ModelConfig{Provider: "xai", ModelID: modelID, Display: display},
	}
}

// Config implements Adapter.
func (a *XAI) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *XAI) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.ChatCompletion(ctx, xai.ChatCompletionRequest{
		Model:            a.cfg.ModelID,
		Messages:         []xai.Message{{Role: "user", Content: prompt}},
		Temperature:      &temperature,
		SearchParameters: xai.LiveSearch(),
	})
	if err != nil {
		return model.RawAnswer{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.RawAnswer{}, eris.Errorf("xai: empty response from %s", a.cfg.ModelID)
	}
	text := resp.Choices[0].Message.Content

	if len(resp.Citations) > 0 {
		return model.RawAnswer{Text: text, Sources: dedupeURLs(resp.Citations)}, nil
	}
	return model.RawAnswer{Text: text, Sources: extractURLs(text)}, nil
}
