package adapter

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/mistral"
)

// Mistral has no citation tooling; consulted URLs are whatever the answer
// text itself links to, recovered by regex.
type Mistral struct {
	client mistral.Client
	cfg    model.ModelConfig
}

// NewMistral creates a Mistral adapter for one model.
func NewMistral(client mistral.Client, modelID, display string) *Mistral {
	return &Mistral{
		client: client,
		cfg:    model.ModelConfig{Provider: "mistral", ModelID: modelID, Display: display},
	}
}

// Config implements Adapter.
func (a *Mistral) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *Mistral) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.ChatCompletion(ctx, mistral.ChatCompletionRequest{
		Model:       a.cfg.ModelID,
		Messages:    []mistral.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return model.RawAnswer{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.RawAnswer{}, eris.Errorf("mistral: empty response from %s", a.cfg.ModelID)
	}

	text := resp.Choices[0].Message.Content
	return model.RawAnswer{Text: text, Sources: extractURLs(text)}, nil
}
