package adapter

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/openai"
)

// OpenAI invokes the Responses API with the hosted web_search tool. When the
// tool-augmented call fails it falls back to a plain chat completion, which
// produces an answer with no citations.
type OpenAI struct {
	client openai.Client
	cfg    model.ModelConfig
}

// NewOpenAI creates an OpenAI adapter for one model.
func NewOpenAI(client openai.Client, modelID, display string) *OpenAI {
	return &OpenAI{
		client: client,
		cfg:    model.ModelConfig{Provider: "openai", ModelID: modelID, Display: display},
	}
}

// Config implements Adapter.
func (a *OpenAI) Config() model.ModelConfig {
	return a.cfg
}

// Invoke implements Adapter.
func (a *OpenAI) Invoke(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.Respond(ctx, openai.ResponseRequest{
		Model:       a.cfg.ModelID,
		Input:       prompt,
		Tools:       []openai.Tool{openai.WebSearchTool()},
		Temperature: &temperature,
	})
	if err != nil {
		zap.L().Warn("adapter: openai web search failed, falling back to plain completion",
			zap.String("model", a.cfg.ModelID),
			zap.Error(err),
		)
		return a.plainCompletion(ctx, prompt, temperature)
	}

	var text string
	var urls []string
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			text += part.Text
			for _, ann := range part.Annotations {
				if ann.Type == "url_citation" {
					urls = append(urls, ann.URL)
				}
			}
		}
	}

	if text == "" {
		return model.RawAnswer{}, eris.Errorf("openai: empty response from %s", a.cfg.ModelID)
	}
	return model.RawAnswer{Text: text, Sources: dedupeURLs(urls)}, nil
}

func (a *OpenAI) plainCompletion(ctx context.Context, prompt string, temperature float64) (model.RawAnswer, error) {
	resp, err := a.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.ModelID,
		Messages:    []openai.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return model.RawAnswer{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return model.RawAnswer{}, eris.Errorf("openai: empty completion from %s", a.cfg.ModelID)
	}
	return model.RawAnswer{Text: resp.Choices[0].Message.Content}, nil
}
