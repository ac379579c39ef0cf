package adapter

import (
	"context"

	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
	"github.com/meridianlabs/visibility-cli/pkg/gemini"
	"github.com/meridianlabs/visibility-cli/pkg/mistral"
	"github.com/meridianlabs/visibility-cli/pkg/openai"
	"github.com/meridianlabs/visibility-cli/pkg/perplexity"
	"github.com/meridianlabs/visibility-cli/pkg/xai"
)

// Function-backed fakes for the provider clients.

type fakeOpenAI struct {
	respondFn func(context.Context, openai.ResponseRequest) (*openai.Response, error)
	chatFn    func(context.Context, openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

func (f *fakeOpenAI) Respond(ctx context.Context, req openai.ResponseRequest) (*openai.Response, error) {
	return f.respondFn(ctx, req)
}

func (f *fakeOpenAI) ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	return f.chatFn(ctx, req)
}

type fakeAnthropic struct {
	createFn func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return f.createFn(ctx, req)
}

type fakeGemini struct {
	generateFn func(context.Context, gemini.GenerateRequest) (*gemini.GenerateResponse, error)
}

func (f *fakeGemini) GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	return f.generateFn(ctx, req)
}

type fakeMistral struct {
	chatFn func(context.Context, mistral.ChatCompletionRequest) (*mistral.ChatCompletionResponse, error)
}

func (f *fakeMistral) ChatCompletion(ctx context.Context, req mistral.ChatCompletionRequest) (*mistral.ChatCompletionResponse, error) {
	return f.chatFn(ctx, req)
}

type fakePerplexity struct {
	chatFn func(context.Context, perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error)
}

func (f *fakePerplexity) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	return f.chatFn(ctx, req)
}

type fakeXAI struct {
	chatFn func(context.Context, xai.ChatCompletionRequest) (*xai.ChatCompletionResponse, error)
}

func (f *fakeXAI) ChatCompletion(ctx context.Context, req xai.ChatCompletionRequest) (*xai.ChatCompletionResponse, error) {
	return f.chatFn(ctx, req)
}
