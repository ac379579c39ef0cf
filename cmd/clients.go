package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/meridianlabs/visibility-cli/internal/adapter"
	"github.com/meridianlabs/visibility-cli/internal/redirect"
	"github.com/meridianlabs/visibility-cli/internal/resilience"
	"github.com/meridianlabs/visibility-cli/internal/store"
	anthropicpkg "github.com/meridianlabs/visibility-cli/pkg/anthropic"
	"github.com/meridianlabs/visibility-cli/pkg/gemini"
	"github.com/meridianlabs/visibility-cli/pkg/mistral"
	"github.com/meridianlabs/visibility-cli/pkg/openai"
	"github.com/meridianlabs/visibility-cli/pkg/perplexity"
	"github.com/meridianlabs/visibility-cli/pkg/xai"
)

// buildRegistry assembles the adapter set from whichever provider keys are
// configured. Providers without a key are silently skipped.
func buildRegistry() (*adapter.Registry, error) {
	var adapters []adapter.Adapter

	if cfg.OpenAI.Key != "" {
		client := openai.NewClient(cfg.OpenAI.Key, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		adapters = append(adapters, adapter.NewOpenAI(client, cfg.OpenAI.Model, cfg.OpenAI.Display))
	}
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		adapters = append(adapters, adapter.NewAnthropic(client, cfg.Anthropic.Model, cfg.Anthropic.Display,
			adapter.WithWebSearchMaxUses(cfg.Anthropic.WebSearchMaxUses)))
	}
	if cfg.Gemini.Key != "" {
		client := gemini.NewClient(cfg.Gemini.Key, gemini.WithBaseURL(cfg.Gemini.BaseURL))
		resolver := redirect.New(
			redirect.WithServiceHost(cfg.Redirect.ServiceHost),
			redirect.WithTimeout(time.Duration(cfg.Redirect.TimeoutSecs)*time.Second),
		)
		adapters = append(adapters, adapter.NewGemini(client, resolver, cfg.Gemini.Model, cfg.Gemini.Display))
	}
	if cfg.Mistral.Key != "" {
		client := mistral.NewClient(cfg.Mistral.Key, mistral.WithBaseURL(cfg.Mistral.BaseURL))
		adapters = append(adapters, adapter.NewMistral(client, cfg.Mistral.Model, cfg.Mistral.Display))
	}
	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		adapters = append(adapters, adapter.NewPerplexity(client, cfg.Perplexity.Model, cfg.Perplexity.Display))
	}
	if cfg.XAI.Key != "" {
		client := xai.NewClient(cfg.XAI.Key, xai.WithBaseURL(cfg.XAI.BaseURL))
		adapters = append(adapters, adapter.NewXAI(client, cfg.XAI.Model, cfg.XAI.Display))
	}

	if len(adapters) == 0 {
		return nil, eris.New("no provider keys configured (set at least one of VISIBILITY_OPENAI_KEY, VISIBILITY_ANTHROPIC_KEY, VISIBILITY_GEMINI_KEY, VISIBILITY_MISTRAL_KEY, VISIBILITY_PERPLEXITY_KEY, VISIBILITY_XAI_KEY)")
	}

	opts := []adapter.RegistryOption{
		adapter.WithTimeout(time.Duration(cfg.Pipeline.CallTimeoutSecs) * time.Second),
		adapter.WithRateLimit(cfg.Pipeline.RateLimitRPS, cfg.Pipeline.RateLimitBurst),
		adapter.WithBreaker(resilience.DefaultBreakerConfig()),
	}
	return adapter.NewRegistry(adapters, opts...), nil
}

// buildAnalysisClient returns the client for the classification model. The
// Anthropic key serves both the answer adapter and analysis.
func buildAnalysisClient() (anthropicpkg.Client, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic key is required for classification (VISIBILITY_ANTHROPIC_KEY)")
	}
	return anthropicpkg.NewClient(cfg.Anthropic.Key), nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "visibility.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
