// Package config loads application configuration from file and environment.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridianlabs/visibility-cli/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig     `yaml:"store" mapstructure:"store"`
	OpenAI     ProviderConfig  `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     ProviderConfig  `yaml:"gemini" mapstructure:"gemini"`
	Mistral    ProviderConfig  `yaml:"mistral" mapstructure:"mistral"`
	Perplexity ProviderConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	XAI        ProviderConfig  `yaml:"xai" mapstructure:"xai"`
	Analysis   AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Discovery  DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Pipeline   PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Redirect   RedirectConfig  `yaml:"redirect" mapstructure:"redirect"`
	Log        LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the optional database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ProviderConfig holds one answer provider's credentials and model choice. A
// provider with no key is simply not registered.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
	Display string `yaml:"display" mapstructure:"display"`
}

// AnthropicConfig holds Anthropic API settings. The same key serves the
// answer adapter and the analysis model.
type AnthropicConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	Display          string `yaml:"display" mapstructure:"display"`
	WebSearchMaxUses int64  `yaml:"web_search_max_uses" mapstructure:"web_search_max_uses"`
}

// AnalysisConfig configures the secondary classification model.
type AnalysisConfig struct {
	Model string `yaml:"model" mapstructure:"model"`
}

// DiscoveryConfig configures competitor discovery.
type DiscoveryConfig struct {
	PreferredProvider string `yaml:"preferred_provider" mapstructure:"preferred_provider"`
	FallbackProvider  string `yaml:"fallback_provider" mapstructure:"fallback_provider"`
}

// PipelineConfig configures dispatch behavior.
type PipelineConfig struct {
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	Runs            int     `yaml:"runs" mapstructure:"runs"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	CallTimeoutSecs int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// RedirectConfig configures the grounding-redirect resolver.
type RedirectConfig struct {
	ServiceHost string `yaml:"service_host" mapstructure:"service_host"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VISIBILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so environment overrides
	// bind without a config file entry.
	for _, key := range []string{
		"openai.key", "anthropic.key", "gemini.key",
		"mistral.key", "perplexity.key", "xai.key",
		"store.database_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("store.driver", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.runs", 3)
	v.SetDefault("pipeline.temperature", 0.7)
	v.SetDefault("pipeline.call_timeout_secs", 120)
	v.SetDefault("pipeline.rate_limit_rps", 2)
	v.SetDefault("pipeline.rate_limit_burst", 4)
	v.SetDefault("redirect.service_host", "vertexaisearch.cloud.google.com")
	v.SetDefault("redirect.timeout_secs", 5)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.display", "OpenAI GPT-4o")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.display", "Claude Sonnet")
	v.SetDefault("anthropic.web_search_max_uses", 5)
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.display", "Gemini Flash")
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("mistral.model", "mistral-large-latest")
	v.SetDefault("mistral.display", "Mistral Large")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.display", "Perplexity Sonar")
	v.SetDefault("xai.base_url", "https://api.x.ai/v1")
	v.SetDefault("xai.model", "grok-3")
	v.SetDefault("xai.display", "Grok 3")
	v.SetDefault("analysis.model", "claude-haiku-4-5-20251001")
	v.SetDefault("discovery.preferred_provider", "perplexity")
	v.SetDefault("discovery.fallback_provider", "openai")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
