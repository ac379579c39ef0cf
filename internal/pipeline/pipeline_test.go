package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/visibility-cli/internal/analyze"
	"github.com/meridianlabs/visibility-cli/internal/config"
	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/internal/store"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

type stubRegistry struct {
	models   []model.ModelConfig
	invokeFn func(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error)
}

func (s *stubRegistry) Invoke(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error) {
	return s.invokeFn(ctx, provider, prompt, temperature)
}

func (s *stubRegistry) Models() []model.ModelConfig { return s.models }

func (s *stubRegistry) Len() int { return len(s.models) }

type fakeAnthropicClient struct {
	createFn func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error)
}

func (f *fakeAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return f.createFn(ctx, req)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}
}

func isClassifyRequest(req anthropic.MessageRequest) bool {
	return len(req.System) > 0 && strings.Contains(req.System[0].Text, "topOfMind")
}

// fakeStore records every persistence call.
type fakeStore struct {
	mu        sync.Mutex
	insertErr error
	created   []model.Company
	completed map[string]model.AuditSummary
	failed    map[string]string
	rows      map[string][]model.ResultRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		completed: make(map[string]model.AuditSummary),
		failed:    make(map[string]string),
		rows:      make(map[string][]model.ResultRow),
	}
}

func (f *fakeStore) CreateAudit(_ context.Context, company model.Company) (*model.Audit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, company)
	return &model.Audit{ID: "audit-1", Company: company, Status: model.AuditStatusRunning}, nil
}

func (f *fakeStore) CompleteAudit(_ context.Context, auditID string, summary model.AuditSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[auditID] = summary
	return nil
}

func (f *fakeStore) FailAudit(_ context.Context, auditID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[auditID] = reason
	return nil
}

func (f *fakeStore) GetAudit(context.Context, string) (*model.Audit, error) { return nil, nil }

func (f *fakeStore) ListAudits(context.Context, store.AuditFilter) ([]model.Audit, error) {
	return nil, nil
}

func (f *fakeStore) InsertRows(_ context.Context, auditID string, rows []model.ResultRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.rows[auditID] = append(f.rows[auditID], rows...)
	return nil
}

func (f *fakeStore) ListRows(context.Context, string) ([]model.ResultRow, error) { return nil, nil }

func (f *fakeStore) Migrate(context.Context) error { return nil }

func (f *fakeStore) Close() error { return nil }

func testCompany() model.Company {
	c := model.Company{
		Name:    "Acme",
		Website: "https://acme.example",
		Market:  "France",
		Competitors: []model.Brand{
			{Name: "Globex"},
			{Name: "Initech"},
		},
		Prompts: model.PromptSets{
			Visibility: []string{"What are the best widget makers?"},
			Sentiment:  []string{"What do people say about Acme?"},
		},
	}
	c.Normalize()
	return c
}

func testConfig() config.PipelineConfig {
	return config.PipelineConfig{Concurrency: 4, Runs: 2, Temperature: 0.7}
}

// Full happy path: two providers, one visibility prompt at two runs, one
// sentiment prompt at one run. The first provider's answers mention the
// audited brand, the second's do not.
func TestRunAudit(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{
			{Provider: "openai", ModelID: "gpt-4o", Display: "ChatGPT"},
			{Provider: "mistral", ModelID: "mistral-large-latest", Display: "Mistral"},
		},
		invokeFn: func(_ context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error) {
			assert.InDelta(t, 0.7, temperature, 1e-9)
			if provider == "openai" {
				return model.RawAnswer{Text: "Acme and Globex lead the market.", Sources: []string{"https://reviews.example/widgets"}}, nil
			}
			return model.RawAnswer{Text: "Globex is the main player."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if !isClassifyRequest(req) {
				return textResponse(`{"sentiment": "positive", "positiveKeywords": ["reliable"], "negativeKeywords": []}`), nil
			}
			if strings.Contains(req.Messages[0].Content, "Acme and Globex") {
				return textResponse(`{"topOfMind": [
					{"name": "Acme", "type": "our-brand", "id": "acme"},
					{"name": "Globex", "type": "competitor", "id": "globex"}
				]}`), nil
			}
			return textResponse(`{"topOfMind": [{"name": "Globex", "type": "competitor", "id": "globex"}]}`), nil
		},
	}
	st := newFakeStore()

	var progressCalls int
	var progressMu sync.Mutex
	p := New(registry, analyze.New(client, "claude-haiku-4-5"), testConfig(),
		WithStore(st),
		WithProgress(func(done, total int) {
			progressMu.Lock()
			progressCalls++
			progressMu.Unlock()
		}),
	)

	result, err := p.RunAudit(context.Background(), testCompany())
	require.NoError(t, err)

	assert.Equal(t, "audit-1", result.AuditID)
	require.Len(t, result.Visibility, 4)
	require.Len(t, result.Sentiment, 2)

	// 2 of 4 visibility answers mention the brand.
	assert.InDelta(t, 0.5, result.Summary.Visibility.MentionRate, 1e-9)
	assert.Equal(t, 2, result.Summary.Visibility.MentionCounts[model.CategoryOurBrand]["Acme"])
	assert.Equal(t, 4, result.Summary.Visibility.MentionCounts[model.CategoryCompetitor]["Globex"])

	assert.Equal(t, model.SentimentPositive, result.Summary.Sentiment.Overall)
	assert.Equal(t, 100, result.Summary.Sentiment.Percentage)

	// One row per visibility task plus one per sentiment task.
	require.Len(t, result.Rows, 6)
	assert.Equal(t, model.PurposeVisibility, result.Rows[0].Category)
	assert.Equal(t, "acme", result.Rows[0].CompanyID)
	assert.Equal(t, model.PurposeSentiment, result.Rows[5].Category)

	// 4 visibility + 2 sentiment dispatch settlements.
	assert.Equal(t, 6, progressCalls)

	// Classification usage was accumulated: 4 classify + 2 sentiment calls.
	assert.Equal(t, int64(600), result.Usage.InputTokens)

	// Persisted: one audit, all rows, completion with the final summary.
	require.Len(t, st.created, 1)
	assert.Len(t, st.rows["audit-1"], 6)
	require.Contains(t, st.completed, "audit-1")
	assert.Equal(t, result.Summary, st.completed["audit-1"])
	assert.Empty(t, st.failed)
}

func TestRunAudit_ProviderFailureIsRecordedNotFatal(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{
			{Provider: "openai", ModelID: "gpt-4o"},
			{Provider: "xai", ModelID: "grok-3"},
		},
		invokeFn: func(_ context.Context, provider, _ string, _ float64) (model.RawAnswer, error) {
			if provider == "xai" {
				return model.RawAnswer{}, eris.New("xai: unexpected status 503")
			}
			return model.RawAnswer{Text: "Acme is popular."}, nil
		},
	}
	var classifyCalls int
	var mu sync.Mutex
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if isClassifyRequest(req) {
				mu.Lock()
				classifyCalls++
				mu.Unlock()
			}
			return textResponse(`{"topOfMind": [{"name": "Acme", "type": "our-brand", "id": "acme"}]}`), nil
		},
	}

	company := testCompany()
	company.Prompts.Sentiment = nil
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg)
	result, err := p.RunAudit(context.Background(), company)
	require.NoError(t, err)

	require.Len(t, result.Visibility, 2)
	assert.Empty(t, result.Visibility[0].Error)
	assert.True(t, result.Visibility[0].Mentioned)
	assert.Contains(t, result.Visibility[1].Error, "unexpected status 503")
	assert.Equal(t, "transient", result.Visibility[1].ErrorKind)

	// Failed dispatches never reach the classifier.
	assert.Equal(t, 1, classifyCalls)

	// The errored task is excluded from the mention rate fold.
	assert.InDelta(t, 1.0, result.Summary.Visibility.MentionRate, 1e-9)
}

func TestRunAudit_UnparseableClassificationMarksRowMalformed(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{{Provider: "openai", ModelID: "gpt-4o"}},
		invokeFn: func(context.Context, string, string, float64) (model.RawAnswer, error) {
			return model.RawAnswer{Text: "Acme is popular."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("I cannot answer in the requested format."), nil
		},
	}

	company := testCompany()
	company.Prompts.Sentiment = nil
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg)
	result, err := p.RunAudit(context.Background(), company)
	require.NoError(t, err)

	require.Len(t, result.Visibility, 1)
	assert.NotEmpty(t, result.Visibility[0].Error)
	assert.Equal(t, "malformed", result.Visibility[0].ErrorKind)
	assert.False(t, result.Visibility[0].Mentioned)
	assert.Zero(t, result.Summary.Visibility.MentionRate)
}

func TestRunAudit_SentimentDegradesToNeutralOnFailure(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{
			{Provider: "openai", ModelID: "gpt-4o"},
			{Provider: "perplexity", ModelID: "sonar"},
		},
		invokeFn: func(_ context.Context, provider, _ string, _ float64) (model.RawAnswer, error) {
			if provider == "perplexity" {
				return model.RawAnswer{}, eris.New("perplexity: unexpected status 401")
			}
			return model.RawAnswer{Text: "Acme gets mixed reviews."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if isClassifyRequest(req) {
				return textResponse(`{"topOfMind": []}`), nil
			}
			return textResponse(`{"sentiment": "negative", "positiveKeywords": [], "negativeKeywords": ["expensive"]}`), nil
		},
	}

	company := testCompany()
	company.Prompts.Visibility = []string{"visibility check"}
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg)
	result, err := p.RunAudit(context.Background(), company)
	require.NoError(t, err)

	require.Len(t, result.Sentiment, 2)
	assert.Equal(t, model.SentimentNegative, result.Sentiment[0].Sentiment)
	assert.Equal(t, []string{"expensive"}, result.Sentiment[0].NegativeKeywords)

	// The failed dispatch keeps its neutral default and records the failure.
	assert.Equal(t, model.SentimentNeutral, result.Sentiment[1].Sentiment)
	assert.Contains(t, result.Sentiment[1].Error, "unexpected status 401")
	assert.Equal(t, "auth", result.Sentiment[1].ErrorKind)

	// Only the surviving negative judgment feeds the fold.
	assert.Equal(t, model.SentimentNegative, result.Summary.Sentiment.Overall)
	assert.Equal(t, -100, result.Summary.Sentiment.Percentage)
}

func TestRunAudit_UnparseableSentimentOutputMarksRowMalformed(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{
			{Provider: "openai", ModelID: "gpt-4o"},
			{Provider: "mistral", ModelID: "mistral-large-latest"},
		},
		invokeFn: func(_ context.Context, provider, _ string, _ float64) (model.RawAnswer, error) {
			if provider == "mistral" {
				return model.RawAnswer{Text: "Acme divides opinion."}, nil
			}
			return model.RawAnswer{Text: "Acme is loved."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			if isClassifyRequest(req) {
				return textResponse(`{"topOfMind": []}`), nil
			}
			if strings.Contains(req.Messages[0].Content, "divides opinion") {
				return textResponse("Opinions on Acme are split, hard to say."), nil
			}
			return textResponse(`{"sentiment": "positive", "positiveKeywords": ["loved"], "negativeKeywords": []}`), nil
		},
	}

	company := testCompany()
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg)
	result, err := p.RunAudit(context.Background(), company)
	require.NoError(t, err)

	require.Len(t, result.Sentiment, 2)
	assert.Equal(t, model.SentimentPositive, result.Sentiment[0].Sentiment)
	assert.Empty(t, result.Sentiment[0].Error)

	// The unparseable judgment keeps the neutral default but is annotated
	// so it cannot be mistaken for a genuine neutral reading.
	assert.Equal(t, model.SentimentNeutral, result.Sentiment[1].Sentiment)
	assert.NotEmpty(t, result.Sentiment[1].Error)
	assert.Equal(t, "malformed", result.Sentiment[1].ErrorKind)

	// Only the surviving judgment feeds the fold.
	assert.Equal(t, model.SentimentPositive, result.Summary.Sentiment.Overall)
	assert.Equal(t, 100, result.Summary.Sentiment.Percentage)
}

func TestRunAudit_DiscoversCompetitorsWhenProfileHasNone(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{{Provider: "openai", ModelID: "gpt-4o"}},
		invokeFn: func(_ context.Context, provider, prompt string, _ float64) (model.RawAnswer, error) {
			if strings.Contains(prompt, "direct competitors") {
				assert.Equal(t, "perplexity", provider)
				return model.RawAnswer{Text: `{"competitors": ["Globex", "Initech"]}`}, nil
			}
			return model.RawAnswer{Text: "Globex leads."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			require.True(t, isClassifyRequest(req))
			assert.Contains(t, req.Messages[0].Content, "Globex (id: globex)")
			assert.Contains(t, req.Messages[0].Content, "Initech (id: initech)")
			return textResponse(`{"topOfMind": [{"name": "Globex", "type": "competitor", "id": "globex"}]}`), nil
		},
	}

	company := testCompany()
	company.Competitors = nil
	company.Prompts.Sentiment = nil
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg,
		WithDiscoverer(analyze.NewDiscoverer(registry, "perplexity", "openai")),
	)
	result, err := p.RunAudit(context.Background(), company)
	require.NoError(t, err)

	assert.Equal(t, []string{"Globex", "Initech"}, result.Company.CompetitorNames())
	assert.Equal(t, 1, result.Summary.Visibility.MentionCounts[model.CategoryCompetitor]["Globex"])
}

func TestRunAudit_PersistenceFailureMarksAuditFailed(t *testing.T) {
	registry := &stubRegistry{
		models: []model.ModelConfig{{Provider: "openai", ModelID: "gpt-4o"}},
		invokeFn: func(context.Context, string, string, float64) (model.RawAnswer, error) {
			return model.RawAnswer{Text: "Acme is popular."}, nil
		},
	}
	client := &fakeAnthropicClient{
		createFn: func(context.Context, anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"topOfMind": []}`), nil
		},
	}
	st := newFakeStore()
	st.insertErr = eris.New("disk full")

	company := testCompany()
	company.Prompts.Sentiment = nil
	cfg := testConfig()
	cfg.Runs = 1

	p := New(registry, analyze.New(client, "claude-haiku-4-5"), cfg, WithStore(st))
	_, err := p.RunAudit(context.Background(), company)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist rows")
	assert.Contains(t, st.failed["audit-1"], "disk full")
	assert.Empty(t, st.completed)
}

func TestRunAudit_RejectsEmptyRegistry(t *testing.T) {
	p := New(&stubRegistry{}, analyze.New(&fakeAnthropicClient{}, "claude-haiku-4-5"), testConfig())
	_, err := p.RunAudit(context.Background(), testCompany())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers enabled")
}

func TestRunAudit_RejectsProfileWithoutVisibilityPrompts(t *testing.T) {
	registry := &stubRegistry{models: []model.ModelConfig{{Provider: "openai", ModelID: "gpt-4o"}}}
	company := testCompany()
	company.Prompts.Visibility = nil

	p := New(registry, analyze.New(&fakeAnthropicClient{}, "claude-haiku-4-5"), testConfig())
	_, err := p.RunAudit(context.Background(), company)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no visibility prompts")
}
