// Package pipeline orchestrates a full visibility audit: competitor
// discovery, the visibility and sentiment dispatch phases, classification of
// every raw answer, and the aggregate fold.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meridianlabs/visibility-cli/internal/aggregate"
	"github.com/meridianlabs/visibility-cli/internal/analyze"
	"github.com/meridianlabs/visibility-cli/internal/config"
	"github.com/meridianlabs/visibility-cli/internal/dispatch"
	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/internal/resilience"
	"github.com/meridianlabs/visibility-cli/internal/store"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

// Registry is the provider surface the pipeline dispatches against.
// Satisfied by adapter.Registry.
type Registry interface {
	Invoke(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error)
	Models() []model.ModelConfig
	Len() int
}

// Pipeline runs audits. All dependencies are injected; the optional store and
// discoverer may be nil.
type Pipeline struct {
	registry   Registry
	analyzer   *analyze.Analyzer
	discoverer *analyze.Discoverer
	store      store.Store
	cfg        config.PipelineConfig
	progress   dispatch.ProgressFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore persists audits and rows to the given store.
func WithStore(st store.Store) Option {
	return func(p *Pipeline) {
		p.store = st
	}
}

// WithDiscoverer enables competitor discovery for profiles with no
// competitor list.
func WithDiscoverer(d *analyze.Discoverer) Option {
	return func(p *Pipeline) {
		p.discoverer = d
	}
}

// WithProgress forwards task settlement events from both dispatch phases.
func WithProgress(fn dispatch.ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// New creates a Pipeline.
func New(registry Registry, analyzer *analyze.Analyzer, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		analyzer: analyzer,
		cfg:      cfg,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AuditResult is everything one audit produced.
type AuditResult struct {
	AuditID    string
	Company    model.Company
	Visibility []model.VisibilityResult
	Sentiment  []model.SentimentResult
	Summary    model.AuditSummary
	Rows       []model.ResultRow
	Usage      anthropic.TokenUsage
}

// RunAudit executes the full audit for one company. The returned result is
// complete even when individual tasks failed; RunAudit errors only when the
// audit cannot run at all (no providers, no prompts) or persistence fails.
func (p *Pipeline) RunAudit(ctx context.Context, company model.Company) (*AuditResult, error) {
	company.Normalize()
	log := zap.L().With(zap.String("company", company.Name))

	if p.registry.Len() == 0 {
		return nil, eris.New("pipeline: no providers enabled")
	}
	if len(company.Prompts.Visibility) == 0 {
		return nil, eris.New("pipeline: no visibility prompts")
	}

	// Profiles without a competitor list get one discovered up front so the
	// classifier has something to match against. Discovery failure is not
	// fatal: classification simply labels everything non-ours as other.
	if len(company.Competitors) == 0 && p.discoverer != nil {
		names := p.discoverer.Discover(ctx, company.Name, company.Website, company.Market)
		for _, name := range names {
			company.Competitors = append(company.Competitors, model.Brand{Name: name})
		}
		company.Normalize()
		log.Info("pipeline: discovered competitors", zap.Strings("competitors", company.CompetitorNames()))
	}

	result := &AuditResult{Company: company}

	var audit *model.Audit
	if p.store != nil {
		var err error
		audit, err = p.store.CreateAudit(ctx, company)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create audit")
		}
		result.AuditID = audit.ID
	}

	models := p.registry.Models()
	log.Info("pipeline: starting audit",
		zap.Int("providers", len(models)),
		zap.Int("visibility_prompts", len(company.Prompts.Visibility)),
		zap.Int("sentiment_prompts", len(company.Prompts.Sentiment)),
		zap.Int("runs", p.cfg.Runs),
	)

	result.Visibility = p.visibilityPhase(ctx, company, models)
	result.Sentiment = p.sentimentPhase(ctx, company, models)

	result.Summary = model.AuditSummary{
		Visibility: aggregate.SummarizeVisibility(result.Visibility),
		Sentiment:  aggregate.SummarizeSentiment(result.Sentiment),
	}
	result.Rows = BuildRows(company, result.Visibility, result.Sentiment)
	result.Usage = p.analyzer.Usage()

	if p.store != nil {
		if err := p.store.InsertRows(ctx, audit.ID, result.Rows); err != nil {
			p.failAudit(ctx, audit.ID, err)
			return nil, eris.Wrap(err, "pipeline: persist rows")
		}
		if err := p.store.CompleteAudit(ctx, audit.ID, result.Summary); err != nil {
			p.failAudit(ctx, audit.ID, err)
			return nil, eris.Wrap(err, "pipeline: complete audit")
		}
	}

	log.Info("pipeline: audit complete",
		zap.Float64("mention_rate", result.Summary.Visibility.MentionRate),
		zap.String("sentiment", string(result.Summary.Sentiment.Overall)),
		zap.Int("rows", len(result.Rows)),
	)
	return result, nil
}

// failAudit marks the audit failed so it never sticks in running state. Best
// effort: the original failure is the one worth returning.
func (p *Pipeline) failAudit(ctx context.Context, auditID string, cause error) {
	if err := p.store.FailAudit(ctx, auditID, cause.Error()); err != nil {
		zap.L().Warn("pipeline: fail audit", zap.String("audit_id", auditID), zap.Error(err))
	}
}

// visibilityPhase dispatches runs × prompts × models tasks and classifies
// every answered one.
func (p *Pipeline) visibilityPhase(ctx context.Context, company model.Company, models []model.ModelConfig) []model.VisibilityResult {
	tasks := dispatch.Expand(company.Prompts.Visibility, models, p.cfg.Runs)
	outcomes := p.dispatch(ctx, tasks)

	results := make([]model.VisibilityResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = model.VisibilityResult{
			Model:    o.Task.Model,
			Prompt:   o.Task.Prompt,
			RunIndex: o.Task.RunIndex,
			Answer:   o.Answer.Text,
			Sources:  o.Answer.Sources,
		}
		if o.Err != nil {
			results[i].Error = o.Err.Error()
			results[i].ErrorKind = string(resilience.Classify(o.Err))
		}
	}

	// Classification runs under the same concurrency ceiling as dispatch.
	// A failed classification marks its own result errored, nothing else.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range results {
		if results[i].Error != "" {
			continue
		}
		g.Go(func() error {
			mentions, err := p.analyzer.ClassifyMentions(gCtx, results[i].Answer, company, results[i].Prompt)
			if err != nil {
				results[i].Error = err.Error()
				results[i].ErrorKind = string(resilience.KindMalformed)
				return nil
			}
			results[i].SetMentions(mentions)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// sentimentPhase dispatches prompts × models once (never repeated across
// runs) and judges each answer. A failed judgment leaves the result neutral
// and marks it errored so the aggregate skips it.
func (p *Pipeline) sentimentPhase(ctx context.Context, company model.Company, models []model.ModelConfig) []model.SentimentResult {
	if len(company.Prompts.Sentiment) == 0 {
		return nil
	}

	tasks := dispatch.Expand(company.Prompts.Sentiment, models, 1)
	outcomes := p.dispatch(ctx, tasks)

	results := make([]model.SentimentResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = model.SentimentResult{
			Model:     o.Task.Model,
			Prompt:    o.Task.Prompt,
			Sentiment: model.SentimentNeutral,
			Answer:    o.Answer.Text,
			Sources:   o.Answer.Sources,
		}
		if o.Err != nil {
			results[i].Error = o.Err.Error()
			results[i].ErrorKind = string(resilience.Classify(o.Err))
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range results {
		if results[i].Error != "" {
			continue
		}
		g.Go(func() error {
			j, err := p.analyzer.ClassifySentiment(gCtx, results[i].Answer, company.Name, results[i].Prompt)
			if err != nil {
				results[i].Error = err.Error()
				results[i].ErrorKind = string(resilience.KindMalformed)
				return nil
			}
			results[i].Sentiment = j.Sentiment
			results[i].PositiveKeywords = j.PositiveKeywords
			results[i].NegativeKeywords = j.NegativeKeywords
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) dispatch(ctx context.Context, tasks []dispatch.Task) []dispatch.Outcome {
	var opts []dispatch.Option
	if p.progress != nil {
		opts = append(opts, dispatch.WithProgress(p.progress))
	}
	d := dispatch.New(p.cfg.Concurrency, opts...)
	return d.Run(ctx, tasks, func(ctx context.Context, task dispatch.Task) (model.RawAnswer, error) {
		return p.registry.Invoke(ctx, task.Model.Provider, task.Prompt, p.cfg.Temperature)
	})
}
