package adapter

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/internal/resilience"
)

// Registry holds the adapters enabled at startup. It is built once from the
// configured credentials and read-only afterward; every dispatched task goes
// through Invoke, which applies the per-provider rate limit and the per-call
// timeout before handing off to the adapter.
type Registry struct {
	adapters map[string]Adapter
	order    []string
	limiters map[string]*rate.Limiter
	timeout  time.Duration
	breakers *resilience.BreakerSet
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTimeout bounds each provider invocation. Zero disables the bound.
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.timeout = d
	}
}

// WithRateLimit caps each provider's request rate.
func WithRateLimit(rps float64, burst int) RegistryOption {
	return func(r *Registry) {
		if rps <= 0 {
			return
		}
		for provider := range r.adapters {
			r.limiters[provider] = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithBreaker opens a per-provider circuit after consecutive transient
// failures, failing calls fast until the cooldown elapses.
func WithBreaker(cfg resilience.BreakerConfig) RegistryOption {
	return func(r *Registry) {
		r.breakers = resilience.NewBreakerSet(cfg)
	}
}

// NewRegistry builds a registry from the adapters whose credentials were
// present. Later adapters for an already-registered provider are ignored.
func NewRegistry(adapters []Adapter, opts ...RegistryOption) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter, len(adapters)),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, a := range adapters {
		provider := a.Config().Provider
		if _, dup := r.adapters[provider]; dup {
			zap.L().Warn("registry: duplicate adapter ignored", zap.String("provider", provider))
			continue
		}
		r.adapters[provider] = a
		r.order = append(r.order, provider)
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Models returns the enabled model configurations in registration order.
func (r *Registry) Models() []model.ModelConfig {
	out := make([]model.ModelConfig, 0, len(r.order))
	for _, provider := range r.order {
		out = append(out, r.adapters[provider].Config())
	}
	return out
}

// Len returns the number of enabled adapters.
func (r *Registry) Len() int {
	return len(r.order)
}

// Invoke dispatches one prompt to the named provider, honoring its rate
// limit and the registry's per-call timeout.
func (r *Registry) Invoke(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return model.RawAnswer{}, eris.Errorf("registry: provider %q not enabled", provider)
	}

	if lim := r.limiters[provider]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return model.RawAnswer{}, eris.Wrapf(err, "registry: rate limit wait for %s", provider)
		}
	}

	var breaker *resilience.Breaker
	if r.breakers != nil {
		breaker = r.breakers.Get(provider)
		if err := breaker.Allow(); err != nil {
			return model.RawAnswer{}, eris.Wrapf(err, "registry: %s", provider)
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	answer, err := a.Invoke(ctx, prompt, temperature)
	if breaker != nil {
		breaker.Record(err)
	}
	return answer, err
}
