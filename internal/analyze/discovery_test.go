package analyze

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

type fakeInvoker struct {
	invokeFn func(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error)
}

func (f *fakeInvoker) Invoke(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error) {
	return f.invokeFn(ctx, provider, prompt, temperature)
}

func TestDiscover_PreferredProvider(t *testing.T) {
	var calls []string
	inv := &fakeInvoker{
		invokeFn: func(_ context.Context, provider, prompt string, _ float64) (model.RawAnswer, error) {
			calls = append(calls, provider)
			assert.Contains(t, prompt, "Acme")
			assert.Contains(t, prompt, "widgets")
			return model.RawAnswer{Text: `{"competitors": ["Globex", "Initech", "Umbrella"]}`}, nil
		},
	}
	d := NewDiscoverer(inv, "perplexity", "openai")

	names := d.Discover(context.Background(), "Acme", "https://acme.com", "widgets")
	assert.Equal(t, []string{"Globex", "Initech", "Umbrella"}, names)
	assert.Equal(t, []string{"perplexity"}, calls, "fallback untouched when preferred succeeds")
}

func TestDiscover_FallbackAfterPreferredFailure(t *testing.T) {
	var calls []string
	inv := &fakeInvoker{
		invokeFn: func(_ context.Context, provider, _ string, _ float64) (model.RawAnswer, error) {
			calls = append(calls, provider)
			if provider == "perplexity" {
				return model.RawAnswer{}, eris.New("perplexity: unexpected status 500")
			}
			return model.RawAnswer{Text: `{"competitors": ["Globex", "Initech", "Umbrella"]}`}, nil
		},
	}
	d := NewDiscoverer(inv, "perplexity", "openai")

	names := d.Discover(context.Background(), "Acme", "https://acme.com", "widgets")
	assert.Equal(t, []string{"Globex", "Initech", "Umbrella"}, names)
	assert.Equal(t, []string{"perplexity", "openai"}, calls)
}

func TestDiscover_UnparseableAnswerTriggersFallback(t *testing.T) {
	var calls []string
	inv := &fakeInvoker{
		invokeFn: func(_ context.Context, provider, _ string, _ float64) (model.RawAnswer, error) {
			calls = append(calls, provider)
			if provider == "perplexity" {
				return model.RawAnswer{Text: "The main competitors are Globex and Initech."}, nil
			}
			return model.RawAnswer{Text: `{"competitors": ["Globex", "Initech", "Umbrella"]}`}, nil
		},
	}
	d := NewDiscoverer(inv, "perplexity", "openai")

	names := d.Discover(context.Background(), "Acme", "https://acme.com", "widgets")
	require.Len(t, names, 3)
	assert.Equal(t, []string{"perplexity", "openai"}, calls)
}

func TestDiscover_TotalFailureReturnsEmpty(t *testing.T) {
	inv := &fakeInvoker{
		invokeFn: func(_ context.Context, _, _ string, _ float64) (model.RawAnswer, error) {
			return model.RawAnswer{}, eris.New("unreachable")
		},
	}
	d := NewDiscoverer(inv, "perplexity", "openai")

	assert.Empty(t, d.Discover(context.Background(), "Acme", "https://acme.com", "widgets"))
}

func TestDiscover_FiltersSelfAndDuplicatesAndClamps(t *testing.T) {
	inv := &fakeInvoker{
		invokeFn: func(_ context.Context, _, _ string, _ float64) (model.RawAnswer, error) {
			return model.RawAnswer{Text: `{"competitors": ["Acme", "Globex", "Globex Corp", "Initech", "Umbrella", "Hooli", "Vandelay", "Wonka"]}`}, nil
		},
	}
	d := NewDiscoverer(inv, "perplexity", "openai")

	names := d.Discover(context.Background(), "Acme", "https://acme.com", "widgets")
	assert.Equal(t, []string{"Globex", "Initech", "Umbrella", "Hooli", "Vandelay"}, names,
		"the audited brand and near-duplicates never count toward the cap")
}
