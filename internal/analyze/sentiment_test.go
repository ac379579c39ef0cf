package analyze

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

func TestClassifySentiment_ParsesJudgment(t *testing.T) {
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			assert.Contains(t, req.Messages[0].Content, "Brand: Acme")
			return textResponse(`{"sentiment": "positive", "positiveKeywords": ["reliable", "market leader"], "negativeKeywords": []}`), nil
		},
	}
	a := New(client, "claude-haiku-4-5")

	j, err := a.ClassifySentiment(context.Background(), "Acme is the reliable market leader.", "Acme", "Is Acme any good?")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentPositive, j.Sentiment)
	assert.Equal(t, []string{"reliable", "market leader"}, j.PositiveKeywords)
	assert.Empty(t, j.NegativeKeywords)
}

func TestClassifySentiment_CapsKeywordsAtThree(t *testing.T) {
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"sentiment": "negative", "positiveKeywords": [], "negativeKeywords": ["slow", "expensive", "buggy", "dated", "opaque"]}`), nil
		},
	}
	a := New(client, "claude-haiku-4-5")

	j, err := a.ClassifySentiment(context.Background(), "x", "Acme", "p")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNegative, j.Sentiment)
	assert.Equal(t, []string{"slow", "expensive", "buggy"}, j.NegativeKeywords)
}

func TestClassifySentiment_UnknownLabelDefaultsNeutral(t *testing.T) {
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse(`{"sentiment": "mixed", "positiveKeywords": ["fast"], "negativeKeywords": ["pricey"]}`), nil
		},
	}
	a := New(client, "claude-haiku-4-5")

	j, err := a.ClassifySentiment(context.Background(), "x", "Acme", "p")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNeutral, j.Sentiment)
}

func TestClassifySentiment_TransportErrorDefaultsNeutral(t *testing.T) {
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return nil, eris.New("anthropic: overloaded")
		},
	}
	a := New(client, "claude-haiku-4-5")

	j, err := a.ClassifySentiment(context.Background(), "x", "Acme", "p")
	require.Error(t, err)
	assert.Equal(t, model.SentimentNeutral, j.Sentiment)
	assert.Empty(t, j.PositiveKeywords)
	assert.Empty(t, j.NegativeKeywords)
}

func TestClassifySentiment_UnparseableOutputDefaultsNeutral(t *testing.T) {
	client := &fakeAnthropicClient{
		createFn: func(_ context.Context, _ anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return textResponse("The answer speaks quite highly of Acme overall."), nil
		},
	}
	a := New(client, "claude-haiku-4-5")

	j, err := a.ClassifySentiment(context.Background(), "x", "Acme", "p")
	require.Error(t, err)
	assert.Equal(t, model.SentimentNeutral, j.Sentiment)
}
