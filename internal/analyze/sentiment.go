package analyze

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/jsonrepair"
	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

const sentimentSystemPrompt = `You judge how an answer written by an AI assistant portrays one specific brand. Consider only what the answer says about that brand, not about anyone else. Respond with a valid JSON object: {"sentiment": "positive" | "neutral" | "negative", "positiveKeywords": ["up to 3 short phrases"], "negativeKeywords": ["up to 3 short phrases"]}`

const sentimentUserPrompt = `Brand: %s
Question the assistant was asked: %s

Assistant answer:
%s`

const maxSentimentKeywords = 3

// SentimentJudgment is one sentiment call's outcome.
type SentimentJudgment struct {
	Sentiment        model.Sentiment
	PositiveKeywords []string
	NegativeKeywords []string
}

func neutralJudgment() SentimentJudgment {
	return SentimentJudgment{Sentiment: model.SentimentNeutral}
}

// ClassifySentiment judges how the answer portrays the brand. Any failure,
// transport or parse, degrades to a neutral judgment with no keywords and a
// non-nil error so the caller can annotate the result; a missing sentiment
// never blocks the rest of the pipeline.
func (a *Analyzer) ClassifySentiment(ctx context.Context, answer, brandName, originalPrompt string) (SentimentJudgment, error) {
	prompt := fmt.Sprintf(sentimentUserPrompt,
		brandName,
		originalPrompt,
		truncate(answer, maxClassifyAnswerChars),
	)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 256,
		System:    anthropic.BuildCachedSystemBlocks(sentimentSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		zap.L().Warn("analyze: sentiment call failed",
			zap.String("brand", brandName),
			zap.Error(err),
		)
		return neutralJudgment(), eris.Wrap(err, "analyze: classify sentiment")
	}
	a.addUsage(resp.Usage)

	var out struct {
		Sentiment        string   `json:"sentiment"`
		PositiveKeywords []string `json:"positiveKeywords"`
		NegativeKeywords []string `json:"negativeKeywords"`
	}
	if err := jsonrepair.Unmarshal(resp.Text(), &out); err != nil {
		zap.L().Warn("analyze: unparseable sentiment output",
			zap.String("brand", brandName),
			zap.Error(err),
		)
		return neutralJudgment(), eris.Wrap(err, "analyze: parse sentiment output")
	}

	sentiment := model.Sentiment(out.Sentiment)
	switch sentiment {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
	default:
		sentiment = model.SentimentNeutral
	}

	return SentimentJudgment{
		Sentiment:        sentiment,
		PositiveKeywords: capKeywords(out.PositiveKeywords),
		NegativeKeywords: capKeywords(out.NegativeKeywords),
	}, nil
}

func capKeywords(words []string) []string {
	if len(words) > maxSentimentKeywords {
		words = words[:maxSentimentKeywords]
	}
	return words
}
