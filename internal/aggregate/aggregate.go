// Package aggregate folds per-(model, prompt, run) judgments into the
// company-level summary metrics.
package aggregate

import (
	"math"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// SummarizeSentiment folds sentiment results into an overall label and score.
// The score is round(100 * (positive - negative) / total) over non-errored
// results; the label is whichever sentiment holds a strict majority, neutral
// otherwise.
func SummarizeSentiment(results []model.SentimentResult) model.SentimentSummary {
	counts := make(map[model.Sentiment]int)
	total := 0
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		counts[r.Sentiment]++
		total++
	}
	if total == 0 {
		return model.SentimentSummary{Overall: model.SentimentNeutral}
	}

	pos := counts[model.SentimentPositive]
	neg := counts[model.SentimentNegative]
	pct := int(math.Round(100 * float64(pos-neg) / float64(total)))

	overall := model.SentimentNeutral
	for _, s := range []model.Sentiment{model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral} {
		if counts[s]*2 > total {
			overall = s
			break
		}
	}

	return model.SentimentSummary{Overall: overall, Percentage: pct}
}

// SummarizeVisibility computes the mention rate over non-errored results and
// tallies brand mentions by name within each category bucket.
func SummarizeVisibility(results []model.VisibilityResult) model.VisibilitySummary {
	counts := map[model.MentionCategory]map[string]int{
		model.CategoryOurBrand:   {},
		model.CategoryCompetitor: {},
		model.CategoryOther:      {},
	}

	total := 0
	mentioned := 0
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		total++
		if r.Mentioned {
			mentioned++
		}
		for _, m := range r.Mentions {
			counts[m.Category][m.Name]++
		}
	}

	summary := model.VisibilitySummary{MentionCounts: counts}
	if total > 0 {
		summary.MentionRate = float64(mentioned) / float64(total)
	}
	return summary
}
