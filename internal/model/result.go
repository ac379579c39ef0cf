package model

import "strings"

// RawAnswer is the provider-neutral shape every adapter produces: the answer
// text plus the set of URLs the model consulted. Sources list is deduplicated;
// order carries no meaning.
type RawAnswer struct {
	Text    string   `json:"text"`
	Sources []string `json:"sources"`
}

// MentionCategory buckets a brand mention relative to the audited company.
type MentionCategory string

const (
	CategoryOurBrand   MentionCategory = "our-brand"
	CategoryCompetitor MentionCategory = "competitor"
	CategoryOther      MentionCategory = "other"
)

// BrandMention is one company the classifier found in a raw answer. ID is the
// canonical identifier from the audited brand/competitor list and is set iff
// Category is not CategoryOther.
type BrandMention struct {
	Name     string          `json:"name"`
	Category MentionCategory `json:"category"`
	ID       string          `json:"id,omitempty"`
}

// Sentiment is a three-way sentiment label.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// VisibilityResult is one (model, prompt, run) judgment. Mentioned is derived,
// never set directly: use SetMentions.
type VisibilityResult struct {
	Model     ModelConfig    `json:"model"`
	Prompt    string         `json:"prompt"`
	RunIndex  int            `json:"run_index"`
	Mentioned bool           `json:"mentioned"`
	Mentions  []BrandMention `json:"mentions,omitempty"`
	Answer    string         `json:"answer"`
	Sources   []string       `json:"sources,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
}

// SetMentions records the classifier output and derives Mentioned from it.
func (r *VisibilityResult) SetMentions(mentions []BrandMention) {
	r.Mentions = mentions
	r.Mentioned = false
	for _, m := range mentions {
		if m.Category == CategoryOurBrand {
			r.Mentioned = true
			return
		}
	}
}

// SentimentResult is one (model, sentiment-prompt) judgment. Sentiment
// prompts run once per model, never repeated across runs.
type SentimentResult struct {
	Model            ModelConfig `json:"model"`
	Prompt           string      `json:"prompt"`
	Sentiment        Sentiment   `json:"sentiment"`
	PositiveKeywords []string    `json:"positive_keywords,omitempty"`
	NegativeKeywords []string    `json:"negative_keywords,omitempty"`
	Answer           string      `json:"answer"`
	Sources          []string    `json:"sources,omitempty"`
	Error            string      `json:"error,omitempty"`
	ErrorKind        string      `json:"error_kind,omitempty"`
}

// SentimentSummary is the fold of all sentiment results for a company.
type SentimentSummary struct {
	Overall    Sentiment `json:"overall"`
	Percentage int       `json:"percentage"`
}

// VisibilitySummary is the fold of all visibility results for a company.
type VisibilitySummary struct {
	MentionRate   float64                            `json:"mention_rate"`
	MentionCounts map[MentionCategory]map[string]int `json:"mention_counts"`
}

// ResultRow is the flat row shape the external reporting layer consumes. One
// row per (company, category, model, prompt, run); the column set is stable.
type ResultRow struct {
	CompanyID string          `json:"company_id"`
	Category  PromptPurpose   `json:"category"`
	Provider  string          `json:"provider"`
	Model     string          `json:"model"`
	Prompt    string          `json:"prompt"`
	RunIndex  int             `json:"run_index"`
	Mentioned bool            `json:"mentioned"`
	Mentions  []BrandMention  `json:"mentions,omitempty"`
	Sentiment Sentiment       `json:"sentiment,omitempty"`
	Answer    string          `json:"answer"`
	Sources   string          `json:"sources"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// JoinSources flattens a source list for row output.
func JoinSources(sources []string) string {
	return strings.Join(sources, " | ")
}
