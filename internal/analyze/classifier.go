package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/jsonrepair"
	"github.com/meridianlabs/visibility-cli/internal/model"
	"github.com/meridianlabs/visibility-cli/pkg/anthropic"
)

const classifySystemPrompt = `You analyze answers written by AI assistants to find which companies they put in front of users. Extract every company or brand the answer mentions. Match each one against the audited brand and its competitor list, tolerating name variants and sub-brands (e.g. "Free Mobile" matches the competitor "Free"); when matched, use the canonical name and id from the list. Label everything unmatched as "other" with a null id. Respond with a valid JSON object: {"topOfMind": [{"name": "<company>", "type": "our-brand" | "competitor" | "other", "id": "<id or null>"}]}`

const classifyUserPrompt = `Audited brand: %s (id: %s)
Competitors:
%s
Question the assistant was asked: %s

Assistant answer:
%s`

const maxClassifyAnswerChars = 6000

// ClassifyMentions extracts the brand mentions from one raw answer. Names are
// re-matched locally against the company's brand and competitor list so the
// canonical name and identifier always come from the profile, whatever the
// model echoed back. A completely failed classification returns an empty list
// and an error for the caller to record on the result.
func (a *Analyzer) ClassifyMentions(ctx context.Context, answer string, company model.Company, originalPrompt string) ([]model.BrandMention, error) {
	prompt := fmt.Sprintf(classifyUserPrompt,
		company.Name, company.ID,
		competitorLines(company.Competitors),
		originalPrompt,
		truncate(answer, maxClassifyAnswerChars),
	)

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(classifySystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "analyze: classify mentions")
	}
	a.addUsage(resp.Usage)

	mentions, err := parseMentions(resp.Text(), company)
	if err != nil {
		zap.L().Warn("analyze: unparseable classification output",
			zap.String("model", a.model),
			zap.Error(err),
		)
		return nil, err
	}
	return mentions, nil
}

func competitorLines(competitors []model.Brand) string {
	if len(competitors) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, c := range competitors {
		fmt.Fprintf(&b, "- %s (id: %s)\n", c.Name, c.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

type wireMention struct {
	Name string `json:"name"`
	Type string `json:"type"`
	ID   string `json:"id"`
}

// parseMentions decodes the classifier output, falling back to a positional
// regex scan when even repaired JSON will not parse.
func parseMentions(text string, company model.Company) ([]model.BrandMention, error) {
	var out struct {
		TopOfMind []wireMention `json:"topOfMind"`
	}
	if err := jsonrepair.Unmarshal(text, &out); err == nil {
		return canonicalize(out.TopOfMind, company), nil
	}

	pairs := pairNamesAndTypes(text)
	if len(pairs) == 0 {
		return nil, eris.New("analyze: no mentions recoverable from classifier output")
	}
	return canonicalize(pairs, company), nil
}

// pairNamesAndTypes recovers partial results from truncated or decorated
// JSON: independent scans for "name" and "type" string fields, paired in
// order of appearance.
func pairNamesAndTypes(text string) []wireMention {
	names := jsonrepair.StringFieldValues(text, "name")
	types := jsonrepair.StringFieldValues(text, "type")

	var out []wireMention
	for i, n := range names {
		m := wireMention{Name: n.Value}
		if i < len(types) {
			m.Type = types[i].Value
		}
		out = append(out, m)
	}
	return out
}

// canonicalize maps raw classifier mentions onto the profile's canonical
// brands. Matching is by derived identifier: exact, or a hyphen-boundary
// prefix in either direction so "free-mobile" matches "free". Unmatched names
// stay as written, categorized other with no identifier. Duplicates collapse
// to the first occurrence.
func canonicalize(raw []wireMention, company model.Company) []model.BrandMention {
	seen := make(map[string]bool)
	var out []model.BrandMention
	for _, m := range raw {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}

		mention := model.BrandMention{Name: name, Category: model.CategoryOther}
		slug := model.Slug(name)
		switch {
		case slugsMatch(slug, company.ID):
			mention = model.BrandMention{Name: company.Name, Category: model.CategoryOurBrand, ID: company.ID}
		default:
			for _, c := range company.Competitors {
				if slugsMatch(slug, c.ID) {
					mention = model.BrandMention{Name: c.Name, Category: model.CategoryCompetitor, ID: c.ID}
					break
				}
			}
		}

		key := mention.ID
		if key == "" {
			key = slug
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, mention)
	}
	return out
}

func slugsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.HasPrefix(a, b+"-") || strings.HasPrefix(b, a+"-")
}
