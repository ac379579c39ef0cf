package analyze

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meridianlabs/visibility-cli/internal/jsonrepair"
	"github.com/meridianlabs/visibility-cli/internal/model"
)

const discoveryPromptTemplate = `List the 3 to 5 most important direct competitors of %s (%s) in the %s market, ordered by importance. Respond with a valid JSON object: {"competitors": ["<company name>", ...]}. Use each company's common brand name, nothing else.`

const maxDiscoveredCompetitors = 5

// ProviderInvoker dispatches one prompt to a named provider. Satisfied by
// adapter.Registry.
type ProviderInvoker interface {
	Invoke(ctx context.Context, provider, prompt string, temperature float64) (model.RawAnswer, error)
}

// Discoverer finds a company's competitors with one web-search-capable LLM
// call, retrying once on a fallback provider.
type Discoverer struct {
	providers ProviderInvoker
	preferred string
	fallback  string
}

// NewDiscoverer creates a Discoverer. The preferred provider is tried first;
// the fallback gets one attempt with the same prompt if the preferred call
// fails or yields nothing usable.
func NewDiscoverer(providers ProviderInvoker, preferred, fallback string) *Discoverer {
	return &Discoverer{providers: providers, preferred: preferred, fallback: fallback}
}

// Discover returns up to 5 competitor names, importance-ordered. Total
// failure returns an empty list: downstream classification then has no
// competitor set to match against, which is degraded output, not an error.
func (d *Discoverer) Discover(ctx context.Context, brandName, website, market string) []string {
	prompt := fmt.Sprintf(discoveryPromptTemplate, brandName, website, market)

	for _, provider := range []string{d.preferred, d.fallback} {
		if provider == "" {
			continue
		}
		ans, err := d.providers.Invoke(ctx, provider, prompt, 0.2)
		if err != nil {
			zap.L().Warn("analyze: discovery call failed",
				zap.String("provider", provider),
				zap.String("brand", brandName),
				zap.Error(err),
			)
			continue
		}
		if names := parseCompetitors(ans.Text, brandName); len(names) > 0 {
			return names
		}
		zap.L().Warn("analyze: discovery answer had no usable competitor list",
			zap.String("provider", provider),
			zap.String("brand", brandName),
		)
	}
	return nil
}

// parseCompetitors decodes the discovery answer, dropping empties, the brand
// itself, and near-duplicate names.
func parseCompetitors(text, brandName string) []string {
	var out struct {
		Competitors []string `json:"competitors"`
	}
	if err := jsonrepair.Unmarshal(text, &out); err != nil {
		return nil
	}

	selfID := model.Slug(brandName)
	var ids []string
	var names []string
	for _, name := range out.Competitors {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id := model.Slug(name)
		if id == "" || slugsMatch(id, selfID) || anySlugMatches(ids, id) {
			continue
		}
		ids = append(ids, id)
		names = append(names, name)
		if len(names) == maxDiscoveredCompetitors {
			break
		}
	}
	return names
}

func anySlugMatches(ids []string, id string) bool {
	for _, existing := range ids {
		if slugsMatch(existing, id) {
			return true
		}
	}
	return false
}
