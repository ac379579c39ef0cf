package model

// PromptPurpose distinguishes what a prompt set measures.
type PromptPurpose string

const (
	PurposeVisibility PromptPurpose = "visibility"
	PurposeSentiment  PromptPurpose = "sentiment"
)

// Company is the brand profile under audit.
type Company struct {
	Name        string     `json:"name" yaml:"name"`
	ID          string     `json:"id" yaml:"id"`
	Website     string     `json:"website" yaml:"website"`
	Market      string     `json:"market" yaml:"market"`
	Language    string     `json:"language" yaml:"language"`
	Competitors []Brand    `json:"competitors" yaml:"competitors"`
	Prompts     PromptSets `json:"prompts" yaml:"prompts"`
}

// Brand is a named brand with its canonical identifier.
type Brand struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

// PromptSets groups prompt templates by purpose.
type PromptSets struct {
	Visibility []string `json:"visibility" yaml:"visibility"`
	Sentiment  []string `json:"sentiment" yaml:"sentiment"`
}

// Normalize fills derived identifiers the profile omitted. Competitor IDs are
// always re-derived with Slug so near-duplicate competitor spellings collapse
// into a single bucket before matching.
func (c *Company) Normalize() {
	if c.ID == "" {
		c.ID = Slug(c.Name)
	}
	seen := make(map[string]bool, len(c.Competitors))
	deduped := c.Competitors[:0]
	for _, comp := range c.Competitors {
		comp.ID = Slug(comp.Name)
		if comp.ID == "" || comp.ID == c.ID || seen[comp.ID] {
			continue
		}
		seen[comp.ID] = true
		deduped = append(deduped, comp)
	}
	c.Competitors = deduped
}

// CompetitorNames returns the display names, importance order preserved.
func (c *Company) CompetitorNames() []string {
	names := make([]string, len(c.Competitors))
	for i, comp := range c.Competitors {
		names[i] = comp.Name
	}
	return names
}

// ModelConfig identifies one provider/model target for dispatch. The enabled
// list is fixed at startup from which credentials are present and is never
// mutated afterward.
type ModelConfig struct {
	Provider string `json:"provider"`
	ModelID  string `json:"model_id"`
	Display  string `json:"display"`
}
