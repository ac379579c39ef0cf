// Package profile loads company audit profiles from YAML files.
package profile

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meridianlabs/visibility-cli/internal/model"
)

// fileProfile is the on-disk shape. Competitors are plain names; canonical
// identifiers are derived, never written by hand.
type fileProfile struct {
	Name        string   `yaml:"name"`
	Website     string   `yaml:"website"`
	Market      string   `yaml:"market"`
	Language    string   `yaml:"language"`
	Competitors []string `yaml:"competitors"`
	Prompts     struct {
		Visibility []string `yaml:"visibility"`
		Sentiment  []string `yaml:"sentiment"`
	} `yaml:"prompts"`
}

// Load reads and validates a profile file.
func Load(path string) (model.Company, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Company{}, eris.Wrap(err, "profile: read file")
	}
	return Parse(data)
}

// Parse decodes a profile document, derives identifiers, and expands prompt
// placeholders.
func Parse(data []byte) (model.Company, error) {
	var fp fileProfile
	if err := yaml.Unmarshal(data, &fp); err != nil {
		return model.Company{}, eris.Wrap(err, "profile: parse yaml")
	}
	if strings.TrimSpace(fp.Name) == "" {
		return model.Company{}, eris.New("profile: name is required")
	}
	if len(fp.Prompts.Visibility) == 0 {
		return model.Company{}, eris.New("profile: at least one visibility prompt is required")
	}

	company := model.Company{
		Name:     strings.TrimSpace(fp.Name),
		Website:  strings.TrimSpace(fp.Website),
		Market:   strings.TrimSpace(fp.Market),
		Language: strings.TrimSpace(fp.Language),
		Prompts: model.PromptSets{
			Visibility: expandPrompts(fp.Prompts.Visibility, fp),
			Sentiment:  expandPrompts(fp.Prompts.Sentiment, fp),
		},
	}
	for _, name := range fp.Competitors {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		company.Competitors = append(company.Competitors, model.Brand{Name: name})
	}
	company.Normalize()
	return company, nil
}

// expandPrompts substitutes {brand}, {market}, and {website} placeholders so
// one prompt set can serve many profiles.
func expandPrompts(prompts []string, fp fileProfile) []string {
	r := strings.NewReplacer(
		"{brand}", strings.TrimSpace(fp.Name),
		"{market}", strings.TrimSpace(fp.Market),
		"{website}", strings.TrimSpace(fp.Website),
	)
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, r.Replace(p))
	}
	return out
}
