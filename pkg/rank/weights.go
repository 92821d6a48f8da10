package rank

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weights are the ranking constants. Tier weights are the base score of a
// match in that tier; Bonus scales the within-tier bonus a matcher reports.
type Weights struct {
	Exact       float64 `yaml:"exact" json:"exact"`
	PathSuffix  float64 `yaml:"path_suffix" json:"path_suffix"`
	Prefix      float64 `yaml:"prefix" json:"prefix"`
	Subsequence float64 `yaml:"subsequence" json:"subsequence"`
	Description float64 `yaml:"description" json:"description"`

	TypeFull    float64 `yaml:"type_full" json:"type_full"`
	TypePartial float64 `yaml:"type_partial" json:"type_partial"`

	Bonus             float64 `yaml:"bonus" json:"bonus"`
	DeprecatedPenalty float64 `yaml:"deprecated_penalty" json:"deprecated_penalty"`
}

// DefaultWeights returns the default ranking configuration.
func DefaultWeights() Weights {
	return Weights{
		Exact:             1000,
		PathSuffix:        800,
		Prefix:            500,
		Subsequence:       250,
		Description:       50,
		TypeFull:          100,
		TypePartial:       50,
		Bonus:             20,
		DeprecatedPenalty: 20,
	}
}

// Validate checks that the weights keep tiers apart. A deprecated match in
// one name tier still outranks a match in the tier below carrying both
// bonuses and a full type match, and an exact name match, even deprecated,
// outranks any match that is only on type.
func (w Weights) Validate() error {
	if w.Bonus < 0 || w.DeprecatedPenalty < 0 || w.Description < 0 {
		return fmt.Errorf("weights must not be negative")
	}

	tiers := []struct {
		name  string
		value float64
	}{
		{"exact", w.Exact},
		{"path_suffix", w.PathSuffix},
		{"prefix", w.Prefix},
		{"subsequence", w.Subsequence},
		{"description", w.Description},
	}
	lift := w.TypeFull + 2*w.Bonus + w.DeprecatedPenalty
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].value-tiers[i].value <= lift {
			return fmt.Errorf("%s weight must exceed %s weight by more than type_full + 2*bonus + deprecated_penalty (%g)",
				tiers[i-1].name, tiers[i].name, lift)
		}
	}

	if w.TypeFull-w.TypePartial <= w.Bonus {
		return fmt.Errorf("type_full weight must exceed type_partial weight by more than the bonus")
	}
	if w.TypePartial <= 0 {
		return fmt.Errorf("type_partial weight must be positive")
	}
	if w.Exact-w.DeprecatedPenalty <= w.TypeFull+w.Bonus {
		return fmt.Errorf("exact weight minus deprecated penalty must exceed type_full weight plus bonus")
	}
	return nil
}

// LoadWeights reads a YAML weights file. Keys missing from the file keep
// their default values.
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, err
	}

	w := DefaultWeights()
	if err := yaml.Unmarshal(data, &w); err != nil {
		return Weights{}, fmt.Errorf("parse weights %s: %w", path, err)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, fmt.Errorf("invalid weights %s: %w", path, err)
	}
	return w, nil
}

// SaveWeights writes w as YAML.
func SaveWeights(w Weights, path string) error {
	data, err := yaml.Marshal(w)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
