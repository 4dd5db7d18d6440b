// Package features extracts content signals from raw outreach message text.
package features

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary maps content categories to the trigger phrases that identify
// them. Matching is case-insensitive substring containment.
type Vocabulary struct {
	PainPoints map[string][]string `yaml:"pain_points"`
	Angles     map[string][]string `yaml:"angles"`
	CTAs       []string            `yaml:"ctas"`
}

// DefaultVocabulary returns the built-in category vocabulary.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		PainPoints: map[string][]string{
			"manual_process":      {"spreadsheet", "manual data entry", "copy-paste", "by hand", "manually"},
			"compliance":          {"compliance", "audit", "regulation", "soc 2", "regulatory"},
			"cost_pressure":       {"cut costs", "budget", "overspend", "too expensive", "cost overrun"},
			"pipeline_visibility": {"pipeline visibility", "forecast accuracy", "blind spot", "no visibility"},
			"slow_hiring":         {"time to hire", "recruiting backlog", "open reqs", "hard to hire"},
			"churn":               {"churn", "retention", "renewals", "losing customers"},
		},
		Angles: map[string][]string{
			"roi":             {"roi", "return on investment", "payback", "save you"},
			"social_proof":    {"companies like", "teams like yours", "customers such as", "others in your space"},
			"problem_agitate": {"struggling", "painful", "frustrating", "keeps you up"},
			"curiosity":       {"quick question", "noticed", "curious", "wondering"},
			"direct_offer":    {"demo", "free trial", "pilot", "proof of concept"},
		},
		CTAs: []string{
			"book a call",
			"schedule a demo",
			"15 minutes",
			"worth a chat",
			"open to learning more",
			"reply and i'll send",
			"grab time",
			"does next week work",
		},
	}
}

// LoadVocabulary reads a vocabulary from a YAML file. Sections absent from
// the file fall back to the built-in vocabulary. An empty path returns the
// built-in vocabulary unchanged.
func LoadVocabulary(path string) (*Vocabulary, error) {
	defaults := DefaultVocabulary()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "features: read vocabulary %s", path)
	}

	// The YAML has a top-level "vocabulary" key
	var wrapper struct {
		Vocabulary Vocabulary `yaml:"vocabulary"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "features: parse vocabulary")
	}

	v := &wrapper.Vocabulary
	if len(v.PainPoints) == 0 {
		v.PainPoints = defaults.PainPoints
	}
	if len(v.Angles) == 0 {
		v.Angles = defaults.Angles
	}
	if len(v.CTAs) == 0 {
		v.CTAs = defaults.CTAs
	}

	return v, nil
}

// PainPointCategories returns the pain point category names sorted.
func (v *Vocabulary) PainPointCategories() []string {
	return sortedKeys(v.PainPoints)
}

// AngleCategories returns the angle category names sorted.
func (v *Vocabulary) AngleCategories() []string {
	return sortedKeys(v.Angles)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
