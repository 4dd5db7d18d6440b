package features

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadVocabulary(t *testing.T) {
	yaml := `
vocabulary:
  pain_points:
    onboarding: ["slow onboarding", "ramp time"]
  angles:
    urgency: ["quarter end", "before renewal"]
  ctas:
    - "jump on a call"
    - "send over details"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "vocabulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"slow onboarding", "ramp time"}, v.PainPoints["onboarding"])
	assert.Equal(t, []string{"quarter end", "before renewal"}, v.Angles["urgency"])
	assert.Equal(t, []string{"jump on a call", "send over details"}, v.CTAs)
}

func TestLoadVocabulary_PartialFallsBackToDefaults(t *testing.T) {
	yaml := `
vocabulary:
  ctas:
    - "jump on a call"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "vocabulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)

	// ctas come from the file, the rest inherit the built-ins.
	assert.Equal(t, []string{"jump on a call"}, v.CTAs)
	assert.Equal(t, DefaultVocabulary().PainPoints, v.PainPoints)
	assert.Equal(t, DefaultVocabulary().Angles, v.Angles)
}

func TestLoadVocabulary_EmptyPathUsesDefaults(t *testing.T) {
	v, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.Equal(t, DefaultVocabulary(), v)
}

func TestLoadVocabulary_FileNotFound(t *testing.T) {
	_, err := LoadVocabulary("/nonexistent/vocabulary.yaml")
	assert.Error(t, err)
}

func TestVocabularyCategoriesSorted(t *testing.T) {
	v := &Vocabulary{
		PainPoints: map[string][]string{"zeta": {"z"}, "alpha": {"a"}, "mid": {"m"}},
		Angles:     map[string][]string{"b": {"x"}, "a": {"y"}},
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, v.PainPointCategories())
	assert.Equal(t, []string{"a", "b"}, v.AngleCategories())
}
