package features

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// ErrEmptyContent marks a touch whose subject and body are both blank.
// Callers skip the touch and count it rather than aborting the run.
var ErrEmptyContent = eris.New("features: empty message content")

// Hints carries per-lead context the extractor cannot derive from the
// message text alone.
type Hints struct {
	FirstName   string
	CompanyName string
	Industry    string
}

var recentEventPhrases = []string{
	"congrats", "congratulations", "saw the news", "recent announcement",
	"just raised", "new role", "just announced",
}

var mutualConnectionPhrases = []string{
	"mutual", "we both know", "introduced", "referred me", "suggested i reach out",
}

// Extractor derives a ContentSnapshot from raw message text using a
// fixed vocabulary.
type Extractor struct {
	vocab *Vocabulary
}

func NewExtractor(vocab *Vocabulary) *Extractor {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Extractor{vocab: vocab}
}

// Extract analyzes one message. Identical input always yields an identical
// snapshot. Returns ErrEmptyContent when both subject and body are blank.
func (e *Extractor) Extract(subject, body string, hints Hints) (*model.ContentSnapshot, error) {
	if strings.TrimSpace(subject) == "" && strings.TrimSpace(body) == "" {
		return nil, ErrEmptyContent
	}

	text := strings.ToLower(subject + " " + body)

	snap := &model.ContentSnapshot{
		PainPoints:         e.matchCategories(text, e.vocab.PainPoints),
		CTA:                e.matchCTA(text),
		Angle:              e.matchAngle(text),
		WordCount:          len(strings.Fields(body)),
		CharCount:          utf8.RuneCountInString(body),
		SubjectWordCount:   len(strings.Fields(subject)),
		SubjectHasQuestion: strings.Contains(subject, "?"),
		SubjectHasNumber:   containsDigit(subject),
	}

	snap.MentionsFirstName = mentions(text, hints.FirstName)
	snap.MentionsCompany = mentions(text, hints.CompanyName)
	snap.MentionsIndustry = mentions(text, hints.Industry)
	snap.MentionsRecentEvent = matchAny(text, recentEventPhrases)
	snap.MentionsMutualConnection = matchAny(text, mutualConnectionPhrases)

	return snap, nil
}

// matchCategories returns the sorted category names whose phrase lists hit
// the text.
func (e *Extractor) matchCategories(text string, categories map[string][]string) []string {
	var matched []string
	for _, name := range sortedKeys(categories) {
		if matchAny(text, categories[name]) {
			matched = append(matched, name)
		}
	}
	return matched
}

// matchAngle picks the angle category with the most phrase hits. Ties go to
// the lexicographically smaller name so repeated runs agree.
func (e *Extractor) matchAngle(text string) string {
	best := ""
	bestHits := 0
	for _, name := range e.vocab.AngleCategories() {
		hits := 0
		for _, phrase := range e.vocab.Angles[name] {
			if strings.Contains(text, phrase) {
				hits++
			}
		}
		if hits > bestHits {
			best = name
			bestHits = hits
		}
	}
	return best
}

// matchCTA returns the longest CTA phrase found in the text. Longer phrases
// win over their substrings.
func (e *Extractor) matchCTA(text string) string {
	best := ""
	for _, phrase := range e.vocab.CTAs {
		if strings.Contains(text, phrase) && len(phrase) > len(best) {
			best = phrase
		}
	}
	return best
}

func mentions(text, needle string) bool {
	needle = strings.ToLower(strings.TrimSpace(needle))
	return needle != "" && strings.Contains(text, needle)
}

func matchAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	return strings.ContainsFunc(s, unicode.IsDigit)
}
