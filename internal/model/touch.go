package model

import "time"

// Touch is a single outreach attempt within a lead's sequence.
type Touch struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	LeadID   string `json:"lead_id"`

	Channel     Channel   `json:"channel"`
	SentAt      time.Time `json:"sent_at"`
	TouchNumber int       `json:"touch_number"` // 1-indexed position in the sequence
	SequenceID  string    `json:"sequence_id,omitempty"`

	// Raw message text as sent. Retained so content features can be
	// reconstructed for rows written before snapshot capture existed.
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`

	// Content features captured at send time. Nil on legacy rows.
	Content *ContentSnapshot `json:"content,omitempty"`

	// LedToBooking is set retroactively on the touch immediately preceding
	// a conversion. At most one touch per lead carries it.
	LedToBooking bool `json:"led_to_booking"`
}

// ContentSnapshot holds the message features extracted when a touch was
// sent. Category values come from the feature vocabulary.
type ContentSnapshot struct {
	PainPoints []string `json:"pain_points,omitempty"`
	CTA        string   `json:"cta,omitempty"`
	Angle      string   `json:"angle,omitempty"`

	MentionsCompany          bool `json:"mentions_company"`
	MentionsFirstName        bool `json:"mentions_first_name"`
	MentionsRecentEvent      bool `json:"mentions_recent_event"`
	MentionsMutualConnection bool `json:"mentions_mutual_connection"`
	MentionsIndustry         bool `json:"mentions_industry"`

	WordCount          int  `json:"word_count"`
	CharCount          int  `json:"char_count"`
	SubjectWordCount   int  `json:"subject_word_count"`
	SubjectHasQuestion bool `json:"subject_has_question"`
	SubjectHasNumber   bool `json:"subject_has_number"`
}

// PersonalizationFlags returns the snapshot's personalization booleans
// keyed by canonical flag name.
func (c *ContentSnapshot) PersonalizationFlags() map[string]bool {
	return map[string]bool{
		"mentions_company":           c.MentionsCompany,
		"mentions_first_name":        c.MentionsFirstName,
		"mentions_recent_event":      c.MentionsRecentEvent,
		"mentions_mutual_connection": c.MentionsMutualConnection,
		"mentions_industry":          c.MentionsIndustry,
	}
}

// PersonalizationFlagNames lists the flag names in canonical order.
var PersonalizationFlagNames = []string{
	"mentions_company",
	"mentions_first_name",
	"mentions_recent_event",
	"mentions_mutual_connection",
	"mentions_industry",
}
