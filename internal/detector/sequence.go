package detector

import (
	"sort"

	"github.com/outfieldhq/learning-engine/internal/model"
)

// sequence is one lead's touches in send order.
type sequence struct {
	leadID    string
	touches   []model.Touch
	converted bool
}

// buildSequences groups touches by lead and orders each group
// chronologically. Lead order and intra-sequence order are total, so the
// result is identical for any input permutation.
func buildSequences(touches []model.Touch) []sequence {
	byLead := make(map[string][]model.Touch)
	for _, t := range touches {
		byLead[t.LeadID] = append(byLead[t.LeadID], t)
	}

	leadIDs := make([]string, 0, len(byLead))
	for id := range byLead {
		leadIDs = append(leadIDs, id)
	}
	sort.Strings(leadIDs)

	seqs := make([]sequence, 0, len(leadIDs))
	for _, id := range leadIDs {
		ts := byLead[id]
		sort.Slice(ts, func(i, j int) bool {
			if !ts[i].SentAt.Equal(ts[j].SentAt) {
				return ts[i].SentAt.Before(ts[j].SentAt)
			}
			if ts[i].TouchNumber != ts[j].TouchNumber {
				return ts[i].TouchNumber < ts[j].TouchNumber
			}
			return ts[i].ID < ts[j].ID
		})

		converted := false
		for i := range ts {
			if ts[i].LedToBooking {
				converted = true
				break
			}
		}
		seqs = append(seqs, sequence{leadID: id, touches: ts, converted: converted})
	}
	return seqs
}

func (s *sequence) channels() []model.Channel {
	out := make([]model.Channel, len(s.touches))
	for i := range s.touches {
		out[i] = s.touches[i].Channel
	}
	return out
}

func (s *sequence) distinctChannels() int {
	seen := make(map[model.Channel]struct{}, 4)
	for i := range s.touches {
		seen[s.touches[i].Channel] = struct{}{}
	}
	return len(seen)
}
