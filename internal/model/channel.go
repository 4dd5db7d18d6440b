package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Channel identifies an outreach channel.
type Channel string

const (
	// ChannelNone marks an unused slot in a fixed-length sequence key.
	// It is a real enum member so sequence positions are never null.
	ChannelNone     Channel = "none"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelLinkedIn Channel = "linkedin"
	ChannelVoice    Channel = "voice"
)

// Channels lists the sendable channels in canonical order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelLinkedIn, ChannelVoice}

// Valid reports whether c is a known sendable channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelLinkedIn, ChannelVoice:
		return true
	}
	return false
}

// ParseChannel converts a stored string to a Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if c == ChannelNone || c.Valid() {
		return c, nil
	}
	return "", eris.Errorf("model: unknown channel %q", s)
}

// SequenceLength is the fixed capacity of a channel sequence key.
// Sequences longer than this are truncated during mining.
const SequenceLength = 6

// SequenceKey is an ordered, fixed-capacity channel sequence. Slots past
// the end of the actual sequence hold ChannelNone.
type SequenceKey [SequenceLength]Channel

// NewSequenceKey builds a key from an ordered channel list, truncating past
// SequenceLength and padding the remainder with ChannelNone.
func NewSequenceKey(channels []Channel) SequenceKey {
	var k SequenceKey
	for i := range k {
		if i < len(channels) {
			k[i] = channels[i]
		} else {
			k[i] = ChannelNone
		}
	}
	return k
}

// Len returns the number of leading non-padding slots.
func (k SequenceKey) Len() int {
	n := 0
	for _, c := range k {
		if c == ChannelNone {
			break
		}
		n++
	}
	return n
}

// Channels returns the non-padding prefix as a slice.
func (k SequenceKey) Channels() []Channel {
	out := make([]Channel, 0, k.Len())
	for _, c := range k {
		if c == ChannelNone {
			break
		}
		out = append(out, c)
	}
	return out
}

// String renders all slots joined by ">", padding included, so keys sort
// and compare deterministically.
func (k SequenceKey) String() string {
	parts := make([]string, SequenceLength)
	for i, c := range k {
		parts[i] = string(c)
	}
	return strings.Join(parts, ">")
}

// ParseSequenceKey parses the String form back into a key.
func ParseSequenceKey(s string) (SequenceKey, error) {
	var k SequenceKey
	parts := strings.Split(s, ">")
	if len(parts) != SequenceLength {
		return k, eris.Errorf("model: sequence key %q must have %d slots", s, SequenceLength)
	}
	for i, p := range parts {
		c, err := ParseChannel(p)
		if err != nil {
			return k, eris.Wrapf(err, "model: sequence key slot %d", i)
		}
		k[i] = c
	}
	return k, nil
}

// MarshalText lets SequenceKey serve as a JSON map key.
func (k SequenceKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the textual key form.
func (k *SequenceKey) UnmarshalText(data []byte) error {
	parsed, err := ParseSequenceKey(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
