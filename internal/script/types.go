package script

import "strings"

// Speaker is one of the two podcast voices. Wire values are the Korean
// labels the TTS and playback consumers expect.
type Speaker string

const (
	SpeakerHost    Speaker = "진행자"
	SpeakerAnalyst Speaker = "해설자"
)

func (s Speaker) Valid() bool {
	return s == SpeakerHost || s == SpeakerAnalyst
}

// ParseSpeaker accepts only the exact wire values after trimming.
func ParseSpeaker(v string) (Speaker, bool) {
	s := Speaker(strings.TrimSpace(v))
	return s, s.Valid()
}

// Turn is one utterance in the final script.
type Turn struct {
	ID      int      `json:"id"`
	Speaker Speaker  `json:"speaker"`
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Theme is a market theme chosen by the opening stage.
type Theme struct {
	Headline    string   `json:"headline"`
	Description string   `json:"description"`
	RelatedNews []Source `json:"related_news"`
}

// Clone returns a deep copy so callers can hand out read-only views.
func Clone(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[i] = t
		out[i].Sources = append([]Source(nil), t.Sources...)
	}
	return out
}

// OneLine collapses all whitespace runs, newlines included, to a single space.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
