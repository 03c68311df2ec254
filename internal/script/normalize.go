package script

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// RawTurn is a turn as decoded from model output, before validation.
type RawTurn = any

// DecodeRawTurns decodes a JSON array of turns. Anything other than an
// array decodes to an empty list.
func DecodeRawTurns(data json.RawMessage) []RawTurn {
	var raw []RawTurn
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[Normalize] scripts dropped: not an array: %v", err)
		return nil
	}
	return raw
}

// RawTurns extracts the list stored under key in a decoded JSON object.
func RawTurns(obj map[string]any, key string) []RawTurn {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		log.Printf("[Normalize] %s dropped: not an array", key)
		return nil
	}
	return list
}

// Normalize validates raw turns, drops the invalid ones and assigns
// dense ids 0..M-1 in input order. It is idempotent.
func Normalize(raw []RawTurn) []Turn {
	out := make([]Turn, 0, len(raw))
	for idx, r := range raw {
		t, err := decodeTurn(r)
		if err != nil {
			log.Printf("[Normalize] turn[%d] dropped: %v", idx, err)
			continue
		}
		if t, err = cleanTurn(t, idx); err != nil {
			log.Printf("[Normalize] turn[%d] dropped: %v", idx, err)
			continue
		}
		t.ID = len(out)
		out = append(out, t)
	}
	return out
}

// NormalizeTurns applies the Normalize rules to typed turns.
func NormalizeTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for idx, t := range turns {
		c, err := cleanTurn(t, idx)
		if err != nil {
			log.Printf("[Normalize] turn[%d] dropped: %v", idx, err)
			continue
		}
		c.ID = len(out)
		out = append(out, c)
	}
	return out
}

// Concat joins turn sequences and renumbers the result.
func Concat(parts ...[]Turn) []Turn {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	all := make([]Turn, 0, n)
	for _, p := range parts {
		all = append(all, p...)
	}
	return NormalizeTurns(all)
}

func decodeTurn(r RawTurn) (Turn, error) {
	m, ok := r.(map[string]any)
	if !ok {
		return Turn{}, fmt.Errorf("not an object")
	}
	speaker, _ := m["speaker"].(string)
	text, ok := m["text"].(string)
	if !ok {
		return Turn{}, fmt.Errorf("text missing or not a string")
	}
	rawSources, ok := m["sources"]
	if !ok {
		return Turn{}, fmt.Errorf("sources missing")
	}
	list, ok := rawSources.([]any)
	if !ok {
		return Turn{}, fmt.Errorf("sources is not an array")
	}

	t := Turn{Speaker: Speaker(speaker), Text: text, Sources: make([]Source, 0, len(list))}
	for _, s := range list {
		obj, ok := s.(map[string]any)
		if !ok {
			// keeps the slot so cleanTurn reports it with its index
			t.Sources = append(t.Sources, Source{})
			continue
		}
		t.Sources = append(t.Sources, sourceFromMap(obj))
	}
	return t, nil
}

func cleanTurn(t Turn, idx int) (Turn, error) {
	speaker, ok := ParseSpeaker(string(t.Speaker))
	if !ok {
		return Turn{}, fmt.Errorf("invalid speaker %q", t.Speaker)
	}
	text := OneLine(t.Text)
	if text == "" {
		return Turn{}, fmt.Errorf("empty text")
	}
	sources := make([]Source, 0, len(t.Sources))
	for si, s := range t.Sources {
		c, err := s.Canonical()
		if err != nil {
			log.Printf("[Normalize] turn[%d].sources[%d] dropped: %v", idx, si, err)
			continue
		}
		sources = append(sources, c)
	}
	if len(sources) == 0 {
		return Turn{}, fmt.Errorf("no valid source")
	}
	return Turn{Speaker: speaker, Text: text, Sources: sources}, nil
}

// Payload is the refiner view of a turn, sources stripped.
type Payload struct {
	ID      int     `json:"id"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

func Payloads(turns []Turn) []Payload {
	out := make([]Payload, len(turns))
	for i, t := range turns {
		out[i] = Payload{ID: t.ID, Speaker: t.Speaker, Text: t.Text}
	}
	return out
}

// Texts joins turn texts, one per line, for prompt context.
func Texts(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "[%d] %s: %s\n", t.ID, t.Speaker, t.Text)
	}
	return b.String()
}
