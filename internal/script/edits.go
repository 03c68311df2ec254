package script

import (
	"errors"
	"fmt"
	"log"
	"math"
)

// Edit replaces the speaker and text of an existing turn. Ids and
// sources are never changed by an edit.
type Edit struct {
	ID      int     `json:"id"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

var ErrNoEdits = errors.New("edits missing or not an array")

// ParseEdits reads obj["edits"] strictly: any malformed edit, or an id
// outside [0, n), rejects the whole list.
func ParseEdits(obj map[string]any, n int) ([]Edit, error) {
	list, ok := obj["edits"].([]any)
	if !ok {
		return nil, ErrNoEdits
	}
	out := make([]Edit, 0, len(list))
	for i, raw := range list {
		e, err := parseEdit(raw, n)
		if err != nil {
			return nil, fmt.Errorf("edits[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseEditsLenient keeps the valid edits and logs the rest.
func ParseEditsLenient(obj map[string]any, n int) []Edit {
	list, ok := obj["edits"].([]any)
	if !ok {
		return nil
	}
	out := make([]Edit, 0, len(list))
	for i, raw := range list {
		e, err := parseEdit(raw, n)
		if err != nil {
			log.Printf("[Refiner] edits[%d] skipped: %v", i, err)
			continue
		}
		out = append(out, e)
	}
	return out
}

func parseEdit(raw any, n int) (Edit, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Edit{}, fmt.Errorf("not an object")
	}
	f, ok := m["id"].(float64)
	if !ok || f != math.Trunc(f) {
		return Edit{}, fmt.Errorf("id is not an integer: %v", m["id"])
	}
	id := int(f)
	if id < 0 || id >= n {
		return Edit{}, fmt.Errorf("id %d out of range [0,%d)", id, n)
	}
	s, _ := m["speaker"].(string)
	speaker, ok := ParseSpeaker(s)
	if !ok {
		return Edit{}, fmt.Errorf("invalid speaker %q", s)
	}
	t, _ := m["text"].(string)
	text := OneLine(t)
	if text == "" {
		return Edit{}, fmt.Errorf("empty text")
	}
	return Edit{ID: id, Speaker: speaker, Text: text}, nil
}

// ApplyEdits returns a patched copy of turns and the edits that took
// effect. Edits naming an unknown id are skipped. Length, ids, order
// and sources are preserved.
func ApplyEdits(turns []Turn, edits []Edit) ([]Turn, []Edit) {
	out := Clone(turns)
	index := make(map[int]int, len(out))
	for i, t := range out {
		index[t.ID] = i
	}
	applied := make([]Edit, 0, len(edits))
	for _, e := range edits {
		i, ok := index[e.ID]
		if !ok {
			log.Printf("[Refiner] edit for unknown id %d skipped", e.ID)
			continue
		}
		speaker, ok := ParseSpeaker(string(e.Speaker))
		text := OneLine(e.Text)
		if !ok || text == "" {
			continue
		}
		out[i].Speaker = speaker
		out[i].Text = text
		applied = append(applied, Edit{ID: e.ID, Speaker: speaker, Text: text})
	}
	return out, applied
}
