package script

// ChapterRange is an inclusive id range of the final script. An empty
// chapter is (-1, -1).
type ChapterRange struct {
	Name    string `json:"name"`
	StartID int    `json:"start_id"`
	EndID   int    `json:"end_id"`
}

func EmptyChapter(name string) ChapterRange {
	return ChapterRange{Name: name, StartID: -1, EndID: -1}
}

// Span is a contiguous block of count turns starting at start.
func Span(name string, start, count int) ChapterRange {
	if count <= 0 || start < 0 {
		return EmptyChapter(name)
	}
	return ChapterRange{Name: name, StartID: start, EndID: start + count - 1}
}

func (c ChapterRange) Empty() bool {
	return c.StartID < 0 || c.EndID < c.StartID
}

func (c ChapterRange) Len() int {
	if c.Empty() {
		return 0
	}
	return c.EndID - c.StartID + 1
}

// Section is a labelled block inside a stage, such as one theme or one
// ticker.
type Section struct {
	Label   string `json:"label"`
	StartID int    `json:"start_id"`
	EndID   int    `json:"end_id"`
}

// Sections lays out consecutive blocks starting at offset. Empty blocks
// get (-1, -1) and do not advance the cursor.
func Sections(offset int, labels []string, counts []int) []Section {
	out := make([]Section, 0, len(labels))
	cursor := offset
	for i, label := range labels {
		n := 0
		if i < len(counts) {
			n = counts[i]
		}
		if n <= 0 {
			out = append(out, Section{Label: label, StartID: -1, EndID: -1})
			continue
		}
		out = append(out, Section{Label: label, StartID: cursor, EndID: cursor + n - 1})
		cursor += n
	}
	return out
}

// Transition marks the boundary between two adjacent non-empty sections.
type Transition struct {
	From    string `json:"from"`
	To      string `json:"to"`
	LastID  int    `json:"last_id"`
	FirstID int    `json:"first_id"`
}

func Transitions(sections []Section) []Transition {
	var out []Transition
	var prev *Section
	for i := range sections {
		s := &sections[i]
		if s.StartID < 0 {
			continue
		}
		if prev != nil {
			out = append(out, Transition{From: prev.Label, To: s.Label, LastID: prev.EndID, FirstID: s.StartID})
		}
		prev = s
	}
	return out
}
