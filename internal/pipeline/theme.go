package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/fanout"
	"github.com/dyike/BriefCast/internal/script"
)

// theme writes one segment per theme in parallel, merges them in theme
// order and lets the theme refiner smooth the transitions.
func (r *run) theme(ctx context.Context, st *State) (*Delta, error) {
	if len(st.Themes) == 0 {
		log.Printf("[Pipeline] theme: no themes, nothing to do")
		return &Delta{}, nil
	}
	base := script.Clone(st.Scripts)
	baseText := script.Texts(base)

	parts := fanout.Run(ctx, st.Themes, func(ctx context.Context, i int, th script.Theme) ([]script.Turn, error) {
		return r.writeTheme(ctx, st.Date, i, th, baseText)
	}, fanout.WithGroup(consts.ThemeWorker), fanout.WithConcurrency(r.o.cfg.FanoutConcurrency))

	labels := []string{consts.Chapter_Opening}
	counts := []int{len(base)}
	for i, th := range st.Themes {
		labels = append(labels, th.Headline)
		counts = append(counts, len(parts[i]))
	}
	turns := script.Concat(parts...)
	merged := script.Concat(base, turns)
	sections := script.Sections(0, labels, counts)

	var edits []script.Edit
	if len(turns) > 0 {
		edits = r.refineStrict(ctx, consts.ThemeRefiner, consts.Profile_ThemeRefiner, "theme_refiner",
			refinerVars(st.Date, merged, sections), len(merged), r.o.cfg.ThemeRefinerMaxRetries)
	}
	log.Printf("[Pipeline] theme: %d themes -> %d turns, %d edits", len(st.Themes), len(turns), len(edits))
	return &Delta{
		Turns: turns,
		Edits: edits,
		Extra: map[string]any{"sections": sections[1:]},
	}, nil
}

func (r *run) writeTheme(ctx context.Context, date string, i int, th script.Theme, baseText string) ([]script.Turn, error) {
	name := consts.ThemeWorker
	res, err := r.work(ctx, name, consts.Profile_ThemeWorker, r.gw.OpeningTools(), "theme_worker", map[string]any{
		"date_kr":      script.KoreanDate(date),
		"theme":        jsonText(th),
		"base_scripts": baseText,
	})
	if err != nil {
		return nil, err
	}
	if !res.Parsed() {
		return nil, fmt.Errorf("theme %d (%s) writer: answer has no JSON object", i, th.Headline)
	}
	return normalize(name, script.RawTurns(res.Data, "scripts")), nil
}
