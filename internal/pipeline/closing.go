package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/script"
)

// closing appends the wrap-up segment. Failures abort the run.
func (r *run) closing(ctx context.Context, st *State) (*Delta, error) {
	res, err := r.work(ctx, consts.ClosingStage, consts.Profile_Closing, r.gw.ClosingTools(), "closing", map[string]any{
		"date_kr":          script.KoreanDate(st.Date),
		"calendar_context": r.calendarContext(),
		"scripts":          script.Texts(st.Scripts),
	})
	if err != nil {
		return nil, err
	}
	if !res.Parsed() {
		return nil, fmt.Errorf("closing answer has no JSON object")
	}
	turns := normalize(consts.ClosingStage, script.RawTurns(res.Data, "closing_turns"))
	log.Printf("[Pipeline] closing: %d turns", len(turns))
	return &Delta{Turns: turns}, nil
}
