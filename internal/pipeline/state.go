// Package pipeline sequences the opening, theme, ticker and closing
// stages over one shared script state.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/script"
)

var (
	// ErrMissingArtifact means a required upstream file is absent.
	ErrMissingArtifact = errors.New("missing upstream artifact")
	// ErrStageFailed wraps errors that abort the run.
	ErrStageFailed = errors.New("stage failed")
)

type Stage int

const (
	StageOpening Stage = iota
	StageTheme
	StageTicker
	StageClosing
)

// Stages is the fixed execution order.
var Stages = []Stage{StageOpening, StageTheme, StageTicker, StageClosing}

// Name is the stage's node and temp artifact name.
func (s Stage) Name() string {
	switch s {
	case StageOpening:
		return consts.OpeningStage
	case StageTheme:
		return consts.ThemeStage
	case StageTicker:
		return consts.TickerPipelineStage
	case StageClosing:
		return consts.ClosingStage
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Chapter is the chapter name the stage's turns are recorded under.
func (s Stage) Chapter() string {
	switch s {
	case StageOpening:
		return consts.Chapter_Opening
	case StageTheme:
		return consts.Chapter_Theme
	case StageTicker:
		return consts.Chapter_Ticker
	case StageClosing:
		return consts.Chapter_Closing
	}
	return ""
}

func (s Stage) String() string { return s.Name() }

// ParseStage accepts a stage name or chapter name.
func ParseStage(v string) (Stage, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "opening", "0":
		return StageOpening, nil
	case "theme", "1":
		return StageTheme, nil
	case "ticker", "ticker_pipeline", "2":
		return StageTicker, nil
	case "closing", "3":
		return StageClosing, nil
	}
	return 0, fmt.Errorf("unknown stage %q (want opening|theme|ticker|closing)", v)
}

// Request describes one run. Cutoff is the last stage of a staged run;
// Only, when set, runs that single stage from its predecessor's artifact.
type Request struct {
	Date    string
	Tickers []string
	Cutoff  Stage
	Only    *Stage
}

// Full reports whether the request runs every stage in one go.
func (r Request) Full() bool {
	return r.Only == nil && r.Cutoff >= StageClosing
}

// State is the script state carried from stage to stage. Only the
// orchestrator mutates it; stages read it and return a Delta.
type State struct {
	RunID       string                `json:"run_id"`
	Date        string                `json:"date"`
	UserTickers []string              `json:"user_tickers"`
	Nutshell    string                `json:"nutshell"`
	Themes      []script.Theme        `json:"themes"`
	Scripts     []script.Turn         `json:"scripts"`
	Chapter     []script.ChapterRange `json:"chapter"`
	Status      map[string]string     `json:"status"`
}

func newState(runID, date string, tickers []string) *State {
	st := &State{
		RunID:       runID,
		Date:        date,
		UserTickers: append([]string{}, tickers...),
		Themes:      []script.Theme{},
		Scripts:     []script.Turn{},
		Status:      map[string]string{},
	}
	for _, s := range Stages {
		st.Status[s.Name()] = consts.State_Pending
		st.Chapter = append(st.Chapter, script.EmptyChapter(s.Chapter()))
	}
	return st
}

// setChapter records the range of stage s.
func (st *State) setChapter(s Stage, r script.ChapterRange) {
	for i := range st.Chapter {
		if st.Chapter[i].Name == r.Name {
			st.Chapter[i] = r
			return
		}
	}
	st.Chapter = append(st.Chapter, r)
}

// ChapterOf returns the recorded range for a chapter name.
func (st *State) ChapterOf(name string) script.ChapterRange {
	for _, c := range st.Chapter {
		if c.Name == name {
			return c
		}
	}
	return script.EmptyChapter(name)
}

// Artifact is the persisted form consumed by TTS and playback.
func (st *State) Artifact() *script.Artifact {
	return &script.Artifact{
		Date:        st.Date,
		Nutshell:    st.Nutshell,
		UserTickers: st.UserTickers,
		Chapter:     append([]script.ChapterRange(nil), st.Chapter...),
		Scripts:     script.Clone(st.Scripts),
	}
}

// Delta is what a stage returns: turns to append and edits to apply to
// the merged sequence. Extra is stored in the stage's temp artifact.
type Delta struct {
	Nutshell string
	Themes   []script.Theme
	Turns    []script.Turn
	Edits    []script.Edit
	Extra    map[string]any
}

// StageArtifact is temp/{stage}.json: the state after the stage plus
// stage specific details.
type StageArtifact struct {
	Stage   string         `json:"stage"`
	State   *State         `json:"state"`
	Applied []script.Edit  `json:"applied_edits"`
	Extra   map[string]any `json:"extra,omitempty"`
}
