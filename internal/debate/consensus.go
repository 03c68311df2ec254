package debate

import (
	"fmt"

	"github.com/dyike/BriefCast/config"
)

// Settings bound the debate. MinRounds is at least 2 and MaxRounds at
// least MinRounds.
type Settings struct {
	MinRounds int
	MaxRounds int
	Threshold float64
}

const (
	floorRounds      = 2
	defaultThreshold = 0.7
)

func (s Settings) normalized() Settings {
	s.MinRounds = max(floorRounds, s.MinRounds)
	s.MaxRounds = max(s.MinRounds, s.MaxRounds)
	s.Threshold = min(max(s.Threshold, 0), 1)
	return s
}

func DefaultSettings() Settings {
	return Settings{MinRounds: floorRounds, MaxRounds: floorRounds, Threshold: defaultThreshold}
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		MinRounds: cfg.DebateMinRounds,
		MaxRounds: cfg.DebateMaxRounds,
		Threshold: cfg.DebateConsensusConfidence,
	}.normalized()
}

// WithMaxRounds overrides the round cap, keeping the bounds valid.
func (s Settings) WithMaxRounds(n int) Settings {
	s.MaxRounds = n
	return s.normalized()
}

// MeetsConsensus reports whether all four experts chose the same action
// with confidence at or above threshold.
func MeetsConsensus(r *Round, threshold float64) bool {
	if r == nil {
		return false
	}
	first := r.Get(Roles[0]).Action
	for _, role := range Roles {
		u := r.Get(role)
		if u.Action != first || u.Confidence < threshold {
			return false
		}
	}
	return true
}

type Step string

const (
	Continue Step = "continue"
	End      Step = "end"
)

// NextStep decides what follows round n.
func (s Settings) NextStep(n int, consensus bool) Step {
	if n < s.MinRounds || (!consensus && n < s.MaxRounds) {
		return Continue
	}
	return End
}

// tieOrder breaks majority ties.
var tieOrder = []Action{Hold, Buy, Sell}

// MajorityAction is the most frequent action of the round, ties going
// HOLD, then BUY, then SELL.
func MajorityAction(r *Round) Action {
	counts := map[Action]int{}
	for _, role := range Roles {
		counts[r.Get(role).Action]++
	}
	best := tieOrder[0]
	for _, a := range tieOrder[1:] {
		if counts[a] > counts[best] {
			best = a
		}
	}
	return best
}

func AverageConfidence(r *Round) float64 {
	sum := 0.0
	for _, role := range Roles {
		sum += r.Get(role).Confidence
	}
	return sum / float64(len(Roles))
}

// Verdict is the moderator's answer after one round. Action and
// Confidence are nil when the moderator left them out.
type Verdict struct {
	Guidance   map[Role]string
	Text       string
	Action     *Action
	Confidence *float64
}

// Conclude builds the final conclusion from the last round and the
// moderator's verdict. With consensus the action is the unanimous one;
// otherwise the moderator's action wins, then the majority.
func Conclude(last *Round, consensus bool, v *Verdict) Conclusion {
	if v == nil {
		v = &Verdict{}
	}
	c := Conclusion{Text: v.Text}
	switch {
	case consensus:
		c.Action = last.Get(Roles[0]).Action
	case v.Action != nil:
		c.Action = *v.Action
	default:
		c.Action = MajorityAction(last)
	}
	if v.Confidence != nil {
		c.Confidence = *v.Confidence
	} else {
		c.Confidence = AverageConfidence(last)
	}
	if c.Text == "" {
		c.Text = fmt.Sprintf("토론 결과 %s 의견이 우세했습니다 (평균 확신도 %.2f, 최종 라운드 %s).", c.Action, c.Confidence, last.Positions())
	}
	return c
}

// ForcedConclusion is the best-effort verdict without moderator input:
// majority action and average confidence.
func ForcedConclusion(last *Round) Conclusion {
	return Conclude(last, false, nil)
}
