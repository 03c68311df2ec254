// Package debate runs the per-ticker expert debate: four experts argue
// in parallel rounds and a moderator steers or concludes.
package debate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/script"
)

type Action string

const (
	Buy  Action = "BUY"
	Hold Action = "HOLD"
	Sell Action = "SELL"
)

// NormalizeAction maps free-form model output onto an Action. Anything
// unrecognized is HOLD.
func NormalizeAction(v any) Action {
	raw := ""
	if v != nil {
		raw = strings.ToUpper(strings.TrimSpace(fmt.Sprint(v)))
	}
	switch Action(raw) {
	case Buy, Hold, Sell:
		return Action(raw)
	}
	switch {
	case strings.Contains(raw, "BUY"):
		return Buy
	case strings.Contains(raw, "SELL"):
		return Sell
	}
	return Hold
}

const defaultConfidence = 0.5

// NormalizeConfidence parses a number or numeric string and clamps it to
// [0, 1]. Unparsable values give 0.5.
func NormalizeConfidence(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return defaultConfidence
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return defaultConfidence
		}
		f = p
	default:
		return defaultConfidence
	}
	if math.IsNaN(f) {
		return defaultConfidence
	}
	return min(max(f, 0), 1)
}

type Role string

const (
	Fundamental Role = consts.FundamentalExpert
	Risk        Role = consts.RiskExpert
	Growth      Role = consts.GrowthExpert
	Sentiment   Role = consts.SentimentExpert
)

// Roles is the fixed expert order used everywhere.
var Roles = []Role{Fundamental, Risk, Growth, Sentiment}

var roleProfiles = map[Role]string{
	Fundamental: consts.Profile_DebateFundamental,
	Risk:        consts.Profile_DebateRisk,
	Growth:      consts.Profile_DebateGrowth,
	Sentiment:   consts.Profile_DebateSentiment,
}

var roleDescriptions = map[Role]string{
	Fundamental: "펀더멘털 전문가: 실적, 밸류에이션, 재무제표와 공시를 근거로 판단합니다.",
	Risk:        "리스크 전문가: 하방 위험, 변동성, 규제와 거시 변수를 우선 점검합니다.",
	Growth:      "성장 전문가: 신사업, 시장 점유율, 중장기 성장 동력을 평가합니다.",
	Sentiment:   "센티먼트 전문가: 뉴스 흐름, 수급, 가격 모멘텀과 시장 심리를 읽습니다.",
}

// Utterance is one expert's judgment in one round.
type Utterance struct {
	Text       string          `json:"text"`
	Action     Action          `json:"action"`
	Confidence float64         `json:"confidence"`
	Sources    []script.Source `json:"sources"`
}

// Round holds the four judgments of one debate round.
type Round struct {
	Round       int       `json:"round"`
	Fundamental Utterance `json:"fundamental"`
	Risk        Utterance `json:"risk"`
	Growth      Utterance `json:"growth"`
	Sentiment   Utterance `json:"sentiment"`
}

func (r *Round) Get(role Role) Utterance {
	switch role {
	case Fundamental:
		return r.Fundamental
	case Risk:
		return r.Risk
	case Growth:
		return r.Growth
	case Sentiment:
		return r.Sentiment
	}
	return Utterance{}
}

func (r *Round) set(role Role, u Utterance) {
	switch role {
	case Fundamental:
		r.Fundamental = u
	case Risk:
		r.Risk = u
	case Growth:
		r.Growth = u
	case Sentiment:
		r.Sentiment = u
	}
}

// Positions renders "role=ACTION(0.80)" for every role.
func (r *Round) Positions() string {
	parts := make([]string, 0, len(Roles))
	for _, role := range Roles {
		u := r.Get(role)
		parts = append(parts, fmt.Sprintf("%s=%s(%.2f)", role, u.Action, u.Confidence))
	}
	return strings.Join(parts, ", ")
}

// Sources collects every source cited in the round, role order.
func (r *Round) Sources() []script.Source {
	var out []script.Source
	for _, role := range Roles {
		out = append(out, r.Get(role).Sources...)
	}
	return out
}

type Conclusion struct {
	Text       string  `json:"text"`
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// Transcript is the full record of one ticker debate.
type Transcript struct {
	Ticker     string     `json:"ticker"`
	Date       string     `json:"date"`
	Rounds     []Round    `json:"rounds"`
	Conclusion Conclusion `json:"conclusion"`
	Consensus  bool       `json:"consensus"`
	Context    *Context   `json:"context,omitempty"`
}

// Sources is every source cited across all rounds.
func (t *Transcript) Sources() []script.Source {
	var out []script.Source
	for i := range t.Rounds {
		out = append(out, t.Rounds[i].Sources()...)
	}
	return out
}
