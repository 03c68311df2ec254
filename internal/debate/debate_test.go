package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/llm/llmtest"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/tools"
)

const testDate = "20250307"

var intradayCite = `{"type": "chart", "ticker": "aapl", "start_date": "2025-03-07", "end_date": "2025-03-07"}`

func newGateway(t *testing.T) *tools.Gateway {
	t.Helper()
	p := dataflows.NewStaticProvider()
	start := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 31; i++ {
		price := decimal.NewFromFloat(200 + float64(i))
		p.Add("AAPL", dataflows.OneDay, dataflows.Bar{Timestamp: start.AddDate(0, 0, i), Open: price, High: price, Low: price, Close: price, Volume: 10})
	}
	gw, err := tools.NewGateway(&config.Config{CacheDir: t.TempDir()}, testDate, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func roundOf(msgs []*schema.Message) int {
	var n int
	_, _ = fmt.Sscanf(llmtest.LastUser(msgs), "Round %d", &n)
	return n
}

// expert answers with plan(round) each round.
func expert(plan func(round int) (Action, float64)) *llmtest.Fake {
	return llmtest.New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		n := roundOf(msgs)
		a, c := plan(n)
		return llmtest.Text(fmt.Sprintf("```json\n{\"text\": \"round %d view\", \"action\": %q, \"confidence\": %v, \"sources\": [%s, {\"type\": \"article\", \"pk\": \"ghost\", \"title\": \"made up\"}]}\n```", n, a, c, intradayCite)), nil
	})
}

func fixed(a Action, c float64) *llmtest.Fake {
	return expert(func(int) (Action, float64) { return a, c })
}

func moderator(answer string) *llmtest.Fake {
	return llmtest.Sequence(llmtest.Text(answer))
}

func registry(experts map[Role]*llmtest.Fake, mod *llmtest.Fake) *llmtest.Registry {
	reg := llmtest.NewRegistry().Set(consts.Profile_DebateModerator, mod)
	for role, f := range experts {
		reg.Set(roleProfiles[role], f)
	}
	return reg
}

func TestConsensusAtRoundTwo(t *testing.T) {
	confidences := map[Role]float64{Fundamental: 0.8, Risk: 0.75, Growth: 0.9, Sentiment: 0.72}
	experts := map[Role]*llmtest.Fake{}
	for _, role := range Roles {
		c := confidences[role]
		mixed := Buy
		if role == Risk {
			mixed = Sell
		}
		experts[role] = expert(func(n int) (Action, float64) {
			if n == 1 {
				return mixed, 0.6
			}
			return Buy, c
		})
	}
	mod := moderator(`{"guidance": {"risk": "check valuation"}, "conclusion": {"text": "매수 합의", "action": "BUY", "confidence": 0.8}}`)
	e := NewEngine(newGateway(t), registry(experts, mod), Settings{MinRounds: 2, MaxRounds: 5, Threshold: 0.7})

	tr, err := e.Run(context.Background(), "aapl")
	require.NoError(t, err)
	require.Len(t, tr.Rounds, 2)
	assert.True(t, tr.Consensus)
	assert.Equal(t, Buy, tr.Conclusion.Action)
	assert.Equal(t, "매수 합의", tr.Conclusion.Text)
	assert.Equal(t, "AAPL", tr.Ticker)
	assert.Equal(t, 0.72, tr.Rounds[1].Sentiment.Confidence)
	assert.Equal(t, 2, mod.CallCount())

	second := experts[Risk].Calls()[1]
	assert.Contains(t, llmtest.LastUser(second), "check valuation")
	assert.Contains(t, llmtest.LastUser(second), "[fundamental] round 1 view")
	assert.NotContains(t, llmtest.LastUser(second), "[risk]")
}

func TestSplitDebateForcedAtMaxRounds(t *testing.T) {
	experts := map[Role]*llmtest.Fake{
		Fundamental: fixed(Buy, 0.9),
		Risk:        fixed(Sell, 0.9),
		Growth:      fixed(Buy, 0.8),
		Sentiment:   fixed(Sell, 0.6),
	}
	mod := moderator(`{"guidance": {}, "conclusion": {"text": ""}}`)
	e := NewEngine(newGateway(t), registry(experts, mod), Settings{MinRounds: 2, MaxRounds: 4, Threshold: 0.7})

	tr, err := e.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, tr.Rounds, 4)
	assert.False(t, tr.Consensus)
	assert.Equal(t, Buy, tr.Conclusion.Action, "BUY/SELL tie goes to BUY")
	assert.InDelta(t, 0.8, tr.Conclusion.Confidence, 1e-9)
	assert.NotEmpty(t, tr.Conclusion.Text)
	for i, r := range tr.Rounds {
		assert.Equal(t, i+1, r.Round)
	}

	third := experts[Growth].Calls()[2]
	assert.Contains(t, llmtest.LastUser(third), fallbackGuidance)
}

func TestUnanimousFirstRoundStillRunsTwoRounds(t *testing.T) {
	experts := map[Role]*llmtest.Fake{}
	for _, role := range Roles {
		experts[role] = fixed(Hold, 0.95)
	}
	mod := moderator(`{"conclusion": {"text": "관망", "action": "SELL", "confidence": 0.9}}`)
	e := NewEngine(newGateway(t), registry(experts, mod), Settings{MinRounds: 1, MaxRounds: 1, Threshold: 0.7})
	require.Equal(t, 2, e.Settings().MinRounds)

	tr, err := e.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, tr.Rounds, 2)
	assert.True(t, tr.Consensus)
	assert.Equal(t, Hold, tr.Conclusion.Action, "unanimous action wins over the moderator")
	assert.Equal(t, 0.9, tr.Conclusion.Confidence)
}

func TestExpertFailureIsNeutral(t *testing.T) {
	experts := map[Role]*llmtest.Fake{
		Fundamental: fixed(Buy, 0.9),
		Risk:        llmtest.Failing(errors.New("timeout")),
		Growth:      fixed(Buy, 0.9),
	}
	e := NewEngine(newGateway(t), registry(experts, moderator(`{}`)), DefaultSettings())

	tr, err := e.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, tr.Rounds, 2)

	first := tr.Context.Allowed().First()
	for _, r := range tr.Rounds {
		for _, role := range []Role{Risk, Sentiment} {
			u := r.Get(role)
			assert.Equal(t, Hold, u.Action)
			assert.Equal(t, 0.5, u.Confidence)
			assert.Empty(t, u.Text)
			assert.Equal(t, first, u.Sources)
		}
	}
	assert.False(t, tr.Consensus)
	assert.Equal(t, Hold, tr.Conclusion.Action, "2 BUY vs 2 HOLD ties to HOLD")
}

func TestExpertSourcesFilteredToAllowed(t *testing.T) {
	experts := map[Role]*llmtest.Fake{}
	for _, role := range Roles {
		experts[role] = fixed(Buy, 0.9)
	}
	e := NewEngine(newGateway(t), registry(experts, moderator(`{}`)), DefaultSettings())

	tr, err := e.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	want := []script.Source{script.ChartSource("AAPL", "2025-03-07", "2025-03-07")}
	for _, r := range tr.Rounds {
		for _, role := range Roles {
			assert.Equal(t, want, r.Get(role).Sources)
		}
	}
	for _, s := range tr.Sources() {
		assert.True(t, tr.Context.Allowed().Contains(s))
	}
}

func TestModeratorFailureFailsDebate(t *testing.T) {
	experts := map[Role]*llmtest.Fake{}
	for _, role := range Roles {
		experts[role] = fixed(Buy, 0.9)
	}
	e := NewEngine(newGateway(t), registry(experts, llmtest.Failing(errors.New("503"))), DefaultSettings())
	_, err := e.Run(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moderator")
}

func TestCollectContext(t *testing.T) {
	c := CollectContext(context.Background(), newGateway(t), "aapl")
	assert.Equal(t, "AAPL", c.Ticker)
	require.NotNil(t, c.Daily.LastClose)
	assert.InDelta(t, 230, *c.Daily.LastClose, 1e-9)
	assert.Equal(t, 0, c.Intraday.Bars)
	assert.Equal(t, []script.Source{
		script.ChartSource("AAPL", "2025-02-05", "2025-03-07"),
		script.ChartSource("AAPL", "2025-03-07", "2025-03-07"),
	}, c.Sources)
	assert.True(t, strings.HasPrefix(c.AllowedJSON(), "[{"))
	assert.Contains(t, c.Render(), "last_close=230.00")
}

func makeRound(actions []Action, confidences []float64) *Round {
	r := &Round{Round: 1}
	for i, role := range Roles {
		r.set(role, Utterance{Action: actions[i], Confidence: confidences[i]})
	}
	return r
}

func TestMeetsConsensus(t *testing.T) {
	all := func(a Action) []Action { return []Action{a, a, a, a} }
	cases := []struct {
		name        string
		actions     []Action
		confidences []float64
		want        bool
	}{
		{"unanimous confident", all(Buy), []float64{0.8, 0.75, 0.9, 0.72}, true},
		{"at threshold", all(Sell), []float64{0.7, 0.7, 0.7, 0.7}, true},
		{"one below threshold", all(Buy), []float64{0.8, 0.75, 0.9, 0.69}, false},
		{"split", []Action{Buy, Buy, Hold, Buy}, []float64{0.9, 0.9, 0.9, 0.9}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MeetsConsensus(makeRound(tc.actions, tc.confidences), 0.7))
		})
	}
	assert.False(t, MeetsConsensus(nil, 0.7))
}

func TestNextStep(t *testing.T) {
	s := Settings{MinRounds: 2, MaxRounds: 4, Threshold: 0.7}.normalized()
	assert.Equal(t, Continue, s.NextStep(1, true))
	assert.Equal(t, End, s.NextStep(2, true))
	assert.Equal(t, Continue, s.NextStep(3, false))
	assert.Equal(t, End, s.NextStep(4, false))

	bad := Settings{MinRounds: 0, MaxRounds: 1, Threshold: 3}.normalized()
	assert.Equal(t, Settings{MinRounds: 2, MaxRounds: 2, Threshold: 1}, bad)
	assert.Equal(t, 5, bad.WithMaxRounds(5).MaxRounds)
}

func TestMajorityTieBreak(t *testing.T) {
	c := []float64{0.5, 0.5, 0.5, 0.5}
	assert.Equal(t, Hold, MajorityAction(makeRound([]Action{Buy, Hold, Hold, Buy}, c)))
	assert.Equal(t, Buy, MajorityAction(makeRound([]Action{Buy, Sell, Sell, Buy}, c)))
	assert.Equal(t, Sell, MajorityAction(makeRound([]Action{Sell, Sell, Hold, Buy}, c)))

	forced := ForcedConclusion(makeRound([]Action{Sell, Sell, Hold, Buy}, []float64{0.2, 0.4, 0.6, 0.8}))
	assert.Equal(t, Sell, forced.Action)
	assert.InDelta(t, 0.5, forced.Confidence, 1e-9)
}

func TestNormalizeActionAndConfidence(t *testing.T) {
	assert.Equal(t, Buy, NormalizeAction(" buy "))
	assert.Equal(t, Buy, NormalizeAction("STRONG BUY"))
	assert.Equal(t, Sell, NormalizeAction("sell-off"))
	assert.Equal(t, Hold, NormalizeAction(nil))
	assert.Equal(t, Hold, NormalizeAction("wait"))

	assert.Equal(t, 0.8, NormalizeConfidence(0.8))
	assert.Equal(t, 0.65, NormalizeConfidence("0.65"))
	assert.Equal(t, 1.0, NormalizeConfidence(7))
	assert.Equal(t, 0.0, NormalizeConfidence(-1.0))
	assert.Equal(t, 0.5, NormalizeConfidence("high"))
	assert.Equal(t, 0.5, NormalizeConfidence(nil))
}
