package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/llm/llmtest"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/script"
)

const testDate = "20250307"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		CacheDir:                  filepath.Join(root, "cache"),
		TempDir:                   filepath.Join(root, "temp"),
		PodcastDir:                filepath.Join(root, "podcast"),
		WorkerMaxIterations:       4,
		FanoutConcurrency:         4,
		ThemeRefinerMaxRetries:    2,
		DebateMinRounds:           2,
		DebateMaxRounds:           2,
		DebateConsensusConfidence: 0.7,
	}
}

func seedMarket(t *testing.T, cfg *config.Config) {
	t.Helper()
	last, chg := 5770.2, 0.55
	mc := models.MarketContext{Date: testDate, Indices: []models.Quote{{Symbol: "^GSPC", Name: "S&P 500", Close: &last, ChangePct: &chg}}}
	require.NoError(t, script.WriteJSON(filepath.Join(cfg.DateCacheDir(testDate), "market_context.json"), mc))
}

const article = `{"type": "article", "pk": "n1", "title": "Stocks rally"}`

func turnJSON(speaker, text, source string) string {
	return fmt.Sprintf(`{"speaker": %q, "text": %q, "sources": [%s]}`, speaker, text, source)
}

func openingAnswer(n int, themes ...string) string {
	turns := make([]string, 0, n)
	for i := 0; i < n; i++ {
		speaker := string(script.SpeakerHost)
		if i%2 == 1 {
			speaker = string(script.SpeakerAnalyst)
		}
		turns = append(turns, turnJSON(speaker, fmt.Sprintf("오프닝 %d", i), article))
	}
	ths := make([]string, 0, len(themes))
	for _, h := range themes {
		ths = append(ths, fmt.Sprintf(`{"headline": %q, "description": "d", "related_news": [%s]}`, h, article))
	}
	return fmt.Sprintf("```json\n{\"nutshell\": \"강세 마감\", \"themes\": [%s], \"scripts\": [%s]}\n```", strings.Join(ths, ","), strings.Join(turns, ","))
}

// themeWorker writes two turns per theme and fails for the headline in fail.
func themeWorker(fail string) *llmtest.Fake {
	return llmtest.New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		user := llmtest.LastUser(msgs)
		for _, h := range []string{"Theme A", "Theme B", "Theme C"} {
			if !strings.Contains(user, h) {
				continue
			}
			if h == fail {
				return nil, errors.New("theme worker crashed")
			}
			return llmtest.Text(fmt.Sprintf(`{"scripts": [%s, %s, {"speaker": "nobody", "text": "x", "sources": [%s]}]}`,
				turnJSON(string(script.SpeakerAnalyst), h+" first", article),
				turnJSON(string(script.SpeakerHost), h+" second", article),
				article)), nil
		}
		return nil, errors.New("unexpected theme prompt")
	})
}

type fakeIndex struct {
	mu  sync.Mutex
	got []*script.Artifact
}

func (f *fakeIndex) UpsertScript(_ context.Context, a *script.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, a)
	return nil
}

func stage(s Stage) *Stage { return &s }

func TestThemeFanoutIsolatesFailureAndRenumbers(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	refiner := llmtest.Sequence(
		llmtest.Text(`{"edits": [{"id": 1.5, "speaker": "진행자", "text": "bad id"}]}`),
		llmtest.Text(`{"edits": [{"id": 6, "speaker": "진행자", "text": "자연스러운\n전환"}]}`),
	)
	reg := llmtest.NewRegistry().
		Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text(openingAnswer(6, "Theme A", "Theme B", "Theme C")))).
		Set(consts.Profile_ThemeWorker, themeWorker("Theme B")).
		Set(consts.Profile_ThemeRefiner, refiner)
	o := New(cfg, reg, nil)
	ctx := context.Background()

	st, err := o.Run(ctx, Request{Date: testDate, Cutoff: StageOpening})
	require.NoError(t, err)
	require.Len(t, st.Scripts, 6)
	require.Len(t, st.Themes, 3)
	assert.Equal(t, "강세 마감", st.Nutshell)

	st, err = o.Run(ctx, Request{Date: testDate, Only: stage(StageTheme)})
	require.NoError(t, err)
	require.Len(t, st.Scripts, 10)
	for i, turn := range st.Scripts {
		assert.Equal(t, i, turn.ID)
		assert.NotEmpty(t, turn.Sources)
	}
	assert.Equal(t, "자연스러운 전환", st.Scripts[6].Text)
	assert.Equal(t, script.SpeakerHost, st.Scripts[6].Speaker)
	assert.Equal(t, "Theme A second", st.Scripts[7].Text)
	assert.Equal(t, "Theme C first", st.Scripts[8].Text)
	assert.Equal(t, 2, refiner.CallCount())

	assert.Equal(t, script.ChapterRange{Name: "opening", StartID: 0, EndID: 5}, st.ChapterOf("opening"))
	assert.Equal(t, script.ChapterRange{Name: "theme", StartID: 6, EndID: 9}, st.ChapterOf("theme"))
	assert.Equal(t, script.EmptyChapter("ticker"), st.ChapterOf("ticker"))
	assert.Equal(t, script.EmptyChapter("closing"), st.ChapterOf("closing"))

	saved, err := o.LoadStage(StageTheme)
	require.NoError(t, err)
	assert.Equal(t, st.Scripts, saved.Scripts)
	_, err = os.Stat(cfg.ScriptPath(testDate))
	assert.True(t, os.IsNotExist(err), "partial runs do not publish")
}

func TestThemeRefinerFailureKeepsScript(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	refiner := llmtest.Sequence(llmtest.Text(`{"edits": [{"id": 99, "speaker": "진행자", "text": "out of range"}]}`))
	reg := llmtest.NewRegistry().
		Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text(openingAnswer(2, "Theme A")))).
		Set(consts.Profile_ThemeWorker, themeWorker("")).
		Set(consts.Profile_ThemeRefiner, refiner)

	st, err := New(cfg, reg, nil).Run(context.Background(), Request{Date: testDate, Cutoff: StageTheme})
	require.NoError(t, err)
	require.Len(t, st.Scripts, 4)
	assert.Equal(t, "Theme A first", st.Scripts[2].Text)
	assert.Equal(t, 3, refiner.CallCount(), "one call plus two retries")
}

func TestUnparsableThemeAnswerIsBranchFailure(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	refiner := llmtest.Sequence(llmtest.Text(`{"edits": []}`))
	reg := llmtest.NewRegistry().
		Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text(openingAnswer(2, "Theme A")))).
		Set(consts.Profile_ThemeWorker, llmtest.Sequence(llmtest.Text("just prose"))).
		Set(consts.Profile_ThemeRefiner, refiner)

	failures := metrics.BranchFailures.WithLabelValues(consts.ThemeWorker)
	before := testutil.ToFloat64(failures)

	st, err := New(cfg, reg, nil).Run(context.Background(), Request{Date: testDate, Cutoff: StageTheme})
	require.NoError(t, err)
	assert.Len(t, st.Scripts, 2)
	assert.Equal(t, before+1, testutil.ToFloat64(failures))
	assert.Equal(t, 0, refiner.CallCount(), "no new turns, nothing to refine")
	assert.Equal(t, script.EmptyChapter("theme"), st.ChapterOf("theme"))
}

func TestEmptyTickersSkipsTickerStage(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	writer := llmtest.Sequence(llmtest.Text(`{"scripts": []}`))
	closing := llmtest.Sequence(llmtest.Text(fmt.Sprintf(`{"closing_turns": [%s]}`, turnJSON("진행자", "내일 뵙겠습니다", article))))
	reg := llmtest.NewRegistry().
		Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text(openingAnswer(2)))).
		Set(consts.Profile_TickerScriptWorker, writer).
		Set(consts.Profile_Closing, closing)
	idx := &fakeIndex{}

	st, err := New(cfg, reg, nil, WithIndex(idx)).Run(context.Background(), Request{Date: "2025-03-07", Cutoff: StageClosing})
	require.NoError(t, err)
	require.Len(t, st.Scripts, 3)
	assert.Equal(t, []script.ChapterRange{
		{Name: "opening", StartID: 0, EndID: 1},
		{Name: "theme", StartID: -1, EndID: -1},
		{Name: "ticker", StartID: -1, EndID: -1},
		{Name: "closing", StartID: 2, EndID: 2},
	}, st.Chapter)
	assert.Equal(t, 0, writer.CallCount())

	a, err := script.LoadArtifact(cfg.ScriptPath(testDate))
	require.NoError(t, err)
	assert.Equal(t, testDate, a.Date)
	assert.Equal(t, []string{}, a.UserTickers)
	assert.Equal(t, st.Chapter, a.Chapter)
	require.Len(t, idx.got, 1)
	assert.Equal(t, "강세 마감", idx.got[0].Nutshell)
}

func TestTickerPipeline(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	prices := dataflows.NewStaticProvider()
	start := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 31; i++ {
		p := decimal.NewFromFloat(180 + float64(i))
		prices.Add("AAPL", dataflows.OneDay, dataflows.Bar{Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 1})
	}

	expert := llmtest.Sequence(llmtest.Text(`{"text": "좋다", "action": "BUY", "confidence": 0.9, "sources": []}`))
	moderator := llmtest.New(func(_ context.Context, msgs []*schema.Message) (*schema.Message, error) {
		if strings.Contains(llmtest.LastUser(msgs), "Ticker: MSFT") {
			return nil, errors.New("moderator timeout")
		}
		return llmtest.Text(`{"conclusion": {"text": "매수", "action": "BUY", "confidence": 0.85}}`), nil
	})
	intraday := `{"type": "chart", "ticker": "AAPL", "start_date": "2025-03-07", "end_date": "2025-03-07"}`
	writer := llmtest.Sequence(llmtest.Text(fmt.Sprintf(`{"scripts": [%s, %s]}`,
		turnJSON("해설자", "애플 토론 요약", intraday),
		turnJSON("진행자", "지어낸 출처", `{"type": "article", "pk": "ghost", "title": "made up"}`))))
	refiner := llmtest.Sequence(llmtest.Text(`{"edits": [{"id": 2, "speaker": "진행자", "text": "다듬은 문장"}, {"id": 999, "speaker": "진행자", "text": "skip"}]}`))
	closing := llmtest.Sequence(llmtest.Text(fmt.Sprintf(`{"closing_turns": [%s]}`, turnJSON("진행자", "마무리", article))))

	reg := llmtest.NewRegistry().
		Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text(openingAnswer(2)))).
		Set(consts.Profile_DebateFundamental, expert).
		Set(consts.Profile_DebateRisk, expert).
		Set(consts.Profile_DebateGrowth, expert).
		Set(consts.Profile_DebateSentiment, expert).
		Set(consts.Profile_DebateModerator, moderator).
		Set(consts.Profile_TickerScriptWorker, writer).
		Set(consts.Profile_TickerScriptRefiner, refiner).
		Set(consts.Profile_Closing, closing)

	st, err := New(cfg, reg, prices).Run(context.Background(), Request{Date: testDate, Tickers: []string{"aapl", "MSFT"}, Cutoff: StageClosing})
	require.NoError(t, err)
	require.Len(t, st.Scripts, 4)
	assert.Equal(t, "다듬은 문장", st.Scripts[2].Text)
	assert.Equal(t, []script.Source{script.ChartSource("AAPL", "2025-03-07", "2025-03-07")}, st.Scripts[2].Sources)
	assert.Equal(t, script.ChapterRange{Name: "ticker", StartID: 2, EndID: 2}, st.ChapterOf("ticker"))
	assert.Equal(t, script.ChapterRange{Name: "closing", StartID: 3, EndID: 3}, st.ChapterOf("closing"))
	assert.Equal(t, 1, writer.CallCount(), "failed MSFT debate gets no writer call")

	var saved struct {
		Applied []script.Edit `json:"applied_edits"`
		Extra   struct {
			Sections []TickerSection `json:"sections"`
		} `json:"extra"`
	}
	require.NoError(t, script.ReadJSON(cfg.StageArtifactPath(StageTicker.Name()), &saved))
	assert.Equal(t, []TickerSection{{Ticker: "AAPL", StartID: 2, EndID: 2}, {Ticker: "MSFT", StartID: -1, EndID: -1}}, saved.Extra.Sections)
	require.Len(t, saved.Applied, 1)
	assert.Equal(t, 2, saved.Applied[0].ID)
}

func TestMissingArtifacts(t *testing.T) {
	cfg := testConfig(t)
	o := New(cfg, llmtest.NewRegistry(), nil)

	_, err := o.Run(context.Background(), Request{Date: testDate, Only: stage(StageClosing)})
	assert.ErrorIs(t, err, ErrMissingArtifact)

	_, err = o.Run(context.Background(), Request{Date: testDate, Cutoff: StageClosing})
	assert.ErrorIs(t, err, ErrMissingArtifact, "market context is required")
	assert.ErrorIs(t, err, ErrStageFailed)
}

func TestOpeningFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	seedMarket(t, cfg)
	reg := llmtest.NewRegistry().Set(consts.Profile_Opening, llmtest.Failing(errors.New("503")))
	_, err := New(cfg, reg, nil).Run(context.Background(), Request{Date: testDate, Cutoff: StageClosing})
	require.ErrorIs(t, err, ErrStageFailed)

	reg.Set(consts.Profile_Opening, llmtest.Sequence(llmtest.Text("no json here")))
	_, err = New(cfg, reg, nil).Run(context.Background(), Request{Date: testDate})
	require.ErrorIs(t, err, ErrStageFailed)
}

func TestParseStage(t *testing.T) {
	for in, want := range map[string]Stage{"opening": StageOpening, "1": StageTheme, "ticker": StageTicker, "ticker_pipeline": StageTicker, "CLOSING": StageClosing} {
		got, err := ParseStage(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStage("tts")
	assert.Error(t, err)
	assert.True(t, Request{Cutoff: StageClosing}.Full())
	assert.False(t, Request{Cutoff: StageClosing, Only: stage(StageClosing)}.Full())
}
