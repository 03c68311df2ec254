package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/models"
)

const testDate = "20250307"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		CacheDir:           t.TempDir(),
		NewsBodyMaxChars:   40,
		SECFilingPageChars: 50,
		SECUserAgent:       "briefcast-test (contact: test@example.com)",
		SECTimeout:         5 * time.Second,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newGateway(t *testing.T, cfg *config.Config, prices dataflows.Provider, opts ...Option) *Gateway {
	t.Helper()
	g, err := NewGateway(cfg, testDate, prices, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func seedNews(t *testing.T, cfg *config.Config, bodyURL string) {
	t.Helper()
	list := models.NewsList{Articles: []models.Article{
		{PK: "n1", Title: "Nvidia shares jump on AI chip demand", Tickers: []string{"NVDA"}},
		{PK: "n2", Title: "Apple and Nvidia lead tech rally", Tickers: []string{"AAPL", "NVDA"}},
		{PK: "n3", Title: "Oil slides as inventories rise", Tickers: []string{"CL=F"}},
		{PK: "n4", Title: "Fed minutes hint at patience", URL: bodyURL},
	}}
	data, err := json.Marshal(list)
	require.NoError(t, err)
	dir := cfg.DateCacheDir(testDate)
	writeFile(t, filepath.Join(dir, "news_list.json"), string(data))
	writeFile(t, filepath.Join(dir, "titles.txt"), "Nvidia shares jump\nApple and Nvidia lead tech rally\nOil slides 2025\n")
	writeFile(t, filepath.Join(dir, "bodies", "n1.txt"), "<p>Nvidia   reported</p> record data center revenue and strong guidance for the next quarter.")
}

func TestNewsListFilters(t *testing.T) {
	cfg := testConfig(t)
	seedNews(t, cfg, "")
	g := newGateway(t, cfg, nil)
	ctx := context.Background()

	out, err := g.NewsList(ctx, models.NewsListInput{Tickers: []string{"nvda"}})
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
	assert.Equal(t, "n1", out.Articles[0].PK)
	assert.Equal(t, "n2", out.Articles[1].PK)

	out, err = g.NewsList(ctx, models.NewsListInput{Tickers: []string{"NVDA", "AAPL"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "n2", out.Articles[0].PK)

	out, err = g.NewsList(ctx, models.NewsListInput{Keywords: []string{"nvidia", "rally"}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "n2", out.Articles[0].PK)

	out, err = g.NewsList(ctx, models.NewsListInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count)
}

func TestNewsListMissingFile(t *testing.T) {
	g := newGateway(t, testConfig(t), nil)
	_, err := g.NewsList(context.Background(), models.NewsListInput{})
	assert.Error(t, err)
}

func TestNewsContentCachedAndFetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Fed</title></head><body><article><p>Officials signaled patience on rate cuts.</p></article></body></html>`)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	seedNews(t, cfg, srv.URL+"/fed")
	g := newGateway(t, cfg, nil)

	out, err := g.NewsContent(context.Background(), models.NewsContentInput{PKs: []string{"n1", "n4", "missing", "n3"}})
	require.NoError(t, err)
	require.Equal(t, 3, out.Count)

	cached := out.Articles[0]
	assert.True(t, cached.Cached)
	assert.True(t, cached.Truncated)
	assert.True(t, strings.HasPrefix(cached.Body, "Nvidia reported record"))
	assert.True(t, strings.HasSuffix(cached.Body, truncatedMarker))

	fetched := out.Articles[1]
	assert.False(t, fetched.Cached)
	assert.Contains(t, fetched.Body, "patience")
	_, err = os.Stat(g.bodyPath("n4"))
	assert.NoError(t, err, "fetched body is cached on disk")

	assert.NotEmpty(t, out.Articles[2].Error, "no url and no cached body")

	listed, err := g.ListBodies(context.Background(), models.ListBodiesInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n4"}, listed.PKs)
}

func TestKeywordFrequency(t *testing.T) {
	cfg := testConfig(t)
	seedNews(t, cfg, "")
	g := newGateway(t, cfg, nil)
	ctx := context.Background()

	out, err := g.KeywordFrequency(ctx, models.KeywordFrequencyInput{Keywords: []string{"NVIDIA", "oil"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Results["NVIDIA"].Count)
	assert.Equal(t, 1, out.Results["oil"].Count)

	out, err = g.KeywordFrequency(ctx, models.KeywordFrequencyInput{Keywords: []string{"revenue"}, Source: "bodies"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Results["revenue"].Count)
	assert.Equal(t, []string{"n1"}, out.Results["revenue"].ArticlePKs)

	_, err = g.KeywordFrequency(ctx, models.KeywordFrequencyInput{Keywords: []string{"x"}, Source: "tweets"})
	assert.Error(t, err)
}

func TestTopTitleWords(t *testing.T) {
	cfg := testConfig(t)
	seedNews(t, cfg, "")
	g := newGateway(t, cfg, nil)

	words, err := g.TopTitleWords(3)
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, models.WordCount{Word: "nvidia", Count: 2}, words[0])
	for _, w := range words {
		assert.NotEqual(t, "and", w.Word)
		assert.NotEqual(t, "2025", w.Word)
	}
}

func dailyBars(start time.Time, n int) []dataflows.Bar {
	bars := make([]dataflows.Bar, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, dataflows.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      decimal.NewFromFloat(100 + float64(i)),
			High:      decimal.NewFromFloat(101 + float64(i)),
			Low:       decimal.NewFromFloat(99 + float64(i)),
			Close:     decimal.NewFromFloat(100.1234 + float64(i)),
			Volume:    1000,
		})
	}
	return bars
}

func TestOHLCVRowsAndSummary(t *testing.T) {
	p := dataflows.NewStaticProvider()
	p.Add("AAPL", dataflows.OneDay, dailyBars(time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC), 31)...)
	g := newGateway(t, testConfig(t), p)

	out, err := g.OHLCV(context.Background(), models.OHLCVInput{Ticker: "aapl"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out.Ticker)
	assert.Equal(t, "2025-02-05", out.StartDate)
	assert.Equal(t, "2025-03-07", out.EndDate)
	require.Len(t, out.Rows, 31)
	assert.Equal(t, 100.123, out.Rows[0].Close)

	s := SummarizeDaily(out)
	require.NotNil(t, s.LastClose)
	assert.InDelta(t, 130.123, *s.LastClose, 1e-9)
	assert.Contains(t, s.String(), "last_close=130.12")
}

func TestOHLCVTooManyRows(t *testing.T) {
	p := dataflows.NewStaticProvider()
	start := time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC)
	var bars []dataflows.Bar
	for i := 0; i < MaxOHLCVRows+1; i++ {
		bars = append(bars, dataflows.Bar{Timestamp: start.Add(time.Duration(i) * time.Second), Close: decimal.NewFromInt(1)})
	}
	p.Add("AAPL", dataflows.OneMinute, bars...)
	g := newGateway(t, testConfig(t), p)

	out, err := g.OHLCV(context.Background(), models.OHLCVInput{Ticker: "AAPL", StartDate: "2025-03-07", EndDate: "2025-03-07", Interval: "1m"})
	require.NoError(t, err)
	assert.True(t, out.TooManyRows)
	assert.Empty(t, out.Rows)
	assert.Equal(t, MaxOHLCVRows+1, out.RowCount)
	assert.Equal(t, MaxOHLCVRows, out.MaxRows)
	assert.Contains(t, out.SuggestedIntervals, "1d")
	assert.NotContains(t, out.SuggestedIntervals, "1m")
}

func TestOHLCVBadInput(t *testing.T) {
	g := newGateway(t, testConfig(t), dataflows.NewStaticProvider())
	ctx := context.Background()
	_, err := g.OHLCV(ctx, models.OHLCVInput{Ticker: "AAPL", Interval: "7m"})
	assert.Error(t, err)
	_, err = g.OHLCV(ctx, models.OHLCVInput{Ticker: "AAPL", StartDate: "2025-03-08", EndDate: "2025-03-01"})
	assert.Error(t, err)
	_, err = g.OHLCV(ctx, models.OHLCVInput{Ticker: ""})
	assert.Error(t, err)
}

func TestSummarizeIntraday(t *testing.T) {
	out := &models.OHLCVOutput{Ticker: "AAPL", EndDate: "2025-03-07", Interval: "5m", Rows: []models.OHLCVRow{
		{TS: "09:30", Open: 100, High: 101, Low: 99, Close: 100.5},
		{TS: "09:35", Open: 100.5, High: 103, Low: 100, Close: 102},
	}}
	s := SummarizeIntraday(out)
	assert.Equal(t, 2, s.Bars)
	assert.Equal(t, 103.0, s.High)
	assert.Equal(t, 99.0, s.Low)
	assert.InDelta(t, 2.0, s.ChangePct, 1e-9)
	assert.Contains(t, s.String(), "INTRADAY_5M(2025-03-07): bars=2")

	empty := SummarizeIntraday(&models.OHLCVOutput{EndDate: "2025-03-07", Interval: "5m"})
	assert.Contains(t, empty.String(), "no data")
}

func TestCalendarLookup(t *testing.T) {
	cfg := testConfig(t)
	dir := cfg.DateCacheDir(testDate)
	writeFile(t, filepath.Join(dir, "calendar.json"), `{"events": [
		{"event_id": 101, "title": "Nonfarm Payrolls", "est": "2025-03-07T08:30:00-05:00", "actual": 151},
		{"event_id": "102", "title": "CPI", "est": "2025-03-12T08:30:00-04:00"}
	]}`)
	g := newGateway(t, cfg, nil)
	ctx := context.Background()

	out, err := g.Calendar(ctx, models.CalendarInput{ID: "101"})
	require.NoError(t, err)
	require.NotNil(t, out.Found)
	assert.True(t, *out.Found)
	assert.Equal(t, "Nonfarm Payrolls", out.Event.Title)
	assert.Equal(t, models.FlexString("151"), out.Event.Actual)

	out, err = g.Calendar(ctx, models.CalendarInput{Date: "20250307, 2025-03-12"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	out, err = g.Calendar(ctx, models.CalendarInput{ID: "999"})
	require.NoError(t, err)
	assert.False(t, *out.Found)

	_, err = g.Calendar(ctx, models.CalendarInput{})
	assert.Error(t, err)

	tsv, err := g.CalendarContext()
	require.NoError(t, err)
	assert.Equal(t, "id\test_date\ttitle\n101\t20250307\tNonfarm Payrolls\n102\t20250312\tCPI", tsv)
}

func TestCalendarContextPrefersCSV(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.DateCacheDir(testDate), "calendar.csv"), "id,est_date,title\ne1,20250307,GDP\n")
	g := newGateway(t, cfg, nil)

	tsv, err := g.CalendarContext()
	require.NoError(t, err)
	assert.Equal(t, "id\test_date\ttitle\ne1\t20250307\tGDP", tsv)
}

func TestEinoNewsListTool(t *testing.T) {
	cfg := testConfig(t)
	seedNews(t, cfg, "")
	g := newGateway(t, cfg, nil)
	ctx := context.Background()

	tl := g.NewsListTool()
	info, err := tl.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "get_news_list", info.Name)

	out, err := tl.InvokableRun(ctx, `{"tickers": ["AAPL"]}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"pk":"n2"`)
	assert.NotContains(t, out, `"pk":"n1"`)

	assert.Len(t, g.OpeningTools(), 6)
	assert.Len(t, g.ExpertTools(), 4)
}
