package dataflows

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/cache"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func bar(ts string, closePrice float64) Bar {
	return Bar{Timestamp: day(ts), Close: decimal.NewFromFloat(closePrice), Volume: 10}
}

func TestStaticProviderInclusiveRange(t *testing.T) {
	p := NewStaticProvider()
	p.Add("aapl", OneDay, bar("2025-03-05", 1), bar("2025-03-06", 2), bar("2025-03-07", 3))

	bars, err := p.History(context.Background(), "AAPL", day("2025-03-06"), day("2025-03-07"), OneDay)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[1].Close.Equal(decimal.NewFromInt(3)))
}

func TestCachedProviderHitsStoreOnce(t *testing.T) {
	inner := NewStaticProvider()
	inner.Add("MSFT", OneDay, bar("2025-03-07", 400.5))
	store := cache.NewFileStore(t.TempDir(), time.Hour)
	p := NewCached(inner, store, time.Hour)

	for i := 0; i < 3; i++ {
		bars, err := p.History(context.Background(), "msft", day("2025-03-01"), day("2025-03-07"), OneDay)
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.Equal(t, "400.5", bars[0].Close.String())
	}
	assert.Equal(t, 1, inner.Calls())
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("")
	require.NoError(t, err)
	assert.Equal(t, OneDay, iv)

	iv, err = ParseInterval("5M")
	require.NoError(t, err)
	assert.True(t, iv.Intraday())
	assert.Equal(t, []string{"15m", "30m", "1h", "1d", "1wk", "1mo"}, iv.Coarser())

	_, err = ParseInterval("2h")
	assert.Error(t, err)
}

func TestNewProviderSelection(t *testing.T) {
	cfg := &config.Config{OHLCVProvider: "yahoo"}
	p, err := NewProvider(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	cfg.OHLCVProvider = "longport"
	_, err = NewProvider(cfg, nil)
	assert.Error(t, err, "longport needs credentials")

	cfg.OHLCVProvider = "bloomberg"
	_, err = NewProvider(cfg, nil)
	assert.Error(t, err)
}

func TestLongportSymbolAndPeriod(t *testing.T) {
	assert.Equal(t, "AAPL.US", longportSymbol(" aapl "))
	assert.Equal(t, "700.HK", longportSymbol("700.HK"))
	_, width, err := longportPeriod(OneHour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, width)
}

func TestBuildMarketContext(t *testing.T) {
	p := NewStaticProvider()
	p.Add("^GSPC", OneDay, bar("2025-03-06", 100), bar("2025-03-07", 102))

	mc := BuildMarketContext(context.Background(), p, day("2025-03-07"))
	assert.Equal(t, "20250307", mc.Date)
	require.Len(t, mc.Indices, 6)

	spx := mc.Indices[0]
	require.NotNil(t, spx.Close)
	assert.Equal(t, 102.0, *spx.Close)
	require.NotNil(t, spx.ChangePct)
	assert.InDelta(t, 2.0, *spx.ChangePct, 1e-9)
	assert.Equal(t, "no data", mc.Indices[1].Error)
	require.Len(t, mc.Crypto, 1)
}
