package dataflows

import (
	"context"
	"log"
	"time"

	"github.com/dyike/BriefCast/internal/models"
)

type instrument struct {
	Symbol string
	Name   string
}

var (
	marketIndices = []instrument{
		{"^GSPC", "S&P 500"}, {"^IXIC", "Nasdaq Composite"}, {"^NDX", "Nasdaq 100"},
		{"^DJI", "Dow Jones"}, {"^RUT", "Russell 2000"}, {"^NYA", "NYSE Composite"},
	}
	marketYields = []instrument{
		{"^TNX", "US 10Y"}, {"^TYX", "US 30Y"}, {"^IRX", "US 13W"},
	}
	marketCurrencies  = []instrument{{"DX-Y.NYB", "Dollar Index"}}
	marketCommodities = []instrument{
		{"CL=F", "WTI Crude"}, {"NG=F", "Natural Gas"}, {"GC=F", "Gold"}, {"SI=F", "Silver"},
	}
	marketCrypto = []instrument{{"BTC-USD", "Bitcoin"}}
)

// BuildMarketContext snapshots the latest daily close on or before day
// for each tracked instrument. Per-symbol failures are recorded on the
// quote, not returned.
func BuildMarketContext(ctx context.Context, p Provider, day time.Time) *models.MarketContext {
	mc := &models.MarketContext{
		Date:        day.Format("20060102"),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	quotes := func(list []instrument) []models.Quote {
		out := make([]models.Quote, 0, len(list))
		for _, in := range list {
			out = append(out, quoteFor(ctx, p, in, day))
		}
		return out
	}
	mc.Indices = quotes(marketIndices)
	mc.Yields = quotes(marketYields)
	mc.Currencies = quotes(marketCurrencies)
	mc.Commodities = quotes(marketCommodities)
	mc.Crypto = quotes(marketCrypto)
	return mc
}

func quoteFor(ctx context.Context, p Provider, in instrument, day time.Time) models.Quote {
	q := models.Quote{Symbol: in.Symbol, Name: in.Name}
	bars, err := p.History(ctx, in.Symbol, day.AddDate(0, 0, -10), day, OneDay)
	if err != nil {
		log.Printf("[MarketContext] %s: %v", in.Symbol, err)
		q.Error = err.Error()
		return q
	}
	if len(bars) == 0 {
		q.Error = "no data"
		return q
	}
	last := bars[len(bars)-1]
	c := last.Close.Round(4).InexactFloat64()
	q.Close = &c
	q.Date = last.Timestamp.Format("2006-01-02")
	if len(bars) > 1 {
		prev := bars[len(bars)-2].Close.Round(4).InexactFloat64()
		q.PrevClose = &prev
		if prev != 0 {
			chg := (c - prev) / prev * 100
			q.ChangePct = &chg
		}
	}
	return q
}
