package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/BriefCast/config"
)

const maxLongportCount = 1000

type LongportClient struct {
	quoteCtx *quote.QuoteContext
}

func NewLongportClient(cfg *config.Config) (*LongportClient, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportClient{quoteCtx: quoteContext}, nil
}

func (lpc *LongportClient) Name() string { return "longport" }

// longportSymbol maps a US ticker to longport's SYMBOL.US form.
func longportSymbol(ticker string) string {
	s := NormalizeSymbol(ticker)
	if strings.Contains(s, ".") {
		return s
	}
	return s + ".US"
}

func longportPeriod(i Interval) (quote.Period, time.Duration, error) {
	switch i {
	case OneMinute:
		return quote.PeriodOneMinute, time.Minute, nil
	case FiveMinutes:
		return quote.PeriodFiveMinute, 5 * time.Minute, nil
	case FifteenMinutes:
		return quote.PeriodFifteenMinute, 15 * time.Minute, nil
	case ThirtyMinutes:
		return quote.PeriodThirtyMinute, 30 * time.Minute, nil
	case OneHour:
		return quote.PeriodSixtyMinute, time.Hour, nil
	case OneDay:
		return quote.PeriodDay, 24 * time.Hour, nil
	case OneWeek:
		return quote.PeriodWeek, 7 * 24 * time.Hour, nil
	case OneMonth:
		return quote.PeriodMonth, 30 * 24 * time.Hour, nil
	default:
		return 0, 0, fmt.Errorf("longport: unsupported interval %q", i)
	}
}

// History requests the most recent candles back to start and keeps
// those inside [start, end].
func (lpc *LongportClient) History(ctx context.Context, ticker string, start, end time.Time, interval Interval) ([]Bar, error) {
	if lpc.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}
	period, width, err := longportPeriod(interval)
	if err != nil {
		return nil, err
	}
	count := int(time.Since(start)/width) + 1
	if count > maxLongportCount {
		count = maxLongportCount
	}
	if count < 1 {
		count = 1
	}

	sticks, err := lpc.quoteCtx.Candlesticks(ctx, longportSymbol(ticker), period, int32(count), quote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks %s: %w", ticker, err)
	}

	until := end.AddDate(0, 0, 1)
	bars := make([]Bar, 0, len(sticks))
	for _, stick := range sticks {
		ts := time.Unix(stick.Timestamp, 0).UTC()
		if ts.Before(start) || !ts.Before(until) {
			continue
		}
		open, _ := stick.Open.Float64()
		high, _ := stick.High.Float64()
		low, _ := stick.Low.Float64()
		closePrice, _ := stick.Close.Float64()
		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      decimal.NewFromFloat(open),
			High:      decimal.NewFromFloat(high),
			Low:       decimal.NewFromFloat(low),
			Close:     decimal.NewFromFloat(closePrice),
			Volume:    stick.Volume,
		})
	}
	return bars, nil
}
