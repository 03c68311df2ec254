package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"github.com/dyike/BriefCast/internal/utils"
)

// YahooFinanceClient reads candles from the Yahoo chart API.
type YahooFinanceClient struct {
	retry *utils.RetryConfig
}

func NewYahooFinanceClient() *YahooFinanceClient {
	return &YahooFinanceClient{retry: &utils.RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
	}}
}

func (yf *YahooFinanceClient) Name() string { return "yahoo" }

func yahooInterval(i Interval) datetime.Interval {
	switch i {
	case OneHour:
		return datetime.Interval("60m")
	default:
		return datetime.Interval(string(i))
	}
}

func (yf *YahooFinanceClient) History(ctx context.Context, ticker string, start, end time.Time, interval Interval) ([]Bar, error) {
	if err := ValidateSymbol(ticker); err != nil {
		return nil, err
	}
	symbol := NormalizeSymbol(ticker)
	// chart end is exclusive
	until := end.AddDate(0, 0, 1)

	var result []Bar
	err := utils.WithRetry(ctx, yf.retry, func(ctx context.Context) error {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&until),
			Interval: yahooInterval(interval),
		}

		iter := chart.Get(params)

		result = make([]Bar, 0)
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, Bar{
				Timestamp: time.Unix(int64(bar.Timestamp), 0).UTC(),
				Open:      bar.Open,
				High:      bar.High,
				Low:       bar.Low,
				Close:     bar.Close,
				Volume:    int64(bar.Volume),
			})
		}

		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get history for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
