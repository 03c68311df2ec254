package models

import (
	"fmt"
	"strings"
)

type OHLCVInput struct {
	Ticker    string `json:"ticker"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Interval  string `json:"interval,omitempty"`
}

type OHLCVRow struct {
	TS     string  `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// OHLCVOutput carries either rows or, above the row cap, a rejection
// telling the caller to narrow the request.
type OHLCVOutput struct {
	Ticker             string     `json:"ticker"`
	StartDate          string     `json:"start_date"`
	EndDate            string     `json:"end_date"`
	Interval           string     `json:"interval"`
	Rows               []OHLCVRow `json:"rows"`
	TooManyRows        bool       `json:"too_many_rows,omitempty"`
	RowCount           int        `json:"row_count,omitempty"`
	MaxRows            int        `json:"max_rows,omitempty"`
	Message            string     `json:"message,omitempty"`
	SuggestedIntervals []string   `json:"suggested_intervals,omitempty"`
}

// DailySummary condenses a daily series for prompts.
type DailySummary struct {
	Ticker    string   `json:"ticker"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Rows      int      `json:"rows"`
	LastClose *float64 `json:"last_close,omitempty"`
	Change1D  *float64 `json:"1d_change,omitempty"`
	SMA20     *float64 `json:"sma_20,omitempty"`
	RSI14     *float64 `json:"rsi_14,omitempty"`
}

// IntradaySummary condenses a same-day intraday series for prompts.
type IntradaySummary struct {
	Ticker    string  `json:"ticker"`
	Date      string  `json:"date"`
	Interval  string  `json:"interval"`
	Bars      int     `json:"bars"`
	Range     string  `json:"range,omitempty"`
	Open      float64 `json:"open,omitempty"`
	Close     float64 `json:"close,omitempty"`
	ChangePct float64 `json:"chg_pct,omitempty"`
	High      float64 `json:"high,omitempty"`
	Low       float64 `json:"low,omitempty"`
}

// Quote is one instrument of the market context snapshot.
type Quote struct {
	Symbol    string   `json:"symbol"`
	Name      string   `json:"name"`
	Date      string   `json:"date,omitempty"`
	Close     *float64 `json:"close,omitempty"`
	PrevClose *float64 `json:"prev_close,omitempty"`
	ChangePct *float64 `json:"chg_pct,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// MarketContext is cache/{date}/market_context.json.
type MarketContext struct {
	Date        string  `json:"date"`
	GeneratedAt string  `json:"generated_at"`
	Indices     []Quote `json:"indices"`
	Yields      []Quote `json:"yields"`
	Currencies  []Quote `json:"currencies"`
	Commodities []Quote `json:"commodities"`
	Crypto      []Quote `json:"crypto"`
}

func (s DailySummary) String() string {
	span := s.StartDate + "~" + s.EndDate
	if s.Rows == 0 {
		return fmt.Sprintf("OHLCV(%s): no data", span)
	}
	if s.LastClose == nil || s.Change1D == nil {
		return fmt.Sprintf("OHLCV(%s): not enough closes (rows=%d)", span, s.Rows)
	}
	out := fmt.Sprintf("OHLCV(%s): last_close=%.2f, 1d_change=%+.2f%%", span, *s.LastClose, *s.Change1D)
	if s.SMA20 != nil {
		out += fmt.Sprintf(", sma_20=%.2f", *s.SMA20)
	}
	if s.RSI14 != nil {
		out += fmt.Sprintf(", rsi_14=%.1f", *s.RSI14)
	}
	return out + fmt.Sprintf(" (rows=%d)", s.Rows)
}

func (s IntradaySummary) String() string {
	label := fmt.Sprintf("INTRADAY_%s(%s)", strings.ToUpper(s.Interval), s.Date)
	if s.Bars == 0 {
		return label + ": no data (market closed or provider limit)"
	}
	parts := []string{fmt.Sprintf("%s: bars=%d", label, s.Bars)}
	if s.Range != "" {
		parts = append(parts, "range="+s.Range)
	}
	parts = append(parts, fmt.Sprintf("open=%.2f, close=%.2f", s.Open, s.Close))
	if s.Open != 0 {
		parts = append(parts, fmt.Sprintf("chg=%+.2f%%", s.ChangePct))
	}
	parts = append(parts, fmt.Sprintf("high=%.2f, low=%.2f", s.High, s.Low))
	return strings.Join(parts, ", ")
}
