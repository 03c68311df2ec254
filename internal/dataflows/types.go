package dataflows

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time       `json:"ts"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Interval is a candle width understood by every provider.
type Interval string

const (
	OneMinute      Interval = "1m"
	FiveMinutes    Interval = "5m"
	FifteenMinutes Interval = "15m"
	ThirtyMinutes  Interval = "30m"
	OneHour        Interval = "1h"
	OneDay         Interval = "1d"
	OneWeek        Interval = "1wk"
	OneMonth       Interval = "1mo"
)

var intervals = []Interval{OneMinute, FiveMinutes, FifteenMinutes, ThirtyMinutes, OneHour, OneDay, OneWeek, OneMonth}

func ParseInterval(s string) (Interval, error) {
	v := Interval(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return OneDay, nil
	}
	for _, iv := range intervals {
		if iv == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Intraday reports whether the interval is shorter than a day.
func (i Interval) Intraday() bool {
	switch i {
	case OneMinute, FiveMinutes, FifteenMinutes, ThirtyMinutes, OneHour:
		return true
	}
	return false
}

// Coarser lists the supported intervals wider than i, narrowest first.
func (i Interval) Coarser() []string {
	var out []string
	found := false
	for _, iv := range intervals {
		if found {
			out = append(out, string(iv))
		}
		if iv == i {
			found = true
		}
	}
	return out
}

// NormalizeSymbol converts symbol to standard format
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

// ValidateSymbol checks if a stock symbol is valid format
func ValidateSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if len(symbol) == 0 {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 12 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	return nil
}
