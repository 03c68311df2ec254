package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/models"
)

const isoLayout = "2006-01-02"

// OHLCV fetches candles between start and end (both inclusive, ISO
// dates). End defaults to the briefing date and start to 30 days before
// it. Series above MaxOHLCVRows come back as a too_many_rows payload.
func (g *Gateway) OHLCV(ctx context.Context, in models.OHLCVInput) (*models.OHLCVOutput, error) {
	if g.prices == nil {
		return nil, fmt.Errorf("no price provider configured")
	}
	if err := dataflows.ValidateSymbol(in.Ticker); err != nil {
		return nil, err
	}
	interval, err := dataflows.ParseInterval(in.Interval)
	if err != nil {
		return nil, err
	}

	end, err := g.day()
	if err != nil {
		return nil, err
	}
	if in.EndDate != "" {
		if end, err = time.Parse(isoLayout, in.EndDate); err != nil {
			return nil, fmt.Errorf("end_date must be YYYY-MM-DD: %w", err)
		}
	}
	start := end.AddDate(0, 0, -30)
	if in.StartDate != "" {
		if start, err = time.Parse(isoLayout, in.StartDate); err != nil {
			return nil, fmt.Errorf("start_date must be YYYY-MM-DD: %w", err)
		}
	}
	if start.After(end) {
		return nil, fmt.Errorf("start_date %s is after end_date %s", start.Format(isoLayout), end.Format(isoLayout))
	}

	ticker := dataflows.NormalizeSymbol(in.Ticker)
	out := &models.OHLCVOutput{
		Ticker:    ticker,
		StartDate: start.Format(isoLayout),
		EndDate:   end.Format(isoLayout),
		Interval:  string(interval),
		Rows:      []models.OHLCVRow{},
	}

	bars, err := g.prices.History(ctx, ticker, start, end, interval)
	if err != nil {
		return nil, err
	}
	if len(bars) > MaxOHLCVRows {
		log.Printf("[Tools] get_ohlcv %s: %d rows over cap (interval=%s, %s~%s)", ticker, len(bars), interval, out.StartDate, out.EndDate)
		out.TooManyRows = true
		out.RowCount = len(bars)
		out.MaxRows = MaxOHLCVRows
		out.Message = fmt.Sprintf("%v: %d rows (max %d). Narrow the date range or use a coarser interval.", ErrTooManyRows, len(bars), MaxOHLCVRows)
		out.SuggestedIntervals = interval.Coarser()
		return out, nil
	}
	for _, b := range bars {
		out.Rows = append(out.Rows, toRow(b))
	}
	return out, nil
}

func toRow(b dataflows.Bar) models.OHLCVRow {
	return models.OHLCVRow{
		TS:     b.Timestamp.Format(time.RFC3339),
		Open:   b.Open.Round(3).InexactFloat64(),
		High:   b.High.Round(3).InexactFloat64(),
		Low:    b.Low.Round(3).InexactFloat64(),
		Close:  b.Close.Round(3).InexactFloat64(),
		Volume: b.Volume,
	}
}

// SummarizeDaily reduces a daily series to its last close and one-day move.
func SummarizeDaily(out *models.OHLCVOutput) models.DailySummary {
	s := models.DailySummary{Ticker: out.Ticker, StartDate: out.StartDate, EndDate: out.EndDate, Rows: len(out.Rows)}
	if len(out.Rows) < 2 {
		return s
	}
	last := out.Rows[len(out.Rows)-1].Close
	prev := out.Rows[len(out.Rows)-2].Close
	change := 0.0
	if prev != 0 {
		change = (last - prev) / prev * 100
	}
	s.LastClose = &last
	s.Change1D = &change

	closes := closesOf(out.Rows)
	if v, ok := SMA(closes, 20); ok {
		s.SMA20 = &v
	}
	if v, ok := RSI(closes, 14); ok {
		s.RSI14 = &v
	}
	return s
}

// SummarizeIntraday reduces a same-day series to range, open/close and
// extremes.
func SummarizeIntraday(out *models.OHLCVOutput) models.IntradaySummary {
	s := models.IntradaySummary{Ticker: out.Ticker, Date: out.EndDate, Interval: out.Interval, Bars: len(out.Rows)}
	if len(out.Rows) == 0 {
		return s
	}
	first, last := out.Rows[0], out.Rows[len(out.Rows)-1]
	s.Range = first.TS + "~" + last.TS
	s.Open, s.Close = first.Open, last.Close
	if s.Open != 0 {
		s.ChangePct = (s.Close/s.Open - 1) * 100
	}
	s.High, s.Low = first.High, first.Low
	for _, r := range out.Rows[1:] {
		if r.High > s.High {
			s.High = r.High
		}
		if r.Low < s.Low {
			s.Low = r.Low
		}
	}
	return s
}
