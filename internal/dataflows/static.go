package dataflows

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StaticProvider serves preloaded bars, for offline runs and tests.
type StaticProvider struct {
	mu    sync.Mutex
	bars  map[string][]Bar
	calls int
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{bars: map[string][]Bar{}}
}

func staticKey(ticker string, interval Interval) string {
	return NormalizeSymbol(ticker) + "|" + string(interval)
}

// Add registers bars for ticker at interval.
func (s *StaticProvider) Add(ticker string, interval Interval, bars ...Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := staticKey(ticker, interval)
	s.bars[k] = append(s.bars[k], bars...)
	sort.Slice(s.bars[k], func(i, j int) bool { return s.bars[k][i].Timestamp.Before(s.bars[k][j].Timestamp) })
}

func (s *StaticProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StaticProvider) Name() string { return "static" }

func (s *StaticProvider) History(_ context.Context, ticker string, start, end time.Time, interval Interval) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	until := end.AddDate(0, 0, 1)
	var out []Bar
	for _, b := range s.bars[staticKey(ticker, interval)] {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(until) {
			out = append(out, b)
		}
	}
	return out, nil
}
