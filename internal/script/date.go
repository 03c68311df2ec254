package script

import (
	"fmt"
	"strings"
	"time"
)

const (
	compactLayout = "20060102"
	isoLayout     = "2006-01-02"
)

// NormalizeDate accepts YYYYMMDD or YYYY-MM-DD and returns YYYYMMDD.
func NormalizeDate(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(compactLayout), nil
}

func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	layout := compactLayout
	if strings.Contains(s, "-") {
		layout = isoLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYYMMDD or YYYY-MM-DD", raw)
	}
	return t, nil
}

// ISODate converts a briefing date to YYYY-MM-DD; invalid input is
// returned unchanged.
func ISODate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format(isoLayout)
}

// KoreanDate renders the display form used in prompts, e.g. "1월 5일".
func KoreanDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d월 %d일", int(t.Month()), t.Day())
}
