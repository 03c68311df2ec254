package models

import (
	"bytes"
	"encoding/json"
)

// FlexString accepts a JSON string or a bare number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// CalendarEvent is one economic calendar entry of calendar.json.
type CalendarEvent struct {
	EventID    FlexString `json:"event_id"`
	Title      string     `json:"title"`
	Country    string     `json:"country,omitempty"`
	Category   string     `json:"category,omitempty"`
	EST        string     `json:"est,omitempty"`
	UTC        string     `json:"utc,omitempty"`
	Actual     FlexString `json:"actual,omitempty"`
	Previous   FlexString `json:"previous,omitempty"`
	Consensus  FlexString `json:"consensus,omitempty"`
	Forecast   FlexString `json:"forecast,omitempty"`
	Importance int        `json:"importance,omitempty"`
}

type Calendar struct {
	Events []CalendarEvent `json:"events"`
}

// CalendarInput looks up by id, or by one or more comma separated
// YYYYMMDD dates.
type CalendarInput struct {
	ID   string `json:"id,omitempty"`
	Date string `json:"date,omitempty"`
}

type CalendarOutput struct {
	Mode   string          `json:"mode"`
	Found  *bool           `json:"found,omitempty"`
	Event  *CalendarEvent  `json:"event,omitempty"`
	Count  int             `json:"count,omitempty"`
	Dates  []string        `json:"dates,omitempty"`
	Events []CalendarEvent `json:"events,omitempty"`
}

// CalendarRow is one line of calendar.csv.
type CalendarRow struct {
	ID      string `json:"id"`
	ESTDate string `json:"est_date"`
	Title   string `json:"title"`
}
