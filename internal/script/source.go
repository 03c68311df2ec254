package script

import (
	"fmt"
	"strings"
	"time"
)

type SourceType string

const (
	SourceArticle SourceType = "article"
	SourceChart   SourceType = "chart"
	SourceEvent   SourceType = "event"
	SourceFiling  SourceType = "sec_filing"
)

// Source is a citation attached to a turn. Only the fields of its
// Type's variant are meaningful; Canonical drops the rest.
type Source struct {
	Type SourceType `json:"type"`

	// article
	PK string `json:"pk,omitempty"`

	// article, event
	Title string `json:"title,omitempty"`

	// chart, sec_filing
	Ticker string `json:"ticker,omitempty"`

	// chart
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`

	// event
	ID   string `json:"id,omitempty"`
	Date string `json:"date,omitempty"`

	// sec_filing
	Form            string `json:"form,omitempty"`
	FiledDate       string `json:"filed_date,omitempty"`
	AccessionNumber string `json:"accession_number,omitempty"`
}

func ArticleSource(pk, title string) Source {
	return Source{Type: SourceArticle, PK: pk, Title: title}
}

func ChartSource(ticker, start, end string) Source {
	return Source{Type: SourceChart, Ticker: ticker, StartDate: start, EndDate: end}
}

func EventSource(id, title, date string) Source {
	return Source{Type: SourceEvent, ID: id, Title: title, Date: date}
}

func FilingSource(ticker, form, filed, accession string) Source {
	return Source{Type: SourceFiling, Ticker: ticker, Form: form, FiledDate: filed, AccessionNumber: accession}
}

// Canonical validates s against its variant and returns a cleaned copy
// holding only that variant's fields.
func (s Source) Canonical() (Source, error) {
	trim := strings.TrimSpace
	typ := SourceType(trim(string(s.Type)))
	if typ == "" && trim(s.PK) != "" && trim(s.Title) != "" {
		typ = SourceArticle
	}

	switch typ {
	case SourceArticle:
		out := ArticleSource(trim(s.PK), trim(s.Title))
		if out.PK == "" {
			return Source{}, fmt.Errorf("article: missing pk")
		}
		if out.Title == "" {
			return Source{}, fmt.Errorf("article: missing title")
		}
		return out, nil
	case SourceChart:
		out := ChartSource(strings.ToUpper(trim(s.Ticker)), trim(s.StartDate), trim(s.EndDate))
		if out.Ticker == "" {
			return Source{}, fmt.Errorf("chart: missing ticker")
		}
		if !IsISODate(out.StartDate) {
			return Source{}, fmt.Errorf("chart: bad start_date %q", s.StartDate)
		}
		if !IsISODate(out.EndDate) {
			return Source{}, fmt.Errorf("chart: bad end_date %q", s.EndDate)
		}
		return out, nil
	case SourceEvent:
		out := EventSource(trim(s.ID), trim(s.Title), trim(s.Date))
		if out.ID == "" {
			return Source{}, fmt.Errorf("event: missing id")
		}
		if out.Title == "" {
			return Source{}, fmt.Errorf("event: missing title")
		}
		if !IsISODate(out.Date) {
			return Source{}, fmt.Errorf("event: bad date %q", s.Date)
		}
		return out, nil
	case SourceFiling:
		out := FilingSource(strings.ToUpper(trim(s.Ticker)), strings.ToUpper(trim(s.Form)), trim(s.FiledDate), trim(s.AccessionNumber))
		if out.Ticker == "" {
			return Source{}, fmt.Errorf("sec_filing: missing ticker")
		}
		if out.Form == "" {
			return Source{}, fmt.Errorf("sec_filing: missing form")
		}
		if !IsISODate(out.FiledDate) {
			return Source{}, fmt.Errorf("sec_filing: bad filed_date %q", s.FiledDate)
		}
		if out.AccessionNumber == "" {
			return Source{}, fmt.Errorf("sec_filing: missing accession_number")
		}
		return out, nil
	case "":
		return Source{}, fmt.Errorf("missing type")
	default:
		return Source{}, fmt.Errorf("unknown type %q", typ)
	}
}

func (s Source) Valid() bool {
	_, err := s.Canonical()
	return err == nil
}

// Key identifies a source by its variant's identifying fields. Two
// sources with the same key cite the same thing.
func (s Source) Key() string {
	switch s.Type {
	case SourceArticle:
		return "article:" + s.PK
	case SourceChart:
		return "chart:" + s.Ticker + ":" + s.StartDate + ":" + s.EndDate
	case SourceEvent:
		return "event:" + s.ID
	case SourceFiling:
		return "sec_filing:" + s.AccessionNumber
	default:
		return string(s.Type) + ":"
	}
}

// sourceFromMap reads an untyped JSON object. Non-string field values
// are treated as missing.
func sourceFromMap(m map[string]any) Source {
	str := func(k string) string {
		if v, ok := m[k].(string); ok {
			return v
		}
		return ""
	}
	return Source{
		Type:            SourceType(str("type")),
		PK:              str("pk"),
		Title:           str("title"),
		Ticker:          str("ticker"),
		StartDate:       str("start_date"),
		EndDate:         str("end_date"),
		ID:              str("id"),
		Date:            str("date"),
		Form:            str("form"),
		FiledDate:       str("filed_date"),
		AccessionNumber: str("accession_number"),
	}
}

// IsISODate reports whether v is a real calendar date in YYYY-MM-DD form.
func IsISODate(v string) bool {
	if len(v) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", v)
	return err == nil
}

// ParseSources reads a decoded JSON list of source objects. Elements
// that are not objects are skipped; the rest are returned unvalidated.
func ParseSources(v any) []Source {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Source, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, sourceFromMap(m))
		}
	}
	return out
}
