package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/utils"
)

var estLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func (g *Gateway) loadCalendar() error {
	g.calOnce.Do(func() {
		path := g.path("calendar.json")
		data, err := os.ReadFile(path)
		if err != nil {
			g.calErr = fmt.Errorf("calendar.json not found: %w", err)
			return
		}
		var cal models.Calendar
		if err := json.Unmarshal(data, &cal); err != nil {
			g.calErr = fmt.Errorf("decode %s: %w", path, err)
			return
		}
		g.events = cal.Events
	})
	return g.calErr
}

// estDate returns the event's US Eastern date as YYYYMMDD.
func estDate(e models.CalendarEvent) string {
	for _, layout := range estLayouts {
		if t, err := time.Parse(layout, e.EST); err == nil {
			return t.Format("20060102")
		}
	}
	return ""
}

func splitDates(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		d := strings.ReplaceAll(strings.TrimSpace(part), "-", "")
		if d == "" {
			continue
		}
		if _, err := time.Parse("20060102", d); err != nil {
			return nil, fmt.Errorf("date must be YYYYMMDD: %q", part)
		}
		out = append(out, d)
	}
	return out, nil
}

// Calendar looks an event up by id, or lists the events on the given dates.
func (g *Gateway) Calendar(ctx context.Context, in models.CalendarInput) (*models.CalendarOutput, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" && strings.TrimSpace(in.Date) == "" {
		return nil, errors.New("either id or date is required")
	}
	if err := g.loadCalendar(); err != nil {
		return nil, err
	}

	if id != "" {
		found := false
		out := &models.CalendarOutput{Mode: "id", Found: &found}
		for i := range g.events {
			if string(g.events[i].EventID) == id {
				found = true
				e := g.events[i]
				out.Event = &e
				break
			}
		}
		return out, nil
	}

	dates, err := splitDates(in.Date)
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, d := range dates {
		want[d] = true
	}
	out := &models.CalendarOutput{Mode: "date", Dates: dates, Events: []models.CalendarEvent{}}
	for _, e := range g.events {
		if want[estDate(e)] {
			out.Events = append(out.Events, e)
		}
	}
	out.Count = len(out.Events)
	log.Printf("[Tools] get_calendar dates=%v -> %d", dates, out.Count)
	return out, nil
}

// CalendarContext renders the calendar as an id/est_date/title TSV for
// prompts. calendar.csv wins over calendar.json; none yields "".
func (g *Gateway) CalendarContext() (string, error) {
	rows, err := utils.ReadCalendarCSV(g.path("calendar.csv"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if errors.Is(err, os.ErrNotExist) {
		if err := g.loadCalendar(); err != nil {
			return "", nil
		}
		for _, e := range g.events {
			rows = append(rows, models.CalendarRow{ID: string(e.EventID), ESTDate: estDate(e), Title: e.Title})
		}
	}
	if len(rows) == 0 {
		return "", nil
	}
	lines := []string{"id\test_date\ttitle"}
	for _, r := range rows {
		lines = append(lines, strings.TrimRight(strings.Join([]string{r.ID, r.ESTDate, r.Title}, "\t"), "\t "))
	}
	return strings.Join(lines, "\n"), nil
}
