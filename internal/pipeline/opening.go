package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/script"
)

const titleWordLimit = 50

func (r *run) marketContext() (*models.MarketContext, error) {
	path := filepath.Join(r.gw.Dir(), "market_context.json")
	var mc models.MarketContext
	if err := script.ReadJSON(path, &mc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return nil, err
	}
	return &mc, nil
}

func renderMarket(mc *models.MarketContext) string {
	var b strings.Builder
	groups := []struct {
		name   string
		quotes []models.Quote
	}{
		{"Indices", mc.Indices},
		{"Yields", mc.Yields},
		{"Currencies", mc.Currencies},
		{"Commodities", mc.Commodities},
		{"Crypto", mc.Crypto},
	}
	for _, g := range groups {
		if len(g.quotes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", g.name)
		for _, q := range g.quotes {
			switch {
			case q.Error != "":
				fmt.Fprintf(&b, "- %s (%s): %s\n", q.Name, q.Symbol, q.Error)
			case q.Close != nil && q.ChangePct != nil:
				fmt.Fprintf(&b, "- %s (%s): %.2f (%+.2f%%)\n", q.Name, q.Symbol, *q.Close, *q.ChangePct)
			case q.Close != nil:
				fmt.Fprintf(&b, "- %s (%s): %.2f\n", q.Name, q.Symbol, *q.Close)
			}
		}
	}
	return b.String()
}

func (r *run) titleWords() string {
	words, err := r.gw.TopTitleWords(titleWordLimit)
	if err != nil {
		log.Printf("[Pipeline] title words unavailable: %v", err)
		return "(none)"
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, fmt.Sprintf("%s(%d)", w.Word, w.Count))
	}
	return strings.Join(parts, ", ")
}

func (r *run) calendarContext() string {
	cal, err := r.gw.CalendarContext()
	if err != nil {
		log.Printf("[Pipeline] calendar context unavailable: %v", err)
		return "(none)"
	}
	return cal
}

// opening writes the first segment and picks the day's themes. Any
// failure here aborts the run.
func (r *run) opening(ctx context.Context, st *State) (*Delta, error) {
	mc, err := r.marketContext()
	if err != nil {
		return nil, err
	}
	res, err := r.work(ctx, consts.OpeningStage, consts.Profile_Opening, r.gw.OpeningTools(), "opening", map[string]any{
		"date":             script.ISODate(st.Date),
		"date_kr":          script.KoreanDate(st.Date),
		"market_context":   renderMarket(mc),
		"title_words":      r.titleWords(),
		"calendar_context": r.calendarContext(),
	})
	if err != nil {
		return nil, err
	}
	if !res.Parsed() {
		return nil, fmt.Errorf("opening answer has no JSON object")
	}

	nutshell, _ := res.Data["nutshell"].(string)
	d := &Delta{
		Nutshell: script.OneLine(nutshell),
		Themes:   parseThemes(res.Data["themes"]),
		Turns:    normalize(consts.OpeningStage, script.RawTurns(res.Data, "scripts")),
	}
	log.Printf("[Pipeline] opening: %d turns, %d themes", len(d.Turns), len(d.Themes))
	return d, nil
}

// parseThemes keeps themes with a headline. Related news is reduced to
// valid article sources.
func parseThemes(v any) []script.Theme {
	list, ok := v.([]any)
	if !ok {
		return []script.Theme{}
	}
	out := make([]script.Theme, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			log.Printf("[Pipeline] themes[%d] dropped: not an object", i)
			continue
		}
		headline, _ := m["headline"].(string)
		description, _ := m["description"].(string)
		th := script.Theme{
			Headline:    script.OneLine(headline),
			Description: strings.TrimSpace(description),
			RelatedNews: []script.Source{},
		}
		if th.Headline == "" {
			log.Printf("[Pipeline] themes[%d] dropped: empty headline", i)
			continue
		}
		for _, s := range script.ParseSources(m["related_news"]) {
			if c, err := s.Canonical(); err == nil && c.Type == script.SourceArticle {
				th.RelatedNews = append(th.RelatedNews, c)
			}
		}
		out = append(out, th)
	}
	return out
}
