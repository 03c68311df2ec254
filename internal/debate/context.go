package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/tools"
)

const (
	maxContextArticles = 10
	dailyLookbackDays  = 30
)

// Headline is the compact form of an article in the evidence bundle.
type Headline struct {
	PK    string `json:"pk"`
	Title string `json:"title"`
}

// Context is the evidence bundle for one ticker, shared read-only by all
// rounds of its debate.
type Context struct {
	Ticker   string                 `json:"ticker"`
	Date     string                 `json:"date"`
	News     []Headline             `json:"news"`
	Filings  []models.Filing        `json:"filings"`
	Daily    models.DailySummary    `json:"daily"`
	Intraday models.IntradaySummary `json:"intraday"`
	Sources  []script.Source        `json:"allowed_sources"`

	allowed *script.AllowedSet
}

// Allowed is the set of sources experts may cite.
func (c *Context) Allowed() *script.AllowedSet {
	if c.allowed != nil {
		return c.allowed
	}
	return script.NewAllowedSet(c.Sources)
}

// IntradaySource is the same-day chart citation.
func (c *Context) IntradaySource() script.Source {
	iso := script.ISODate(c.Date)
	return script.ChartSource(c.Ticker, iso, iso)
}

// CollectContext gathers headlines, recent 10-K/10-Q filings and price
// summaries through the gateway. Lookups that fail are logged and left
// empty; the bundle is always returned.
func CollectContext(ctx context.Context, gw *tools.Gateway, ticker string) *Context {
	ticker = dataflows.NormalizeSymbol(ticker)
	c := &Context{Ticker: ticker, Date: gw.Date(), News: []Headline{}, Filings: []models.Filing{}}
	var sources []script.Source

	if list, err := gw.NewsList(ctx, models.NewsListInput{Tickers: []string{ticker}}); err != nil {
		log.Printf("[Debate] %s news list: %v", ticker, err)
	} else {
		for _, a := range list.Articles[:min(len(list.Articles), maxContextArticles)] {
			c.News = append(c.News, Headline{PK: a.PK, Title: a.Title})
			sources = append(sources, script.ArticleSource(a.PK, a.Title))
		}
	}

	if gw.SEC() != nil {
		filings, err := gw.SEC().FilingList(ctx, models.FilingListInput{Ticker: ticker, Forms: []string{"10-K", "10-Q"}, Limit: 10})
		if err != nil {
			log.Printf("[Debate] %s filing list: %v", ticker, err)
		} else {
			seen := map[string]bool{}
			for _, f := range filings.Filings {
				form := strings.ToUpper(f.Form)
				if seen[form] {
					continue
				}
				seen[form] = true
				c.Filings = append(c.Filings, f)
				sources = append(sources, script.FilingSource(ticker, form, f.FiledDate, f.AccessionNumber))
			}
		}
	}

	iso := script.ISODate(c.Date)
	day, _ := script.ParseDate(c.Date)
	start := day.AddDate(0, 0, -dailyLookbackDays).Format("2006-01-02")
	c.Daily = models.DailySummary{Ticker: ticker, StartDate: start, EndDate: iso}
	if out, err := gw.OHLCV(ctx, models.OHLCVInput{Ticker: ticker, StartDate: start, EndDate: iso, Interval: "1d"}); err != nil {
		log.Printf("[Debate] %s daily ohlcv: %v", ticker, err)
	} else if !out.TooManyRows {
		c.Daily = tools.SummarizeDaily(out)
	}
	c.Intraday = models.IntradaySummary{Ticker: ticker, Date: iso, Interval: "5m"}
	if out, err := gw.OHLCV(ctx, models.OHLCVInput{Ticker: ticker, StartDate: iso, EndDate: iso, Interval: "5m"}); err != nil {
		log.Printf("[Debate] %s intraday ohlcv: %v", ticker, err)
	} else if !out.TooManyRows {
		c.Intraday = tools.SummarizeIntraday(out)
	}
	sources = append(sources, script.ChartSource(ticker, start, iso), c.IntradaySource())

	c.allowed = script.NewAllowedSet(sources)
	c.Sources = c.allowed.Sources()
	log.Printf("[Debate] %s context: news=%d filings=%d allowed=%d", ticker, len(c.News), len(c.Filings), c.allowed.Len())
	return c
}

// Render is the evidence bundle as prompt text.
func (c *Context) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", c.Ticker)
	b.WriteString("News:\n")
	if len(c.News) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, h := range c.News {
		fmt.Fprintf(&b, "- [%s] %s\n", h.PK, h.Title)
	}
	b.WriteString("Filings:\n")
	if len(c.Filings) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, f := range c.Filings {
		fmt.Fprintf(&b, "- %s filed %s (accession %s)\n", f.Form, f.FiledDate, f.AccessionNumber)
	}
	fmt.Fprintf(&b, "Daily: %s\n", c.Daily)
	fmt.Fprintf(&b, "Intraday: %s", c.Intraday)
	return b.String()
}

// AllowedJSON is the allowed source list as a JSON array for prompts.
func (c *Context) AllowedJSON() string {
	if len(c.Sources) == 0 {
		return "[]"
	}
	data, err := json.Marshal(c.Sources)
	if err != nil {
		return "[]"
	}
	return string(data)
}
