package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/BriefCast/internal/models"
)

func stringList(desc string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Array, Desc: desc, ElemInfo: &schema.ParameterInfo{Type: schema.String}}
}

func (g *Gateway) NewsListTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_news_list",
			Desc: "Filter today's cached news list. Returns pk, title and tickers of each article.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"tickers":  stringList("Ticker filter. Every ticker must be tagged on the article."),
				"keywords": stringList("Title keyword filter. Every keyword must appear in the title."),
			}),
		},
		func(ctx context.Context, in models.NewsListInput) (*models.NewsListOutput, error) {
			return g.NewsList(ctx, in)
		},
	)
}

func (g *Gateway) NewsContentTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_news_content",
			Desc: "Fetch article bodies by pk. Long bodies are truncated.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"pks": {Type: schema.Array, Desc: "Article pks from get_news_list", Required: true, ElemInfo: &schema.ParameterInfo{Type: schema.String}},
			}),
		},
		func(ctx context.Context, in models.NewsContentInput) (*models.NewsContentOutput, error) {
			return g.NewsContent(ctx, in)
		},
	)
}

func (g *Gateway) KeywordFrequencyTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "count_keyword_frequency",
			Desc: "Count keyword occurrences in today's titles or in downloaded article bodies.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"keywords": {Type: schema.Array, Desc: "Keywords to count", Required: true, ElemInfo: &schema.ParameterInfo{Type: schema.String}},
				"source":   {Type: schema.String, Desc: "titles (default) or bodies", Enum: []string{"titles", "bodies"}},
				"news_pks": stringList("Limit body counting to these pks"),
			}),
		},
		func(ctx context.Context, in models.KeywordFrequencyInput) (*models.KeywordFrequencyOutput, error) {
			return g.KeywordFrequency(ctx, in)
		},
	)
}

func (g *Gateway) ListBodiesTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name:        "list_downloaded_bodies",
			Desc:        "List pks of articles whose bodies are already downloaded.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
		},
		func(ctx context.Context, in models.ListBodiesInput) (*models.ListBodiesOutput, error) {
			return g.ListBodies(ctx, in)
		},
	)
}

func (g *Gateway) OHLCVTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_ohlcv",
			Desc: "Fetch OHLCV candles. At most 200 rows; larger requests are rejected with suggested intervals.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker":     {Type: schema.String, Desc: "Symbol, e.g. AAPL or ^GSPC", Required: true},
				"start_date": {Type: schema.String, Desc: "YYYY-MM-DD, default 30 days before end_date"},
				"end_date":   {Type: schema.String, Desc: "YYYY-MM-DD, default the briefing date"},
				"interval":   {Type: schema.String, Desc: "Candle interval", Enum: []string{"1m", "5m", "15m", "30m", "1h", "1d", "1wk", "1mo"}},
			}),
		},
		func(ctx context.Context, in models.OHLCVInput) (*models.OHLCVOutput, error) {
			return g.OHLCV(ctx, in)
		},
	)
}

func (g *Gateway) CalendarTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_calendar",
			Desc: "Look up economic calendar events by id, or list events on dates.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"id":   {Type: schema.String, Desc: "Event id"},
				"date": {Type: schema.String, Desc: "One or more comma separated YYYYMMDD dates"},
			}),
		},
		func(ctx context.Context, in models.CalendarInput) (*models.CalendarOutput, error) {
			return g.Calendar(ctx, in)
		},
	)
}

func (g *Gateway) FilingListTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_sec_filing_list",
			Desc: "List recent SEC filings (metadata only) for a ticker.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker": {Type: schema.String, Desc: "Ticker, e.g. GOOG", Required: true},
				"forms":  stringList("Form filter, e.g. [\"10-K\", \"10-Q\", \"8-K\"]"),
				"limit":  {Type: schema.Integer, Desc: "Maximum filings to return (default 6)"},
			}),
		},
		func(ctx context.Context, in models.FilingListInput) (*models.FilingListOutput, error) {
			return g.sec.FilingList(ctx, in)
		},
	)
}

func (g *Gateway) FilingContentTool() tool.InvokableTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: "get_sec_filing_content",
			Desc: "Read SEC filing text by page. Without page, returns the page index only.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"ticker":            {Type: schema.String, Desc: "Ticker", Required: true},
				"accession_numbers": {Type: schema.Array, Desc: "Accession numbers", Required: true, ElemInfo: &schema.ParameterInfo{Type: schema.String}},
				"page":              {Type: schema.Integer, Desc: "1-based page number"},
			}),
		},
		func(ctx context.Context, in models.FilingContentInput) (*models.FilingContentOutput, error) {
			return g.sec.FilingContent(ctx, in)
		},
	)
}

// OpeningTools serves the opening and theme workers.
func (g *Gateway) OpeningTools() []tool.InvokableTool {
	return []tool.InvokableTool{
		g.NewsListTool(),
		g.NewsContentTool(),
		g.KeywordFrequencyTool(),
		g.ListBodiesTool(),
		g.OHLCVTool(),
		g.CalendarTool(),
	}
}

// ExpertTools serves the debate experts.
func (g *Gateway) ExpertTools() []tool.InvokableTool {
	return []tool.InvokableTool{
		g.NewsContentTool(),
		g.OHLCVTool(),
		g.FilingListTool(),
		g.FilingContentTool(),
	}
}

func (g *Gateway) ClosingTools() []tool.InvokableTool {
	return []tool.InvokableTool{
		g.NewsListTool(),
		g.NewsContentTool(),
		g.OHLCVTool(),
		g.CalendarTool(),
	}
}
