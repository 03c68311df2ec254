package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/debate"
	"github.com/dyike/BriefCast/internal/models"
	"github.com/dyike/BriefCast/internal/pipeline"
	"github.com/dyike/BriefCast/internal/storage"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case consts.State_Done:
		return completedStyle
	case consts.State_Running:
		return inProgressStyle
	case consts.State_Failed:
		return errorStyle
	default:
		return pendingStyle
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// RenderRunSummary shows stage statuses and chapter ranges of a run.
func RenderRunSummary(st *pipeline.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("BriefCast %s", st.Date)))
	b.WriteString("\n")

	lines := []string{
		row("Run", st.RunID),
		row("Tickers", strings.Join(st.UserTickers, ", ")),
		row("Turns", fmt.Sprintf("%d", len(st.Scripts))),
	}
	for _, s := range pipeline.Stages {
		status := st.Status[s.Name()]
		ch := st.ChapterOf(s.Chapter())
		span := "-"
		if ch.StartID >= 0 {
			span = fmt.Sprintf("%d..%d", ch.StartID, ch.EndID)
		}
		lines = append(lines, row(s.Name(), statusStyle(status).Render(status)+"  "+span))
	}
	if st.Nutshell != "" {
		lines = append(lines, "", st.Nutshell)
	}
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	return b.String()
}

func actionStyle(a debate.Action) lipgloss.Style {
	switch a {
	case debate.Buy:
		return completedStyle
	case debate.Sell:
		return errorStyle
	default:
		return inProgressStyle
	}
}

// RenderTranscript shows each round's positions and the conclusion.
func RenderTranscript(t *debate.Transcript) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Debate %s %s", t.Ticker, t.Date)))
	b.WriteString("\n")

	var lines []string
	for _, r := range t.Rounds {
		lines = append(lines, fmt.Sprintf("Round %d", r.Round))
		for _, role := range debate.Roles {
			u := r.Get(role)
			lines = append(lines, row("  "+string(role), fmt.Sprintf("%s %.2f", actionStyle(u.Action).Render(string(u.Action)), u.Confidence)))
		}
	}
	c := t.Conclusion
	lines = append(lines,
		"",
		row("Consensus", fmt.Sprintf("%t", t.Consensus)),
		row("Conclusion", fmt.Sprintf("%s %.2f", actionStyle(c.Action).Render(string(c.Action)), c.Confidence)),
		"",
		c.Text,
	)
	b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	return b.String()
}

// RenderMarketContext lists the snapshot quotes by group.
func RenderMarketContext(mc *models.MarketContext) string {
	var lines []string
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
		lines = append(lines, g.name)
		for _, q := range g.quotes {
			switch {
			case q.Error != "":
				lines = append(lines, row("  "+q.Symbol, errorStyle.Render(q.Error)))
			case q.Close != nil && q.ChangePct != nil:
				lines = append(lines, row("  "+q.Symbol, fmt.Sprintf("%.2f (%+.2f%%)", *q.Close, *q.ChangePct)))
			case q.Close != nil:
				lines = append(lines, row("  "+q.Symbol, fmt.Sprintf("%.2f", *q.Close)))
			}
		}
	}
	return titleStyle.Render("Market context "+mc.Date) + "\n" + boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// RenderPodcasts lists index rows, newest first.
func RenderPodcasts(items []storage.Podcast) string {
	if len(items) == 0 {
		return pendingStyle.Render("no podcasts indexed yet") + "\n"
	}
	lines := make([]string, 0, len(items))
	for _, p := range items {
		tts := pendingStyle.Render("tts pending")
		if p.TTSDone {
			tts = completedStyle.Render("tts done")
		}
		lines = append(lines, row(p.Date, fmt.Sprintf("%-24s %s", strings.Join(p.UserTickers, ","), tts)))
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// RenderConfig shows the effective configuration. Secrets are reported
// as configured or not.
func RenderConfig(cfg *config.Config) string {
	configured := func(v string) string {
		if v != "" {
			return completedStyle.Render("configured")
		}
		return pendingStyle.Render("not configured")
	}
	lines := []string{
		row("Cache dir", cfg.CacheDir),
		row("Temp dir", cfg.TempDir),
		row("Podcast dir", cfg.PodcastDir),
		row("App config", cfg.AppConfigPath),
		"",
		row("LLM provider", cfg.LLMProvider),
		row("LLM rate", fmt.Sprintf("%.1f/s burst %d", cfg.LLMRatePerSec, cfg.LLMBurst)),
		row("Worker iterations", fmt.Sprintf("%d", cfg.WorkerMaxIterations)),
		row("Fan-out", fmt.Sprintf("%d", cfg.FanoutConcurrency)),
		"",
		row("Debate rounds", fmt.Sprintf("%d..%d", cfg.DebateMinRounds, cfg.DebateMaxRounds)),
		row("Consensus conf", fmt.Sprintf("%.2f", cfg.DebateConsensusConfidence)),
		row("Refiner retries", fmt.Sprintf("%d", cfg.ThemeRefinerMaxRetries)),
		"",
		row("OHLCV provider", cfg.OHLCVProvider),
		row("Index", cfg.IndexDBDriver+" "+cfg.IndexDBDSN),
		row("Cache", fmt.Sprintf("%t ttl %s", cfg.CacheEnabled, cfg.CacheTTL)),
		row("Redis", configured(cfg.RedisAddr)),
		row("SEC user agent", configured(cfg.SECUserAgent)),
		row("Longport", configured(cfg.LongportAppKey)),
		row("Eino debug", fmt.Sprintf("%t port %d", cfg.EinoDebugEnabled, cfg.EinoDebugPort)),
	}
	return titleStyle.Render("BriefCast configuration") + "\n" + boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}
