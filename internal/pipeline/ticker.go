package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/debate"
	"github.com/dyike/BriefCast/internal/fanout"
	"github.com/dyike/BriefCast/internal/script"
)

// tickers debates every user ticker, writes one segment per debate and
// refines the ticker transitions. Empty ticker lists make it a no-op.
func (r *run) tickers(ctx context.Context, st *State) (*Delta, error) {
	if len(st.UserTickers) == 0 {
		log.Printf("[Pipeline] ticker: no user tickers, skipping")
		return &Delta{}, nil
	}
	symbols := make([]string, len(st.UserTickers))
	for i, t := range st.UserTickers {
		symbols[i] = dataflows.NormalizeSymbol(t)
	}

	engine := debate.NewEngine(r.gw, r.o.models, r.o.debate, debate.WithMaxIterations(r.o.cfg.WorkerMaxIterations))
	transcripts := fanout.Run(ctx, symbols, func(ctx context.Context, _ int, ticker string) (*debate.Transcript, error) {
		if err := dataflows.ValidateSymbol(ticker); err != nil {
			return nil, err
		}
		return engine.Run(ctx, ticker)
	}, fanout.WithGroup("ticker_debates"), fanout.WithConcurrency(r.o.cfg.FanoutConcurrency))

	base := script.Clone(st.Scripts)
	baseSources := script.SourcesOf(base)
	baseText := script.Texts(base)
	parts := fanout.Run(ctx, transcripts, func(ctx context.Context, i int, tr *debate.Transcript) ([]script.Turn, error) {
		if tr == nil {
			return nil, nil
		}
		return r.writeTicker(ctx, st.Date, tr, baseSources, baseText)
	}, fanout.WithGroup(consts.TickerScriptWorker), fanout.WithConcurrency(r.o.cfg.FanoutConcurrency))

	labels := []string{"previous"}
	counts := []int{len(base)}
	for i, sym := range symbols {
		labels = append(labels, sym)
		counts = append(counts, len(parts[i]))
	}
	turns := script.Concat(parts...)
	merged := script.Concat(base, turns)
	sections := script.Sections(0, labels, counts)

	var edits []script.Edit
	if len(turns) > 0 {
		vars := refinerVars(st.Date, merged, sections)
		vars["tickers"] = jsonText(symbols)
		edits = r.refineLenient(ctx, consts.TickerScriptRefiner, consts.Profile_TickerScriptRefiner, "ticker_refiner", vars, len(merged))
	}
	log.Printf("[Pipeline] ticker: %d tickers -> %d turns, %d edits", len(symbols), len(turns), len(edits))
	return &Delta{
		Turns: turns,
		Edits: edits,
		Extra: map[string]any{
			"sections": tickerSections(sections[1:]),
			"debates":  transcripts,
		},
	}, nil
}

// TickerSection is the id range written for one ticker.
type TickerSection struct {
	Ticker  string `json:"ticker"`
	StartID int    `json:"start_id"`
	EndID   int    `json:"end_id"`
}

func tickerSections(sections []script.Section) []TickerSection {
	out := make([]TickerSection, len(sections))
	for i, s := range sections {
		out[i] = TickerSection{Ticker: s.Label, StartID: s.StartID, EndID: s.EndID}
	}
	return out
}

// debateView is the transcript as the writer sees it.
type debateView struct {
	Ticker     string            `json:"ticker"`
	Rounds     []debate.Round    `json:"rounds"`
	Conclusion debate.Conclusion `json:"conclusion"`
	Consensus  bool              `json:"consensus"`
}

// writeTicker turns one transcript into turns citing only the prior
// script, the debate and the same-day chart.
func (r *run) writeTicker(ctx context.Context, date string, tr *debate.Transcript, baseSources []script.Source, baseText string) ([]script.Turn, error) {
	extra := []script.Source{}
	intraday := "(none)"
	if tr.Context != nil {
		extra = append(extra, tr.Context.IntradaySource())
		intraday = tr.Context.Intraday.String()
	}
	allowed := script.NewAllowedSet(baseSources, tr.Sources(), extra)

	res, err := r.work(ctx, consts.TickerScriptWorker, consts.Profile_TickerScriptWorker, nil, "ticker_writer", map[string]any{
		"ticker":          tr.Ticker,
		"date_kr":         script.KoreanDate(date),
		"debate":          jsonText(debateView{Ticker: tr.Ticker, Rounds: tr.Rounds, Conclusion: tr.Conclusion, Consensus: tr.Consensus}),
		"intraday":        intraday,
		"allowed_sources": jsonText(allowed.Sources()),
		"base_scripts":    baseText,
	})
	if err != nil {
		return nil, err
	}
	if !res.Parsed() {
		return nil, fmt.Errorf("%s writer: answer has no JSON object", tr.Ticker)
	}

	turns := normalize(consts.TickerScriptWorker, script.RawTurns(res.Data, "scripts"))
	for i := range turns {
		turns[i].Sources = allowed.Filter(turns[i].Sources)
	}
	kept := script.NormalizeTurns(turns)
	if dropped := len(turns) - len(kept); dropped > 0 {
		log.Printf("[Pipeline] %s writer: %d turns cited no allowed source", tr.Ticker, dropped)
	}
	return kept, nil
}
