package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/debate"
	"github.com/dyike/BriefCast/internal/llm"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/tools"
)

// Indexer records finished scripts in the podcast index.
type Indexer interface {
	UpsertScript(ctx context.Context, a *script.Artifact) error
}

// Orchestrator runs the stage chain for one date at a time.
type Orchestrator struct {
	cfg         *config.Config
	models      llm.ModelSource
	prices      dataflows.Provider
	index       Indexer
	debate      debate.Settings
	gatewayOpts []tools.Option
	handlers    []callbacks.Handler
}

type Option func(*Orchestrator)

func WithIndex(idx Indexer) Option {
	return func(o *Orchestrator) { o.index = idx }
}

func WithDebateSettings(s debate.Settings) Option {
	return func(o *Orchestrator) { o.debate = s }
}

func WithGatewayOptions(opts ...tools.Option) Option {
	return func(o *Orchestrator) { o.gatewayOpts = append(o.gatewayOpts, opts...) }
}

// WithCallbacks adds eino handlers to every run, after the logger.
func WithCallbacks(h ...callbacks.Handler) Option {
	return func(o *Orchestrator) { o.handlers = append(o.handlers, h...) }
}

func New(cfg *config.Config, models llm.ModelSource, prices dataflows.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		models: models,
		prices: prices,
		debate: debate.SettingsFromConfig(cfg),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run is the per-invocation context shared by stage nodes.
type run struct {
	o   *Orchestrator
	gw  *tools.Gateway
	err error
}

type stageFunc func(ctx context.Context, st *State) (*Delta, error)

func (r *run) stage(s Stage) stageFunc {
	switch s {
	case StageOpening:
		return r.opening
	case StageTheme:
		return r.theme
	case StageTicker:
		return r.tickers
	default:
		return r.closing
	}
}

// Run executes the requested stages. Every executed stage writes its
// temp artifact; only full runs write the final script and index row.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*State, error) {
	date, err := script.NormalizeDate(req.Date)
	if err != nil {
		return nil, err
	}
	stages, st, err := o.plan(date, req)
	if err != nil {
		return nil, err
	}

	gw, err := tools.NewGateway(o.cfg, date, o.prices, o.gatewayOpts...)
	if err != nil {
		return nil, err
	}
	defer gw.Close()
	r := &run{o: o, gw: gw}

	chain := compose.NewChain[*State, *State]()
	for _, s := range stages {
		chain.AppendLambda(compose.InvokableLambda(r.node(s)), compose.WithNodeName(s.Name()))
	}
	runnable, err := chain.Compile(ctx, compose.WithGraphName("BriefCast"))
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}

	log.Printf("[Pipeline] run %s: date=%s tickers=%v stages=%v", st.RunID, date, st.UserTickers, stages)
	handlers := append([]callbacks.Handler{newLogHandler(st.RunID)}, o.handlers...)
	out, err := runnable.Invoke(ctx, st, compose.WithCallbacks(handlers...))
	if err != nil {
		if r.err != nil {
			return nil, r.err
		}
		return nil, err
	}

	if req.Full() {
		if err := o.publish(ctx, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// plan picks the stages to run and the state to start from.
func (o *Orchestrator) plan(date string, req Request) ([]Stage, *State, error) {
	if req.Only == nil {
		cutoff := min(max(req.Cutoff, StageOpening), StageClosing)
		return Stages[:cutoff+1], newState(uuid.NewString(), date, req.Tickers), nil
	}

	s := *req.Only
	if s < StageOpening || s > StageClosing {
		return nil, nil, fmt.Errorf("unknown stage %d", int(s))
	}
	if s == StageOpening {
		return []Stage{s}, newState(uuid.NewString(), date, req.Tickers), nil
	}
	st, err := o.LoadStage(Stages[s-1])
	if err != nil {
		return nil, nil, err
	}
	if st.Date != date {
		return nil, nil, fmt.Errorf("%w: %s artifact is for %s, not %s", ErrMissingArtifact, Stages[s-1].Name(), st.Date, date)
	}
	if len(req.Tickers) > 0 {
		st.UserTickers = append([]string{}, req.Tickers...)
	}
	st.RunID = uuid.NewString()
	for _, later := range Stages[s:] {
		st.setChapter(later, script.EmptyChapter(later.Chapter()))
		st.Status[later.Name()] = consts.State_Pending
	}
	return []Stage{s}, st, nil
}

// LoadStage reads the state a stage left in its temp artifact.
func (o *Orchestrator) LoadStage(s Stage) (*State, error) {
	path := o.cfg.StageArtifactPath(s.Name())
	var a StageArtifact
	if err := script.ReadJSON(path, &a); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return nil, err
	}
	if a.State == nil {
		return nil, fmt.Errorf("%w: %s has no state", ErrMissingArtifact, path)
	}
	st := a.State
	if st.Status == nil {
		st.Status = map[string]string{}
	}
	if st.UserTickers == nil {
		st.UserTickers = []string{}
	}
	if st.Themes == nil {
		st.Themes = []script.Theme{}
	}
	st.Scripts = script.NormalizeTurns(st.Scripts)
	return st, nil
}

// node wraps a stage as a chain lambda: run it, merge its delta and
// write the temp artifact.
func (r *run) node(s Stage) func(ctx context.Context, st *State) (*State, error) {
	return func(ctx context.Context, st *State) (*State, error) {
		begin := time.Now()
		st.Status[s.Name()] = consts.State_Running
		delta, err := r.stage(s)(ctx, st)
		metrics.StageDuration.WithLabelValues(s.Name(), metrics.Outcome(err)).Observe(time.Since(begin).Seconds())
		if err != nil {
			st.Status[s.Name()] = consts.State_Failed
			r.err = fmt.Errorf("%w: %s: %w", ErrStageFailed, s.Name(), err)
			return nil, r.err
		}

		applied := apply(st, s, delta)
		st.Status[s.Name()] = consts.State_Done
		artifact := StageArtifact{Stage: s.Name(), State: st, Applied: applied, Extra: delta.Extra}
		if err := script.WriteJSON(r.o.cfg.StageArtifactPath(s.Name()), artifact); err != nil {
			r.err = fmt.Errorf("%w: %s: write artifact: %w", ErrStageFailed, s.Name(), err)
			return nil, r.err
		}
		return st, nil
	}
}

// apply merges a stage delta into the state and records its chapter.
// The stage chapter spans the turns appended after the previous length.
func apply(st *State, s Stage, d *Delta) []script.Edit {
	if d == nil {
		d = &Delta{}
	}
	if d.Nutshell != "" {
		st.Nutshell = d.Nutshell
	}
	if d.Themes != nil {
		st.Themes = d.Themes
	}
	base := len(st.Scripts)
	merged := script.Concat(st.Scripts, d.Turns)
	merged, applied := script.ApplyEdits(merged, d.Edits)
	st.Scripts = merged
	st.setChapter(s, script.Span(s.Chapter(), base, len(merged)-base))
	return applied
}

// publish writes the final artifact and upserts the index row.
func (o *Orchestrator) publish(ctx context.Context, st *State) error {
	a := st.Artifact()
	path := o.cfg.ScriptPath(st.Date)
	if err := a.Save(path); err != nil {
		return fmt.Errorf("save script: %w", err)
	}
	log.Printf("[Pipeline] run %s: script saved to %s (%d turns)", st.RunID, path, len(a.Scripts))
	if o.index == nil {
		return nil
	}
	if err := o.index.UpsertScript(ctx, a); err != nil {
		return fmt.Errorf("index upsert: %w", err)
	}
	return nil
}
