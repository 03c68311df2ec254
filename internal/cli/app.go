package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/cache"
	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/debug"
	"github.com/dyike/BriefCast/internal/llm"
	"github.com/dyike/BriefCast/internal/pipeline"
	"github.com/dyike/BriefCast/internal/storage"
)

// app holds the shared dependencies of one command invocation.
type app struct {
	cfg     *config.Config
	cache   cache.Store
	prices  dataflows.Provider
	models  *llm.Factory
	index   *storage.Store
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, withIndex bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, models: llm.NewFactory(cfg)}

	store, closeCache := cache.Open(ctx, cfg)
	a.cache = store
	a.closers = append(a.closers, closeCache)

	prices, err := dataflows.NewProvider(cfg, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("price provider: %w", err)
	}
	a.prices = prices

	if withIndex {
		idx, err := storage.Open(ctx, cfg.IndexDBDriver, cfg.IndexDBDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("podcast index: %w", err)
		}
		a.index = idx
		a.closers = append(a.closers, idx.Close)
	}

	if _, err := debug.Init(ctx, cfg); err != nil {
		log.Printf("[CLI] %v", err)
	}
	return a, nil
}

func (a *app) orchestrator() *pipeline.Orchestrator {
	var opts []pipeline.Option
	if a.index != nil {
		opts = append(opts, pipeline.WithIndex(a.index))
	}
	return pipeline.New(a.cfg, a.models, a.prices, opts...)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("[CLI] close: %v", err)
		}
	}
}
