package llm

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/dyike/BriefCast/config"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/utils"
)

// NewLimiter builds the limiter shared by every model of a run. A
// non-positive rate disables limiting.
func NewLimiter(perSec float64, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(perSec), burst)
}

// Throttled wraps a chat model with the shared rate limiter, a per-call
// timeout and bounded retries.
type Throttled struct {
	inner   model.ToolCallingChatModel
	limiter *rate.Limiter
	profile string
	timeout time.Duration
	retry   *utils.RetryConfig
}

func Throttle(inner model.ToolCallingChatModel, limiter *rate.Limiter, p config.LLMProfile) *Throttled {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Throttled{
		inner:   inner,
		limiter: limiter,
		profile: p.Name,
		timeout: p.Timeout,
		retry: &utils.RetryConfig{
			MaxRetries: p.MaxRetries,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
			Multiplier: 2,
		},
	}
}

func (t *Throttled) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	var out *schema.Message
	err := utils.WithRetry(ctx, t.retry, func(ctx context.Context) error {
		if err := t.limiter.Wait(ctx); err != nil {
			return utils.Permanent(err)
		}
		callCtx, cancel := t.callContext(ctx)
		defer cancel()
		msg, err := t.inner.Generate(callCtx, input, opts...)
		if err != nil {
			log.Printf("[LLM] %s call failed: %v", t.profile, err)
			return err
		}
		out = msg
		return nil
	})
	metrics.LLMCalls.WithLabelValues(t.profile, metrics.Outcome(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("llm %s: %w", t.profile, err)
	}
	return out, nil
}

// Stream is rate limited but not retried; a broken stream cannot be replayed.
func (t *Throttled) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	sr, err := t.inner.Stream(ctx, input, opts...)
	metrics.LLMCalls.WithLabelValues(t.profile, metrics.Outcome(err)).Inc()
	return sr, err
}

func (t *Throttled) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := t.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	cp := *t
	cp.inner = bound
	return &cp, nil
}

func (t *Throttled) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// Factory builds throttled models for named profiles, sharing one limiter.
type Factory struct {
	cfg     *config.Config
	limiter *rate.Limiter
	build   func(ctx context.Context, p config.LLMProfile) (model.ToolCallingChatModel, error)
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		cfg:     cfg,
		limiter: NewLimiter(cfg.LLMRatePerSec, cfg.LLMBurst),
		build:   NewChatModel,
	}
}

func (f *Factory) Model(ctx context.Context, prefix string) (model.ToolCallingChatModel, error) {
	p := f.cfg.LLMProfile(prefix)
	inner, err := f.build(ctx, p)
	if err != nil {
		return nil, err
	}
	log.Printf("[LLM] profile %s -> %s/%s", p.Name, p.Provider, p.Model)
	return Throttle(inner, f.limiter, p), nil
}

// ModelSource hands out a chat model per profile prefix.
type ModelSource interface {
	Model(ctx context.Context, prefix string) (model.ToolCallingChatModel, error)
}

var _ ModelSource = (*Factory)(nil)
