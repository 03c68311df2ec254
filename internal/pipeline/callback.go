package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/cloudwego/eino/callbacks"
)

type startKey struct{}

// newLogHandler logs each chain node's start, end and error.
func newLogHandler(runID string) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			log.Printf("[Pipeline] run %s: %s started", runID, info.Name)
			return context.WithValue(ctx, startKey{}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
			turns := -1
			if st, ok := output.(*State); ok && st != nil {
				turns = len(st.Scripts)
			}
			log.Printf("[Pipeline] run %s: %s finished in %s (turns=%d)", runID, info.Name, elapsed(ctx), turns)
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			log.Printf("[Pipeline] run %s: %s failed after %s: %v", runID, info.Name, elapsed(ctx), err)
			return ctx
		}).
		Build()
}

func elapsed(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startKey{}).(time.Time); ok {
		return time.Since(t).Round(time.Millisecond)
	}
	return 0
}
