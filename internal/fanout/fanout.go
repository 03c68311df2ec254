// Package fanout runs independent branches concurrently and joins their
// results in input order. A failing branch never fails its siblings.
package fanout

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/dyike/BriefCast/internal/metrics"
)

// Outcome is one branch result. Value is the zero value when Err is set.
type Outcome[R any] struct {
	Value R
	Err   error
}

type options struct {
	group       string
	concurrency int
}

type Option func(*options)

// WithGroup names the fan-out in logs and metrics.
func WithGroup(name string) Option {
	return func(o *options) { o.group = name }
}

// WithConcurrency caps how many branches run at once; 0 means no cap.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// RunOutcomes calls fn for every item and returns len(items) outcomes in
// input order. Errors and panics are captured per branch.
func RunOutcomes[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, idx int, item T) (R, error), opts ...Option) []Outcome[R] {
	o := options{group: "fanout"}
	for _, opt := range opts {
		opt(&o)
	}
	out := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return out
	}

	var sem chan struct{}
	if o.concurrency > 0 {
		sem = make(chan struct{}, o.concurrency)
	}
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}: // Acquire
				case <-ctx.Done():
					out[idx].Err = ctx.Err()
					return
				}
				defer func() { <-sem }() // Release
			}
			out[idx] = runBranch(ctx, idx, items[idx], fn)
		}(i)
	}
	wg.Wait()

	for idx, r := range out {
		if r.Err != nil {
			metrics.BranchFailures.WithLabelValues(o.group).Inc()
			log.Printf("[Fanout] %s branch %d/%d failed, using empty result: %v", o.group, idx+1, len(items), r.Err)
		}
	}
	return out
}

// Run is RunOutcomes reduced to values: failed branches yield the zero
// value of R.
func Run[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, idx int, item T) (R, error), opts ...Option) []R {
	outcomes := RunOutcomes(ctx, items, fn, opts...)
	values := make([]R, len(outcomes))
	for i, o := range outcomes {
		values[i] = o.Value
	}
	return values
}

func runBranch[T, R any](ctx context.Context, idx int, item T, fn func(ctx context.Context, idx int, item T) (R, error)) (res Outcome[R]) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Fanout] branch %d panic: %v\n%s", idx, p, debug.Stack())
			res = Outcome[R]{Err: fmt.Errorf("branch %d panicked: %v", idx, p)}
		}
	}()
	v, err := fn(ctx, idx, item)
	if err != nil {
		var zero R
		return Outcome[R]{Value: zero, Err: err}
	}
	return Outcome[R]{Value: v}
}

// Failed counts failed outcomes.
func Failed[R any](outcomes []Outcome[R]) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
