package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/BriefCast/internal/metrics"
)

func TestRunKeepsInputOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	got := Run(context.Background(), items, func(ctx context.Context, idx int, n int) (int, error) {
		// later items finish first
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * 10, nil
	})
	assert.Equal(t, []int{50, 10, 40, 20, 30}, got)
}

func TestRunIsolatesFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.BranchFailures.WithLabelValues("isolation"))

	items := []string{"a", "boom", "panic", "d"}
	out := RunOutcomes(context.Background(), items, func(ctx context.Context, idx int, s string) ([]string, error) {
		switch s {
		case "boom":
			return []string{"partial"}, errors.New("branch failed")
		case "panic":
			panic("kaboom")
		}
		return []string{s, s}, nil
	}, WithGroup("isolation"))

	require.Len(t, out, 4)
	assert.Equal(t, []string{"a", "a"}, out[0].Value)
	assert.Error(t, out[1].Err)
	assert.Nil(t, out[1].Value, "failed branch yields the empty result")
	assert.Error(t, out[2].Err)
	assert.Nil(t, out[2].Value)
	assert.Equal(t, []string{"d", "d"}, out[3].Value)
	assert.Equal(t, 2, Failed(out))

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.BranchFailures.WithLabelValues("isolation")))
}

func TestRunConcurrencyCap(t *testing.T) {
	var running, peak int32
	items := make([]int, 12)
	Run(context.Background(), items, func(ctx context.Context, idx int, _ int) (struct{}, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return struct{}{}, nil
	}, WithConcurrency(3))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunEmpty(t *testing.T) {
	got := Run(context.Background(), []int(nil), func(ctx context.Context, idx int, n int) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	assert.Empty(t, got)
}
