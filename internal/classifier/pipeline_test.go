package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPipelineNeverExceedsLimit(t *testing.T) {
	t.Parallel()

	var (
		active atomic.Int32
		peak   atomic.Int32
		mu     sync.Mutex
		seen   = map[string]int{}
	)
	c := ClassifierFunc(func(_ context.Context, u string) (bool, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		seen[u]++
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		return strings.HasSuffix(u, "-yes"), nil
	})

	var urls []string
	for i := 0; i < 20; i++ {
		suffix := "-no"
		if i%3 == 0 {
			suffix = "-yes"
		}
		urls = append(urls, fmt.Sprintf("img%d%s", i, suffix))
	}

	p := NewPipeline(c, 4, time.Second, zap.NewNop())
	got := p.Run(context.Background(), urls)

	require.LessOrEqual(t, peak.Load(), int32(4))
	require.Len(t, seen, 20)
	for u, n := range seen {
		require.Equal(t, 1, n, "classified %s more than once", u)
	}
	sort.Strings(got)
	require.Equal(t, []string{"img0-yes", "img12-yes", "img15-yes", "img18-yes", "img3-yes", "img6-yes", "img9-yes"}, got)
}

func TestPipelineFailuresAreNegative(t *testing.T) {
	t.Parallel()

	c := ClassifierFunc(func(ctx context.Context, u string) (bool, error) {
		switch u {
		case "error":
			return true, errors.New("boom")
		case "panic":
			panic("classifier exploded")
		case "slow":
			<-ctx.Done()
			return true, ctx.Err()
		}
		return true, nil
	})

	p := NewPipeline(c, 2, 20*time.Millisecond, nil)
	got := p.Run(context.Background(), []string{"error", "ok", "panic", "slow", "ok", ""})
	require.Equal(t, []string{"ok"}, got)
}

func TestPipelineEmptyInput(t *testing.T) {
	t.Parallel()

	p := NewPipeline(ClassifierFunc(func(context.Context, string) (bool, error) {
		t.Fatal("classifier must not be called")
		return false, nil
	}), 0, 0, nil)
	require.Equal(t, DefaultConcurrency, p.Limit())
	require.Empty(t, p.Run(context.Background(), nil))
}

func TestPipelineStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := NewPipeline(ClassifierFunc(func(context.Context, string) (bool, error) {
		calls.Add(1)
		return true, nil
	}), 2, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, p.Run(ctx, []string{"a", "b", "c"}))
	require.Zero(t, calls.Load())
}

func TestPipelineStopsStartingWorkAfterMidRunCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	core, logs := observer.New(zap.WarnLevel)
	p := NewPipeline(ClassifierFunc(func(context.Context, string) (bool, error) {
		calls.Add(1)
		cancel()
		return true, nil
	}), 1, 0, zap.New(core))

	got := p.Run(ctx, []string{"a", "b", "c", "d"})
	require.Equal(t, []string{"a"}, got)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 1, logs.FilterMessage("classification interrupted").Len())
}
