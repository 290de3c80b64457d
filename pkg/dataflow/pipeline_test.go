package dataflow_test

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/public_salaries/pkg/dataflow"
)

// items streams vs in order.
func items[T any](ctx context.Context, vs ...T) dataflow.Stream[T] {
	s, _ := dataflow.Generate(ctx, func(emit func(T) bool) error {
		for _, v := range vs {
			if !emit(v) {
				return nil
			}
		}
		return nil
	})
	return s
}

type row struct {
	Agency string
	Name   string
}

func TestMapWithRetryAndWorkers(t *testing.T) {
	ctx := context.Background()

	source := items(ctx, "Fire,Alice", "Police,Bob", "retry,Charlie", "broken")

	var dropped int32
	parsed := dataflow.Map(ctx, source, func(s string) (row, error) {
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return row{}, fmt.Errorf("invalid format %q", s)
		}
		return row{Agency: parts[0], Name: parts[1]}, nil
	}, dataflow.WithWorkers(2), dataflow.WithErrorHandler(func(error) bool {
		atomic.AddInt32(&dropped, 1)
		return true
	}))

	var attempts int32
	saved := dataflow.Map(ctx, parsed, func(r row) (row, error) {
		if r.Agency == "retry" && atomic.AddInt32(&attempts, 1) < 3 {
			return row{}, errors.New("transient error")
		}
		return r, nil
	}, dataflow.WithRetry(3, dataflow.ConstantBackoff(time.Millisecond)))

	var mu sync.Mutex
	var names []string
	err := dataflow.ForEach(ctx, saved, func(r row) error {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, r.Name)
		return nil
	})
	require.NoError(t, err)

	sort.Strings(names)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, names)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dropped))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestForEachReportsFirstUnhandledError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := dataflow.ForEach(ctx, items(ctx, 1, 2, 3), func(n int) error {
		if n == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestFanIn(t *testing.T) {
	ctx := context.Background()

	merged := dataflow.FanIn(ctx, items(ctx, 1), items(ctx, 2))

	sum := 0
	require.NoError(t, dataflow.ForEach(ctx, merged, func(n int) error {
		sum += n
		return nil
	}))
	assert.Equal(t, 3, sum)
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	genErr := errors.New("source exhausted badly")

	stream, errc := dataflow.Generate(ctx, func(emit func(int) bool) error {
		for i := 1; i <= 5; i++ {
			if !emit(i) {
				return nil
			}
		}
		return genErr
	})

	var got []int
	require.NoError(t, dataflow.ForEach(ctx, stream, func(n int) error {
		got = append(got, n)
		return nil
	}))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.ErrorIs(t, <-errc, genErr)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dataflow.ForEach(ctx, items(ctx, 1, 2, 3), func(int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
