package risk

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapBounded_PreservesOrderForAnyCap(t *testing.T) {
	input := []int{1, 2, 3, 4, 5}
	double := func(_ context.Context, v int) (int, error) {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
		return v * 2, nil
	}

	for limit := 1; limit <= len(input); limit++ {
		out, err := MapBounded(context.Background(), input, limit, double)
		require.NoError(t, err, "limit %d", limit)
		assert.Equal(t, []int{2, 4, 6, 8, 10}, out, "limit %d", limit)
	}
}

func TestMapBounded_RespectsConcurrencyCap(t *testing.T) {
	const limit = 2
	var inFlight, peak int64

	items := make([]int, 20)
	_, err := MapBounded(context.Background(), items, limit, func(_ context.Context, v int) (int, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return v, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int64(limit))
}

func TestMapBounded_EmptyAndOversizedCap(t *testing.T) {
	out, err := MapBounded(context.Background(), nil, 5, func(_ context.Context, v int) (int, error) {
		return v, nil
	})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = MapBounded(context.Background(), []int{7}, 50, func(_ context.Context, v int) (int, error) {
		return v + 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{8}, out)
}

func TestMapBounded_SurfacesFirstError(t *testing.T) {
	boom := errors.New("boom")
	out, err := MapBounded(context.Background(), []int{1, 2, 3}, 2, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v * 10, nil
	})
	assert.ErrorIs(t, err, boom)
	// Other slots are still filled; the failed slot stays zero.
	assert.Equal(t, []int{10, 0, 30}, out)
	assert.Len(t, out, 3)
}

func TestMapBounded_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := MapBounded(ctx, []int{1, 2, 3}, 1, func(ctx context.Context, v int) (int, error) {
		return v, ctx.Err()
	})
	assert.Error(t, err)
}
