package requestid

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	g := New()
	assert.Equal(t, 1, g.Next())
	assert.Equal(t, 2, g.Next())
	assert.Equal(t, 3, g.Next())
}

func TestNextWraps(t *testing.T) {
	g := New()
	g.last = math.MaxInt - 1
	assert.Equal(t, math.MaxInt, g.Next())
	assert.Equal(t, 1, g.Next())
	assert.Equal(t, 2, g.Next())
}

func TestNextConcurrent(t *testing.T) {
	g := New()

	const workers, perWorker = 8, 500
	ids := make(chan int, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int]struct{}{}
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}
