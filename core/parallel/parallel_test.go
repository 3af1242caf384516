package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)

	ParallelizeWithThreshold(0, 100, func(start, end int) {
		t.Fatal("fn must not run for zero items")
	})
}

func TestMaxWorkers(t *testing.T) {
	MaxWorkers = 2
	defer func() { MaxWorkers = 0 }()

	var chunks int32
	Parallelize(10, func(start, end int) {
		atomic.AddInt32(&chunks, 1)
	})
	assert.Equal(t, int32(2), chunks)
}
