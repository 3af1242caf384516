// Package parallel splits pure element-wise loops across CPU cores. Every
// helper joins before returning, so callers stay synchronous.
package parallel

import (
	"runtime"
	"sync"
)

// MaxWorkers caps the goroutines started by Parallelize. Zero means
// runtime.NumCPU().
var MaxWorkers = 0

func workers(items int) int {
	n := MaxWorkers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	return n
}

// Parallelize runs fn over contiguous [start, end) chunks of [0, items), one
// chunk per worker, and waits for all of them. fn must only touch indices in
// its own chunk.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	n := workers(items)
	if n == 1 {
		fn(0, items)
		return
	}
	chunk := (items + n - 1) / n

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunk {
		end := min(start+chunk, items)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items is at or below
// threshold and in parallel otherwise.
func ParallelizeWithThreshold(items, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
