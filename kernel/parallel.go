// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"math"
	"runtime"
	"sync"
)

// MinParallelWork is the smallest index-space size worth forking goroutines
// for; below this, ParallelFor runs sequentially on the calling goroutine.
const MinParallelWork = 256

// ParallelFor splits the index range [0, n) into contiguous, disjoint chunks
// and runs body on each chunk in its own goroutine, one chunk per available
// core. body must write only to indices in [start, end) of any shared output
// slice; ParallelFor blocks until every chunk has completed.
//
// This mirrors the row-split/sync.WaitGroup fan-out pattern used for
// row-parallel dense matrix work: the output ranges are disjoint by
// construction, so no locking or atomics are needed (§5 Shared resources).
func ParallelFor(n int, body func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if n < MinParallelWork || workers == 1 {
		body(0, n)
		return
	}
	if workers > n {
		workers = n
	}

	chunk := n / workers
	remainder := n % workers

	var wg sync.WaitGroup
	wg.Add(workers)
	start := 0
	for w := 0; w < workers; w++ {
		end := start + chunk
		if w < remainder {
			end++
		}
		go func(start, end int) {
			defer wg.Done()
			body(start, end)
		}(start, end)
		start = end
	}
	wg.Wait()
}

// Reduction holds one goroutine's partial accumulation for ParallelReduce.
type Reduction struct {
	Sum float64
	Max float64
}

// ParallelReduce runs a sum+max reduction over [0, n) in parallel, combining
// per-chunk partials with a simple sequential fold (negligible cost relative
// to the per-element work it follows).
func ParallelReduce(n int, body func(start, end int) Reduction) (sum, max float64) {
	if n <= 0 {
		return 0, 0
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if n < MinParallelWork || workers == 1 {
		r := body(0, n)
		return r.Sum, r.Max
	}
	if workers > n {
		workers = n
	}

	chunk := n / workers
	remainder := n % workers
	partials := make([]Reduction, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	start := 0
	for w := 0; w < workers; w++ {
		end := start + chunk
		if w < remainder {
			end++
		}
		go func(w, start, end int) {
			defer wg.Done()
			partials[w] = body(start, end)
		}(w, start, end)
		start = end
	}
	wg.Wait()

	max = negInf
	for _, p := range partials {
		sum += p.Sum
		if p.Max > max {
			max = p.Max
		}
	}
	return sum, max
}

var negInf = math.Inf(-1) // neutral element for the max-reduction above

// IndexedExtreme holds one goroutine's best (index, value) pair for
// ParallelArgMin/ParallelArgMax.
type IndexedExtreme struct {
	Index int
	Value float64
	Found bool
}

// ParallelArgMin runs body over disjoint chunks of [0, n), each chunk
// returning its locally best (lowest-Value) candidate, then folds the
// per-chunk winners sequentially. Ties resolve to the lowest index, matching
// a stable left-to-right scan (§4.4.1 "Ties: the first minimum wins").
func ParallelArgMin(n int, body func(start, end int) IndexedExtreme) (index int, value float64, found bool) {
	return parallelArgExtreme(n, body, func(a, b IndexedExtreme) bool {
		return b.Value < a.Value || (b.Value == a.Value && b.Index < a.Index)
	})
}

// ParallelArgMax is ParallelArgMin with the comparison reversed, used by the
// mutual-coherence candidate scan (§4.4.2 "pick c = argmax ... |u_c|").
func ParallelArgMax(n int, body func(start, end int) IndexedExtreme) (index int, value float64, found bool) {
	return parallelArgExtreme(n, body, func(a, b IndexedExtreme) bool {
		return b.Value > a.Value || (b.Value == a.Value && b.Index < a.Index)
	})
}

func parallelArgExtreme(n int, body func(start, end int) IndexedExtreme, better func(cur, cand IndexedExtreme) bool) (index int, value float64, found bool) {
	if n <= 0 {
		return 0, 0, false
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if n < MinParallelWork || workers == 1 {
		r := body(0, n)
		return r.Index, r.Value, r.Found
	}
	if workers > n {
		workers = n
	}

	chunk := n / workers
	remainder := n % workers
	partials := make([]IndexedExtreme, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	start := 0
	for w := 0; w < workers; w++ {
		end := start + chunk
		if w < remainder {
			end++
		}
		go func(w, start, end int) {
			defer wg.Done()
			partials[w] = body(start, end)
		}(w, start, end)
		start = end
	}
	wg.Wait()

	best := IndexedExtreme{Found: false}
	for _, p := range partials {
		if !p.Found {
			continue
		}
		if !best.Found || better(best, p) {
			best = p
		}
	}
	return best.Index, best.Value, best.Found
}
