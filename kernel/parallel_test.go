// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParallelForCoversEveryIndexExactlyOnce(t *testing.T) {
	const n = 10007 // prime, to stress uneven chunk splits
	hits := make([]int, n)
	ParallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			hits[i]++
		}
	})
	for i, h := range hits {
		require.Equal(t, 1, h, "index %d visited %d times", i, h)
	}
}

func TestParallelForSmallWorkloadRunsSequentially(t *testing.T) {
	var order []int
	ParallelFor(5, func(start, end int) {
		for i := start; i < end; i++ {
			order = append(order, i)
		}
	})
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestParallelReduceSumAndMax(t *testing.T) {
	const n = 5000
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i) - 1000
	}
	sum, max := ParallelReduce(n, func(start, end int) Reduction {
		r := Reduction{Max: negInf}
		for i := start; i < end; i++ {
			r.Sum += vals[i]
			if vals[i] > r.Max {
				r.Max = vals[i]
			}
		}
		return r
	})

	var wantSum, wantMax float64
	wantMax = negInf
	for _, v := range vals {
		wantSum += v
		if v > wantMax {
			wantMax = v
		}
	}
	require.InDelta(t, wantSum, sum, 1e-6)
	require.Equal(t, wantMax, max)
}
