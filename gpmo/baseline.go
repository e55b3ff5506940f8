// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"

	"github.com/curioloop/pmopt/kernel"
)

// BaselineParams collects the hyperparameters of one GPMO_baseline solve
// (§6 entry point 2).
type BaselineParams struct {
	K               int // number of greedy iterations
	NHistory        int
	SingleDirection int // -1 for unrestricted, else restrict to axis d = c%3
	Logger          *kernel.Logger
}

// Baseline runs the exhaustive 6N-candidate GPMO scan (§4.4.1). a is laid
// out column-major (3N columns of length ngrid), the layout entry point 2
// requires so each candidate column read is a contiguous stride.
func Baseline(a kernel.DenseColMajor, b []float64, n int, p BaselineParams) (Result, error) {
	if p.K <= 0 {
		return Result{}, fmt.Errorf("gpmo: K must be positive: %w", kernel.ErrShapeMismatch)
	}
	s, err := newState(a, b, n, p.SingleDirection)
	if err != nil {
		return Result{}, err
	}

	k := p.K
	if max := 3 * n; k > max {
		k = max // §7 "No remaining available slots ... stop early"
	}

	res := newHistory(p.NHistory)
	schedule := kernel.NewSampleSchedule(k, p.NHistory+1)
	res.Iters = k

	for it := 0; it < k; it++ {
		i, d, sign, ok := baselinePick(s)
		if !ok {
			res.Iters = it
			break
		}
		s.place(i, d, sign)

		if schedule.ShouldSample(it) {
			slot := schedule.NextSlot()
			r2 := sample(s, &res, slot)
			p.Logger.Iteration("%d ... %.6e\n", it, r2)
		}
	}

	res.X = s.x
	return res, nil
}

// baselinePick scans every available column and its opposite sign bank
// (6N candidates total) and returns the argmin (§4.4.1). Unavailable
// dipoles are skipped rather than scored with the sentinel, which is
// equivalent for argmin purposes and avoids scoring fully-disabled rows.
func baselinePick(s *state) (i, d int, sign float64, ok bool) {
	type candidate struct {
		i, d    int
		r2      float64
		sign    float64
		present bool
	}
	cands := make([]candidate, 0, 3*s.n)
	s.eachCandidateColumn(func(c int) {
		di, dd := c/3, c%3
		if !s.mask[c] {
			return
		}
		r2, sg := bestSign(s.r, s.a.Column(c))
		cands = append(cands, candidate{i: di, d: dd, r2: r2, sign: sg, present: true})
	})
	if len(cands) == 0 {
		return 0, 0, 0, false
	}

	idx, _, found := kernel.ParallelArgMin(len(cands), func(start, end int) kernel.IndexedExtreme {
		best := kernel.IndexedExtreme{Value: disabledR2}
		for j := start; j < end; j++ {
			if !best.Found || cands[j].r2 < best.Value {
				best = kernel.IndexedExtreme{Index: j, Value: cands[j].r2, Found: true}
			}
		}
		return best
	})
	if !found {
		return 0, 0, 0, false
	}
	win := cands[idx]
	return win.i, win.d, win.sign, true
}
