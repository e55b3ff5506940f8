// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"

	"github.com/curioloop/pmopt/kernel"
)

// MultiParams collects the hyperparameters of one GPMO_multi solve (§6
// entry point 4).
type MultiParams struct {
	K               int
	NHistory        int
	SingleDirection int
	Nadjacent       int // number of same-axis available neighbors placed alongside the winner
	Logger          *kernel.Logger
}

// Multi runs the multi-neighbor variant of GPMO (§4.4.3): each candidate
// column is scored by the aggregated residual reduction of placing it at
// dipole i AND its next Nadjacent still-available same-axis neighbors (from
// Connect), and the winning group is committed together.
func Multi(a kernel.DenseColMajor, b []float64, n int, xyz []float64, p MultiParams) (Result, error) {
	if p.K <= 0 {
		return Result{}, fmt.Errorf("gpmo: K must be positive: %w", kernel.ErrShapeMismatch)
	}
	conn, err := BuildConnectivity(xyz, n)
	if err != nil {
		return Result{}, err
	}
	s, err := newState(a, b, n, p.SingleDirection)
	if err != nil {
		return Result{}, err
	}

	k := p.K
	if max := 3 * n; k > max {
		k = max
	}

	res := newHistory(p.NHistory)
	schedule := kernel.NewSampleSchedule(k, p.NHistory+1)
	res.Iters = k

	for it := 0; it < k; it++ {
		group, sign, ok := multiPick(s, conn, p.Nadjacent)
		if !ok {
			res.Iters = it
			break
		}
		for _, dip := range group {
			s.place(dip.i, dip.d, sign)
		}

		if schedule.ShouldSample(it) {
			slot := schedule.NextSlot()
			r2 := sample(s, &res, slot)
			p.Logger.Iteration("%d ... %.6e ... group=%d\n", it, r2, len(group))
		}
	}

	res.X = s.x
	return res, nil
}

type placement struct{ i, d int }

// groupFor returns dipole i's axis-d slot plus its next nadjacent still
// available same-axis neighbors from Connect, skipping row[0] (self is
// already included) and any neighbor whose axis-d slot is unavailable
// (§4.4.3 "its next Nadjacent still-available same-axis neighbors").
func groupFor(s *state, conn Connectivity, i, d, nadjacent int) []placement {
	group := []placement{{i, d}}
	row := conn.Neighbors(i)
	for _, nb := range row[1:] {
		if len(group)-1 >= nadjacent {
			break
		}
		j := int(nb)
		if !s.mask[3*j+d] {
			continue
		}
		group = append(group, placement{j, d})
	}
	return group
}

// groupColumnSum sums the candidate columns of a placement group (§4.4.3
// "sums the column-sum operator over i and its ... neighbors").
func groupColumnSum(a kernel.DenseColMajor, group []placement) []float64 {
	sum := make([]float64, a.Rows)
	for _, p := range group {
		col := a.Column(3*p.i + p.d)
		for i := range sum {
			sum[i] += col[i]
		}
	}
	return sum
}

// multiPick scores every available candidate column by its placement
// group's aggregated column sum and picks the group minimizing R² (§4.4.3).
func multiPick(s *state, conn Connectivity, nadjacent int) (group []placement, sign float64, ok bool) {
	type scored struct {
		group []placement
		r2    float64
		sign  float64
	}
	var cands []scored
	s.eachCandidateColumn(func(c int) {
		i, d := c/3, c%3
		if !s.mask[c] {
			return
		}
		grp := groupFor(s, conn, i, d, nadjacent)
		colSum := groupColumnSum(s.a, grp)
		r2, sg := bestSign(s.r, colSum)
		cands = append(cands, scored{group: grp, r2: r2, sign: sg})
	})
	if len(cands) == 0 {
		return nil, 0, false
	}
	idx, _, found := kernel.ParallelArgMin(len(cands), func(start, end int) kernel.IndexedExtreme {
		best := kernel.IndexedExtreme{}
		for j := start; j < end; j++ {
			if !best.Found || cands[j].r2 < best.Value {
				best = kernel.IndexedExtreme{Index: j, Value: cands[j].r2, Found: true}
			}
		}
		return best
	})
	if !found {
		return nil, 0, false
	}
	win := cands[idx]
	return win.group, win.sign, true
}
