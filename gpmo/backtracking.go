// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"

	"github.com/curioloop/pmopt/kernel"
)

// BacktrackingParams collects the hyperparameters of one GPMO_backtracking
// solve (§6 entry point 5).
type BacktrackingParams struct {
	K               int
	NHistory        int
	Backtracking    int // run a wyrm pass every this-many iterations
	SingleDirection int
	Nadjacent       int // bounds how many nearest neighbors pruneWyrms scans for a partner
	Logger          *kernel.Logger
}

// Backtracking runs GPMO_baseline's exhaustive scan, additionally pruning
// adjacent cancelling dipole pairs ("wyrms") every Backtracking iterations
// (§4.4.4).
func Backtracking(a kernel.DenseColMajor, b []float64, n int, xyz []float64, p BacktrackingParams) (Result, error) {
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
	interval := p.Backtracking
	if interval <= 0 {
		interval = k + 1 // disables the wyrm pass entirely
	}

	// sign tracks the placed sign per dipole, 0 when not placed or erased;
	// axis tracks which component was placed, -1 when not placed.
	sign := make([]float64, n)
	axis := make([]int, n)
	for i := range axis {
		axis[i] = -1
	}

	res := newHistory(p.NHistory)
	schedule := kernel.NewSampleSchedule(k, p.NHistory+1)
	res.Iters = k
	var wyrmsTotal int

	for it := 0; it < k; it++ {
		i, d, sg, ok := baselinePick(s)
		if !ok {
			res.Iters = it
			break
		}
		s.place(i, d, sg)
		sign[i] = sg
		axis[i] = d

		if interval > 0 && (it+1)%interval == 0 {
			removed := pruneWyrms(s, conn, sign, axis, p.Nadjacent)
			res.WyrmsRemoved = append(res.WyrmsRemoved, removed)
			wyrmsTotal += removed
		}

		if schedule.ShouldSample(it) {
			slot := schedule.NextSlot()
			r2 := sample(s, &res, slot)
			p.Logger.Iteration("%d ... %.6e ... wyrms=%d\n", it, r2, wyrmsTotal)
		}
	}

	res.X = s.x
	return res, nil
}

// pruneWyrms scans every placed dipole for a same-axis, opposite-sign
// partner among its next nadjacent nearest neighbors (§4.4.4's `for (int jj
// = 0; jj < Nadjacent; ++jj)` bound) and erases both: set their x components
// back to zero, re-enable their mask rows, subtract their combined
// contribution from the residual, and clear their sign/axis placeholders so
// neither can be matched again within the same pass.
func pruneWyrms(s *state, conn Connectivity, sign []float64, axis []int, nadjacent int) int {
	removed := 0
	for j := 0; j < s.n; j++ {
		if axis[j] < 0 || sign[j] == 0 {
			continue
		}
		dj := axis[j]
		partner := -1
		row := conn.Neighbors(j)[1:]
		if len(row) > nadjacent {
			row = row[:nadjacent]
		}
		for _, nb := range row {
			i := int(nb)
			if axis[i] == dj && sign[i] == -sign[j] {
				partner = i
				break
			}
		}
		if partner < 0 {
			continue
		}

		eraseDipole(s, j, dj, sign[j])
		eraseDipole(s, partner, dj, sign[partner])
		sign[j], sign[partner] = 0, 0
		axis[j], axis[partner] = -1, -1
		removed++
	}
	return removed
}

func eraseDipole(s *state, i, d int, sg float64) {
	s.x[3*i+d] = 0
	s.enableDipole(i)
	kernel.UpdateResidual(s.a, 3*i+d, -sg, s.r)
}
