// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"

	"github.com/curioloop/pmopt/kernel"
)

// disabledR2 marks a candidate's R² as worse than any real value (§6 numeric
// constants: "disabled-slot sentinel 10^50").
const disabledR2 = 1.0e50

// Result is the outcome of one GPMO solve (§6 entry points 2-5).
type Result struct {
	ObjHistory []float64   // length nhistory+1
	R2History  []float64   // length nhistory+1; equal to ObjHistory (no sparsity terms at this stage)
	MHistory   [][]float64 // per sampled slot, the flattened N×3 iterate
	X          []float64   // final flattened N×3 iterate
	Iters      int
	// WyrmsRemoved records, per backtrack pass, how many dipole pairs that
	// pass erased; nil for the non-backtracking variants.
	WyrmsRemoved []int
	// Mu holds, per sampled slot, the mutual-coherence report: the largest
	// normalized pairwise coherence among still-available columns; nil for
	// the non-MC variants (§4.4.2, §9 "advisory report").
	Mu []float64
}

// state is the availability mask, running residual, and current iterate
// shared by every GPMO variant (§4.4 "All GPMO variants share").
type state struct {
	a    kernel.DenseColMajor // N columns = 3N, ngrid rows
	n    int                  // number of dipoles
	x    []float64            // flattened N×3 iterate
	r    []float64            // running residual A·x - b, length ngrid
	mask []bool               // flattened N×3 availability (Γ̄); true = selectable

	// single restricts candidate axes to single%3 when single >= 0 (§4.4
	// "single_direction").
	single int
}

func newState(a kernel.DenseColMajor, b []float64, n, single int) (*state, error) {
	if a.Cols != 3*n {
		return nil, fmt.Errorf("gpmo: A has %d columns but 3N=%d: %w", a.Cols, 3*n, kernel.ErrShapeMismatch)
	}
	if a.Rows != len(b) {
		return nil, fmt.Errorf("gpmo: A has %d rows but b has length %d: %w", a.Rows, len(b), kernel.ErrShapeMismatch)
	}
	s := &state{
		a:      a,
		n:      n,
		x:      make([]float64, 3*n),
		r:      append([]float64(nil), b...),
		mask:   make([]bool, 3*n),
		single: single,
	}
	for i := range s.r {
		s.r[i] = -s.r[i] // r = A·0 - b = -b
	}
	for i := range s.mask {
		s.mask[i] = true
	}
	return s, nil
}

// eachCandidateColumn calls fn(c) for every column index c = 3i+d that
// single_direction permits (§4.4 "single_direction ... restrict selection
// to columns c with c mod 3 = single_direction"). It does not consult the
// availability mask; callers check s.mask[c] themselves.
func (s *state) eachCandidateColumn(fn func(c int)) {
	for c := 0; c < 3*s.n; c++ {
		if s.single >= 0 && c%3 != s.single {
			continue
		}
		fn(c)
	}
}

// place commits dipole i's axis d at the given sign: writes x, disables all
// three components of dipole i, and updates the running residual (§4.4
// "Set x_{i,d} = sign; update r; mark all three components ... unavailable").
func (s *state) place(i, d int, sign float64) {
	s.x[3*i+d] = sign
	s.disableDipole(i)
	kernel.UpdateResidual(s.a, 3*i+d, sign, s.r)
}

// disableDipole marks all three components of dipole i unavailable.
func (s *state) disableDipole(i int) {
	s.mask[3*i] = false
	s.mask[3*i+1] = false
	s.mask[3*i+2] = false
}

// enableDipole restores all three components of dipole i to available, used
// by the backtracking wyrm pass (§4.4.4 "re-enable all six mask slots for
// both dipoles").
func (s *state) enableDipole(i int) {
	s.mask[3*i] = true
	s.mask[3*i+1] = true
	s.mask[3*i+2] = true
}

// residualObjective returns ½‖r‖² via a parallel sum reduction (§4.4
// "each snapshot stores R² = ½‖r‖²").
func (s *state) residualObjective() float64 {
	sum, _ := kernel.ParallelReduce(len(s.r), func(start, end int) kernel.Reduction {
		var acc float64
		for i := start; i < end; i++ {
			acc += s.r[i] * s.r[i]
		}
		return kernel.Reduction{Sum: acc}
	})
	return 0.5 * sum
}

// sample writes the current iterate and R² into the given history slot,
// the bookkeeping shared by every GPMO variant (§4.7).
func sample(s *state, res *Result, slot int) float64 {
	r2 := s.residualObjective()
	res.R2History[slot] = r2
	res.ObjHistory[slot] = r2
	res.MHistory[slot] = append([]float64(nil), s.x...)
	return r2
}

// newHistory allocates the fixed-capacity history buffers for nhistory+1
// slots (§4.7: "GPMO: nhistory+1").
func newHistory(nhistory int) Result {
	slots := nhistory + 1
	return Result{
		ObjHistory: make([]float64, slots),
		R2History:  make([]float64, slots),
		MHistory:   make([][]float64, slots),
	}
}

// bestSign evaluates R²(r+col) and R²(r-col) for a candidate column
// sequentially (the column itself has length ngrid, and is one of the 3N or
// 6N candidates the outer scan already parallelizes over) and returns the
// lower of the two along with its sign (§4.4.1 "Sign is − if the winner is
// from the R2⁻ bank else +").
func bestSign(r, col []float64) (r2, sign float64) {
	var sumPlus, sumMinus float64
	for i := range r {
		p := r[i] + col[i]
		m := r[i] - col[i]
		sumPlus += p * p
		sumMinus += m * m
	}
	if sumMinus < sumPlus {
		return 0.5 * sumMinus, -1
	}
	return 0.5 * sumPlus, 1
}
