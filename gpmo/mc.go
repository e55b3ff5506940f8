// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"
	"math"

	"github.com/curioloop/pmopt/kernel"
)

// MCParams collects the hyperparameters of one GPMO_MC solve (§6 entry
// point 3).
type MCParams struct {
	K        int
	NHistory int
	Logger   *kernel.Logger
}

// MC runs the mutual-coherence-guided variant of GPMO (§4.4.2): rather than
// scanning all 6N candidates for the lowest R² every iteration, it tracks
// u = A^Tb - A^TA·(placed columns) and picks the available column with the
// largest |u_c|, only then deciding the sign by the same R²⁺ vs R²⁻
// comparison baseline uses.
func MC(a kernel.DenseColMajor, b, atb []float64, n int, p MCParams) (Result, error) {
	if p.K <= 0 {
		return Result{}, fmt.Errorf("gpmo: K must be positive: %w", kernel.ErrShapeMismatch)
	}
	if len(atb) != 3*n {
		return Result{}, fmt.Errorf("gpmo: ATb must have length 3N=%d: %w", 3*n, kernel.ErrShapeMismatch)
	}
	s, err := newState(a, b, n, -1)
	if err != nil {
		return Result{}, err
	}
	u := append([]float64(nil), atb...)
	bank := coherenceBank(a)

	k := p.K
	if max := 3 * n; k > max {
		k = max
	}

	res := newHistory(p.NHistory)
	res.Mu = make([]float64, len(res.R2History))
	schedule := kernel.NewSampleSchedule(k, p.NHistory+1)
	res.Iters = k

	for it := 0; it < k; it++ {
		c, _, ok := mcPick(s, u)
		if !ok {
			res.Iters = it
			break
		}

		_, sign := bestSign(s.r, s.a.Column(c))
		di, dd := c/3, c%3
		col := s.a.Column(c)
		s.place(di, dd, sign)

		correction := make([]float64, 3*n)
		mcUpdateU(a, col, sign, correction)
		for j := range u {
			u[j] -= correction[j]
		}

		if schedule.ShouldSample(it) {
			slot := schedule.NextSlot()
			r2s := sample(s, &res, slot)
			mu := maxCoherence(s, a, bank)
			res.Mu[slot] = mu
			p.Logger.Iteration("%d ... %.6e ... mu=%.3e\n", it, r2s, mu)
		}
	}

	res.X = s.x
	return res, nil
}

// coherenceBank precomputes the per-column denominator Aij_l2 used by the
// mutual-coherence report (§9 original_source "Aij_l2"): sum_i |A[i,j]|,
// faithfully reproducing the original's choice of an L1, not Euclidean,
// column norm despite the name — that quirk belongs to the precompute,
// which §9 never flagged as buggy, unlike the downstream max-reduction.
func coherenceBank(a kernel.DenseColMajor) []float64 {
	bank := make([]float64, a.Cols)
	kernel.ParallelFor(a.Cols, func(start, end int) {
		for j := start; j < end; j++ {
			col := a.Column(j)
			var sum float64
			for _, v := range col {
				sum += math.Abs(v)
			}
			bank[j] = sum
		}
	})
	return bank
}

// maxCoherence returns a genuine max-reduction of the pairwise normalized
// coherence |<col_i,col_j>| / (bank[i]*bank[j]) over every pair of distinct
// still-available columns (§9 "whether the max-reduction was intended" —
// yes), rather than the original's overwrite of a single scalar with a
// garbled flat-index read.
func maxCoherence(s *state, a kernel.DenseColMajor, bank []float64) float64 {
	n3 := a.Cols
	_, max := kernel.ParallelReduce(n3, func(start, end int) kernel.Reduction {
		var localMax float64
		for i := start; i < end; i++ {
			if !s.mask[i] || bank[i] == 0 {
				continue
			}
			coli := a.Column(i)
			for j := i + 1; j < n3; j++ {
				if !s.mask[j] || bank[j] == 0 {
					continue
				}
				colj := a.Column(j)
				var dot float64
				for r := range coli {
					dot += coli[r] * colj[r]
				}
				coh := math.Abs(dot) / (bank[i] * bank[j])
				if coh > localMax {
					localMax = coh
				}
			}
		}
		return kernel.Reduction{Max: localMax}
	})
	return max
}

// mcPick returns the available column with the largest |u_c| (§4.4.2 "pick
// c = argmax_{c in Γ̄} |u_c|").
func mcPick(s *state, u []float64) (c int, uval float64, ok bool) {
	idx, _, found := kernel.ParallelArgMax(3*s.n, func(start, end int) kernel.IndexedExtreme {
		best := kernel.IndexedExtreme{}
		for j := start; j < end; j++ {
			if s.single >= 0 && j%3 != s.single {
				continue
			}
			if !s.mask[j] {
				continue
			}
			v := math.Abs(u[j])
			if !best.Found || v > best.Value {
				best = kernel.IndexedExtreme{Index: j, Value: v, Found: true}
			}
		}
		return best
	})
	if !found {
		return 0, 0, false
	}
	return idx, u[idx], true
}

// mcUpdateU computes out = A^T A_{:,c} * sign, the coherence-tracker
// correction applied after committing column c (§4.4.2 "u ← u - A^TA_{:,c}").
func mcUpdateU(a kernel.DenseColMajor, col []float64, sign float64, out []float64) {
	kernel.ParallelFor(a.Cols, func(start, end int) {
		for j := start; j < end; j++ {
			other := a.Column(j)
			var sum float64
			for i := 0; i < a.Rows; i++ {
				sum += other[i] * col[i]
			}
			out[j] = sign * sum
		}
	})
}
