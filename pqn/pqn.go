// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"fmt"
	"math"

	"github.com/curioloop/pmopt/kernel"
)

// HistorySlots mirrors MwPGP's fixed sampled-history capacity (§4.7,
// §6 entry point 6 sharing MwPGP's shape).
const HistorySlots = 21

// Result is the outcome of one PQN solve (§6 entry point 6).
type Result struct {
	ObjHistory [HistorySlots]float64
	R2History  [HistorySlots]float64
	MHistory   [HistorySlots][]float64
	X          []float64
	Iters      int
	Converged  bool
}

// Params collects the hyperparameters of one PQN solve (§6 entry point 6).
type Params struct {
	Nu                  float64
	Epsilon             float64
	RegL0, RegL1        float64 // reported but do not enter the gradient (§6)
	RegL2               float64
	MaxIter             int
	NuPQN               float64 // outer Armijo sufficient-decrease parameter
	SPG                 SPGParams
	Logger              *kernel.Logger
}

// Solve runs PQN (§4.6) on the same objective MwPGP solves. A is the
// ngrid×3N row-major forward operator, mirroring MwPGP's entry point.
func Solve(a kernel.DenseRowMajor, b, atb, proxy, m0, m []float64, p Params) (Result, error) {
	n := len(m)
	n3 := 3 * n
	if a.Rows != len(b) {
		return Result{}, fmt.Errorf("pqn: A has %d rows but b has length %d: %w", a.Rows, len(b), kernel.ErrShapeMismatch)
	}
	if a.Cols != n3 {
		return Result{}, fmt.Errorf("pqn: A has %d cols but 3N=%d: %w", a.Cols, n3, kernel.ErrShapeMismatch)
	}
	if len(atb) != n3 || len(proxy) != n3 || len(m0) != n3 {
		return Result{}, fmt.Errorf("pqn: ATb/proxy/m0 must have length 3N=%d: %w", n3, kernel.ErrShapeMismatch)
	}
	for i, mi := range m {
		if mi <= 0 {
			return Result{}, fmt.Errorf("pqn: m_maxima[%d]=%g must be positive: %w", i, mi, kernel.ErrInvalidMaximum)
		}
	}
	if p.MaxIter <= 0 {
		return Result{}, fmt.Errorf("pqn: max_iter must be positive: %w", kernel.ErrShapeMismatch)
	}

	obj := NewObjective(a, b, atb, proxy, p.Nu, p.RegL2)
	x := append([]float64(nil), m0...)
	g := make([]float64, n3)
	obj.Gradient(x, g)

	mem := NewMemory(1.0, p.SPG.Window)
	res := Result{X: x}
	schedule := kernel.NewSampleSchedule(p.MaxIter, HistorySlots)
	logVerboseHeader(p.Logger)

	for k := 0; k < p.MaxIter; k++ {
		var d []float64
		if k == 0 {
			gg := dot(g, g)
			if gg == 0 {
				d = make([]float64, n3)
			} else {
				d = scaleVec(g, -1/gg) // §4.6 "d_0 = -g_0 / ‖g_0‖²"
			}
		} else {
			xStar := RunSPG(obj, x, m, mem, p.SPG)
			d = diff(xStar, x)
		}

		f0 := obj.Value(x)
		dg := dot(g, d)
		phi := func(alpha float64) float64 {
			return obj.Value(addScaled(x, d, alpha))
		}
		cond := func(alpha, phiAlpha float64) bool {
			return phiAlpha <= f0+alpha*p.NuPQN*dg
		}
		alpha, _, _ := Backtrack(phi, f0, dg, 1.0, cond, 30)

		x = addScaled(x, d, alpha)
		obj.Gradient(x, g)

		if schedule.ShouldSample(k) {
			slot := schedule.NextSlot()
			r2 := sample(a, b, x, proxy, m, p, &res, slot)
			logIteration(p.Logger, k, r2)
		}

		res.Iters = k + 1
		if projectedResidualNorm(x, g, m) < p.Epsilon {
			res.Converged = true
			break
		}
	}

	res.X = x
	return res, nil
}

// sample writes the current iterate and objective terms into the history
// slot, mirroring MwPGP's reporting bookkeeping (§6: λ0/λ1 "are reported in
// the objective history but do not enter the gradient").
func sample(a kernel.DenseRowMajor, b, x, proxy, m []float64, p Params, res *Result, slot int) float64 {
	n := len(m)
	var n2, l2, l1, l0 float64
	const l0Tol = 1e-20
	for i := 0; i < n; i++ {
		for d := 0; d < 3; d++ {
			xv := x[3*i+d]
			wv := proxy[3*i+d]
			n2 += (xv - wv) * (xv - wv)
			l2 += xv * xv
			l1 += math.Abs(xv)
			if math.Abs(wv) < l0Tol {
				l0++
			}
		}
	}

	ax := make([]float64, a.Rows)
	kernel.MatVec(a, x, ax)
	var r2 float64
	for i := range ax {
		d := ax[i] - b[i]
		r2 += d * d
	}
	r2 *= 0.5
	n2 = 0.5 * n2 / p.Nu
	l2 *= p.RegL2
	l1 *= p.RegL1
	l0 *= p.RegL0

	res.R2History[slot] = r2
	res.ObjHistory[slot] = r2 + n2 + l2 + l1 + l0
	res.MHistory[slot] = append([]float64(nil), x...)
	return r2
}

func logVerboseHeader(l *kernel.Logger) {
	l.Header("Iteration ... |Am - b|^2 ... |m-w|^2/v ...   a|m|^2 ...  b|m-1|^2 ...   c|m|_1 ...   d|m|_0 ... Total Error:")
}

func logIteration(l *kernel.Logger, k int, r2 float64) {
	l.Iteration("%d ... %.2e\n", k, r2)
}
