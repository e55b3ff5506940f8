// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mwpgp

import (
	"fmt"
	"math"

	"github.com/curioloop/pmopt/kernel"
)

// HistorySlots is the fixed capacity of the sampled-iterate histories MwPGP
// returns (§4.7: "MwPGP: 21").
const HistorySlots = 21

// Result is the outcome of one MwPGP solve (§6 entry point 1).
type Result struct {
	ObjHistory [HistorySlots]float64
	R2History  [HistorySlots]float64
	// MHistory holds, per sampled slot, the flattened N×3 iterate.
	MHistory [HistorySlots][]float64
	X        []float64 // final flattened N×3 iterate
	Iters    int        // number of outer iterations actually run
	Converged bool       // true if the Σ|Δx| < ε stopping test fired
}

// Params collects the hyperparameters of one MwPGP solve (§6 entry point 1).
type Params struct {
	Alpha             float64 // fixed step size for projected-gradient/mixed steps
	Nu                float64 // relax-and-split weight ν
	Epsilon           float64 // convergence tolerance on Σ|Δx|
	RegL0, RegL1      float64 // reported but do not enter the gradient (§6)
	RegL2             float64 // smooth L2 regularization weight λ₂
	MaxIter           int
	MinFeasibility    float64 // R² floor that triggers early termination
	Logger            *kernel.Logger
}

// Solve runs MwPGP (§4.3). A is the ngrid×3N row-major forward operator, b
// the ngrid target, atb the N×3 A^Tb (flattened length 3N), proxy the N×3
// relax-and-split proxy w (flattened), m0 the N×3 initial iterate
// (flattened), and m the length-N per-dipole maxima M_i.
func Solve(a kernel.DenseRowMajor, b, atb, proxy, m0, m []float64, p Params) (Result, error) {
	n := len(m)
	n3 := 3 * n
	if a.Rows != len(b) {
		return Result{}, fmt.Errorf("mwpgp: A has %d rows but b has length %d: %w", a.Rows, len(b), kernel.ErrShapeMismatch)
	}
	if a.Cols != n3 {
		return Result{}, fmt.Errorf("mwpgp: A has %d cols but 3N=%d: %w", a.Cols, n3, kernel.ErrShapeMismatch)
	}
	if len(atb) != n3 || len(proxy) != n3 || len(m0) != n3 {
		return Result{}, fmt.Errorf("mwpgp: ATb/proxy/m0 must have length 3N=%d: %w", n3, kernel.ErrShapeMismatch)
	}
	for i, mi := range m {
		if mi <= 0 {
			return Result{}, fmt.Errorf("mwpgp: m_maxima[%d]=%g must be positive: %w", i, mi, kernel.ErrInvalidMaximum)
		}
	}
	if p.MaxIter <= 0 {
		return Result{}, fmt.Errorf("mwpgp: max_iter must be positive: %w", kernel.ErrShapeMismatch)
	}

	c := p.RegL2 + 1.0/(2.0*p.Nu)

	x := append([]float64(nil), m0...)
	g := make([]float64, n3)
	scratch := make([]float64, a.Rows)
	atbRS := make([]float64, n3) // ATb + w/ν
	for i := range atbRS {
		atbRS[i] = atb[i] + proxy[i]/p.Nu
	}

	kernel.QuadForm(a, x, g, scratch, c)
	for i := range g {
		g[i] -= atbRS[i]
	}

	pdir := make([]float64, n3) // conjugate direction, init phi(x0, g)
	for i := 0; i < n; i++ {
		xi, gi := triplet(x, i), triplet(g, i)
		phi := kernel.Phi(xi, gi, m[i])
		setTriplet(pdir, i, phi)
	}

	res := Result{X: x}
	schedule := kernel.NewSampleSchedule(p.MaxIter, HistorySlots)
	logVerboseHeader(p.Logger)

	atap := make([]float64, n3)
	xPrev := make([]float64, n3)

	for k := 0; k < p.MaxIter; k++ {
		copy(xPrev, x)

		kernel.QuadForm(a, pdir, atap, scratch, c)

		var normGAlphaP, normPhi, gp, pAtAp float64
		alphaF := math.Inf(1)
		for i := 0; i < n; i++ {
			xi, gi, pi := triplet(x, i), triplet(g, i), triplet(pdir, i)
			reduced := kernel.ReducedProjectedGradient(xi, gi, p.Alpha, m[i])
			phi := kernel.Phi(xi, gi, m[i])
			normGAlphaP += sq3(reduced)
			normPhi += sq3(phi)
			gp += dot3(gi, pi)
			af := kernel.FindMaxAlpha(xi, pi, m[i])
			if af < alphaF {
				alphaF = af
			}
			pAtAp += dot3(pi, triplet(atap, i))
		}

		switch {
		case pAtAp == 0:
			// p lies in A's null space with c rounding to 0: alphaCG is
			// undefined, and §7 mandates falling back to a projected
			// gradient step rather than treating this as mixed expansion.
			projectedGradientStep(a, x, g, pdir, atbRS, m, p.Alpha, scratch, n, c)
		case normGAlphaP <= normPhi && gp/pAtAp < alphaF:
			conjugateGradientStep(x, g, pdir, atap, m, gp/pAtAp, pAtAp, n)
		case normGAlphaP <= normPhi:
			mixedExpansionStep(a, x, g, pdir, atap, atbRS, m, p.Alpha, alphaF, scratch, n, c)
		default:
			projectedGradientStep(a, x, g, pdir, atbRS, m, p.Alpha, scratch, n, c)
		}

		if schedule.ShouldSample(k) {
			slot := schedule.NextSlot()
			r2 := sample(a, b, x, proxy, m, p, &res, slot)
			logIteration(p.Logger, k, r2)
			if r2 < p.MinFeasibility {
				res.Iters = k + 1
				return res, nil
			}
		}

		var xsum float64
		for i := range x {
			xsum += math.Abs(x[i] - xPrev[i])
		}
		res.Iters = k + 1
		if xsum < p.Epsilon {
			res.Converged = true
			break
		}
	}

	res.X = x
	return res, nil
}

func conjugateGradientStep(x, g, pdir, atap []float64, m []float64, alphaCG, pAtAp float64, n int) {
	for i := 0; i < n; i++ {
		xi, gi, pi := triplet(x, i), triplet(g, i), triplet(pdir, i)
		api := triplet(atap, i)
		xi[0] -= alphaCG * pi[0]
		xi[1] -= alphaCG * pi[1]
		xi[2] -= alphaCG * pi[2]
		gi[0] -= alphaCG * api[0]
		gi[1] -= alphaCG * api[1]
		gi[2] -= alphaCG * api[2]
		setTriplet(x, i, xi)
		setTriplet(g, i, gi)
	}
	var gamma float64
	for i := 0; i < n; i++ {
		phig := kernel.Phi(triplet(x, i), triplet(g, i), m[i])
		gamma += dot3(phig, triplet(atap, i))
	}
	gamma /= pAtAp
	for i := 0; i < n; i++ {
		phig := kernel.Phi(triplet(x, i), triplet(g, i), m[i])
		pi := triplet(pdir, i)
		setTriplet(pdir, i, [3]float64{
			phig[0] - gamma*pi[0],
			phig[1] - gamma*pi[1],
			phig[2] - gamma*pi[2],
		})
	}
}

func mixedExpansionStep(a kernel.DenseRowMajor, x, g, pdir, atap, atbRS []float64, m []float64, alpha, alphaF float64, scratch []float64, n int, c float64) {
	for i := 0; i < n; i++ {
		xi, gi, pi, api := triplet(x, i), triplet(g, i), triplet(pdir, i), triplet(atap, i)
		shifted := [3]float64{
			(xi[0] - alphaF*pi[0]) - alpha*(gi[0]-alphaF*api[0]),
			(xi[1] - alphaF*pi[1]) - alpha*(gi[1]-alphaF*api[1]),
			(xi[2] - alphaF*pi[2]) - alpha*(gi[2]-alphaF*api[2]),
		}
		setTriplet(x, i, kernel.ProjectL2(shifted, m[i]))
	}
	kernel.QuadForm(a, x, g, scratch, c)
	for i := range g {
		g[i] -= atbRS[i]
	}
	for i := 0; i < n; i++ {
		setTriplet(pdir, i, kernel.Phi(triplet(x, i), triplet(g, i), m[i]))
	}
}

func projectedGradientStep(a kernel.DenseRowMajor, x, g, pdir, atbRS []float64, m []float64, alpha float64, scratch []float64, n int, c float64) {
	for i := 0; i < n; i++ {
		xi, gi := triplet(x, i), triplet(g, i)
		shifted := [3]float64{xi[0] - alpha*gi[0], xi[1] - alpha*gi[1], xi[2] - alpha*gi[2]}
		setTriplet(x, i, kernel.ProjectL2(shifted, m[i]))
	}
	kernel.QuadForm(a, x, g, scratch, c)
	for i := range g {
		g[i] -= atbRS[i]
	}
	for i := 0; i < n; i++ {
		setTriplet(pdir, i, kernel.Phi(triplet(x, i), triplet(g, i), m[i]))
	}
}

// sample writes the current iterate and objective terms into the history
// slot, mirroring print_MwPGP's loss-term bookkeeping (§4.7, §6: λ0/λ1
// "are reported in the objective history but do not enter the gradient").
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
	res.ObjHistory[slot] = r2 + n2 + l2 + l1 + l0 // l0/l1 are reported here but never enter the gradient (§6)
	res.MHistory[slot] = append([]float64(nil), x...)
	return r2
}

func triplet(v []float64, i int) [3]float64 {
	return [3]float64{v[3*i], v[3*i+1], v[3*i+2]}
}

func setTriplet(v []float64, i int, t [3]float64) {
	v[3*i], v[3*i+1], v[3*i+2] = t[0], t[1], t[2]
}

func sq3(t [3]float64) float64 { return t[0]*t[0] + t[1]*t[1] + t[2]*t[2] }
func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func logVerboseHeader(l *kernel.Logger) {
	l.Header("Iteration ... |Am - b|^2 ... |m-w|^2/v ...   a|m|^2 ...  b|m-1|^2 ...   c|m|_1 ...   d|m|_0 ... Total Error:")
}

func logIteration(l *kernel.Logger, k int, r2 float64) {
	l.Iteration("%d ... %.2e\n", k, r2)
}
