// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import "math"

// SPGParams collects the hyperparameters of the inner SPG solver (§4.6).
type SPGParams struct {
	AlphaMin, AlphaMax float64
	NuSPG              float64 // non-monotone sufficient-decrease parameter
	Window             int     // length h of the trailing reference-value window
	MaxInnerIter       int
	Epsilon            float64 // inner convergence tolerance on the projected residual
}

// Memory carries the Barzilai-Borwein step and non-monotone reference
// window across successive SPG calls from the PQN outer loop (§4.6
// "Maintain α_bb carried across inner calls").
type Memory struct {
	AlphaBB float64
	window  []float64
	filled  int
	pos     int
}

// NewMemory builds inner-solver state seeded with an initial α_bb and a
// reference window of the given length.
func NewMemory(alpha0 float64, window int) *Memory {
	if window < 1 {
		window = 1
	}
	return &Memory{AlphaBB: alpha0, window: make([]float64, window)}
}

func (m *Memory) push(f float64) {
	m.window[m.pos] = f
	m.pos = (m.pos + 1) % len(m.window)
	if m.filled < len(m.window) {
		m.filled++
	}
}

func (m *Memory) referenceMax() float64 {
	best := math.Inf(-1)
	for i := 0; i < m.filled; i++ {
		if m.window[i] > best {
			best = m.window[i]
		}
	}
	return best
}

// RunSPG runs the inner spectral projected gradient solver starting at x0,
// approximating the minimizer of obj subject to the per-dipole L2 balls M
// (§4.6 "SPG inner solver"). It mutates mem.AlphaBB in place for the
// caller's next invocation and returns the approximate minimizer; it never
// mutates x0.
func RunSPG(obj *Objective, x0, m []float64, mem *Memory, p SPGParams) []float64 {
	n3 := len(x0)
	x := append([]float64(nil), x0...)
	g := make([]float64, n3)
	obj.Gradient(x, g)
	f := obj.Value(x)
	mem.push(f)

	for iter := 0; iter < p.MaxInnerIter; iter++ {
		abar := clip(mem.AlphaBB, p.AlphaMin, p.AlphaMax)
		d := projectedDirection(x, g, abar, m)

		if projectedStepNorm(d) < p.Epsilon {
			break
		}

		fb := mem.referenceMax()
		dg := dot(g, d)

		phi := func(alpha float64) float64 {
			return obj.Value(addScaled(x, d, alpha))
		}
		cond := func(alpha, phiAlpha float64) bool {
			return phiAlpha <= fb+p.NuSPG*alpha*dg
		}
		alpha, fNew, _ := Backtrack(phi, f, dg, 1.0, cond, 30)

		xNew := addScaled(x, d, alpha)
		gNew := make([]float64, n3)
		obj.Gradient(xNew, gNew)

		s := diff(xNew, x)
		y := diff(gNew, g)
		sy := dot(s, y)
		if sy <= 0 {
			// §7 "Divide-by-zero in SPG α_bb (s·y ≤ 0): clip next ᾱ to α_max".
			mem.AlphaBB = p.AlphaMax
		} else {
			mem.AlphaBB = dot(y, y) / sy
		}

		x, g, f = xNew, gNew, fNew
		mem.push(f)
	}
	return x
}

func projectedStepNorm(d []float64) float64 {
	var sum float64
	for _, v := range d {
		sum += v * v
	}
	return math.Sqrt(sum)
}
