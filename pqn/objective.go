// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import "github.com/curioloop/pmopt/kernel"

// Objective is the smooth quadratic-plus-L2 cost both PQN's outer loop and
// SPG's inner subproblem minimize (§4.6; the same f MwPGP solves, §4.3):
//
//	f(x) = ½‖Ax-b‖² + (1/2ν)‖x-w‖² + λ₂‖x‖²
//
// SPG's "projected quadratic subproblem" is this same f — the entry point
// shares MwPGP's hyperparameters exactly (§6 entry point 6) — so f_PQN,
// df_PQN, q_PQN and dq_PQN collapse to one Value/Gradient pair here.
type Objective struct {
	a       kernel.DenseRowMajor
	b       []float64
	proxy   []float64
	nu      float64
	lambda2 float64

	atbRS   []float64 // A^Tb + w/ν, precomputed once
	c       float64   // λ₂ + 1/(2ν)
	scratch []float64 // length ngrid, reused across calls
}

// NewObjective builds the objective for a fixed (A, b, ATb, proxy, ν, λ₂);
// every Value/Gradient call reuses its scratch buffer.
func NewObjective(a kernel.DenseRowMajor, b, atb, proxy []float64, nu, lambda2 float64) *Objective {
	n3 := len(atb)
	atbRS := make([]float64, n3)
	for i := range atbRS {
		atbRS[i] = atb[i] + proxy[i]/nu
	}
	return &Objective{
		a: a, b: b, proxy: proxy, nu: nu, lambda2: lambda2,
		atbRS:   atbRS,
		c:       lambda2 + 1.0/(2.0*nu),
		scratch: make([]float64, a.Rows),
	}
}

// Value returns f(x).
func (o *Objective) Value(x []float64) float64 {
	kernel.MatVec(o.a, x, o.scratch)
	var r2, n2, l2 float64
	for i, ax := range o.scratch {
		d := ax - o.b[i]
		r2 += d * d
	}
	for i, xi := range x {
		d := xi - o.proxy[i]
		n2 += d * d
		l2 += xi * xi
	}
	return 0.5*r2 + 0.5*n2/o.nu + o.lambda2*l2
}

// Gradient writes ∇f(x) = Qx - (A^Tb + w/ν) into g.
func (o *Objective) Gradient(x, g []float64) {
	kernel.QuadForm(o.a, x, g, o.scratch, o.c)
	for i := range g {
		g[i] -= o.atbRS[i]
	}
}
