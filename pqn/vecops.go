// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"math"

	"github.com/curioloop/pmopt/kernel"
)

func triplet(v []float64, i int) [3]float64 {
	return [3]float64{v[3*i], v[3*i+1], v[3*i+2]}
}

func setTriplet(v []float64, i int, t [3]float64) {
	v[3*i], v[3*i+1], v[3*i+2] = t[0], t[1], t[2]
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// addScaled returns x + alpha*d without mutating either input.
func addScaled(x, d []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + alpha*d[i]
	}
	return out
}

func scaleVec(x []float64, alpha float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = alpha * x[i]
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// projectedDirection returns, per dipole triplet, project_L2(x-alpha*g, M) -
// x: the full projected step direction SPG follows (§4.6 "d_k =
// project_L2(x_k - ᾱ_k ∇q(x_k), M) - x_k"), computed elementwise across the
// whole vector rather than overwritten per-iteration by a stale scalar
// (§9's resolution of the `dk` overwrite bug).
func projectedDirection(x, g []float64, alpha float64, m []float64) []float64 {
	n := len(m)
	d := make([]float64, 3*n)
	for i := 0; i < n; i++ {
		xi, gi := triplet(x, i), triplet(g, i)
		shifted := [3]float64{xi[0] - alpha*gi[0], xi[1] - alpha*gi[1], xi[2] - alpha*gi[2]}
		proj := kernel.ProjectL2(shifted, m[i])
		setTriplet(d, i, [3]float64{proj[0] - xi[0], proj[1] - xi[1], proj[2] - xi[2]})
	}
	return d
}

// projectedResidualNorm returns Σ_i ‖project_L2(x_i - g_i, M_i) - x_i‖, the
// convergence test PQN's outer loop uses (§4.6 "Convergence when
// Σ_i ‖project_L2(x_i - g_i, M_i) - x_i‖ < ε"). SPG's inner loop stops on
// projectedStepNorm of its own direction instead.
func projectedResidualNorm(x, g, m []float64) float64 {
	n := len(m)
	var sum float64
	for i := 0; i < n; i++ {
		xi, gi := triplet(x, i), triplet(g, i)
		shifted := [3]float64{xi[0] - gi[0], xi[1] - gi[1], xi[2] - gi[2]}
		proj := kernel.ProjectL2(shifted, m[i])
		dx, dy, dz := proj[0]-xi[0], proj[1]-xi[1], proj[2]-xi[2]
		sum += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return sum
}
