// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "math"

// onSurface reports whether ‖x‖² lies within the surface tolerance band of
// the L2 ball of radius m around the origin (§4.1, §6 numeric constants).
func onSurface(xmag2, m float64) bool {
	m2 := m * m
	return math.Abs(xmag2-m2) <= 1.0e-8+1.0e-5*m2
}

// ProjectL2 projects a 3-vector x onto the L2 ball of radius m, returning
// x·min(1, m/‖x‖). Defined as 0 at x=0 (§4.1 project_L2).
func ProjectL2(x [3]float64, m float64) [3]float64 {
	mag := math.Sqrt(x[0]*x[0] + x[1]*x[1] + x[2]*x[2])
	denom := math.Max(1.0, mag/m)
	return [3]float64{x[0] / denom, x[1] / denom, x[2] / denom}
}

// NoAlphaSentinel marks "no finite max step" in FindMaxAlpha (§6).
const NoAlphaSentinel = 1.0e100

// pSqFloor is the ‖p‖² floor below which FindMaxAlpha reports NoAlphaSentinel
// (§4.1, §6).
const pSqFloor = 1.0e-20

// FindMaxAlpha returns the largest α ≥ 0 with ‖x-αp‖² ≤ m², by solving
// a p² α² - 2(x·p) α + (‖x‖²-m²) = 0 for its positive root (§4.1
// find_max_alpha). When ‖p‖² < pSqFloor it returns NoAlphaSentinel.
func FindMaxAlpha(x, p [3]float64, m float64) float64 {
	a := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
	if a < pSqFloor {
		return NoAlphaSentinel
	}
	c := x[0]*x[0] + x[1]*x[1] + x[2]*x[2] - m*m
	b := -2 * (x[0]*p[0] + x[1]*p[1] + x[2]*p[2])
	// c ≤ 0 and a > 0 whenever x is feasible, so the discriminant is
	// non-negative and the "+" root is the non-negative one.
	return (-b + math.Sqrt(b*b-4*a*c)) / (2 * a)
}

// Phi returns g if x is interior to the L2 ball of radius m (not within the
// surface tolerance band), otherwise the zero vector (§4.1 phi).
func Phi(x, g [3]float64, m float64) [3]float64 {
	xmag2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	if !onSurface(xmag2, m) {
		return g
	}
	return [3]float64{}
}

// GReducedGradient is the reduced gradient at a step size alpha: the
// per-component rate at which the projected point departs from x (§4.1
// g_reduced).
func GReducedGradient(x, g [3]float64, alpha, m float64) [3]float64 {
	shifted := [3]float64{x[0] - alpha*g[0], x[1] - alpha*g[1], x[2] - alpha*g[2]}
	proj := ProjectL2(shifted, m)
	return [3]float64{
		(x[0] - proj[0]) / alpha,
		(x[1] - proj[1]) / alpha,
		(x[2] - proj[2]) / alpha,
	}
}

// BetaTilde is 0 if x is interior to the L2 ball; on the surface it returns
// g if x·g > 0, else the reduced gradient at step alpha (§4.1 beta_tilde).
func BetaTilde(x, g [3]float64, alpha, m float64) [3]float64 {
	xmag2 := x[0]*x[0] + x[1]*x[1] + x[2]*x[2]
	if !onSurface(xmag2, m) {
		return [3]float64{}
	}
	ng := x[0]*g[0] + x[1]*g[1] + x[2]*g[2]
	if ng > 0 {
		return g
	}
	return GReducedGradient(x, g, alpha, m)
}

// ReducedProjectedGradient is Phi + BetaTilde, the active/free-face
// decomposed gradient MwPGP branches on (§4.1).
func ReducedProjectedGradient(x, g [3]float64, alpha, m float64) [3]float64 {
	p := Phi(x, g, m)
	b := BetaTilde(x, g, alpha, m)
	return [3]float64{p[0] + b[0], p[1] + b[1], p[2] + b[2]}
}
