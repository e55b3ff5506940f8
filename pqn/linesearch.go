// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import "math"

// Backtrack shrinks an initial step alpha0 by safeguarded quadratic/cubic
// interpolation until cond(alpha, phi(alpha)) holds or maxIter trials are
// exhausted (§9 "`cubic_interp` placeholder" — the source returns alpha
// unchanged, a known stub bug; this replaces it with a real step).
//
// phi0 and dphi0 are phi(0) and phi'(0) along the search direction. The
// first backtrack step uses quadratic interpolation through phi0, dphi0
// and the first trial value; subsequent steps use cubic interpolation
// through both of the last two trial points, safeguarded into
// [0.1·alpha, 0.5·alpha] of the step being replaced (Nocedal & Wright,
// Numerical Optimization, §3.5).
func Backtrack(phi func(alpha float64) float64, phi0, dphi0, alpha0 float64, cond func(alpha, phiAlpha float64) bool, maxIter int) (alpha, phiAlpha float64, ok bool) {
	alpha = alpha0
	var havePrev bool
	var alphaPrev, phiPrev float64

	for iter := 0; iter < maxIter; iter++ {
		phiAlpha = phi(alpha)
		if cond(alpha, phiAlpha) {
			return alpha, phiAlpha, true
		}

		var next float64
		if !havePrev {
			next = quadraticMinimizer(alpha, phiAlpha, phi0, dphi0)
		} else {
			next = cubicMinimizer(alpha, phiAlpha, alphaPrev, phiPrev, phi0, dphi0)
		}

		lo, hi := 0.1*alpha, 0.5*alpha
		if math.IsNaN(next) || math.IsInf(next, 0) || next < lo {
			next = lo
		} else if next > hi {
			next = hi
		}

		havePrev, alphaPrev, phiPrev = true, alpha, phiAlpha
		alpha = next
	}
	return alpha, phiAlpha, false
}

// quadraticMinimizer fits a quadratic through phi0, dphi0 and (a1, f1) and
// returns its minimizer.
func quadraticMinimizer(a1, f1, phi0, dphi0 float64) float64 {
	denom := 2 * (f1 - phi0 - dphi0*a1)
	if denom == 0 {
		return a1 / 2
	}
	return -dphi0 * a1 * a1 / denom
}

// cubicMinimizer fits a cubic through phi0, dphi0 and two trial points
// (a1, f1), (a2, f2), returning the minimizer of that cubic (Nocedal &
// Wright eq. 3.59).
func cubicMinimizer(a1, f1, a2, f2, phi0, dphi0 float64) float64 {
	d1 := f1 - phi0 - dphi0*a1
	d2 := f2 - phi0 - dphi0*a2
	denom := a1 * a1 * a2 * a2 * (a1 - a2)
	if denom == 0 {
		return a1 / 2
	}
	c1 := (a2*a2*d1 - a1*a1*d2) / denom
	c2 := (a1*a1*a1*d2 - a2*a2*a2*d1) / denom
	if c1 == 0 {
		if c2 == 0 {
			return a1 / 2
		}
		return -dphi0 / (2 * c2)
	}
	radicand := c2*c2 - 3*c1*dphi0
	if radicand < 0 {
		return math.NaN()
	}
	return (-c2 + math.Sqrt(radicand)) / (3 * c1)
}
