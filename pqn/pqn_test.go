// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pqn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curioloop/pmopt/kernel"
	"github.com/curioloop/pmopt/numdiff"
)

func identity3() kernel.DenseRowMajor {
	data := []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	return kernel.DenseRowMajor{Data: data, Rows: 3, Cols: 3}
}

func defaultSPGParams() SPGParams {
	return SPGParams{
		AlphaMin: 1e-10, AlphaMax: 1e10,
		NuSPG: 1e-4, Window: 5, MaxInnerIter: 20, Epsilon: 1e-10,
	}
}

// TestSolveTrivialInterior mirrors S2 from spec.md §8 for the PQN entry
// point: an unconstrained quadratic with the minimizer strictly inside the
// feasible ball should converge to it in a handful of outer iterations.
func TestSolveTrivialInterior(t *testing.T) {
	a := identity3()
	b := []float64{0.5, 0, 0}
	atb := []float64{0.5, 0, 0}
	proxy := []float64{0, 0, 0}
	m0 := []float64{0, 0, 0}
	m := []float64{1}

	res, err := Solve(a, b, atb, proxy, m0, m, Params{
		Nu: 1e9, Epsilon: 1e-10, RegL2: 0, MaxIter: 20, NuPQN: 1e-4, SPG: defaultSPGParams(),
	})
	require.NoError(t, err)
	require.InDelta(t, 0.5, res.X[0], 1e-6)
	require.InDelta(t, 0.0, res.X[1], 1e-6)
	require.InDelta(t, 0.0, res.X[2], 1e-6)
}

// TestSolveBoundary mirrors S3: the unconstrained minimizer lies outside
// the ball, so the result must sit on the boundary in the same direction.
func TestSolveBoundary(t *testing.T) {
	a := identity3()
	b := []float64{2, 0, 0}
	atb := []float64{2, 0, 0}
	proxy := []float64{0, 0, 0}
	m0 := []float64{0, 0, 0}
	m := []float64{1}

	res, err := Solve(a, b, atb, proxy, m0, m, Params{
		Nu: 1e9, Epsilon: 1e-10, RegL2: 0, MaxIter: 50, NuPQN: 1e-4, SPG: defaultSPGParams(),
	})
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.X[0], 1e-4)
	require.InDelta(t, 0.0, res.X[1], 1e-4)
	require.InDelta(t, 0.0, res.X[2], 1e-4)
}

// TestSolveFeasibility checks that every outer iterate stays within the
// per-dipole L2 balls, the same feasibility property MwPGP is held to
// (§8.2) — PQN shares the same projection primitive.
func TestSolveFeasibility(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	const ngrid, n = 20, 5
	n3 := 3 * n
	data := make([]float64, ngrid*n3)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	a := kernel.DenseRowMajor{Data: data, Rows: ngrid, Cols: n3}
	b := make([]float64, ngrid)
	for i := range b {
		b[i] = rng.Float64()*2 - 1
	}
	atb := make([]float64, n3)
	kernel.MatVecT(a, b, atb)
	proxy := make([]float64, n3)
	m0 := make([]float64, n3)
	m := make([]float64, n)
	for i := range m {
		m[i] = 0.5 + rng.Float64()
	}

	res, err := Solve(a, b, atb, proxy, m0, m, Params{
		Nu: 5, Epsilon: 1e-8, RegL2: 0.01, MaxIter: 30, NuPQN: 1e-4, SPG: defaultSPGParams(),
	})
	require.NoError(t, err)
	for i, mi := range m {
		mag := math.Sqrt(res.X[3*i]*res.X[3*i] + res.X[3*i+1]*res.X[3*i+1] + res.X[3*i+2]*res.X[3*i+2])
		require.LessOrEqual(t, mag, mi*(1+1e-6))
	}
}

// TestGradientMatchesFiniteDifference cross-checks Objective.Gradient
// against numdiff's central finite-difference approximation.
func TestGradientMatchesFiniteDifference(t *testing.T) {
	rng := rand.New(rand.NewPCG(41, 42))
	const ngrid, n = 10, 3
	n3 := 3 * n
	data := make([]float64, ngrid*n3)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	a := kernel.DenseRowMajor{Data: data, Rows: ngrid, Cols: n3}
	b := make([]float64, ngrid)
	for i := range b {
		b[i] = rng.Float64()*2 - 1
	}
	atb := make([]float64, n3)
	kernel.MatVecT(a, b, atb)
	proxy := make([]float64, n3)
	for i := range proxy {
		proxy[i] = rng.Float64()*0.2 - 0.1
	}
	const nu, lambda2 = 3.0, 0.1
	obj := NewObjective(a, b, atb, proxy, nu, lambda2)

	x0 := make([]float64, n3)
	for i := range x0 {
		x0[i] = rng.Float64()*0.4 - 0.2
	}
	analytic := make([]float64, n3)
	obj.Gradient(x0, analytic)

	spec := numdiff.ApproxSpec{
		N: n3, M: 1,
		Method: numdiff.Central,
		Object: func(x, y []float64) { y[0] = obj.Value(x) },
	}
	numerical := make([]float64, n3)
	require.NoError(t, spec.Diff(x0, numerical))

	for i := range analytic {
		require.InDelta(t, analytic[i], numerical[i], 1e-3)
	}
}

// TestBacktrackSatisfiesCondition checks that Backtrack eventually returns
// a step meeting the caller's sufficient-decrease test on a simple
// quadratic, rather than the stub behavior of returning alpha unchanged.
func TestBacktrackSatisfiesCondition(t *testing.T) {
	// phi(alpha) = (1-alpha)^2, phi(0)=1, phi'(0)=-2; alpha=1 minimizes it.
	phi := func(alpha float64) float64 { d := 1 - alpha; return d * d }
	cond := func(alpha, phiAlpha float64) bool {
		return phiAlpha <= 1+1e-4*alpha*(-2)
	}
	alpha, phiAlpha, ok := Backtrack(phi, 1, -2, 10, cond, 40)
	require.True(t, ok)
	require.Less(t, alpha, 10.0)
	require.LessOrEqual(t, phiAlpha, 1+1e-4*alpha*(-2)+1e-12)
}

// TestSPGReducesObjective checks the inner solver actually makes progress
// on a simple unconstrained-interior quadratic rather than stalling, per
// the resolved `dk` overwrite bug (§9) that would otherwise freeze the
// direction at its last computed value.
func TestSPGReducesObjective(t *testing.T) {
	a := identity3()
	b := []float64{0.5, 0.2, -0.3}
	atb := []float64{0.5, 0.2, -0.3}
	proxy := []float64{0, 0, 0}
	m := []float64{1}
	obj := NewObjective(a, b, atb, proxy, 1e9, 0)

	x0 := []float64{0, 0, 0}
	f0 := obj.Value(x0)

	mem := NewMemory(1.0, 5)
	xStar := RunSPG(obj, x0, m, mem, defaultSPGParams())
	fStar := obj.Value(xStar)
	require.Less(t, fStar, f0)
	require.InDelta(t, 0.5, xStar[0], 1e-3)
	require.InDelta(t, 0.2, xStar[1], 1e-3)
	require.InDelta(t, -0.3, xStar[2], 1e-3)
}
