// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestMatVecMatchesReference(t *testing.T) {
	const rows, cols = 37, 11 // deliberately not a multiple of 4/worker count
	rng := rand.New(rand.NewPCG(1, 2))

	a := DenseRowMajor{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
	for i := range a.Data {
		a.Data[i] = rng.Float64()*2 - 1
	}
	x := make([]float64, cols)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}

	y := make([]float64, rows)
	MatVec(a, x, y)

	for i := 0; i < rows; i++ {
		want := floats.Dot(a.row(i), x)
		require.InDelta(t, want, y[i], 1e-9)
	}
}

func TestMatVecTMatchesReference(t *testing.T) {
	const rows, cols = 29, 13
	rng := rand.New(rand.NewPCG(3, 4))

	a := DenseRowMajor{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
	for i := range a.Data {
		a.Data[i] = rng.Float64()*2 - 1
	}
	y := make([]float64, rows)
	for i := range y {
		y[i] = rng.Float64()*2 - 1
	}

	out := make([]float64, cols)
	MatVecT(a, y, out)

	for j := 0; j < cols; j++ {
		col := make([]float64, rows)
		for i := 0; i < rows; i++ {
			col[i] = a.Data[i*cols+j]
		}
		want := floats.Dot(col, y)
		require.InDelta(t, want, out[j], 1e-9)
	}
}

func TestQuadFormMatchesDefinition(t *testing.T) {
	const rows, cols = 21, 9
	rng := rand.New(rand.NewPCG(5, 6))

	a := DenseRowMajor{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
	for i := range a.Data {
		a.Data[i] = rng.Float64()*2 - 1
	}
	x := make([]float64, cols)
	for i := range x {
		x[i] = rng.Float64()*2 - 1
	}

	const c = 0.37
	g := make([]float64, cols)
	scratch := make([]float64, rows)
	QuadForm(a, x, g, scratch, c)

	ax := make([]float64, rows)
	MatVec(a, x, ax)
	atax := make([]float64, cols)
	MatVecT(a, ax, atax)
	for j := range atax {
		atax[j] += 2 * c * x[j]
	}

	require.True(t, floats.EqualApprox(g, atax, 1e-9))
}

func TestUpdateResidualIsLinear(t *testing.T) {
	const ngrid, n3 = 17, 6
	rng := rand.New(rand.NewPCG(7, 8))

	a := DenseColMajor{Data: make([]float64, n3*ngrid), Rows: ngrid, Cols: n3}
	for i := range a.Data {
		a.Data[i] = rng.Float64()*2 - 1
	}

	r := make([]float64, ngrid)
	want := make([]float64, ngrid)
	copy(want, r)
	for i := 0; i < ngrid; i++ {
		want[i] += a.Column(2)[i]
		want[i] -= a.Column(4)[i]
	}
	UpdateResidual(a, 2, 1, r)
	UpdateResidual(a, 4, -1, r)

	require.True(t, floats.EqualApprox(r, want, 1e-12))
}
