// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/pmopt/kernel"
)

func colMajor(data []float64, rows, cols int) kernel.DenseColMajor {
	return kernel.DenseColMajor{Data: data, Rows: rows, Cols: cols}
}

// TestBaselineOnePick is S4 from spec.md §8.
func TestBaselineOnePick(t *testing.T) {
	a := colMajor([]float64{1, 0, 0}, 1, 3) // column 0 = [1], columns 1,2 = [0]
	b := []float64{1}

	res, err := Baseline(a, b, 1, BaselineParams{K: 1, NHistory: 2, SingleDirection: -1})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 0}, res.X)
	require.InDelta(t, 0, res.R2History[0], 1e-12)
}

// TestBaselineSignFlip is S5 from spec.md §8.
func TestBaselineSignFlip(t *testing.T) {
	a := colMajor([]float64{1, 0, 0}, 1, 3)
	b := []float64{-1}

	res, err := Baseline(a, b, 1, BaselineParams{K: 1, NHistory: 2, SingleDirection: -1})
	require.NoError(t, err)
	require.Equal(t, []float64{-1, 0, 0}, res.X)
}

// TestBaselineBinarityInvariant is property §8.4.
func TestBaselineBinarityInvariant(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const ngrid, n = 10, 6
	data := randomColMajorData(rng, ngrid, 3*n)
	a := colMajor(data, ngrid, 3*n)
	b := make([]float64, ngrid)
	for i := range b {
		b[i] = rng.Float64()*2 - 1
	}

	res, err := Baseline(a, b, n, BaselineParams{K: n, NHistory: 4, SingleDirection: -1})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		nonzero := 0
		for d := 0; d < 3; d++ {
			v := res.X[3*i+d]
			require.True(t, v == 0 || v == 1 || v == -1)
			if v != 0 {
				nonzero++
			}
		}
		require.LessOrEqual(t, nonzero, 1)
	}
}

func randomColMajorData(rng *rand.Rand, rows, cols int) []float64 {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return data
}

// TestResidualConsistency is property §8.5: the incrementally maintained
// residual must track A·x_k - b throughout the solve.
func TestResidualConsistency(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const ngrid, n = 14, 5
	data := randomColMajorData(rng, ngrid, 3*n)
	a := colMajor(data, ngrid, 3*n)
	b := make([]float64, ngrid)
	var bnorm float64
	for i := range b {
		b[i] = rng.Float64()*2 - 1
		bnorm += b[i] * b[i]
	}
	bnorm = math.Sqrt(bnorm)

	// Drive the same pick/place steps Baseline runs and compare the tracked
	// residual with a from-scratch A·x_k - b after every placement.
	s, err := newState(a, b, n, -1)
	require.NoError(t, err)

	for it := 0; it < n; it++ {
		i, d, sign, ok := baselinePick(s)
		require.True(t, ok)
		s.place(i, d, sign)

		var diff2 float64
		for row := 0; row < ngrid; row++ {
			var ax float64
			for c := 0; c < 3*n; c++ {
				ax += a.Data[c*ngrid+row] * s.x[c]
			}
			dr := ax - b[row] - s.r[row]
			diff2 += dr * dr
		}
		require.Less(t, math.Sqrt(diff2), 1e-8*bnorm+1e-12)
	}
}

// TestMCMonotoneResidual is property §8.6: R²_{k+1} <= R²_k exactly, since
// every iteration picks the sign that minimizes the resulting residual. An
// identity forward operator makes every candidate column fully decoupled,
// so each placement removes exactly one unit of squared residual with no
// cross-coupling — a deterministic witness to the claimed invariant rather
// than a statistical one.
func TestMCMonotoneResidual(t *testing.T) {
	const n = 4
	const n3 = 3 * n
	data := make([]float64, n3*n3)
	for c := 0; c < n3; c++ {
		data[c*n3+c] = 1 // column c = e_c
	}
	a := colMajor(data, n3, n3)
	b := make([]float64, n3)
	for i := range b {
		if i%2 == 0 {
			b[i] = 1
		} else {
			b[i] = -1
		}
	}
	atb := append([]float64(nil), b...) // A = I, so A^Tb = b

	// Only n dipoles ever exist: the first axis chosen for a dipole disables
	// its other two, so K = n is the number of placements actually possible.
	res, err := MC(a, b, atb, n, MCParams{K: n, NHistory: n - 1})
	require.NoError(t, err)
	require.Len(t, res.R2History, n)

	prev := math.Inf(1)
	for _, r2 := range res.R2History {
		require.LessOrEqual(t, r2, prev+1e-12)
		prev = r2
	}
	require.InDelta(t, 4.0, res.R2History[len(res.R2History)-1], 1e-9)
}

// TestMCReportsMutualCoherence is §9's resolved "genuine max-reduction"
// behavior: Mu is a real pairwise coherence max over the columns still
// available after the pick, hand-computed here rather than the discarded
// single-column quantity an earlier draft only logged.
func TestMCReportsMutualCoherence(t *testing.T) {
	a := colMajor([]float64{
		1, 1, // column 0 (dipole0 axis0)
		1, 0, // column 1 (dipole0 axis1)
		0, 0, // column 2 (dipole0 axis2)
		0, 5, // column 3 (dipole1 axis0)
		0, 0, // column 4 (dipole1 axis1)
		0, 0, // column 5 (dipole1 axis2)
	}, 2, 6)
	b := []float64{0, 5}
	atb := []float64{5, 0, 0, 25, 0, 0}

	// The largest |u_c| is column 3 (u=25), placed with sign +1, which
	// disables dipole1's three columns. Of the columns left available,
	// only 0 and 1 have a nonzero coherence bank: coh(0,1) = |1*1+1*0| /
	// (bank0=2 * bank1=1) = 0.5.
	res, err := MC(a, b, atb, 2, MCParams{K: 1, NHistory: 0})
	require.NoError(t, err)
	require.Len(t, res.Mu, 1)
	require.InDelta(t, 0.5, res.Mu[0], 1e-12)
}

// TestConnectivityRowZeroIsSelf is property §8.7.
func TestConnectivityRowZeroIsSelf(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	const n = 20
	xyz := make([]float64, 3*n)
	for i := range xyz {
		xyz[i] = rng.Float64() * 10
	}
	conn, err := BuildConnectivity(xyz, n)
	require.NoError(t, err)
	for j := 0; j < n; j++ {
		require.EqualValues(t, j, conn.Neighbors(j)[0])
	}
}

// TestConnectivityMatchesGonumDistanceOrdering cross-checks BuildConnectivity
// against an independently computed ordering: gonum's floats.Distance gives
// the pairwise Euclidean distances, sorted by hand here rather than by
// neighborRow, so a bug shared between the two orderings can't hide.
func TestConnectivityMatchesGonumDistanceOrdering(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	const n = 15
	xyz := make([]float64, 3*n)
	for i := range xyz {
		xyz[i] = rng.Float64() * 10
	}
	conn, err := BuildConnectivity(xyz, n)
	require.NoError(t, err)

	point := func(i int) []float64 { return xyz[3*i : 3*i+3] }

	type distIdx struct {
		d   float64
		idx int
	}
	for j := 0; j < n; j++ {
		expected := make([]distIdx, n)
		for i := 0; i < n; i++ {
			expected[i] = distIdx{d: floats.Distance(point(j), point(i), 2), idx: i}
		}
		sort.Slice(expected, func(a, b int) bool {
			if expected[a].d != expected[b].d {
				return expected[a].d < expected[b].d
			}
			return expected[a].idx < expected[b].idx
		})

		row := conn.Neighbors(j)
		require.Len(t, row, n)
		for i, e := range expected {
			require.EqualValues(t, e.idx, row[i], "row %d position %d", j, i)
		}
	}
}

// TestBacktrackingRemovesWyrmPair is S6/property §8.8: a mutual-nearest-
// neighbor pair placed with opposite sign on the same axis, whose
// contributions cancel exactly, is pruned by the wyrm pass.
func TestBacktrackingRemovesWyrmPair(t *testing.T) {
	// Two dipoles, two grid points (only the first is coupled), sharing the
	// same axis-0 column so placing
	// them with opposite signs cancels exactly (the pair is a textbook
	// wyrm: net contribution zero, so removing both can only help or tie).
	a := colMajor([]float64{
		1, 0, // column 0 (dipole0 axis0)
		0, 0, // column 1 (dipole0 axis1)
		0, 0, // column 2 (dipole0 axis2)
		1, 0, // column 3 (dipole1 axis0)
		0, 0, // column 4 (dipole1 axis1)
		0, 0, // column 5 (dipole1 axis2)
	}, 2, 6)
	b := []float64{0, 0}
	xyz := []float64{0, 0, 0, 0.01, 0, 0} // dipole1 is dipole0's nearest neighbor and vice versa

	res, err := Backtracking(a, b, 2, xyz, BacktrackingParams{
		K: 2, NHistory: 2, Backtracking: 1, SingleDirection: 0, Nadjacent: 1,
	})
	require.NoError(t, err)
	// Backtracking=1 runs a pass after each of the two placements: the first
	// finds no partner yet, the second erases the pair.
	require.Equal(t, []int{0, 1}, res.WyrmsRemoved)
	for _, v := range res.X {
		require.Equal(t, 0.0, v)
	}
}

// TestMultiPlacesAdjacentNeighbors exercises the batch-placement path: two
// nearly co-located dipoles should be placed together when Nadjacent
// allows it, since their candidate columns are identical and combining them
// strictly reduces the scored residual relative to placing one alone.
func TestMultiPlacesAdjacentNeighbors(t *testing.T) {
	a := colMajor([]float64{
		1, 1, // column 0 (dipole0 axis0)
		0, 0,
		0, 0,
		1, 1, // column 3 (dipole1 axis0) identical to column 0
		0, 0,
		0, 0,
	}, 2, 6)
	b := []float64{2, 2}
	xyz := []float64{0, 0, 0, 0.001, 0, 0} // distinct but each is the other's nearest neighbor

	res, err := Multi(a, b, 2, xyz, MultiParams{
		K: 1, NHistory: 1, SingleDirection: -1, Nadjacent: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, res.X[0])
	require.Equal(t, 1.0, res.X[3])
}
