// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

// DenseRowMajor is a read-only view over a dense matrix stored row-major,
// rows*cols long. It is aliased by every kernel here, never copied (§5
// Memory).
type DenseRowMajor struct {
	Data       []float64
	Rows, Cols int
}

func (a DenseRowMajor) row(i int) []float64 {
	return a.Data[i*a.Cols : (i+1)*a.Cols]
}

// MatVec computes y = A x for a rows×cols row-major matrix, parallel over
// rows (§4.2 LinAlgKernels, §5: one output element per outer index).
func MatVec(a DenseRowMajor, x, y []float64) {
	ParallelFor(a.Rows, func(start, end int) {
		for i := start; i < end; i++ {
			y[i] = dot(a.row(i), x)
		}
	})
}

// MatVecT computes out = Aᵗ y for a rows×cols row-major matrix, parallel
// over columns of the output (§4.2: "then z = A^T y"). Each output index
// reads the same y and a strided column of A, but writes a disjoint slot.
func MatVecT(a DenseRowMajor, y, out []float64) {
	ParallelFor(a.Cols, func(start, end int) {
		for j := start; j < end; j++ {
			var sum float64
			for i := 0; i < a.Rows; i++ {
				sum += a.Data[i*a.Cols+j] * y[i]
			}
			out[j] = sum
		}
	})
}

// QuadForm computes g = AᵗAx + 2c·x for a rows×cols row-major matrix, where
// c = λ₂ + 1/(2ν) (§4.2: "Q = A^T A + 2(λ₂ + 1/(2ν)) I"). scratch must have
// length a.Rows and is used to hold the intermediate Ax.
func QuadForm(a DenseRowMajor, x, g, scratch []float64, c float64) {
	MatVec(a, x, scratch)
	MatVecT(a, scratch, g)
	ParallelFor(len(x), func(start, end int) {
		for j := start; j < end; j++ {
			g[j] += 2 * c * x[j]
		}
	})
}

// DenseColMajor is a read-only view over a dense matrix stored so that each
// column is contiguous — the GPMO layout (§6 entry point 2: "columns are
// contiguous, enabling fast column reads"). Column c spans
// Data[c*Rows : (c+1)*Rows].
type DenseColMajor struct {
	Data       []float64
	Rows, Cols int // Rows = ngrid, Cols = 3N
}

// Column returns the contiguous slice backing column c.
func (a DenseColMajor) Column(c int) []float64 {
	return a.Data[c*a.Rows : (c+1)*a.Rows]
}

// UpdateResidual performs r += sign * A[:,c] in place, parallel over the
// disjoint elements of r (§4.2 "residual update", §5 "running residual r is
// updated by a parallel-for over its disjoint elements").
func UpdateResidual(a DenseColMajor, c int, sign float64, r []float64) {
	col := a.Column(c)
	ParallelFor(a.Rows, func(start, end int) {
		for i := start; i < end; i++ {
			r[i] += sign * col[i]
		}
	})
}
