// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gpmo

import (
	"fmt"
	"sort"

	"github.com/curioloop/pmopt/kernel"
)

// Connectivity is the per-dipole neighbor table Connect (§3 Data Model,
// §4.5 ConnectivityBuilder): row j lists every dipole index sorted by
// ascending distance to dipole j, with row[0] == j.
type Connectivity struct {
	Rows [][]int32
}

// Neighbors returns row j's neighbor indices, self included at position 0.
func (c Connectivity) Neighbors(j int) []int32 { return c.Rows[j] }

// BuildConnectivity computes the distance-sorted neighbor table for N
// dipoles with centers P (flattened N×3), parallel over j (§4.5 "Parallel
// over j"). It keeps all N neighbors per row rather than truncating at a
// fixed K_max: GPMO_multi and GPMO_backtracking only ever consult a short
// prefix of each row, so the extra tail entries cost nothing but memory.
func BuildConnectivity(xyz []float64, n int) (Connectivity, error) {
	if len(xyz) != 3*n {
		return Connectivity{}, fmt.Errorf("gpmo: dipole_xyz must have length 3N=%d: %w", 3*n, kernel.ErrShapeMismatch)
	}
	rows := make([][]int32, n)
	kernel.ParallelFor(n, func(start, end int) {
		for j := start; j < end; j++ {
			rows[j] = neighborRow(xyz, n, j)
		}
	})
	return Connectivity{Rows: rows}, nil
}

func neighborRow(xyz []float64, n, j int) []int32 {
	type distIdx struct {
		d   float64
		idx int32
	}
	entries := make([]distIdx, n)
	xj, yj, zj := xyz[3*j], xyz[3*j+1], xyz[3*j+2]
	for i := 0; i < n; i++ {
		dx := xyz[3*i] - xj
		dy := xyz[3*i+1] - yj
		dz := xyz[3*i+2] - zj
		entries[i] = distIdx{d: dx*dx + dy*dy + dz*dz, idx: int32(i)}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].d != entries[b].d {
			return entries[a].d < entries[b].d
		}
		return entries[a].idx < entries[b].idx // §4.5 "Ties broken by index ascending"
	})
	row := make([]int32, n)
	for i, e := range entries {
		row[i] = e.idx
	}
	return row
}
