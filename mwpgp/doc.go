// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mwpgp implements the modified, weighted projected-gradient solver
// with active-set conjugate steps (MwPGP) for the convex, L2-ball-constrained
// part of the permanent-magnet optimization problem:
//
//	min_x  ½‖Ax-b‖² + (1/2ν)‖x-w‖² + λ₂‖x‖²   s.t.  ‖x_i‖ ≤ M_i
//
// See Bouchala, Jiří, et al. "On the solution of convex QPQC problems with
// elliptic and other separable constraints with strong curvature." Applied
// Mathematics and Computation 247 (2014): 848-864.
package mwpgp
