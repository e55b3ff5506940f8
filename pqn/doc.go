// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pqn implements a projected quasi-Newton outer loop (PQN) over the
// same bound-constrained quadratic-plus-L2 objective MwPGP solves, with an
// inner spectral projected gradient (SPG) solver approximating the
// projected quadratic subproblem at each outer step. It is offered as an
// alternative continuous solver for callers whose outer cost is not purely
// quadratic in the placed magnetization.
package pqn
