// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kernel provides the dense-array primitives shared by the
// permanent-magnet solvers: elementwise L2-ball projection, the row-major
// quadratic-form operator Q = AᵗA + 2(λ₂+1/2ν)I, a small worker-pool
// parallel-for helper, a leveled logger, and the fixed-capacity history
// sampling schedule used to report solver progress.
package kernel
