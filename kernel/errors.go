// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import "errors"

// Sentinel errors for entry-point shape validation (§7 Error Handling
// Design: "Shape mismatch ... fail at entry before any computation").
var (
	ErrShapeMismatch  = errors.New("pmopt: array shape mismatch")
	ErrInvalidDipole  = errors.New("pmopt: invalid dipole count")
	ErrInvalidMaximum = errors.New("pmopt: dipole maximum magnitude must be positive")
)
