// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gpmo implements the greedy permanent-magnet optimizer family: a
// binary matching-pursuit solver that places one dipole, axis and sign per
// iteration so as to greedily reduce the least-squares residual ‖Am-b‖².
//
// Four variants share the same availability mask, incremental residual, and
// history bookkeeping: Baseline (exhaustive 6N scan), MC (mutual-coherence
// guided candidate selection), Multi (multi-neighbor batch placement), and
// Backtracking (baseline plus periodic wyrm-pair pruning).
package gpmo
