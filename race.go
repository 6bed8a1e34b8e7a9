// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package bq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip pool stress tests, whose atomix-based free list
// triggers false positives: the detector cannot see the happens-before
// edges established by the version-tagged CAS.
const RaceEnabled = true
