// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock is the uniform "no item" result from Get and the peeks.
//
// Get returns ErrWouldBlock in three situations:
//
//   - the queue is empty and the timeout is NoWait
//   - the timeout expired before an item arrived
//   - CancelWait released the waiter
//
// The three are deliberately indistinguishable. A consumer that needs to
// tell a timeout from a cancellation must keep its own bookkeeping (for
// example, compare elapsed time against the requested timeout).
//
// ErrWouldBlock is a control flow signal, not a failure. This is an alias
// for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrNoMemory indicates envelope pool exhaustion.
//
// AllocAppend and AllocPrepend return ErrNoMemory when the backing [Pool]
// cannot supply an envelope, or when the queue has no pool configured.
// The item is never enqueued in that case; there is no partial insertion.
//
// [Registry.AllocQueue] returns ErrNoMemory when its object pool is empty.
var ErrNoMemory = errors.New("bq: out of memory")

// ErrInvalidAccess indicates a restricted call against an object the
// caller holds no grant for.
//
// Once a [Handle] observes ErrInvalidAccess it is poisoned: every further
// call through it fails the same way. A faulty restricted context can lose
// its own access but cannot corrupt structure observed by other contexts.
var ErrInvalidAccess = errors.New("bq: invalid access")

// IsWouldBlock reports whether err indicates the "no item" result.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Delegates to [iox.IsSemantic].
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil or ErrWouldBlock.
// Delegates to [iox.IsNonFailure].
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}
