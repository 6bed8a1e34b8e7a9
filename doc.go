// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bq provides a blocking, priority-aware intrusive queue for
// inter-goroutine item hand-off.
//
// Unlike the bounded lock-free rings in code.hybscloud.com/lfq, bq is an
// unbounded linked queue built for the hand-off pattern: producers push
// items, consumers block with a timeout until one arrives, and a
// broadcast cancellation can release every blocked consumer at once.
// Items carry their own link by embedding [Node], so steady-state
// operation allocates nothing.
//
// # Quick Start
//
//	type Task struct {
//	    bq.Node
//	    ID int
//	}
//
//	q := bq.New[*Task]()
//
//	// Producer
//	q.Append(&Task{ID: 1})
//
//	// Consumer: block up to 100ms for an item
//	task, err := q.Get(100 * time.Millisecond)
//	if bq.IsWouldBlock(err) {
//	    // no item: empty+NoWait, timeout, or CancelWait
//	}
//
// # Ordering
//
// Append is FIFO and Prepend is LIFO; the two compose, so each prepend
// becomes the new head while appends extend the tail:
//
//	q.Append(a)  // a
//	q.Append(b)  // a b
//	q.Prepend(c) // c a b
//
// When several consumers block simultaneously, hand-off is priority-
// first (larger GetPrio value served earlier), arrival order among equal
// priorities. An arriving item goes straight to the best waiter without
// touching the list; each item is delivered to exactly one consumer,
// exactly once.
//
// # Blocking and Cancellation
//
// Get takes a timeout: [NoWait] polls, [Forever] waits indefinitely, any
// positive duration bounds the wait. Registration of the wait ticket is
// atomic with suspension under the queue lock, so a hand-off can never
// slip through between a consumer's empty-check and its sleep.
//
// CancelWait releases every consumer blocked at that instant. Timeout,
// cancellation, and empty-poll all surface as the single ErrWouldBlock
// result; the uniformity is deliberate (see [ErrWouldBlock]).
//
// # Allocating Variants
//
// AllocAppend and AllocPrepend link a pool envelope instead of the
// item's own node. The queue owns the envelope and releases it back to
// its [Pool] the moment the item is dequeued:
//
//	pool := bq.NewPool(64)
//	q := bq.New[*Task](bq.WithPool(pool))
//
//	if err := q.AllocAppend(task); err != nil {
//	    // bq.ErrNoMemory: pool exhausted, nothing was enqueued
//	}
//
// The item's embedded node stays untouched on this path, so a payload
// may sit in several queues at once via envelopes.
//
// # Restricted Access
//
// A [Registry] gates less-trusted code behind a capability check. Such
// code allocates queue objects from the registry pool and reaches them
// only through a [Handle], whose every call is validated against the
// grant table:
//
//	reg := bq.NewRegistry[*Task](8, 64)
//	owner := bq.NewCaller("producer", 0)
//
//	h, _ := reg.AllocQueue(owner)
//	h.Append(task)
//
//	other, _ := reg.Grant(h, bq.NewCaller("consumer", 1))
//	task, err := other.Get(bq.Forever)
//
// An ungranted call returns [ErrInvalidAccess] and poisons the handle.
// Grants are reference-counted and withdrawn one caller at a time with
// [Registry.Revoke], a whole caller at a time with
// [Registry.ReleaseContext]; when the last one goes away the object
// is scrubbed and recycled, bounding what a crashed context can leak.
// Handles deliberately omit the link-walking operations (Remove,
// UniqueAppend, AppendMany): those belong to trusted code that owns the
// nodes it splices.
//
// # Race Detection
//
// The queue core is mutex-based and race-detector clean. The envelope
// pool's free list, however, relies on atomix compare-and-swap with a
// version-tagged head; the race detector cannot observe happens-before
// edges established through atomix operations and may report false
// positives on pool internals under producer/consumer stress. Stress
// tests for that path are excluded via //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions in the pool's CAS loops.
package bq
