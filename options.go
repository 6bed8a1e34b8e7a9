// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import "time"

// Timeout sentinels for Get.
//
// Any positive duration bounds the wait; the two sentinels cover the
// endpoints:
//
//	q.Get(bq.NoWait)         // poll: never suspends
//	q.Get(bq.Forever)        // suspend until hand-off or CancelWait
//	q.Get(50*time.Millisecond)
const (
	// NoWait makes Get return immediately with ErrWouldBlock when the
	// queue is empty.
	NoWait time.Duration = 0

	// Forever makes Get wait indefinitely for a hand-off or CancelWait.
	// Every negative duration behaves like Forever.
	Forever time.Duration = -1
)

// Option configures a Queue at construction or Init time.
type Option[T Item] func(*Queue[T])

// WithPool attaches an envelope pool, enabling AllocAppend and
// AllocPrepend. Without a pool the allocating variants fail with
// ErrNoMemory. A single pool may back any number of queues.
func WithPool[T Item](p *Pool) Option[T] {
	return func(q *Queue[T]) {
		q.pool = p
	}
}

// pad fills a full cache line to prevent false sharing.
type pad [64]byte
