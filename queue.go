// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"sync"
	"time"
)

// Queue is an unbounded blocking queue for inter-goroutine item hand-off.
//
// Items are linked through the [Node] they embed, so the non-allocating
// path never allocates per enqueue. Append is FIFO, Prepend is LIFO (each
// prepend becomes the new head), and the two compose: draining observes
// prepends newest-first, then appends oldest-first.
//
// Get blocks with a timeout when the queue is empty. Blocked consumers
// are served priority-first, ties broken by arrival order; an incoming
// item is handed straight to the best waiter without ever touching the
// list, so delivery is exactly once. CancelWait releases every blocked
// consumer with the uniform "no item" result.
//
// One mutex guards the item list and the wait-list, and waiter
// registration is atomic with suspension under that mutex, so no
// hand-off can slip between a consumer's empty-check and its sleep
// (the classic lost-wakeup hazard). A Get racing CancelWait is ordered
// by lock acquisition: last writer under the lock wins.
//
// All methods are safe for concurrent use. The zero value is a valid
// empty queue without an envelope pool; use New or Init to attach one.
type Queue[T Item] struct {
	mu      sync.Mutex
	head    *Node
	tail    *Node
	waiters waitList
	pool    *Pool
}

// New creates a queue.
//
//	q := bq.New[*Task]()
//	q := bq.New[*Task](bq.WithPool(bq.NewPool(64)))
func New[T Item](opts ...Option[T]) *Queue[T] {
	q := &Queue[T]{}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Init resets the queue to empty and applies opts.
//
// Pending items are dropped (pool envelopes go back to their pool) and
// every blocked consumer is released with ErrWouldBlock. Init on a fresh
// zero-value queue is a no-op apart from applying opts.
func (q *Queue[T]) Init(opts ...Option[T]) {
	q.mu.Lock()
	for w := q.waiters.pop(); w != nil; w = q.waiters.pop() {
		w.done = true
		w.ch <- nil
	}
	n := q.head
	q.head, q.tail = nil, nil
	for _, opt := range opts {
		opt(q)
	}
	q.mu.Unlock()

	for n != nil {
		next := n.next
		n.next, n.item = nil, nil
		if e := n.env; e != nil {
			e.pool.put(e)
		}
		n = next
	}
}

// Append adds item at the tail, or hands it directly to the
// highest-priority blocked consumer if one is waiting.
//
// The item must not currently be queued anywhere through its own node.
func (q *Queue[T]) Append(item T) {
	q.insert(item.node(), item, false)
}

// Prepend adds item at the head, or hands it directly to the
// highest-priority blocked consumer if one is waiting.
//
// The item must not currently be queued anywhere through its own node.
func (q *Queue[T]) Prepend(item T) {
	q.insert(item.node(), item, true)
}

// AppendMany appends items in order inside one critical section.
// Items are handed to blocked consumers first, best waiter first,
// then the remainder is linked at the tail.
func (q *Queue[T]) AppendMany(items ...T) {
	q.mu.Lock()
	for _, item := range items {
		n := item.node()
		n.item = item
		if w := q.waiters.pop(); w != nil {
			w.done = true
			w.ch <- n
			continue
		}
		q.link(n, false)
	}
	q.mu.Unlock()
}

// UniqueAppend appends item only when it is not already queued here.
// Reports whether the item was added. The membership walk and the
// insertion happen under one critical section.
func (q *Queue[T]) UniqueAppend(item T) bool {
	n := item.node()
	q.mu.Lock()
	for at := q.head; at != nil; at = at.next {
		if at.item == any(item) {
			q.mu.Unlock()
			return false
		}
	}
	n.item = item
	if w := q.waiters.pop(); w != nil {
		w.done = true
		w.ch <- n
	} else {
		q.link(n, false)
	}
	q.mu.Unlock()
	return true
}

// AllocAppend copies the item reference into a pool envelope and appends
// the envelope, leaving the item's own node untouched. The envelope is
// released back to its pool automatically when the item is dequeued.
// Returns ErrNoMemory when no pool is attached or the pool is exhausted;
// nothing is enqueued in that case.
func (q *Queue[T]) AllocAppend(item T) error {
	return q.allocInsert(item, false)
}

// AllocPrepend is AllocAppend at the head.
func (q *Queue[T]) AllocPrepend(item T) error {
	return q.allocInsert(item, true)
}

// Get removes and returns the head item, waiting up to timeout for one
// to arrive. Equivalent to GetPrio(0, timeout).
func (q *Queue[T]) Get(timeout time.Duration) (T, error) {
	return q.GetPrio(0, timeout)
}

// GetPrio is Get for a consumer of the given priority. Larger prio is
// served earlier when several consumers block; equal priorities are
// served in arrival order.
//
// With an empty queue and NoWait, GetPrio returns ErrWouldBlock
// immediately. Otherwise the consumer suspends until an item is handed
// off, CancelWait runs, or the timeout expires; the latter two both
// surface as ErrWouldBlock.
func (q *Queue[T]) GetPrio(prio int, timeout time.Duration) (T, error) {
	var zero T

	q.mu.Lock()
	if n := q.pop(); n != nil {
		q.mu.Unlock()
		return claim[T](n), nil
	}
	if timeout == NoWait {
		q.mu.Unlock()
		return zero, ErrWouldBlock
	}
	w := &waiter{prio: prio, ch: make(chan *Node, 1)}
	q.waiters.insert(w)
	q.mu.Unlock()

	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}

	select {
	case n := <-w.ch:
		if n == nil {
			return zero, ErrWouldBlock
		}
		return claim[T](n), nil
	case <-expire:
		q.mu.Lock()
		if w.done {
			// A hand-off or cancellation beat the timer to the lock;
			// the result is already in the channel and must not be lost.
			q.mu.Unlock()
			if n := <-w.ch; n != nil {
				return claim[T](n), nil
			}
			return zero, ErrWouldBlock
		}
		w.done = true
		q.waiters.remove(w)
		q.mu.Unlock()
		return zero, ErrWouldBlock
	}
}

// CancelWait releases every consumer currently blocked in Get with
// ErrWouldBlock. Items already queued stay queued, and later Get calls
// block normally again. No-op when nobody is waiting.
func (q *Queue[T]) CancelWait() {
	q.mu.Lock()
	for w := q.waiters.pop(); w != nil; w = q.waiters.pop() {
		w.done = true
		w.ch <- nil
	}
	q.mu.Unlock()
}

// PeekHead returns the head item without removing it.
// Returns ErrWouldBlock when the queue is empty.
func (q *Queue[T]) PeekHead() (T, error) {
	return q.peek(true)
}

// PeekTail returns the tail item without removing it.
// Returns ErrWouldBlock when the queue is empty.
func (q *Queue[T]) PeekTail() (T, error) {
	return q.peek(false)
}

// IsEmpty reports whether an immediate Get(NoWait) would fail.
func (q *Queue[T]) IsEmpty() bool {
	q.mu.Lock()
	empty := q.head == nil
	q.mu.Unlock()
	return empty
}

// Remove unlinks the given item wherever it sits in the queue and
// reports whether it was queued. An envelope that carried the item goes
// back to its pool. O(n) walk under the lock.
func (q *Queue[T]) Remove(item T) bool {
	q.mu.Lock()
	var prev *Node
	for n := q.head; n != nil; n = n.next {
		if n.item == any(item) {
			if prev == nil {
				q.head = n.next
			} else {
				prev.next = n.next
			}
			if q.tail == n {
				q.tail = prev
			}
			q.mu.Unlock()
			claim[T](n)
			return true
		}
		prev = n
	}
	q.mu.Unlock()
	return false
}

func (q *Queue[T]) insert(n *Node, item any, front bool) {
	n.item = item
	q.mu.Lock()
	if w := q.waiters.pop(); w != nil {
		w.done = true
		w.ch <- n
		q.mu.Unlock()
		return
	}
	q.link(n, front)
	q.mu.Unlock()
}

func (q *Queue[T]) allocInsert(item T, front bool) error {
	if q.pool == nil {
		return ErrNoMemory
	}
	e := q.pool.get()
	if e == nil {
		return ErrNoMemory
	}
	q.insert(&e.n, item, front)
	return nil
}

// link attaches n to an end of the list. Caller holds q.mu.
func (q *Queue[T]) link(n *Node, front bool) {
	if front {
		n.next = q.head
		q.head = n
		if q.tail == nil {
			q.tail = n
		}
		return
	}
	n.next = nil
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
}

// pop detaches the head node. Caller holds q.mu.
func (q *Queue[T]) pop() *Node {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	return n
}

func (q *Queue[T]) peek(front bool) (T, error) {
	var zero T
	q.mu.Lock()
	n := q.head
	if !front {
		n = q.tail
	}
	if n == nil {
		q.mu.Unlock()
		return zero, ErrWouldBlock
	}
	item := n.item.(T)
	q.mu.Unlock()
	return item, nil
}

// claim extracts the delivered item from a dequeued node, scrubs the
// node, and releases a pool envelope back to its pool.
func claim[T Item](n *Node) T {
	item := n.item.(T)
	n.next, n.item = nil, nil
	if e := n.env; e != nil {
		e.pool.put(e)
	}
	return item
}
