// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

// waiter is one blocked consumer's registration: its priority, arrival
// order, and a result slot filled exactly once by whichever of hand-off,
// cancellation, or timeout resolves it first.
//
// The channel is buffered so a resolver never blocks while holding the
// queue lock. done is written only under the queue lock; a timed-out
// consumer that re-acquires the lock and finds done already set knows a
// hand-off won the race and the item is sitting in ch.
type waiter struct {
	prio int
	ch   chan *Node // capacity 1; nil element means released without data
	done bool
	next *waiter
}

// waitList keeps blocked consumers ordered by descending priority,
// ties broken by arrival order. Only resolved waiters ever leave the
// list, and resolution happens under the queue lock, so every listed
// waiter is live.
type waitList struct {
	head *waiter
}

// insert places w by priority, after existing waiters of equal priority.
func (l *waitList) insert(w *waiter) {
	if l.head == nil || w.prio > l.head.prio {
		w.next = l.head
		l.head = w
		return
	}
	at := l.head
	for at.next != nil && at.next.prio >= w.prio {
		at = at.next
	}
	w.next = at.next
	at.next = w
}

// pop removes and returns the highest-priority waiter, or nil.
func (l *waitList) pop() *waiter {
	w := l.head
	if w != nil {
		l.head = w.next
		w.next = nil
	}
	return w
}

// remove unlinks w if it is still listed.
func (l *waitList) remove(w *waiter) {
	if l.head == w {
		l.head = w.next
		w.next = nil
		return
	}
	for at := l.head; at != nil; at = at.next {
		if at.next == w {
			at.next = w.next
			w.next = nil
			return
		}
	}
}
