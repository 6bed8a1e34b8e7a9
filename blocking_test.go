// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/bq"
)

// registerDelay gives a consumer goroutine time to take the queue lock
// and park before the test proceeds. Generous on purpose; the tests
// only need ordering, not tight timing.
const registerDelay = 50 * time.Millisecond

// TestGetBlocksUntilAppend checks that a Forever waiter is woken with
// the appended item.
func TestGetBlocksUntilAppend(t *testing.T) {
	q := bq.New[*task]()
	res := make(chan *task, 1)

	go func() {
		it, err := q.Get(bq.Forever)
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		res <- it
	}()

	time.Sleep(registerDelay)
	q.Append(&task{data: 42})

	select {
	case it := <-res:
		if it == nil || it.data != 42 {
			t.Fatalf("woken with %v, want data 42", it)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by Append")
	}

	if !q.IsEmpty() {
		t.Fatal("item was both handed off and linked")
	}
}

// TestGetBlocksUntilPrepend checks that Prepend also hands off directly.
func TestGetBlocksUntilPrepend(t *testing.T) {
	q := bq.New[*task]()
	res := make(chan *task, 1)

	go func() {
		it, _ := q.Get(bq.Forever)
		res <- it
	}()

	time.Sleep(registerDelay)
	q.Prepend(&task{data: 7})

	select {
	case it := <-res:
		if it == nil || it.data != 7 {
			t.Fatalf("woken with %v, want data 7", it)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not woken by Prepend")
	}
}

// TestGetTimeout checks that a bounded wait expires with the uniform
// "no item" result and only after the requested duration.
func TestGetTimeout(t *testing.T) {
	q := bq.New[*task]()

	const timeout = 50 * time.Millisecond
	start := time.Now()
	_, err := q.Get(timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, bq.ErrWouldBlock) {
		t.Fatalf("Get: got %v, want ErrWouldBlock", err)
	}
	if elapsed < timeout {
		t.Fatalf("Get returned after %v, want >= %v", elapsed, timeout)
	}
}

// TestCancelWaitReleasesBlocked checks that CancelWait releases exactly
// the consumers blocked at call time and leaves the queue usable.
func TestCancelWaitReleasesBlocked(t *testing.T) {
	q := bq.New[*task]()

	const waiters = 4
	var wg sync.WaitGroup
	for range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Get(bq.Forever); !errors.Is(err, bq.ErrWouldBlock) {
				t.Errorf("cancelled Get: got %v, want ErrWouldBlock", err)
			}
		}()
	}

	time.Sleep(registerDelay)
	q.CancelWait()
	wg.Wait()

	// Items are untouched by cancellation and blocking works again.
	q.Append(&task{data: 1})
	if it, err := q.Get(bq.NoWait); err != nil || it.data != 1 {
		t.Fatalf("Get after cancel: got %v, %v", it, err)
	}
	if _, err := q.Get(20 * time.Millisecond); !errors.Is(err, bq.ErrWouldBlock) {
		t.Fatalf("Get after cancel should block and time out, got %v", err)
	}
}

// TestCancelWaitIdle checks that cancellation with nobody waiting is a
// safe no-op.
func TestCancelWaitIdle(t *testing.T) {
	q := bq.New[*task]()
	q.CancelWait()
	q.CancelWait()

	q.Append(&task{data: 1})
	q.CancelWait()
	if q.IsEmpty() {
		t.Fatal("CancelWait touched queued items")
	}
}

// TestCancelWaitKeepsItems checks cancellation does not consume or
// reorder list contents.
func TestCancelWaitKeepsItems(t *testing.T) {
	q := bq.New[*task]()
	for i := range 3 {
		q.Append(&task{data: i})
	}
	q.CancelWait()

	got := drain(t, q)
	for i := range 3 {
		if got[i] != i {
			t.Fatalf("drain[%d]: got %d, want %d", i, got[i], i)
		}
	}
}

// TestWaiterPriority blocks three consumers of distinct priorities and
// checks that hand-off serves the numerically largest priority first.
func TestWaiterPriority(t *testing.T) {
	q := bq.New[*task]()

	type result struct {
		prio int
		data int
	}
	res := make(chan result, 3)

	// Register lowest priority first so arrival order and priority
	// order disagree.
	for _, prio := range []int{1, 2, 3} {
		go func(prio int) {
			it, err := q.GetPrio(prio, bq.Forever)
			if err != nil {
				t.Errorf("GetPrio(%d): %v", prio, err)
				return
			}
			res <- result{prio: prio, data: it.data}
		}(prio)
		time.Sleep(registerDelay)
	}

	for i := range 3 {
		q.Append(&task{data: i})
	}

	want := map[int]int{3: 0, 2: 1, 1: 2}
	for range 3 {
		select {
		case r := <-res:
			if want[r.prio] != r.data {
				t.Fatalf("prio %d got item %d, want %d", r.prio, r.data, want[r.prio])
			}
		case <-time.After(5 * time.Second):
			t.Fatal("waiters were not all served")
		}
	}
}

// TestWaiterArrivalOrder checks the FIFO tiebreak among equal
// priorities.
func TestWaiterArrivalOrder(t *testing.T) {
	q := bq.New[*task]()

	res := make(chan int, 2) // arrival index of each served waiter
	for arrival := range 2 {
		go func(arrival int) {
			if _, err := q.Get(bq.Forever); err == nil {
				res <- arrival
			}
		}(arrival)
		time.Sleep(registerDelay)
	}

	q.Append(&task{data: 0})
	first := <-res
	if first != 0 {
		t.Fatalf("second arrival served first")
	}
	q.Append(&task{data: 1})
	if second := <-res; second != 1 {
		t.Fatalf("waiter %d served twice", second)
	}
}

// TestExactlyOnceDelivery runs producers against blocking consumers and
// checks every item is delivered to exactly one consumer.
func TestExactlyOnceDelivery(t *testing.T) {
	const (
		producers = 4
		consumers = 4
		perProd   = 1000
	)
	total := producers * perProd

	q := bq.New[*task]()
	seen := make([]atomix.Int32, total)
	var delivered atomix.Int64

	var prodWg, consWg sync.WaitGroup
	for p := range producers {
		prodWg.Add(1)
		go func(p int) {
			defer prodWg.Done()
			for i := range perProd {
				q.Append(&task{data: p*perProd + i})
			}
		}(p)
	}

	for range consumers {
		consWg.Add(1)
		go func() {
			defer consWg.Done()
			for {
				it, err := q.Get(500 * time.Millisecond)
				if err != nil {
					return
				}
				seen[it.data].Add(1)
				delivered.Add(1)
			}
		}()
	}

	prodWg.Wait()
	consWg.Wait()

	if n := delivered.Load(); n != int64(total) {
		t.Fatalf("delivered %d items, want %d", n, total)
	}
	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("item %d delivered %d times", i, n)
		}
	}
}

// TestTimeoutRaceNoLoss races tiny Get timeouts against a producer and
// checks no item is lost when a hand-off and a timeout resolve the same
// wait ticket: the late party must fall back without dropping the item.
func TestTimeoutRaceNoLoss(t *testing.T) {
	const total = 2000

	q := bq.New[*task]()
	received := 0

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range total {
			q.Append(&task{data: i})
			if i%64 == 0 {
				time.Sleep(time.Microsecond)
			}
		}
	}()

	for received < total {
		if _, err := q.Get(time.Microsecond); err == nil {
			received++
		}
		select {
		case <-done:
			// Producer finished; drain whatever remains.
			received += len(drain(t, q))
			if received != total {
				t.Fatalf("received %d items, want %d", received, total)
			}
			return
		default:
		}
	}
}
