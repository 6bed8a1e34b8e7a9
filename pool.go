// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// envelope is a pool-backed node the queue itself owns. The allocating
// append/prepend variants link an envelope instead of the payload's own
// node and flag it for release on dequeue, so a restricted producer
// never exposes its node to the queue and the consumer never sees the
// wrapping.
type envelope struct {
	n        Node
	pool     *Pool
	selfIdx  uint32 // 1-based slab position
	freeNext uint32 // 1-based next free envelope, 0 terminates
}

// Pool is a fixed-capacity envelope allocator backing AllocAppend and
// AllocPrepend.
//
// Envelopes live in one slab; the free list is a LIFO threaded through
// slab indices with a version-tagged head (index in the low half,
// version in the high half) so a CAS cannot succeed across an ABA
// window. get and put are lock-free and safe from any goroutine; a
// single pool may back several queues.
//
// An exhausted pool makes the allocating variants fail with ErrNoMemory.
// Every envelope released by a dequeue is immediately reusable, so N
// drains always pay for N further allocations.
type Pool struct {
	_    pad
	head atomix.Uint64
	_    pad
	slab []envelope
}

// NewPool creates a pool of capacity envelopes.
// Panics if capacity < 1.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		panic("bq: pool capacity must be >= 1")
	}

	p := &Pool{slab: make([]envelope, capacity)}
	for i := range p.slab {
		e := &p.slab[i]
		e.pool = p
		e.selfIdx = uint32(i + 1)
		e.freeNext = uint32(i + 2)
		e.n.env = e
	}
	p.slab[capacity-1].freeNext = 0
	p.head.StoreRelaxed(1) // version 0, head at slab[0]
	return p
}

// Cap returns the pool capacity.
func (p *Pool) Cap() int {
	return len(p.slab)
}

// get takes an envelope off the free list, or nil when exhausted.
func (p *Pool) get() *envelope {
	sw := spin.Wait{}
	for {
		head := p.head.LoadAcquire()
		idx := uint32(head)
		if idx == 0 {
			return nil
		}
		e := &p.slab[idx-1]
		// e.freeNext may be stale if another goroutine wins the pop;
		// the version tag then fails the CAS and the read is discarded.
		next := ((head >> 32) + 1) << 32
		next |= uint64(e.freeNext)
		if p.head.CompareAndSwapAcqRel(head, next) {
			e.freeNext = 0
			return e
		}
		sw.Once()
	}
}

// put scrubs an envelope and pushes it back on the free list.
func (p *Pool) put(e *envelope) {
	e.n.next, e.n.item = nil, nil
	sw := spin.Wait{}
	for {
		head := p.head.LoadAcquire()
		e.freeNext = uint32(head)
		next := ((head >> 32) + 1) << 32
		next |= uint64(e.selfIdx)
		if p.head.CompareAndSwapAcqRel(head, next) {
			return
		}
		sw.Once()
	}
}
