// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
)

// Caller identifies a restricted execution context. Its priority is the
// one blocking Get uses through a [Handle], so waiter ordering follows
// the caller, not an ambient thread state.
type Caller struct {
	name string
	prio int
}

// NewCaller creates a caller token. Larger prio is served earlier when
// several callers block on the same queue.
func NewCaller(name string, prio int) *Caller {
	return &Caller{name: name, prio: prio}
}

// Name returns the caller's name.
func (c *Caller) Name() string { return c.name }

// Priority returns the caller's scheduling priority.
func (c *Caller) Priority() int { return c.prio }

// Registry owns a fixed pool of queue objects and the grant table that
// gates restricted access to them.
//
// Restricted contexts never touch a [Queue] directly: they allocate
// through AllocQueue and operate through the returned [Handle], whose
// every call is validated against the grant table. Grants are
// reference-counted per object; when the last granted caller releases,
// the object is scrubbed (waiters cancelled, envelopes returned to the
// shared pool) and recycled, so an abnormally terminated context leaks
// at most its own grants.
//
// The registry is an explicit policy object, not ambient global state:
// independent registries are fully isolated.
type Registry[T Item] struct {
	mu    sync.Mutex
	slots []regSlot[T]
	free  []uint32
	pool  *Pool
}

type regSlot[T Item] struct {
	queue  Queue[T]
	gen    uint64 // bumped on reclaim; stale handles fail the check
	grants map[*Caller]struct{}
	live   bool
}

// NewRegistry creates a registry holding objects queue slots, plus a
// shared envelope pool of the given size that backs the allocating
// variants on every registry queue. A zero envelopes size disables the
// allocating variants: they fail with ErrNoMemory.
// Panics if objects < 1.
func NewRegistry[T Item](objects, envelopes int) *Registry[T] {
	if objects < 1 {
		panic("bq: registry needs at least one object slot")
	}

	r := &Registry[T]{
		slots: make([]regSlot[T], objects),
		free:  make([]uint32, 0, objects),
	}
	if envelopes > 0 {
		r.pool = NewPool(envelopes)
	}
	// LIFO recycle order keeps recently scrubbed slots warm.
	for i := objects - 1; i >= 0; i-- {
		r.free = append(r.free, uint32(i))
	}
	return r
}

// AllocQueue takes a queue object from the pool, initializes it against
// the shared envelope pool, and grants owner access. Returns ErrNoMemory
// when every slot is in use.
func (r *Registry[T]) AllocQueue(owner *Caller) (*Handle[T], error) {
	r.mu.Lock()
	if len(r.free) == 0 {
		r.mu.Unlock()
		return nil, ErrNoMemory
	}
	idx := r.free[len(r.free)-1]
	r.free = r.free[:len(r.free)-1]
	s := &r.slots[idx]
	s.live = true
	s.grants = map[*Caller]struct{}{owner: {}}
	gen := s.gen
	r.mu.Unlock()

	s.queue.Init(WithPool[T](r.pool))
	return &Handle[T]{reg: r, caller: owner, idx: idx, gen: gen}, nil
}

// Grant extends via's object to another caller and returns the new
// caller's handle. via must itself hold a valid grant.
func (r *Registry[T]) Grant(via *Handle[T], to *Caller) (*Handle[T], error) {
	r.mu.Lock()
	s, ok := r.check(via)
	if !ok {
		r.mu.Unlock()
		via.poison()
		return nil, ErrInvalidAccess
	}
	s.grants[to] = struct{}{}
	gen := s.gen
	r.mu.Unlock()
	return &Handle[T]{reg: r, caller: to, idx: via.idx, gen: gen}, nil
}

// Revoke strips from's grant on via's object, the per-object inverse
// of Grant. via must itself hold a valid grant; otherwise it is
// poisoned and ErrInvalidAccess returned. Revoking a caller without a
// grant on the object is a no-op. When the revoked grant was the
// object's last, the queue is scrubbed and recycled.
//
// Handles the revoked caller still holds fail their next check; a
// consumer of that caller blocked in Get stays blocked until an item,
// CancelWait, or reclaim resolves it.
func (r *Registry[T]) Revoke(via *Handle[T], from *Caller) error {
	r.mu.Lock()
	s, ok := r.check(via)
	if !ok {
		r.mu.Unlock()
		via.poison()
		return ErrInvalidAccess
	}
	if _, ok := s.grants[from]; !ok {
		r.mu.Unlock()
		return nil
	}
	delete(s.grants, from)
	last := len(s.grants) == 0
	if last {
		s.live = false
		s.gen++
	}
	r.mu.Unlock()

	if last {
		r.recycle(via.idx)
	}
	return nil
}

// ReleaseContext drops every grant held by c across the registry, as on
// context termination. Objects whose last grant this was are scrubbed
// and recycled.
func (r *Registry[T]) ReleaseContext(c *Caller) {
	r.mu.Lock()
	var reclaim []uint32
	for i := range r.slots {
		s := &r.slots[i]
		if !s.live {
			continue
		}
		if _, ok := s.grants[c]; !ok {
			continue
		}
		delete(s.grants, c)
		if len(s.grants) == 0 {
			s.live = false
			s.gen++
			reclaim = append(reclaim, uint32(i))
		}
	}
	r.mu.Unlock()

	for _, idx := range reclaim {
		r.recycle(idx)
	}
}

// check validates h against the grant table. Caller holds r.mu.
func (r *Registry[T]) check(h *Handle[T]) (*regSlot[T], bool) {
	if h.poisoned.LoadAcquire() {
		return nil, false
	}
	s := &r.slots[h.idx]
	if !s.live || s.gen != h.gen {
		return nil, false
	}
	if _, ok := s.grants[h.caller]; !ok {
		return nil, false
	}
	return s, true
}

// recycle scrubs a dead slot's queue and returns it to the free list.
// The slot is already invisible to handles (live false, gen bumped), so
// the scrub runs outside r.mu.
func (r *Registry[T]) recycle(idx uint32) {
	r.slots[idx].queue.Init()
	r.mu.Lock()
	r.free = append(r.free, idx)
	r.mu.Unlock()
}

// Handle is the vetted entry-point surface a restricted caller holds
// for one granted queue object.
//
// Every call is validated against the registry's grant table and then
// delegated to the core operation; blocking Get uses the caller's
// priority. A call that fails validation returns ErrInvalidAccess and
// poisons the handle, after which all further calls fail the same way:
// the restricted context loses its access, never the shared structure.
//
// The handle exposes only operations that cannot corrupt intrusive
// links: there is no Remove, UniqueAppend, or AppendMany here, since
// those walk or splice node chains the caller should not reach.
type Handle[T Item] struct {
	reg      *Registry[T]
	caller   *Caller
	idx      uint32
	gen      uint64
	poisoned atomix.Bool
}

// Caller returns the context this handle was granted to.
func (h *Handle[T]) Caller() *Caller { return h.caller }

// queue validates the grant and returns the backing queue.
func (h *Handle[T]) queue() (*Queue[T], error) {
	r := h.reg
	r.mu.Lock()
	s, ok := r.check(h)
	r.mu.Unlock()
	if !ok {
		h.poison()
		return nil, ErrInvalidAccess
	}
	return &s.queue, nil
}

func (h *Handle[T]) poison() {
	h.poisoned.StoreRelease(true)
}

// Release drops this handle's grant. When it was the object's last
// grant, the queue is scrubbed and returned to the registry pool;
// consumers still blocked on the object are released with
// ErrWouldBlock at that point. The handle is unusable afterwards.
//
// Starting new operations through a handle concurrently with its
// Release is a caller error, like freeing an object in use.
func (h *Handle[T]) Release() {
	r := h.reg
	r.mu.Lock()
	s, ok := r.check(h)
	if !ok {
		r.mu.Unlock()
		h.poison()
		return
	}
	delete(s.grants, h.caller)
	last := len(s.grants) == 0
	if last {
		s.live = false
		s.gen++
	}
	r.mu.Unlock()

	h.poison()
	if last {
		r.recycle(h.idx)
	}
}

// Init reinitializes the granted queue: pending items are dropped and
// blocked consumers released, as with [Queue.Init].
func (h *Handle[T]) Init() error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	q.Init()
	return nil
}

// Append validates the grant, then appends item at the tail.
func (h *Handle[T]) Append(item T) error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	q.Append(item)
	return nil
}

// Prepend validates the grant, then prepends item at the head.
func (h *Handle[T]) Prepend(item T) error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	q.Prepend(item)
	return nil
}

// AllocAppend validates the grant, then appends through a pool
// envelope. Returns ErrNoMemory on pool exhaustion.
func (h *Handle[T]) AllocAppend(item T) error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	return q.AllocAppend(item)
}

// AllocPrepend validates the grant, then prepends through a pool
// envelope. Returns ErrNoMemory on pool exhaustion.
func (h *Handle[T]) AllocPrepend(item T) error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	return q.AllocPrepend(item)
}

// Get validates the grant, then waits up to timeout for an item at the
// caller's priority.
func (h *Handle[T]) Get(timeout time.Duration) (T, error) {
	q, err := h.queue()
	if err != nil {
		var zero T
		return zero, err
	}
	return q.GetPrio(h.caller.prio, timeout)
}

// CancelWait validates the grant, then releases every blocked consumer.
func (h *Handle[T]) CancelWait() error {
	q, err := h.queue()
	if err != nil {
		return err
	}
	q.CancelWait()
	return nil
}

// PeekHead validates the grant, then returns the head without removal.
func (h *Handle[T]) PeekHead() (T, error) {
	q, err := h.queue()
	if err != nil {
		var zero T
		return zero, err
	}
	return q.PeekHead()
}

// PeekTail validates the grant, then returns the tail without removal.
func (h *Handle[T]) PeekTail() (T, error) {
	q, err := h.queue()
	if err != nil {
		var zero T
		return zero, err
	}
	return q.PeekTail()
}

// IsEmpty validates the grant, then reports queue emptiness.
func (h *Handle[T]) IsEmpty() (bool, error) {
	q, err := h.queue()
	if err != nil {
		return false, err
	}
	return q.IsEmpty(), nil
}
