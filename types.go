// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

// Node is the intrusive link embedded in every queueable payload.
//
// A payload type opts into queueing by embedding Node; the embedding is
// what satisfies [Item]:
//
//	type Task struct {
//	    bq.Node
//	    ID int
//	}
//
//	q := bq.New[*Task]()
//	q.Append(&Task{ID: 1})
//
// The link lives inside the payload, so the non-allocating path performs
// no per-enqueue allocation. Go has no container_of, so while an item is
// queued its node also records the enclosing item reference; for pointer
// payloads that is an interface header copy, never a copy of the payload
// itself. The queue reads and writes only node fields, never payload
// contents.
//
// A node's fields are touched only between insertion and removal, and
// only under the owning queue's lock. An item must not be queued twice
// at once through its own node (the allocating path sidesteps this: it
// links a pool envelope and leaves the item's node untouched).
type Node struct {
	next *Node
	item any       // enclosing item, set while queued
	env  *envelope // owning envelope for pool-backed nodes, else nil
}

// node implements Item for any type that embeds Node.
func (n *Node) node() *Node { return n }

// Item is the constraint for queueable payloads.
//
// It is satisfied exclusively by embedding [Node]; the interface is
// sealed so nothing but a node-carrying payload can be linked.
// Use a pointer type as the type argument (for example Queue[*Task])
// so delivery hands back the producer's exact object.
type Item interface {
	node() *Node
}
