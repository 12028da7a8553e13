// Package heap implements the fixed-capacity arena of two-port nodes
// that backs every net: a lock-free bump/free-list allocator over a
// contiguous slice of atomically-addressed port slots, per spec.md
// §4.B. Grounded on cauefcr-HVM/src/runtime.go's per-worker `Worker`
// arena-and-free-stack sketch, reworked so that freeing actually
// returns nodes to a shared, CAS-linked free list (that teacher code
// appends to a local slice and never lets other workers see it, which
// would violate invariant 4 of spec.md §3).
package heap

import (
	"sync/atomic"

	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

// Index identifies a node within a Heap.
type Index uint64

// nilIndex marks the end of a free-list chain. It is the largest index a
// REF port's payload can carry, so it survives being stored in a free
// node's slot 0 and read back through DefIndex.
const nilIndex = ^uint64(0) >> 8

// node is a two-port agent body: slot 0 and slot 1 are its two
// auxiliary ports (or, while free, slot 0 holds the next free-list
// pointer packed as a REF port whose DefIndex is the next node index).
type node struct {
	slots [2]atomic.Uint64
}

// Heap is a contiguous arena of N nodes shared by every worker. Workers
// bump-allocate within a disjoint stripe and fall back to a global,
// CAS-linked free list on stripe exhaustion.
type Heap struct {
	nodes    []node
	stripes  []atomic.Uint64 // per-worker next-free-in-stripe cursor
	stripeSz uint64
	workers  int

	freeHead atomic.Uint64 // Index of the head of the free list, or nilIndex
	freeLen  atomic.Int64  // approximate count, for diagnostics only

	allocated atomic.Int64
}

// New allocates a Heap with room for capacity nodes, striped evenly
// across workers goroutines (workers must be >= 1).
func New(capacity int, workers int) *Heap {
	if workers < 1 {
		workers = 1
	}
	h := &Heap{
		nodes:    make([]node, capacity),
		stripes:  make([]atomic.Uint64, workers),
		stripeSz: uint64(capacity) / uint64(workers),
		workers:  workers,
	}
	h.freeHead.Store(nilIndex)
	for w := 0; w < workers; w++ {
		h.stripes[w].Store(uint64(w) * h.stripeSz)
	}
	return h
}

// Cap returns the total node capacity.
func (h *Heap) Cap() int { return len(h.nodes) }

// Allocated returns the number of nodes currently allocated (not on the
// free list and not unused stripe space).
func (h *Heap) Allocated() int { return int(h.allocated.Load()) }

// Get reads the port stored at (idx, slot) with acquire ordering.
func (h *Heap) Get(idx Index, slot uint8) port.Port {
	return port.Port(h.nodes[idx].slots[slot&1].Load())
}

// Set writes value to (idx, slot) with release ordering.
func (h *Heap) Set(idx Index, slot uint8, value port.Port) {
	h.nodes[idx].slots[slot&1].Store(uint64(value))
}

// CAS attempts to replace (idx, slot)'s contents, acq-rel on success.
func (h *Heap) CAS(idx Index, slot uint8, expected, new_ port.Port) bool {
	return h.nodes[idx].slots[slot&1].CompareAndSwap(uint64(expected), uint64(new_))
}

// Swap atomically replaces (idx, slot)'s contents and returns the prior
// value, acq-rel.
func (h *Heap) Swap(idx Index, slot uint8, value port.Port) port.Port {
	return port.Port(h.nodes[idx].slots[slot&1].Swap(uint64(value)))
}

// Alloc reserves a fresh node for worker tid, bump-allocating within its
// stripe and falling back to the shared free list on stripe exhaustion.
// It returns a hvmerr.HeapExhaustedError (wrapped with occupancy detail)
// when both the stripe and the free list are exhausted.
func (h *Heap) Alloc(tid int) (Index, error) {
	if tid < 0 || tid >= h.workers {
		tid = 0
	}
	stripeStart := uint64(tid) * h.stripeSz
	stripeEnd := stripeStart + h.stripeSz
	if tid == h.workers-1 {
		stripeEnd = uint64(len(h.nodes))
	}
	if next := h.stripes[tid].Add(1) - 1; next < stripeEnd {
		h.allocated.Add(1)
		return Index(next), nil
	}
	if idx, ok := h.popFree(); ok {
		h.allocated.Add(1)
		return idx, nil
	}

	// Every worker's stripe and the free list are both exhausted: this
	// is fatal per §4.B/§7, not retried.
	return 0, hvmerr.NewHeapExhausted(len(h.nodes), int(h.allocated.Load()))
}

// popFree pops one node index off the CAS-linked free list.
func (h *Heap) popFree() (Index, bool) {
	for {
		head := h.freeHead.Load()
		if head == nilIndex {
			return 0, false
		}
		next := uint64(h.Get(Index(head), 0).DefIndex())
		if h.freeHead.CompareAndSwap(head, next) {
			h.freeLen.Add(-1)
			return Index(head), true
		}
	}
}

// Free returns idx to the shared free list, CAS-prepending it. This is
// the same operation the interaction rules use immediately after
// annihilation/erasure/operator-completion, satisfying invariant 4 of
// spec.md §3: a freed node is returned in the same operation that frees
// it.
func (h *Heap) Free(idx Index) {
	for {
		head := h.freeHead.Load()
		h.Set(idx, 0, port.NewRef(head))
		if h.freeHead.CompareAndSwap(head, uint64(idx)) {
			h.freeLen.Add(1)
			h.allocated.Add(-1)
			return
		}
	}
}
