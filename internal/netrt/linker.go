package netrt

import (
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

// defaultMaxLinkDepth bounds Link/linkVar's mutual recursion when a
// Net's own MaxLinkDepth is unset. Each level is one resolved hop of
// indirection through an already-claimed wire, not one redex.
const defaultMaxLinkDepth = 1 << 16

func (n *Net) linkDepthLimit() int {
	if n.MaxLinkDepth > 0 {
		return n.MaxLinkDepth
	}
	return defaultMaxLinkDepth
}

// Link is the central operation of spec.md §4.E. a and b are either
// principal ports (agents ready to interact) or VAR location
// descriptors (naming a heap slot awaiting a bind). It is lock-free:
// every retry either commits a bind or discovers a value that lets it
// make forward progress by recursing on strictly-more-resolved ports.
//
// Adapted from original_source/src/run.rs's atomic_link/atomic_linker,
// simplified to a single Lock/Gone claim-and-relink loop per slot
// rather than that implementation's two-phase half-link split -- the
// Gone claim already prevents the double-relink race the split exists
// to avoid, at the cost of one extra CAS in the rare already-resolved
// path.
//
// Link and linkVar recurse into each other one indirection hop at a
// time (spec.md §4.I's "stack discipline: rule dispatch uses explicit
// recursion with a stack-growth guard"); depth is threaded through both
// so a pathologically long indirection chain fails fast with
// hvmerr.ErrStackOverflow rather than exhausting the goroutine stack.
func Link(n *Net, a, b port.Port) error {
	return link(n, a, b, 0)
}

func link(n *Net, a, b port.Port, depth int) error {
	if depth > n.linkDepthLimit() {
		return hvmerr.NewStackOverflow(depth, n.linkDepthLimit())
	}
	aVar, bVar := a.IsVar(), b.IsVar()
	switch {
	case aVar && bVar:
		first, second := a, b
		if addrKey(a) > addrKey(b) {
			first, second = b, a
		}
		if err := linkVar(n, first, second, depth+1); err != nil {
			return err
		}
		// Only a still-unbound second end needs the reverse half of the
		// wire; if it already held a value, the first linkVar has claimed
		// and relinked it.
		if n.Heap.Get(heap.Index(second.NodeIndex()), second.AuxPort()) != port.Lock {
			return nil
		}
		return linkVar(n, second, first, depth+1)
	case aVar:
		return linkVar(n, a, b, depth+1)
	case bVar:
		return linkVar(n, b, a, depth+1)
	default:
		n.Bag.Push(a, b)
		return nil
	}
}

// addrKey orders VAR locations so a two-var bind always claims its two
// slots in the same global order regardless of which worker initiates
// it, preventing lock-step livelock between two workers linking the
// same pair from opposite ends.
func addrKey(p port.Port) uint64 {
	return (p.NodeIndex() << 1) | uint64(p.AuxPort())
}

// linkVar resolves the wire whose current end is the location v,
// binding it to x. If v's slot is still the Lock sentinel, x is
// written directly. If the slot already holds a value (another writer
// got there first, or v is itself chained through further
// indirection), that value is claimed via Gone and relinked against x.
func linkVar(n *Net, v, x port.Port, depth int) error {
	idx := heap.Index(v.NodeIndex())
	aux := v.AuxPort()
	for {
		old := n.Heap.Get(idx, aux)
		switch old {
		case port.Lock:
			if n.Heap.CAS(idx, aux, port.Lock, x) {
				return nil
			}
		case port.Gone:
			// Another worker already claimed this wire and is relinking
			// it; our job here is done.
			return nil
		default:
			if n.Heap.CAS(idx, aux, old, port.Gone) {
				return link(n, old, x, depth+1)
			}
		}
	}
}
