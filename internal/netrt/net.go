// Package netrt implements the live net: linking, the interaction
// rules, template instantiation, and the per-worker redex bag of
// spec.md §4.D-§4.H.
package netrt

import (
	"fmt"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

// Counters tallies interactions performed, by rule name, for
// diagnostics and the S8 heap-conservation property tests.
type Counters struct {
	Link, Call, Void, Erase, Annihilate, Commute, Operate, Operate1, Match, Copy int64
}

// Trace receives one event per interaction, when a Net is built with a
// non-nil sink (see cmd/hvmc's --trace flag).
type Trace interface {
	Rule(name string, a, b port.Port)
}

// Net is a single worker's view of the graph: a root port, a shared
// heap, a local redex bag, and interaction counters. Nets are never
// shared between workers; the heap and inter-worker steal handoffs are
// the only cross-worker state, per spec.md §4.D.
type Net struct {
	Root Port

	Heap     *heap.Heap
	Book     *book.Book
	Bag      *Bag
	Worker   int
	Overflow numeric.OverflowMode
	Trace    Trace

	// MaxLinkDepth overrides defaultMaxLinkDepth's Link/linkVar
	// recursion guard when positive, per spec.md §4.I's "configured
	// guard".
	MaxLinkDepth int

	Counters Counters
}

// Port is a re-export so callers of this package rarely need to import
// internal/port directly for the common case.
type Port = port.Port

// New builds a Net over the given heap and book, owned by worker id.
func New(h *heap.Heap, b *book.Book, worker int, overflow numeric.OverflowMode) *Net {
	return &Net{Heap: h, Book: b, Bag: NewBag(), Worker: worker, Overflow: overflow}
}

// Boot instantiates defName as this net's root program: its root port
// becomes net.Root and its initial redexes are queued or bound per
// Instantiate's contract. This is spec.md §2's "root net starts with
// one redex (main ~ root)", specialized to a def named by the host
// rather than a synthetic pair.
func (n *Net) Boot(defIndex uint64) error {
	root, err := Instantiate(n, defIndex)
	if err != nil {
		return err
	}
	n.Root = root
	return nil
}

// Deref follows a chain of VAR indirections starting at p until it
// reaches a port that is either principal or a still-unresolved
// location (its slot holds Lock, awaiting a bind, or Gone, mid-relink),
// returning that terminal port. Used for heap-image dumps and readback:
// a var-to-var Link (two free wires aliased with no producer between
// them) leaves a var's slot holding another var rather than a concrete
// agent, so a single Heap.Get is not enough to reach the value. When two
// unbound ends were linked to each other, each slot holds the other end;
// Deref stops at p there and returns it.
func (n *Net) Deref(p Port) Port {
	for p.IsVar() {
		next := n.Heap.Get(heap.Index(p.NodeIndex()), p.AuxPort())
		if next == port.Lock || next == port.Gone {
			return p
		}
		if next.IsVar() && n.Heap.Get(heap.Index(next.NodeIndex()), next.AuxPort()) == p {
			return p
		}
		p = next
	}
	return p
}

// Run drains this net's bag, applying interaction rules until empty.
// It does not steal from peers; the scheduler package composes Run with
// stealing across a worker pool.
func (n *Net) Run() error {
	for {
		pair, ok := n.Bag.Pop()
		if !ok {
			return nil
		}
		if n.Trace != nil {
			n.Trace.Rule(fmt.Sprintf("%s~%s", pair.A.Tag(), pair.B.Tag()), pair.A, pair.B)
		}
		if err := Interact(n, pair.A, pair.B); err != nil {
			return err
		}
	}
}
