package netrt

import (
	"sync"

	"github.com/hvm-core/hvmc/internal/port"
)

// Pair is a queued active pair: two principal ports, pushed by Link once
// neither side is a VAR, awaiting an interaction rule.
type Pair struct {
	A, B port.Port
}

// class distinguishes the two priority lanes of spec.md §4.H.
type class uint8

const (
	fast class = iota // link, void, erase
	slow              // call, commute, operate
)

// classOf reports which lane a redex belongs in, based on tags alone
// (before the rule that will actually consume it runs).
func classOf(a, b port.Port) class {
	ta, tb := a.Tag(), b.Tag()
	switch {
	case ta == port.VAR || tb == port.VAR:
		return fast
	case ta == port.ERA || tb == port.ERA:
		return fast
	default:
		return slow
	}
}

// Bag is a per-worker LIFO of pending active pairs, split into a fast
// and a slow lane per spec.md §4.H. Fast pairs are drained first so a
// worker prefers finishing cheap local chains before spending a steal
// window on the slow lane.
//
// The fast lane is touched only by the owning worker's own Run loop and
// stays a bare slice. The slow lane is also where a peer's trySteal
// reaches in via SplitSteal/Absorb while the owner may concurrently be
// Push-ing (every call/commute/operate feeds the slow lane) or Pop-ing
// it, so slowMu, a plain sync.Mutex, guards every slow-lane access,
// including the owner's own Push and Pop. There is no CAS-claimed
// handoff slot; the steal handoff is not lock-free.
type Bag struct {
	fastStack []Pair

	slowMu    sync.Mutex
	slowStack []Pair
}

// NewBag returns an empty bag.
func NewBag() *Bag { return &Bag{} }

// Push files a pair into its priority lane.
func (b *Bag) Push(a, b_ port.Port) {
	if classOf(a, b_) == fast {
		b.fastStack = append(b.fastStack, Pair{a, b_})
		return
	}
	b.slowMu.Lock()
	b.slowStack = append(b.slowStack, Pair{a, b_})
	b.slowMu.Unlock()
}

// Pop removes and returns the next pair to process, fast lane first.
// The second return is false when the bag is empty.
func (b *Bag) Pop() (Pair, bool) {
	if n := len(b.fastStack); n > 0 {
		p := b.fastStack[n-1]
		b.fastStack = b.fastStack[:n-1]
		return p, true
	}
	b.slowMu.Lock()
	defer b.slowMu.Unlock()
	if n := len(b.slowStack); n > 0 {
		p := b.slowStack[n-1]
		b.slowStack = b.slowStack[:n-1]
		return p, true
	}
	return Pair{}, false
}

// Len returns the total number of queued pairs across both lanes.
func (b *Bag) Len() int {
	b.slowMu.Lock()
	defer b.slowMu.Unlock()
	return len(b.fastStack) + len(b.slowStack)
}

// Empty reports whether both lanes are empty.
func (b *Bag) Empty() bool {
	if len(b.fastStack) != 0 {
		return false
	}
	b.slowMu.Lock()
	defer b.slowMu.Unlock()
	return len(b.slowStack) == 0
}

// SplitSteal removes and returns half of the bag's slow lane, rounded up
// (so a single queued pair is taken), for
// a peer worker to steal (spec.md §4.I's split-steal). It never yields
// fast-lane work: fast redexes are cheap enough that stealing them
// would just relocate cache-hot work for no benefit.
func (b *Bag) SplitSteal() []Pair {
	b.slowMu.Lock()
	defer b.slowMu.Unlock()
	n := len(b.slowStack)
	if n == 0 {
		return nil
	}
	half := (n + 1) / 2
	stolen := make([]Pair, half)
	copy(stolen, b.slowStack[n-half:])
	b.slowStack = b.slowStack[:n-half]
	return stolen
}

// Absorb appends stolen pairs into the slow lane, LIFO order preserved
// so the thief resumes depth-first from wherever the donation left off.
func (b *Bag) Absorb(pairs []Pair) {
	b.slowMu.Lock()
	b.slowStack = append(b.slowStack, pairs...)
	b.slowMu.Unlock()
}
