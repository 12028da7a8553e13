package netrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

func newTestNet(t *testing.T, capacity int) *Net {
	t.Helper()
	h := heap.New(capacity, 1)
	bld := book.NewBuilder()
	bk, err := bld.Build()
	require.NoError(t, err)
	return New(h, bk, 0, numeric.Wrap)
}

func TestLinkTwoPrincipalsQueuesRedex(t *testing.T) {
	n := newTestNet(t, 4)
	a := port.NewNum(port.U60, 2)
	b := port.NewNum(port.U60, 3)
	require.NoError(t, Link(n, a, b))
	require.Equal(t, 1, n.Bag.Len())
	pair, ok := n.Bag.Pop()
	require.True(t, ok)
	require.Equal(t, a, pair.A)
	require.Equal(t, b, pair.B)
}

func TestLinkVarToLockBindsDirectly(t *testing.T) {
	n := newTestNet(t, 4)
	idx, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(idx, 0, port.Lock)

	target := port.NewNum(port.U60, 7)
	require.NoError(t, Link(n, port.NewVar(uint64(idx), 0), target))
	require.Equal(t, target, n.Heap.Get(idx, 0))
	require.True(t, n.Bag.Empty())
}

func TestLinkVarToVarBindsBothDirections(t *testing.T) {
	n := newTestNet(t, 4)
	idxA, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	idxB, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(idxA, 0, port.Lock)
	n.Heap.Set(idxB, 1, port.Lock)

	varA := port.NewVar(uint64(idxA), 0)
	varB := port.NewVar(uint64(idxB), 1)
	require.NoError(t, Link(n, varA, varB))

	require.Equal(t, varB, n.Heap.Get(idxA, 0))
	require.Equal(t, varA, n.Heap.Get(idxB, 1))
}

// TestLinkTripsStackOverflowGuardOnLongIndirectionChain builds a chain
// of already-resolved VAR cells, each pointing at the next, longer than
// a deliberately small MaxLinkDepth. Relinking through the whole chain
// would otherwise recurse Link/linkVar once per hop with no bound, per
// spec.md §4.I's "stack discipline ... stack-growth guard".
func TestLinkTripsStackOverflowGuardOnLongIndirectionChain(t *testing.T) {
	n := newTestNet(t, 32)
	n.MaxLinkDepth = 3

	const chainLen = 20
	cells := make([]heap.Index, chainLen)
	for i := range cells {
		idx, err := n.Heap.Alloc(0)
		require.NoError(t, err)
		cells[i] = idx
	}
	for i := 0; i < chainLen-1; i++ {
		n.Heap.Set(cells[i], 0, port.NewVar(uint64(cells[i+1]), 0))
	}
	n.Heap.Set(cells[chainLen-1], 0, port.NewNum(port.U60, 1))

	err := Link(n, port.NewVar(uint64(cells[0]), 0), port.NewNum(port.U60, 2))
	require.Error(t, err)
	require.ErrorIs(t, err, hvmerr.ErrStackOverflow)
}

func TestLinkVarAlreadyResolvedRelinksThroughIt(t *testing.T) {
	n := newTestNet(t, 4)
	idx, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	held := port.NewNum(port.U60, 9)
	n.Heap.Set(idx, 0, held)

	other := port.NewNum(port.U60, 1)
	require.NoError(t, Link(n, port.NewVar(uint64(idx), 0), other))

	require.Equal(t, port.Gone, n.Heap.Get(idx, 0))
	require.Equal(t, 1, n.Bag.Len())
	pair, _ := n.Bag.Pop()
	require.Equal(t, held, pair.A)
	require.Equal(t, other, pair.B)
}
