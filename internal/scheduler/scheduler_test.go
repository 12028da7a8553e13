package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

func TestPoolSingleWorkerReducesToFixedPoint(t *testing.T) {
	bld := book.NewBuilder()
	bld.DefineWithRedexes("main", book.Var("x"), []book.NodeTemplate{
		{Tag: port.OP2, Sub: uint8(port.OpMul), Aux0: book.Num(port.U60, 6), Aux1: book.Var("x")},
	}, [][2]book.PortTemplate{
		{book.Num(port.U60, 7), book.Local(0)},
	})
	bk, err := bld.Build()
	require.NoError(t, err)
	idx, ok := bk.Index("main")
	require.True(t, ok)

	h := heap.New(32, 1)
	pool := New(h, bk, Config{Workers: 1, Overflow: numeric.Wrap})
	require.NoError(t, pool.Boot(idx))
	require.NoError(t, pool.Start())

	root := pool.Root()
	got := pool.Net(0).Deref(root)
	require.Equal(t, port.NewNum(port.U60, 42), got)
}

// TestPoolMultiWorkerStealingConservesHeap seeds every worker with
// several independent CTR~CTR annihilate pairs (bypassing Boot, since
// this test is about the steal/termination path rather than
// instantiation) and checks every pair gets reduced and every node
// freed, regardless of which worker's steal ends up processing it.
func TestPoolMultiWorkerStealingConservesHeap(t *testing.T) {
	const workers = 4
	const pairsPerWorker = 8

	h := heap.New(4*workers*pairsPerWorker+8, workers)
	bld := book.NewBuilder()
	bk, err := bld.Build()
	require.NoError(t, err)

	pool := New(h, bk, Config{Workers: workers, Overflow: numeric.Wrap})

	before := h.Allocated()
	seeded := 0
	for w := 0; w < workers; w++ {
		n := pool.Net(w)
		for i := 0; i < pairsPerWorker; i++ {
			a, err := h.Alloc(w)
			require.NoError(t, err)
			b, err := h.Alloc(w)
			require.NoError(t, err)
			leftCell, err := h.Alloc(w)
			require.NoError(t, err)
			rightCell, err := h.Alloc(w)
			require.NoError(t, err)
			h.Set(a, 0, port.NewVar(uint64(leftCell), 0))
			h.Set(a, 1, port.NewVar(uint64(rightCell), 0))
			h.Set(b, 0, port.NewNum(port.U60, int32(i)))
			h.Set(b, 1, port.NewNum(port.U60, int32(i+1)))
			h.Set(leftCell, 0, port.Lock)
			h.Set(rightCell, 0, port.Lock)
			n.Bag.Push(port.NewCtr(0, uint64(a)), port.NewCtr(0, uint64(b)))
			seeded++
		}
	}

	require.NoError(t, pool.Start())

	total := pool.Counters()
	require.EqualValues(t, seeded, total.Annihilate)
	// each annihilate frees exactly its two CTR nodes; the two
	// leftover per-pair scratch cells remain allocated (bound, not
	// freed) so net allocation drops by 2 per pair.
	require.Equal(t, before+4*seeded-2*seeded, h.Allocated())
}
