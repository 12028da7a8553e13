package netrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

// TestOperateThenOperate1ComputesResult reproduces S1's arithmetic path
// (`x ~ <+ #2 #3>`) built directly against the heap, since the
// textual-syntax compiler that would normally emit this shape lives
// outside this package.
func TestOperateThenOperate1ComputesResult(t *testing.T) {
	n := newTestNet(t, 16)

	opNode, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	resultCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)

	n.Heap.Set(opNode, 0, port.NewNum(port.U60, 3)) // second operand
	n.Heap.Set(opNode, 1, port.NewVar(uint64(resultCell), 0))
	n.Heap.Set(resultCell, 0, port.Lock)

	op2 := port.NewOp2(port.OpAdd, uint64(opNode))
	numA := port.NewNum(port.U60, 2)
	require.NoError(t, Link(n, numA, op2))

	require.NoError(t, n.Run())
	require.Equal(t, port.NewNum(port.U60, 5), n.Heap.Get(resultCell, 0))
	require.EqualValues(t, 1, n.Counters.Operate)
	require.EqualValues(t, 1, n.Counters.Operate1)
}

func TestOperate1DivisionByZeroIsFatal(t *testing.T) {
	n := newTestNet(t, 16)
	opNode, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(opNode, 0, port.NewNum(port.U60, 0)) // divisor, arrives second
	n.Heap.Set(opNode, 1, port.Era)

	op2 := port.NewOp2(port.OpDiv, uint64(opNode))
	require.NoError(t, Link(n, port.NewNum(port.U60, 3), op2))

	err = n.Run()
	require.ErrorIs(t, err, hvmerr.ErrDivisionByZero)
}

func TestAnnihilateLinksMatchingAuxPortsAndFreesBoth(t *testing.T) {
	n := newTestNet(t, 16)
	nodeA, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	nodeB, err := n.Heap.Alloc(0)
	require.NoError(t, err)

	leftCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	rightCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(nodeA, 0, port.NewVar(uint64(leftCell), 0))
	n.Heap.Set(nodeA, 1, port.NewVar(uint64(rightCell), 0))
	n.Heap.Set(nodeB, 0, port.NewNum(port.U60, 10))
	n.Heap.Set(nodeB, 1, port.NewNum(port.U60, 20))
	n.Heap.Set(leftCell, 0, port.Lock)
	n.Heap.Set(rightCell, 0, port.Lock)

	before := n.Heap.Allocated()
	require.NoError(t, Link(n, port.NewCtr(0, uint64(nodeA)), port.NewCtr(0, uint64(nodeB))))
	require.NoError(t, n.Run())

	require.Equal(t, port.NewNum(port.U60, 10), n.Heap.Get(leftCell, 0))
	require.Equal(t, port.NewNum(port.U60, 20), n.Heap.Get(rightCell, 0))
	require.Equal(t, before-2, n.Heap.Allocated())
	require.EqualValues(t, 1, n.Counters.Annihilate)
}

func TestEraseForwardsErasersToBothAuxPorts(t *testing.T) {
	n := newTestNet(t, 16)
	node, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	leftCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(node, 0, port.NewVar(uint64(leftCell), 0))
	n.Heap.Set(node, 1, port.NewNum(port.U60, 1))
	n.Heap.Set(leftCell, 0, port.Lock)

	require.NoError(t, Link(n, port.Era, port.NewCtr(3, uint64(node))))
	require.NoError(t, n.Run())

	require.Equal(t, port.Era, n.Heap.Get(leftCell, 0))
	require.EqualValues(t, 1, n.Counters.Erase)
}

func TestCopyNumBroadcastsToBothAuxPorts(t *testing.T) {
	n := newTestNet(t, 16)
	node, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	leftCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	rightCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(node, 0, port.NewVar(uint64(leftCell), 0))
	n.Heap.Set(node, 1, port.NewVar(uint64(rightCell), 0))
	n.Heap.Set(leftCell, 0, port.Lock)
	n.Heap.Set(rightCell, 0, port.Lock)

	num := port.NewNum(port.U60, 42)
	require.NoError(t, Link(n, port.NewCtr(0, uint64(node)), num))
	require.NoError(t, n.Run())

	require.Equal(t, num, n.Heap.Get(leftCell, 0))
	require.Equal(t, num, n.Heap.Get(rightCell, 0))
	require.EqualValues(t, 1, n.Counters.Copy)
}

func TestMatchZeroKeepsZeroBranchAndErasesSucc(t *testing.T) {
	n := newTestNet(t, 16)
	node, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	zeroCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	succCell, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(node, 0, port.NewVar(uint64(zeroCell), 0))
	n.Heap.Set(node, 1, port.NewVar(uint64(succCell), 0))
	n.Heap.Set(zeroCell, 0, port.Lock)
	n.Heap.Set(succCell, 0, port.Lock)

	require.NoError(t, Link(n, port.NewNum(port.U60, 0), port.NewMat(uint64(node))))
	require.NoError(t, n.Run())

	require.Equal(t, port.Lock, n.Heap.Get(zeroCell, 0))
	require.Equal(t, port.Era, n.Heap.Get(succCell, 0))
	require.EqualValues(t, 1, n.Counters.Match)
}

func TestCallInstantiatesDefinitionAndLinksRoot(t *testing.T) {
	bld := book.NewBuilder()
	bld.Define("main", book.Local(0), []book.NodeTemplate{
		{Tag: port.CTR, Sub: 5, Aux0: book.Era(), Aux1: book.Era()},
	})
	bk, err := bld.Build()
	require.NoError(t, err)

	n := newTestNet(t, 16)
	n.Book = bk
	idx, ok := bk.Index("main")
	require.True(t, ok)

	require.NoError(t, Link(n, port.NewRef(idx), port.Era))
	require.NoError(t, n.Run())
	require.EqualValues(t, 1, n.Counters.Call)
}

// TestCallOfOutputAliasDefLeavesNoUnreachableNode repeatedly calls an
// `x & x ~ #5`-shaped def, the pattern every S1-S6 scenario's entry
// point uses. Instantiate must not grow the heap by a node per call:
// the def's own root-aliasing redex has no node to allocate for, so
// repeated calls should leave allocation exactly where the call's own
// argument side started.
func TestCallOfOutputAliasDefLeavesNoUnreachableNode(t *testing.T) {
	bld := book.NewBuilder()
	bld.DefineWithRedexes("five", book.Var("x"), nil, [][2]book.PortTemplate{
		{book.Var("x"), book.Num(port.U60, 5)},
	})
	bk, err := bld.Build()
	require.NoError(t, err)
	idx, ok := bk.Index("five")
	require.True(t, ok)

	n := newTestNet(t, 32)
	n.Book = bk

	for i := 0; i < 5; i++ {
		before := n.Heap.Allocated()
		root, err := Instantiate(n, idx)
		require.NoError(t, err)
		require.Equal(t, port.NewNum(port.U60, 5), root)
		require.Equal(t, before, n.Heap.Allocated(), "call must not leave a permanently unreachable node behind")
	}
}
