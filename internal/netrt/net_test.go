package netrt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

// TestBootAndRunReducesRedexToNumber builds `@main` with an initial
// redex `x ~ <+ #2 #3>` directly through the book (no textual parser
// involved) and drives it through Boot+Run to a final number, exercising
// instantiation, linking, and the operate/operate1 rules together.
func TestBootAndRunReducesRedexToNumber(t *testing.T) {
	bld := book.NewBuilder()
	bld.DefineWithRedexes("main", book.Var("x"), []book.NodeTemplate{
		{Tag: port.OP2, Sub: uint8(port.OpAdd), Aux0: book.Num(port.U60, 3), Aux1: book.Var("x")},
	}, [][2]book.PortTemplate{
		{book.Num(port.U60, 2), book.Local(0)},
	})
	bk, err := bld.Build()
	require.NoError(t, err)
	idx, ok := bk.Index("main")
	require.True(t, ok)

	h := heap.New(16, 1)
	n := New(h, bk, 0, numeric.Wrap)
	require.NoError(t, n.Boot(idx))
	require.NoError(t, n.Run())

	require.Equal(t, port.NewNum(port.U60, 5), n.Deref(n.Root))
}

func TestDerefFollowsVarAliasChain(t *testing.T) {
	n := newTestNet(t, 8)
	idxA, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	idxB, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(idxA, 0, port.NewVar(uint64(idxB), 0))
	n.Heap.Set(idxB, 0, port.NewNum(port.U60, 11))

	require.Equal(t, port.NewNum(port.U60, 11), n.Deref(port.NewVar(uint64(idxA), 0)))
}

func TestDerefReturnsLocationWhenUnresolved(t *testing.T) {
	n := newTestNet(t, 8)
	idx, err := n.Heap.Alloc(0)
	require.NoError(t, err)
	n.Heap.Set(idx, 0, port.Lock)

	v := port.NewVar(uint64(idx), 0)
	require.Equal(t, v, n.Deref(v))
}
