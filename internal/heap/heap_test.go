package heap

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

func TestAllocSetGet(t *testing.T) {
	h := New(16, 1)
	idx, err := h.Alloc(0)
	require.NoError(t, err)
	h.Set(idx, 0, port.NewVar(3, 0))
	assert.Equal(t, port.NewVar(3, 0), h.Get(idx, 0))
}

func TestFreeThenReuse(t *testing.T) {
	h := New(1, 1)
	idx, err := h.Alloc(0)
	require.NoError(t, err)
	before := h.Allocated()
	h.Free(idx)
	assert.Equal(t, before-1, h.Allocated())

	idx2, err := h.Alloc(0)
	require.NoError(t, err)
	assert.Equal(t, idx, idx2, "freed node should be reused once the stripe is exhausted")
}

func TestHeapExhaustedIsFatalNotRetried(t *testing.T) {
	h := New(2, 1)
	_, err := h.Alloc(0)
	require.NoError(t, err)
	_, err = h.Alloc(0)
	require.NoError(t, err)

	_, err = h.Alloc(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, hvmerr.ErrHeapExhausted))

	var exhausted *hvmerr.HeapExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 2, exhausted.Capacity)
}

func TestCASContract(t *testing.T) {
	h := New(4, 1)
	idx, _ := h.Alloc(0)
	h.Set(idx, 0, port.Era)
	ok := h.CAS(idx, 0, port.NewVar(1, 0), port.NewVar(2, 0))
	assert.False(t, ok, "CAS must fail when expected does not match")
	ok = h.CAS(idx, 0, port.Era, port.NewVar(2, 0))
	assert.True(t, ok)
	assert.Equal(t, port.NewVar(2, 0), h.Get(idx, 0))
}

func TestConcurrentAllocDoesNotDoubleIssue(t *testing.T) {
	const workers = 8
	const perWorker = 200
	h := New(workers*perWorker, workers)

	seen := make([][]Index, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				idx, err := h.Alloc(w)
				require.NoError(t, err)
				seen[w] = append(seen[w], idx)
			}
		}()
	}
	wg.Wait()

	all := map[Index]bool{}
	for _, list := range seen {
		for _, idx := range list {
			assert.False(t, all[idx], "node %d issued twice", idx)
			all[idx] = true
		}
	}
	assert.Equal(t, workers*perWorker, len(all))
}

// TestConcurrentFreeRaceNeverDoubleIssues drives many workers through
// repeated Alloc/Free cycles on a small shared arena, forcing every
// allocation past its stripe onto the CAS-linked free list and racing
// concurrent Free calls against it. A mutex-guarded ledger stands in
// for what the caller's own heap slots would otherwise show: no index
// may be held by two workers at once.
func TestConcurrentFreeRaceNeverDoubleIssues(t *testing.T) {
	const workers = 8
	const rounds = 500
	h := New(workers, workers) // one node per worker's stripe: every Alloc past round 1 hits the free list.

	var mu sync.Mutex
	held := map[Index]int{}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				idx, err := h.Alloc(w)
				require.NoError(t, err)

				mu.Lock()
				owner, taken := held[idx]
				held[idx] = w
				mu.Unlock()
				require.Falsef(t, taken, "node %d double-issued to workers %d and %d", idx, owner, w)

				h.Free(idx)

				mu.Lock()
				delete(held, idx)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, held)
}

// TestConcurrentCASOnSharedSlotExactlyOneWinner races many goroutines
// against the same (idx, slot) starting from Lock: CAS's contract
// requires exactly one caller ever observes success.
func TestConcurrentCASOnSharedSlotExactlyOneWinner(t *testing.T) {
	const racers = 64
	h := New(1, 1)
	idx, err := h.Alloc(0)
	require.NoError(t, err)
	h.Set(idx, 0, port.Lock)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if h.CAS(idx, 0, port.Lock, port.NewVar(uint64(i), 0)) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.NotEqual(t, port.Lock, h.Get(idx, 0))
}
