// Package scheduler runs a fixed pool of workers over a shared heap,
// each draining its own netrt.Net and stealing slow-lane work from
// peers when its own bag runs dry, per spec.md §4.D/§4.I.
//
// Grounded on cauefcr-HVM/src/runtime.go's worker/normal_fork/
// normal_join goroutine-per-worker pool (WaitGroup-joined, Mutex/Cond
// signaled), generalized from that code's fixed MAX_WORKERS array and
// host/sidx/slen work descriptor into a randomized work-stealing pool
// sized by the caller. Termination uses a shared idle counter rather
// than a Cond per worker: spec.md's stop condition ("every worker idle
// and no steal succeeded") needs a global fence, not per-worker
// rendezvous.
package scheduler

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/netrt"
	"github.com/hvm-core/hvmc/internal/numeric"
)

// Config controls pool shape and numeric behavior, mirroring the §6
// `workers`/`redex_budget_per_steal`/`numeric_overflow` options.
// RedexBudgetPerSteal is clamped to at least 1 but is not otherwise
// read: every steal takes half of a peer's slow lane, rounded up (see
// netrt.Bag.SplitSteal), whatever the budget.
type Config struct {
	Workers             int
	RedexBudgetPerSteal int
	Overflow            numeric.OverflowMode
	Trace               netrt.Trace

	// MaxLinkDepth overrides each worker's Link/linkVar recursion guard
	// when positive; 0 keeps netrt's built-in default.
	MaxLinkDepth int
}

// Pool owns one netrt.Net per worker and drives them to a fixed point.
type Pool struct {
	nets []*netrt.Net
	cfg  Config

	idle atomic.Int64 // workers currently parked with an empty bag
	stop atomic.Bool  // set on the first fatal error, unwinds every worker

	errOnce sync.Once
	err     error
}

// New builds a Pool of cfg.Workers nets sharing h and bk. cfg.Workers
// and cfg.RedexBudgetPerSteal are clamped to at least 1.
func New(h *heap.Heap, bk *book.Book, cfg Config) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RedexBudgetPerSteal < 1 {
		cfg.RedexBudgetPerSteal = 1
	}
	p := &Pool{cfg: cfg}
	p.nets = make([]*netrt.Net, cfg.Workers)
	for w := 0; w < cfg.Workers; w++ {
		n := netrt.New(h, bk, w, cfg.Overflow)
		n.Trace = cfg.Trace
		n.MaxLinkDepth = cfg.MaxLinkDepth
		p.nets[w] = n
	}
	return p
}

// Boot instantiates defIndex as worker 0's root program. Call this
// before Start.
func (p *Pool) Boot(defIndex uint64) error {
	return p.nets[0].Boot(defIndex)
}

// Root returns worker 0's root port, valid after Boot.
func (p *Pool) Root() netrt.Port { return p.nets[0].Root }

// Net returns the worker at index w, for readback once Start returns.
func (p *Pool) Net(w int) *netrt.Net { return p.nets[w] }

// Counters sums every worker's interaction counters, for the S8
// heap-conservation diagnostics.
func (p *Pool) Counters() netrt.Counters {
	var total netrt.Counters
	for _, n := range p.nets {
		c := n.Counters
		total.Link += c.Link
		total.Call += c.Call
		total.Void += c.Void
		total.Erase += c.Erase
		total.Annihilate += c.Annihilate
		total.Commute += c.Commute
		total.Operate += c.Operate
		total.Operate1 += c.Operate1
		total.Match += c.Match
		total.Copy += c.Copy
	}
	return total
}

// Start runs every worker to a fixed point: each drains its own bag,
// then attempts a randomized split-steal from a peer before parking.
// The pool terminates when every worker is simultaneously idle with
// nothing left to steal, or one worker reports a fatal error.
func (p *Pool) Start() error {
	var wg sync.WaitGroup
	wg.Add(len(p.nets))
	for w := range p.nets {
		w := w
		go func() {
			defer wg.Done()
			p.runWorker(w)
		}()
	}
	wg.Wait()
	return p.err
}

func (p *Pool) runWorker(w int) {
	n := p.nets[w]
	rng := rand.New(rand.NewSource(int64(w) + 1))
	for {
		if p.stop.Load() {
			return
		}
		if err := n.Run(); err != nil {
			p.fail(err)
			return
		}
		if !p.trySteal(w, rng) {
			return
		}
	}
}

// trySteal marks w idle, then repeatedly scans peers in a randomized
// order for a split-steal. It reports true (and un-parks w) as soon as
// it absorbs stolen work; it reports false once every worker is
// simultaneously idle and a full scan turned up nothing, which is the
// pool's terminal fixed point.
//
// This is a best-effort termination heuristic, not a formally verified
// protocol: a peer can un-park between this worker's idle scan and its
// steal attempt, in which case the next full scan simply tries again.
func (p *Pool) trySteal(w int, rng *rand.Rand) bool {
	p.idle.Add(1)
	total := int64(len(p.nets))
	order := rng.Perm(len(p.nets))
	for {
		if p.stop.Load() {
			return false
		}
		for _, j := range order {
			if j == w {
				continue
			}
			if stolen := p.nets[j].Bag.SplitSteal(); len(stolen) > 0 {
				p.nets[w].Bag.Absorb(stolen)
				p.idle.Add(-1)
				return true
			}
		}
		if p.idle.Load() == total {
			return false
		}
		runtime.Gosched()
	}
}

func (p *Pool) fail(err error) {
	p.errOnce.Do(func() {
		p.err = err
		p.stop.Store(true)
	})
}
