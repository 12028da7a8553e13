package cli

import (
	"fmt"
	"os"

	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/netrt"
	"github.com/hvm-core/hvmc/internal/scheduler"
	"github.com/hvm-core/hvmc/internal/syntax"
	"github.com/hvm-core/hvmc/internal/trace"
)

// loadBook parses a §6 textual net program from path into a frozen Book.
func loadBook(path string) (*book.Book, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "reading program", err)
	}
	bk, err := syntax.Build(string(src))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "parsing program", err)
	}
	return bk, nil
}

// runBook boots entry (looked up by name) and drives it to a fixed point
// using a scheduler.Pool sized per opts.Config, returning the pool for
// readback and the trace sink if one was requested.
func runBook(opts *RootOptions, bk *book.Book, entry string) (*scheduler.Pool, *trace.Sink, error) {
	idx, ok := bk.Index(entry)
	if !ok {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("undefined definition %q", entry))
	}

	heapSize := opts.Config.HeapSize
	if heapSize <= 0 {
		heapSize = 1 << 20
	}
	workers := opts.Config.ResolvedWorkers()
	h := heap.New(heapSize, workers)

	var sink *trace.Sink
	var tr netrt.Trace
	if opts.Config.Trace {
		sink = trace.NewSink(os.Stderr)
		tr = sink
	}

	pool := scheduler.New(h, bk, scheduler.Config{
		Workers:             workers,
		RedexBudgetPerSteal: opts.Config.RedexBudgetPerSteal,
		Overflow:            opts.Config.Overflow(),
		Trace:               tr,
		MaxLinkDepth:        opts.Config.MaxLinkDepth,
	})

	if err := pool.Boot(idx); err != nil {
		return nil, nil, mapRuntimeError(err)
	}
	if err := pool.Start(); err != nil {
		return nil, nil, mapRuntimeError(err)
	}
	return pool, sink, nil
}

// mapRuntimeError translates a fatal hvmerr kind into the §6 exit-status
// scheme, defaulting unrecognized errors to ExitFailure.
func mapRuntimeError(err error) error {
	if err == nil {
		return nil
	}
	return WrapExitError(hvmerr.ExitCode(err), "run failed", err)
}
