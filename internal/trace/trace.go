// Package trace records one Event per interaction when a run is started
// with --trace, grounded on roach88-nysm/brutalist/internal/engine/
// flow.go's TraceEvent/Seq shape: a per-run UUIDv7 correlation id shared
// by every event, plus a monotonically increasing sequence number.
package trace

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hvm-core/hvmc/internal/port"
)

// Event is one recorded interaction.
type Event struct {
	RunID string `json:"run_id"`
	Seq   int64  `json:"seq"`
	Rule  string `json:"rule"`
	A     string `json:"a"`
	B     string `json:"b"`
}

// Sink writes Events as newline-delimited JSON to w. It satisfies
// netrt.Trace's Rule(name string, a, b port.Port) method and is safe for
// concurrent use by every worker in a scheduler.Pool.
type Sink struct {
	w     io.Writer
	runID string
	seq   atomic.Int64
	enc   *json.Encoder
	mu    sync.Mutex
}

// NewSink starts a fresh run and returns a Sink that writes its events to
// w as they occur.
func NewSink(w io.Writer) *Sink {
	return &Sink{
		w:     w,
		runID: uuid.Must(uuid.NewV7()).String(),
		enc:   json.NewEncoder(w),
	}
}

// RunID returns this sink's per-run correlation id.
func (s *Sink) RunID() string { return s.runID }

// Rule implements netrt.Trace.
func (s *Sink) Rule(name string, a, b port.Port) {
	ev := Event{
		RunID: s.runID,
		Seq:   s.seq.Add(1),
		Rule:  name,
		A:     a.String(),
		B:     b.String(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Encode errors here are I/O failures on the trace sink, not the
	// reduction itself; dropping them keeps tracing best-effort rather
	// than able to abort a run that is otherwise proceeding correctly.
	_ = s.enc.Encode(ev)
}
