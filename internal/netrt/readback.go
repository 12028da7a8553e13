package netrt

import (
	"fmt"

	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/numeric"
	"github.com/hvm-core/hvmc/internal/port"
)

// defaultMaxReadbackDepth bounds Readback's structural recursion, the
// same stack-growth concern as Link/linkVar's defaultMaxLinkDepth (see
// linker.go), but walking node aux slots rather than wire indirection.
const defaultMaxReadbackDepth = 1 << 12

// Readback renders p (dereferenced through n) as a §6 textual literal:
// the inverse of internal/syntax's parser. Grounded on
// original_source/src/host.rs's `readback` module, which the reference
// implementation's CLI likewise runs over a reduced net before printing
// it (`println!("{}", host.lock().readback(net))` in
// original_source/src/main.rs).
//
// A node reachable more than once (real DAG sharing, or a cycle in an
// open, not-yet-quiescent net) is printed once and referenced by a
// synthesized variable name on every later visit, rather than
// re-expanded or looped over forever.
func Readback(n *Net, p port.Port) (string, error) {
	rb := &readbacker{n: n, names: map[heap.Index]string{}, visited: map[heap.Index]bool{}}
	return rb.format(p, 0)
}

type readbacker struct {
	n       *Net
	names   map[heap.Index]string
	visited map[heap.Index]bool
	next    int
}

func (rb *readbacker) nameFor(idx heap.Index) string {
	if name, ok := rb.names[idx]; ok {
		return name
	}
	name := fmt.Sprintf("v%d", rb.next)
	rb.next++
	rb.names[idx] = name
	return name
}

func (rb *readbacker) format(p port.Port, depth int) (string, error) {
	if depth > defaultMaxReadbackDepth {
		return "", hvmerr.NewStackOverflow(depth, defaultMaxReadbackDepth)
	}
	p = rb.n.Deref(p)
	if p == port.Lock || p == port.Gone {
		// The sentinels carry the RED tag; keep them out of the VAR/RED
		// case below and print their debug form.
		return p.String(), nil
	}

	switch p.Tag() {
	case port.ERA:
		return "*", nil
	case port.NUM:
		return numeric.Literal(p), nil
	case port.REF:
		return "@" + rb.n.Book.Name(p.DefIndex()), nil
	case port.VAR, port.RED:
		return rb.nameFor(heap.Index(p.NodeIndex())), nil
	case port.CTR:
		idx := heap.Index(p.NodeIndex())
		if rb.visited[idx] {
			return rb.nameFor(idx), nil
		}
		rb.visited[idx] = true
		body, err := rb.formatBinary(idx, depth)
		if err != nil {
			return "", err
		}
		open, close := "[", "]"
		if p.Label() != 0 {
			open, close = "{", "}"
		}
		return open + body + close, nil
	case port.OP2:
		idx := heap.Index(p.NodeIndex())
		if rb.visited[idx] {
			return rb.nameFor(idx), nil
		}
		rb.visited[idx] = true
		body, err := rb.formatBinary(idx, depth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("<%s %s>", p.OpCode(), body), nil
	case port.MAT:
		idx := heap.Index(p.NodeIndex())
		if rb.visited[idx] {
			return rb.nameFor(idx), nil
		}
		rb.visited[idx] = true
		body, err := rb.formatBinary(idx, depth)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("?<%s>", body), nil
	default:
		// OP1 and the Lock/Gone sentinels are transient, mid-reduction
		// states that never survive to a quiescent net's root; fall
		// back to the debug form rather than fabricate §6 syntax for
		// something the grammar has no literal for.
		return p.String(), nil
	}
}

func (rb *readbacker) formatBinary(idx heap.Index, depth int) (string, error) {
	a, err := rb.format(rb.n.Heap.Get(idx, 0), depth+1)
	if err != nil {
		return "", err
	}
	b, err := rb.format(rb.n.Heap.Get(idx, 1), depth+1)
	if err != nil {
		return "", err
	}
	return a + " " + b, nil
}
