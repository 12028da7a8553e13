package netrt

import (
	"github.com/hvm-core/hvmc/internal/book"
	"github.com/hvm-core/hvmc/internal/heap"
	"github.com/hvm-core/hvmc/internal/port"
)

// occSite names one occurrence of a named variable within a
// definition: either the root, one side of an initial redex, or one
// aux slot of a template-local node.
type occSite struct {
	isRoot bool
	isNode bool
	node   int
	aux    uint8
	redex  int
	side   int
}

// Instantiate materializes def (by book index) into fresh heap nodes,
// per spec.md §4.G: allocate the k template nodes, resolve every
// non-variable port template directly, bind named-variable occurrence
// pairs through Link, process the definition's initial redexes, and
// return the template's root port (a concrete port, or a VAR location
// awaiting the caller's bind).
//
// Variable resolution: a variable's two textual occurrences (root, a
// node's aux slot, or a redex side) are unified to a single resolved
// operand. When at least one occurrence sits in a node's own aux slot,
// that slot's address is the operand -- no extra allocation needed.
// Two node-anchored occurrences of the same variable (e.g. `{a a}`'s
// duplicator body) have no redex to drive their bind, so they are
// linked to each other directly.
//
// When both occurrences are "free" (root and/or a redex side, never
// anchored to a node), no node exists to lend its address, but no
// allocation is needed either: this is exactly the `x & x ~ EXPR`
// output-aliasing idiom, and the variable can be eliminated outright
// rather than boxed in a scratch cell. A free occurrence paired with
// the root means the root IS the redex's other side, so that redex is
// dropped from processing and the root resolves to its other side
// directly. A free occurrence paired with a different redex's free
// side means "A ~ P" and "B ~ Q" collapse to "P ~ Q" once the shared
// wire between them is eliminated, so both original redexes are
// dropped in favor of one merged Link. The degenerate `x ~ x` case
// (both occurrences the same redex's two sides) has no anchor at all
// to resolve to; it is simply dropped, an isolated loop carrying
// nothing into the rest of the net. Adapted from
// original_source/src/run.rs's fixed, reused ROOT location, which
// never allocates a node to represent a def's root either.
func Instantiate(n *Net, defIndex uint64) (port.Port, error) {
	def := n.Book.Lookup(defIndex)

	alloc := make([]heap.Index, len(def.Nodes))
	for i := range def.Nodes {
		idx, err := n.Heap.Alloc(n.Worker)
		if err != nil {
			return 0, err
		}
		alloc[i] = idx
		n.Heap.Set(idx, 0, port.Lock)
		n.Heap.Set(idx, 1, port.Lock)
	}

	occ := map[string][]occSite{}
	record := func(name string, s occSite) { occ[name] = append(occ[name], s) }
	if def.Root.Kind == book.TplVar {
		record(def.Root.VarName, occSite{isRoot: true})
	}
	for i, nt := range def.Nodes {
		if nt.Aux0.Kind == book.TplVar {
			record(nt.Aux0.VarName, occSite{isNode: true, node: i, aux: 0})
		}
		if nt.Aux1.Kind == book.TplVar {
			record(nt.Aux1.VarName, occSite{isNode: true, node: i, aux: 1})
		}
	}
	for r, pair := range def.Redexes {
		for side, pt := range pair {
			if pt.Kind == book.TplVar {
				record(pt.VarName, occSite{redex: r, side: side})
			}
		}
	}

	siteOperand := func(s occSite) port.Port {
		return port.NewVar(uint64(alloc[s.node]), s.aux)
	}

	skipRedex := make([]bool, len(def.Redexes))
	rootAliasRedex, rootAliasSide := -1, -1
	var mergedSides [][2]book.PortTemplate

	varOperand := map[string]port.Port{}
	for name, sites := range occ {
		if len(sites) != 2 {
			// book.Build already rejects this; defensive only.
			continue
		}
		a, b := sites[0], sites[1]
		switch {
		case a.isNode && b.isNode:
			if err := Link(n, siteOperand(a), siteOperand(b)); err != nil {
				return 0, err
			}
		case a.isNode:
			varOperand[name] = siteOperand(a)
		case b.isNode:
			varOperand[name] = siteOperand(b)
		case a.isRoot:
			rootAliasRedex, rootAliasSide = b.redex, b.side
			skipRedex[b.redex] = true
		case b.isRoot:
			rootAliasRedex, rootAliasSide = a.redex, a.side
			skipRedex[a.redex] = true
		case a.redex == b.redex:
			skipRedex[a.redex] = true
		default:
			mergedSides = append(mergedSides, [2]book.PortTemplate{
				def.Redexes[a.redex][1-a.side],
				def.Redexes[b.redex][1-b.side],
			})
			skipRedex[a.redex] = true
			skipRedex[b.redex] = true
		}
	}

	resolve := func(pt book.PortTemplate) port.Port {
		switch pt.Kind {
		case book.TplLocal:
			nt := def.Nodes[pt.Node]
			return port.New(nt.Tag, nt.Sub, wireLoc(uint64(alloc[pt.Node])))
		case book.TplRef:
			return port.NewRef(pt.RefIndex)
		case book.TplEra:
			return port.Era
		case book.TplNum:
			return port.NewNum(pt.NumKind, pt.NumValue)
		case book.TplVar:
			return varOperand[pt.VarName]
		default:
			return port.Era
		}
	}

	for i, nt := range def.Nodes {
		if nt.Aux0.Kind != book.TplVar {
			n.Heap.Set(alloc[i], 0, resolve(nt.Aux0))
		}
		if nt.Aux1.Kind != book.TplVar {
			n.Heap.Set(alloc[i], 1, resolve(nt.Aux1))
		}
	}

	for r, pair := range def.Redexes {
		if skipRedex[r] {
			continue
		}
		if err := Link(n, resolve(pair[0]), resolve(pair[1])); err != nil {
			return 0, err
		}
	}
	for _, sides := range mergedSides {
		if err := Link(n, resolve(sides[0]), resolve(sides[1])); err != nil {
			return 0, err
		}
	}

	if def.Root.Kind == book.TplVar {
		if rootAliasRedex >= 0 {
			return resolve(def.Redexes[rootAliasRedex][1-rootAliasSide]), nil
		}
		return varOperand[def.Root.VarName], nil
	}
	return resolve(def.Root), nil
}

func wireLoc(node uint64) uint64 { return node << 1 }
