// Package book implements the immutable definitions book of spec.md
// §4.C: a read-only, index-addressed mapping from names to prebuilt net
// templates, built once from the (external) compiler's output and
// frozen for the lifetime of the process.
package book

import (
	"fmt"

	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

// PortKind identifies what a PortTemplate resolves to at instantiation.
type PortKind uint8

const (
	// TplLocal names the principal port of template-local node Node.
	TplLocal PortKind = iota
	// TplVar names one of the two occurrences of a named wire. Every
	// Var of a given name must occur exactly twice across a Def's root,
	// node aux slots and redex sides; BookMalformed otherwise.
	TplVar
	// TplRef names another book definition, by index (resolved from a
	// textual name at build time).
	TplRef
	// TplEra is the nilary eraser.
	TplEra
	// TplNum is an inline numeric literal.
	TplNum
)

// PortTemplate is an un-instantiated port: either a reference to another
// template-local node, a named wire endpoint, a book reference, an
// eraser, or a numeric literal.
type PortTemplate struct {
	Kind PortKind

	// Node indexes Def.Nodes, valid when Kind == TplLocal.
	Node int

	// VarName names a wire, valid when Kind == TplVar.
	VarName string

	// RefIndex names a book entry, valid when Kind == TplRef.
	RefIndex uint64

	// NumKind/NumValue hold the literal, valid when Kind == TplNum.
	NumKind  port.NumKind
	NumValue int32
}

func Local(node int) PortTemplate         { return PortTemplate{Kind: TplLocal, Node: node} }
func Var(name string) PortTemplate        { return PortTemplate{Kind: TplVar, VarName: name} }
func Ref(index uint64) PortTemplate       { return PortTemplate{Kind: TplRef, RefIndex: index} }
func Era() PortTemplate                   { return PortTemplate{Kind: TplEra} }
func Num(k port.NumKind, v int32) PortTemplate {
	return PortTemplate{Kind: TplNum, NumKind: k, NumValue: v}
}

// NodeTemplate is one prebuilt node: the tag+sub-tag of the agent that
// occupies it, plus its two auxiliary port templates.
type NodeTemplate struct {
	Tag  port.Tag // CTR, OP2, OP1, or MAT
	Sub  uint8    // label (CTR) or operator code (OP2/OP1); unused for MAT
	Aux0 PortTemplate
	Aux1 PortTemplate
}

// Def is one immutable book entry: a root port template, the flat list
// of node templates it references, its initial redexes, and the §4.C
// `Safe` flag.
type Def struct {
	Name  string
	Root  PortTemplate
	Nodes []NodeTemplate
	// Redexes are the definition's initial pairs (the `& a ~ b & ...`
	// tail of the textual syntax). Each pair is processed uniformly by
	// the linker at instantiation time: a pair with a bare variable on
	// one side is aliasing sugar resolved by a bind, a pair of two
	// concrete principal ports becomes a genuine queued active pair.
	Redexes [][2]PortTemplate
	// Safe is true iff the def's node templates contain no CTR node at
	// all, whatever its label (see computeSafe). No interaction rule
	// reads it: calls always instantiate the def in full.
	Safe bool
}

// Book is the immutable, index-addressed set of definitions.
type Book struct {
	defs  []Def
	index map[string]int
}

// Lookup returns the definition at idx. The caller is trusted to pass a
// valid index (produced by Index or a prior PortTemplate.RefIndex);
// book entries are never invalidated after Build.
func (b *Book) Lookup(idx uint64) *Def {
	return &b.defs[idx]
}

// Index returns the book index of name, or false if undefined.
func (b *Book) Index(name string) (uint64, bool) {
	i, ok := b.index[name]
	return uint64(i), ok
}

// Len returns the number of definitions in the book.
func (b *Book) Len() int { return len(b.defs) }

// Name returns the diagnostic-only textual name of a definition.
func (b *Book) Name(idx uint64) string { return b.defs[idx].Name }

// Builder accumulates named definitions before freezing them into a
// Book. Defs may reference each other (including forward references
// and cycles, since calls resolve REF ports lazily) by name; Build
// resolves every name to an index and validates variable balance.
type Builder struct {
	order []string
	drafts map[string]*draftDef
}

type draftDef struct {
	root    PortTemplate
	nodes   []NodeTemplate
	redexes [][2]PortTemplate
	safe    bool
}

func NewBuilder() *Builder {
	return &Builder{drafts: map[string]*draftDef{}}
}

// Define registers a definition under name with no initial redexes. root
// and nodes may use TplRef by name (resolved in Build).
func (bld *Builder) Define(name string, root PortTemplate, nodes []NodeTemplate) {
	bld.DefineWithRedexes(name, root, nodes, nil)
}

// DefineWithRedexes registers a definition that also carries an initial
// list of redex pairs -- the `& a ~ b` tail of a textual net definition.
func (bld *Builder) DefineWithRedexes(name string, root PortTemplate, nodes []NodeTemplate, redexes [][2]PortTemplate) {
	if _, exists := bld.drafts[name]; !exists {
		bld.order = append(bld.order, name)
	}
	bld.drafts[name] = &draftDef{root: root, nodes: nodes, redexes: redexes, safe: computeSafe(nodes)}
}

// RefByName builds a PortTemplate that names another definition by
// text; Build resolves it to a RefIndex.
func RefByName(name string) PortTemplate {
	return PortTemplate{Kind: TplRef, VarName: name}
}

func computeSafe(nodes []NodeTemplate) bool {
	for _, n := range nodes {
		if n.Tag == port.CTR {
			return false
		}
	}
	return true
}

// Build validates variable balance per definition (spec.md §7
// BookMalformed) and resolves every by-name reference into a RefIndex,
// producing a frozen Book.
func (bld *Builder) Build() (*Book, error) {
	index := make(map[string]int, len(bld.order))
	for i, name := range bld.order {
		index[name] = i
	}

	defs := make([]Def, len(bld.order))
	for i, name := range bld.order {
		d := bld.drafts[name]
		if err := checkVarBalance(name, d); err != nil {
			return nil, err
		}
		root, err := resolveRefs(name, d.root, index)
		if err != nil {
			return nil, err
		}
		nodes := make([]NodeTemplate, len(d.nodes))
		for j, n := range d.nodes {
			aux0, err := resolveRefs(name, n.Aux0, index)
			if err != nil {
				return nil, err
			}
			aux1, err := resolveRefs(name, n.Aux1, index)
			if err != nil {
				return nil, err
			}
			nodes[j] = NodeTemplate{Tag: n.Tag, Sub: n.Sub, Aux0: aux0, Aux1: aux1}
		}
		redexes := make([][2]PortTemplate, len(d.redexes))
		for j, r := range d.redexes {
			l, err := resolveRefs(name, r[0], index)
			if err != nil {
				return nil, err
			}
			rr, err := resolveRefs(name, r[1], index)
			if err != nil {
				return nil, err
			}
			redexes[j] = [2]PortTemplate{l, rr}
		}
		defs[i] = Def{Name: name, Root: root, Nodes: nodes, Redexes: redexes, Safe: d.safe}
	}
	return &Book{defs: defs, index: index}, nil
}

func resolveRefs(defName string, p PortTemplate, index map[string]int) (PortTemplate, error) {
	if p.Kind != TplRef || p.VarName == "" {
		return p, nil
	}
	idx, ok := index[p.VarName]
	if !ok {
		return p, fmt.Errorf("%w: definition %q references undefined %q", hvmerr.ErrBookMalformed, defName, p.VarName)
	}
	p.RefIndex = uint64(idx)
	p.VarName = ""
	return p, nil
}

// checkVarBalance walks every port template of a definition and counts
// occurrences of each named variable, raising BookMalformed when any
// count differs from exactly 2, per spec.md §4.C/§7.
func checkVarBalance(defName string, d *draftDef) error {
	counts := map[string]int{}
	var visit func(PortTemplate)
	visit = func(p PortTemplate) {
		if p.Kind == TplVar {
			counts[p.VarName]++
		}
	}
	visit(d.root)
	for _, n := range d.nodes {
		visit(n.Aux0)
		visit(n.Aux1)
	}
	for _, r := range d.redexes {
		visit(r[0])
		visit(r[1])
	}
	for name, c := range counts {
		if c != 2 {
			return hvmerr.NewBookMalformed(defName, name, c)
		}
	}
	return nil
}
