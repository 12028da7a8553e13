// Package port implements the packed-pointer word that represents a wire
// endpoint in an interaction net: a small tag, an optional sub-tag, and a
// payload, all folded into a single uint64 so that a port can live in an
// atomic slot without indirection.
package port

import "fmt"

// Tag identifies the kind of agent (or wire fragment) a Port names.
type Tag uint8

const (
	// VAR is an auxiliary wire end: its payload names the node+aux slot
	// holding the other end of the wire.
	VAR Tag = iota
	// RED is a transient redirect, produced mid-link; observers must
	// follow it to a non-RED destination.
	RED
	// REF names a book definition by index.
	REF
	// ERA is the nilary eraser agent.
	ERA
	// NUM is an inline tagged numeric literal.
	NUM
	// OP2 is a binary numeric operator awaiting both operands.
	OP2
	// OP1 is a numeric operator that has already consumed its first
	// operand and now holds it alongside the operator code.
	OP1
	// MAT is a numeric match/switch agent.
	MAT
	// CTR is a constructor/duplicator agent; its sub-tag is its label.
	CTR
)

func (t Tag) String() string {
	switch t {
	case VAR:
		return "VAR"
	case RED:
		return "RED"
	case REF:
		return "REF"
	case ERA:
		return "ERA"
	case NUM:
		return "NUM"
	case OP2:
		return "OP2"
	case OP1:
		return "OP1"
	case MAT:
		return "MAT"
	case CTR:
		return "CTR"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// NumKind is the numeric sub-tag carried by a NUM port.
type NumKind uint8

const (
	U60 NumKind = iota
	I60
	F60
)

func (k NumKind) String() string {
	switch k {
	case U60:
		return "U60"
	case I60:
		return "I60"
	case F60:
		return "F60"
	default:
		return fmt.Sprintf("NumKind(%d)", uint8(k))
	}
}

// Op is the operator code carried by the sub-tag of an OP2/OP1 port.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
)

var opNames = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
	OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Port is a single packed word: bits [0:4) tag, bits [4:8) sub-tag,
// bits [8:64) payload.
type Port uint64

const (
	tagBits  = 4
	tagMask  = uint64(1)<<tagBits - 1
	subShift = tagBits
	subBits  = 4
	subMask  = uint64(1)<<subBits - 1
	payShift = tagBits + subBits

	numValBits = 24
	numValMask = uint64(1)<<numValBits - 1
	numSign    = uint64(1) << (numValBits - 1)
)

// sentinelSub is a sub-tag value no real RED port ever carries (real
// redirects always carry sub-tag 0), reserved for the Lock/Gone
// sentinels below.
const sentinelSub = uint8(subMask)

// Lock is the canonical sentinel written into a slot while a link
// operation owns it. It decodes as a RED port whose sub-tag cannot
// arise from a genuine redirect, so it is unambiguously distinguishable
// from one.
var Lock Port = New(RED, sentinelSub, 0)

// Gone is a second sentinel used to resolve a race between two workers
// simultaneously discovering the same active pair through independent
// principal-principal arrivals (see linker.go).
var Gone Port = New(RED, sentinelSub, 1)

// New packs a tag, sub-tag, and raw payload into a Port.
func New(tag Tag, sub uint8, payload uint64) Port {
	return Port((uint64(tag) & tagMask) | ((uint64(sub) & subMask) << subShift) | (payload << payShift))
}

// NewVar builds a VAR port referencing the given node/aux slot.
func NewVar(node uint64, aux uint8) Port {
	return New(VAR, 0, wireLoc(node, aux))
}

// NewRed builds a RED port referencing the given node/aux slot.
func NewRed(node uint64, aux uint8) Port {
	return New(RED, 0, wireLoc(node, aux))
}

// NewCtr builds a CTR port with the given label, addressing node. The
// aux-slot bit of the shared node/aux payload encoding is unused for
// principal ports (a principal port names the whole node, not one of
// its aux slots) and is always 0.
func NewCtr(label uint8, node uint64) Port {
	return New(CTR, label, wireLoc(node, 0))
}

// NewOp2 builds an OP2 port carrying the given operator, addressing node.
func NewOp2(op Op, node uint64) Port {
	return New(OP2, uint8(op), wireLoc(node, 0))
}

// NewOp1 builds an OP1 port carrying the given operator, addressing node.
func NewOp1(op Op, node uint64) Port {
	return New(OP1, uint8(op), wireLoc(node, 0))
}

// NewMat builds a MAT port addressing node.
func NewMat(node uint64) Port {
	return New(MAT, 0, wireLoc(node, 0))
}

// NewRef builds a REF port naming the given book index.
func NewRef(defIndex uint64) Port {
	return New(REF, 0, defIndex)
}

// Era is the singleton eraser port.
var Era Port = New(ERA, 0, 0)

// NewNum builds a NUM port of the given kind holding a raw 24-bit value.
func NewNum(kind NumKind, value int32) Port {
	return New(NUM, uint8(kind), uint64(value)&numValMask)
}

func wireLoc(node uint64, aux uint8) uint64 {
	return (node << 1) | uint64(aux&1)
}

// Tag extracts the tag.
func (p Port) Tag() Tag { return Tag(uint64(p) & tagMask) }

// SubTag extracts the raw 4-bit sub-tag.
func (p Port) SubTag() uint8 { return uint8((uint64(p) >> subShift) & subMask) }

// Label returns the sub-tag interpreted as a CTR label.
func (p Port) Label() uint8 { return p.SubTag() }

// NumKind returns the sub-tag interpreted as a numeric kind. Valid only
// when Tag() == NUM.
func (p Port) NumKind() NumKind { return NumKind(p.SubTag()) }

// OpCode returns the sub-tag interpreted as an operator. Valid only when
// Tag() is OP2 or OP1.
func (p Port) OpCode() Op { return Op(p.SubTag()) }

func (p Port) rawPayload() uint64 { return uint64(p) >> payShift }

// NodeIndex returns the node index for VAR/RED/CTR/OP2/OP1/MAT ports.
func (p Port) NodeIndex() uint64 { return p.rawPayload() >> 1 }

// AuxPort returns which of the two aux ports (0/1) for VAR/RED ports.
func (p Port) AuxPort() uint8 { return uint8(p.rawPayload() & 1) }

// DefIndex returns the book index for REF ports.
func (p Port) DefIndex() uint64 { return p.rawPayload() }

// Value returns the sign-extended 24-bit payload of a NUM port.
func (p Port) Value() int32 {
	v := p.rawPayload() & numValMask
	if v&numSign != 0 {
		v |= ^numValMask
	}
	return int32(v)
}

// IsPrincipal reports whether p is the principal port of its agent:
// every tag except VAR and RED addresses a principal port under this
// encoding (ERA/NUM/REF are nilary agents whose only port is principal).
func (p Port) IsPrincipal() bool {
	switch p.Tag() {
	case VAR, RED:
		return false
	default:
		return true
	}
}

// IsNilary reports whether p's agent has no auxiliary ports.
func (p Port) IsNilary() bool {
	switch p.Tag() {
	case ERA, NUM, REF:
		return true
	default:
		return false
	}
}

// IsBinary reports whether p's agent carries the two-aux-port shape.
func (p Port) IsBinary() bool {
	switch p.Tag() {
	case CTR, OP2, OP1, MAT:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether p is a NUM port.
func (p Port) IsNumeric() bool { return p.Tag() == NUM }

// IsVar reports whether p is a VAR port.
func (p Port) IsVar() bool { return p.Tag() == VAR }

// IsRed reports whether p is a RED port (excluding the Lock/Gone
// sentinels, which are never valid observations of a real wire).
func (p Port) IsRed() bool { return p.Tag() == RED && p.SubTag() != sentinelSub }

// Redirect converts a VAR port into the RED port with the same address.
func (p Port) Redirect() Port {
	return New(RED, 0, p.rawPayload())
}

// Unredirect converts a RED port into the VAR port with the same address.
func (p Port) Unredirect() Port {
	return New(VAR, 0, p.rawPayload())
}

func (p Port) String() string {
	switch p.Tag() {
	case ERA:
		return "*"
	case NUM:
		return fmt.Sprintf("#%d:%s", p.Value(), p.NumKind())
	case REF:
		return fmt.Sprintf("@%d", p.DefIndex())
	case CTR:
		return fmt.Sprintf("CTR{%d}@%d", p.Label(), p.NodeIndex())
	case OP2, OP1:
		return fmt.Sprintf("%s{%s}@%d", p.Tag(), p.OpCode(), p.NodeIndex())
	case VAR, RED:
		return fmt.Sprintf("%s@%d.%d", p.Tag(), p.NodeIndex(), p.AuxPort())
	default:
		return fmt.Sprintf("%s@%d", p.Tag(), p.NodeIndex())
	}
}
