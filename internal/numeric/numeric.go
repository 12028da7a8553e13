// Package numeric implements the operator table for the tagged 24-bit
// U60/I60/F60 payload carried by NUM ports, grounded on
// original_source/src/run.rs's op() table and extended to the full
// operator set of spec.md §4.J/§6.
package numeric

import (
	"fmt"
	"math"
	"strconv"

	"github.com/hvm-core/hvmc/internal/hvmerr"
	"github.com/hvm-core/hvmc/internal/port"
)

// OverflowMode selects how integer arithmetic handles overflow, per the
// §6 `numeric_overflow` configuration option.
type OverflowMode uint8

const (
	Wrap OverflowMode = iota
	Trap
)

func ParseOverflowMode(s string) (OverflowMode, bool) {
	switch s {
	case "", "wrap":
		return Wrap, true
	case "trap":
		return Trap, true
	default:
		return 0, false
	}
}

const (
	valueBits = 24
	valueMask = int64(1)<<valueBits - 1
	signBit   = int64(1) << (valueBits - 1)
)

func wrap24(v int64) int32 {
	v &= valueMask
	if v&signBit != 0 {
		v |= ^valueMask
	}
	return int32(v)
}

// f60Bits truncates a float32's IEEE-754 bit pattern to the top 24 bits
// (sign, 8-bit exponent, 15-bit mantissa) -- the encoding this module
// fixes for the open F60 layout question (see DESIGN.md).
func f60Bits(f float32) int32 {
	bits := math.Float32bits(f)
	return int32(bits >> 8)
}

func f60ToFloat32(v int32) float32 {
	bits := uint32(v) << 8
	return math.Float32frombits(bits)
}

// Apply evaluates op(a, b) where a and b are the raw 24-bit payloads of
// two NUM ports of the given kind. It returns the resulting NUM port.
//
// Comparisons yield 0/1 U60 integers regardless of operand kind. Float
// NaN comparisons follow IEEE-754: every ordered comparison involving
// NaN yields 0. Integer division/modulo by zero is fatal
// (hvmerr.ErrDivisionByZero); float division by zero yields ±Inf or NaN
// per IEEE-754.
func Apply(op port.Op, kind port.NumKind, a, b int32, overflow OverflowMode) (port.Port, error) {
	if kind == port.F60 {
		return applyFloat(op, a, b)
	}
	return applyInt(op, kind, a, b, overflow)
}

func applyInt(op port.Op, kind port.NumKind, a, b int32, overflow OverflowMode) (port.Port, error) {
	av, bv := int64(a), int64(b)
	boolPort := func(v bool) port.Port {
		if v {
			return port.NewNum(port.U60, 1)
		}
		return port.NewNum(port.U60, 0)
	}
	switch op {
	case port.OpEq:
		return boolPort(av == bv), nil
	case port.OpNe:
		return boolPort(av != bv), nil
	case port.OpLt:
		return boolPort(av < bv), nil
	case port.OpGt:
		return boolPort(av > bv), nil
	case port.OpLe:
		return boolPort(av <= bv), nil
	case port.OpGe:
		return boolPort(av >= bv), nil
	}

	var raw int64
	switch op {
	case port.OpAdd:
		raw = av + bv
	case port.OpSub:
		raw = av - bv
	case port.OpMul:
		raw = av * bv
	case port.OpDiv:
		if bv == 0 {
			return 0, hvmerr.ErrDivisionByZero
		}
		raw = av / bv
	case port.OpMod:
		if bv == 0 {
			return 0, hvmerr.ErrDivisionByZero
		}
		raw = av % bv
	case port.OpAnd:
		raw = av & bv
	case port.OpOr:
		raw = av | bv
	case port.OpXor:
		raw = av ^ bv
	case port.OpShl:
		raw = av << (uint64(bv) & (valueBits - 1))
	case port.OpShr:
		raw = av >> (uint64(bv) & (valueBits - 1))
	default:
		return 0, hvmerr.NewInvalidInteraction("numeric.applyInt", "unknown operator")
	}

	if overflow == Trap && (raw > signBit-1 || raw < -signBit) {
		return 0, hvmerr.NewInvalidInteraction("numeric.applyInt", "integer overflow trapped")
	}
	return port.NewNum(kind, wrap24(raw)), nil
}

func applyFloat(op port.Op, a, b int32) (port.Port, error) {
	af, bf := f60ToFloat32(a), f60ToFloat32(b)
	switch op {
	case port.OpEq:
		return floatBool(af == bf), nil
	case port.OpNe:
		return floatBool(af != bf), nil
	case port.OpLt:
		return floatBool(af < bf), nil
	case port.OpGt:
		return floatBool(af > bf), nil
	case port.OpLe:
		return floatBool(af <= bf), nil
	case port.OpGe:
		return floatBool(af >= bf), nil
	}

	var r float32
	switch op {
	case port.OpAdd:
		r = af + bf
	case port.OpSub:
		r = af - bf
	case port.OpMul:
		r = af * bf
	case port.OpDiv:
		r = af / bf // IEEE-754: yields ±Inf or NaN on zero divisor, never fatal.
	case port.OpMod:
		r = float32(math.Mod(float64(af), float64(bf)))
	default:
		return 0, hvmerr.NewInvalidInteraction("numeric.applyFloat", "unsupported float operator")
	}
	return port.NewNum(port.F60, f60Bits(r)), nil
}

// floatBool returns a U60 0/1 result, matching "comparisons yield 0/1
// integers" regardless of the operand kind (§4.F).
func floatBool(v bool) port.Port {
	if v {
		return port.NewNum(port.U60, 1)
	}
	return port.NewNum(port.U60, 0)
}

// FloatValue reinterprets a NUM port's raw payload as the fixed F60
// encoding's float32 value.
func FloatValue(p port.Port) float32 {
	return f60ToFloat32(p.Value())
}

// NewFloat builds an F60 NUM port for the given float32, applying this
// module's fixed truncation encoding.
func NewFloat(f float32) port.Port {
	return port.NewNum(port.F60, f60Bits(f))
}

// Literal renders a NUM port using spec.md §6's textual literal
// grammar -- "#123"/"#-123" for U60/I60, "#1.02"/"#inf"/"#-inf"/"#NaN"
// for F60 -- as opposed to port.Port.String()'s internal debug form
// (which exposes the raw 24-bit encoding and is only meant for the
// heap-image dump).
func Literal(p port.Port) string {
	if p.NumKind() == port.F60 {
		return "#" + FormatFloat(FloatValue(p))
	}
	return fmt.Sprintf("#%d", p.Value())
}

// FormatFloat renders f as the shortest decimal that survives this
// package's F60 round-trip (f60Bits, not float32's own precision):
// F60 already discards 8 of float32's 23 mantissa bits, so a value
// like 1.02 never comes back as float32(1.02) -- only as the nearest
// value F60 can hold -- and the usual shortest-float32-round-trip
// algorithm would print that value's many extra, meaningless digits
// instead of "1.02".
func FormatFloat(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	}
	want := f60Bits(f)
	for prec := 1; prec <= 20; prec++ {
		s := strconv.FormatFloat(float64(f), 'f', prec, 32)
		parsed, err := strconv.ParseFloat(s, 32)
		if err == nil && f60Bits(float32(parsed)) == want {
			return s
		}
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
