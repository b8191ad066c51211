// Package word implements the tagged 32-bit value described in kamek's data
// model: a Word is always either a plain VALUE, an ABSOLUTE address, or a
// module-RELATIVE address, and arithmetic between Words always keeps the
// kind of the left-hand operand.
//
// This is in the spirit of the cucaracha BitView helper:
// a thin wrapper around a plain uint32 that adds invariant-checked
// operations instead of raw bit twiddling.
package word

import (
	"fmt"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

// Kind distinguishes what a Word's 32 bits mean.
type Kind uint8

const (
	// Value is a plain number: an immediate, a size, a count.
	Value Kind = iota
	// Absolute is a fully resolved memory address.
	Absolute
	// Relative is an address relative to a module's load base.
	Relative
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "VALUE"
	case Absolute:
		return "ABSOLUTE"
	case Relative:
		return "RELATIVE"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// clampMin and clampMax bound the pre-wrap signed 64-bit integer that an
// arithmetic operation may legally produce; anything wider is a bug in the
// caller, not something to silently truncate.
const (
	clampMax = 0x1_FFFF_FFFF
	clampMin = -0x1_FFFF_FFFF
)

// Word is a 32-bit value carrying a Kind tag. The zero Word is Value(0).
type Word struct {
	kind  Kind
	value uint32
}

// Val constructs a VALUE word from a signed or unsigned integer, clamping to
// 32 bits the way spec's Word::val does: negative inputs wrap through two's
// complement (Word::val(-1).value == 0xFFFFFFFF).
func Val(v int64) Word {
	uv, err := clamp(v)
	if err != nil {
		panic(err)
	}
	return Word{kind: Value, value: uv}
}

// Abs constructs an ABSOLUTE word.
func Abs(v uint32) Word {
	return Word{kind: Absolute, value: v}
}

// Rel constructs a RELATIVE word.
func Rel(v uint32) Word {
	return Word{kind: Relative, value: v}
}

// New constructs a Word of an explicit kind, re-tagging an existing Word's
// numeric value if one is passed via New(other.Value(), kind).
func New(v uint32, kind Kind) Word {
	return Word{kind: kind, value: v}
}

// Kind returns the Word's tag.
func (w Word) Kind() Kind { return w.kind }

// Value returns the raw unsigned 32-bit value.
func (w Word) Value() uint32 { return w.value }

// Signed returns the value reinterpreted as a signed 32-bit integer.
func (w Word) Signed() int32 { return int32(w.value) }

// Int64 returns the value widened to a signed 64-bit integer (unsigned
// interpretation — callers needing the signed view should use Signed).
func (w Word) Int64() int64 { return int64(w.value) }

func (w Word) String() string {
	return fmt.Sprintf("%s(0x%08x)", w.kind, w.value)
}

// Equal compares both kind and value: two Words with equal numeric value but
// different kinds are never equal, and must not collide as map keys either
// (Word is comparable, so using it directly as a map key already gives this
// for free).
func (w Word) Equal(other Word) bool {
	return w == other
}

func clamp(raw int64) (uint32, error) {
	if raw > clampMax || raw < clampMin {
		return 0, errs.Wrap(errs.ErrInvalidOperation, "word value %d out of representable range", raw)
	}
	return uint32(uint64(raw) & 0xFFFFFFFF), nil
}

func (w Word) binary(rhs Word, op func(a, b int64) int64) Word {
	raw := op(int64(w.value), int64(rhs.value))
	v, err := clamp(raw)
	if err != nil {
		panic(err)
	}
	return Word{kind: w.kind, value: v}
}

// Add returns w + rhs, tagged with w's kind.
func (w Word) Add(rhs Word) Word { return w.binary(rhs, func(a, b int64) int64 { return a + b }) }

// Sub returns w - rhs, tagged with w's kind.
func (w Word) Sub(rhs Word) Word { return w.binary(rhs, func(a, b int64) int64 { return a - b }) }

// Mul returns w * rhs, tagged with w's kind.
func (w Word) Mul(rhs Word) Word { return w.binary(rhs, func(a, b int64) int64 { return a * b }) }

// Div returns the unsigned-truncated w / rhs, tagged with w's kind.
func (w Word) Div(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) / uint64(b)) })
}

// Mod returns the unsigned w % rhs, tagged with w's kind.
func (w Word) Mod(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) % uint64(b)) })
}

// Shl returns w << rhs, tagged with w's kind.
func (w Word) Shl(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) << uint(b)) })
}

// Shr returns the logical w >> rhs, tagged with w's kind.
func (w Word) Shr(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) >> uint(b)) })
}

// And returns w & rhs, tagged with w's kind.
func (w Word) And(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) & uint64(b)) })
}

// Or returns w | rhs, tagged with w's kind.
func (w Word) Or(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) | uint64(b)) })
}

// Xor returns w ^ rhs, tagged with w's kind.
func (w Word) Xor(rhs Word) Word {
	return w.binary(rhs, func(a, b int64) int64 { return int64(uint64(a) ^ uint64(b)) })
}

// Neg returns -w (two's complement negation), preserving w's kind.
func (w Word) Neg() Word {
	v, err := clamp(-int64(w.value))
	if err != nil {
		panic(err)
	}
	return Word{kind: w.kind, value: v}
}

// Pos returns w unchanged; it exists so unary `+w` has the same shape as the
// other unary operators in the source material.
func (w Word) Pos() Word { return w }

// Not returns ^w (bitwise complement), preserving w's kind.
func (w Word) Not() Word {
	return Word{kind: w.kind, value: ^w.value}
}

// AssertValue fails unless w is a VALUE.
func (w Word) AssertValue() error { return w.assertKind(Value) }

// AssertAbsolute fails unless w is ABSOLUTE.
func (w Word) AssertAbsolute() error { return w.assertKind(Absolute) }

// AssertRelative fails unless w is RELATIVE.
func (w Word) AssertRelative() error { return w.assertKind(Relative) }

// AssertNotValue fails if w is a VALUE.
func (w Word) AssertNotValue() error { return w.assertNotKind(Value) }

// AssertNotAbsolute fails if w is ABSOLUTE.
func (w Word) AssertNotAbsolute() error { return w.assertNotKind(Absolute) }

// AssertNotRelative fails if w is RELATIVE.
func (w Word) AssertNotRelative() error { return w.assertNotKind(Relative) }

func (w Word) assertKind(k Kind) error {
	if w.kind != k {
		return errs.Wrap(errs.ErrInvalidOperation, "expected %s word, got %s (%s)", k, w.kind, w)
	}
	return nil
}

func (w Word) assertNotKind(k Kind) error {
	if w.kind == k {
		return errs.Wrap(errs.ErrInvalidOperation, "unexpected %s word (%s)", k, w)
	}
	return nil
}

// topBit is the sign bit used by the ambiguity rule: an ABSOLUTE address is
// ambiguous unless its top bit is set (so it reads as a "negative", i.e.
// plausible high memory address), and a RELATIVE address is ambiguous
// unless its top bit is clear (so it cannot be confused with one).
const topBit = 0x8000_0000

// IsAmbiguous reports whether w's kind and top bit disagree: an ABSOLUTE
// word with a clear top bit, or a RELATIVE word with a set one. VALUE words
// are never ambiguous.
func (w Word) IsAmbiguous() bool {
	switch w.kind {
	case Absolute:
		return w.value&topBit == 0
	case Relative:
		return w.value&topBit != 0
	default:
		return false
	}
}

// AssertNotAmbiguous fails if IsAmbiguous is true. Every serialization site
// that writes a Word's value out must call this first.
func (w Word) AssertNotAmbiguous() error {
	if w.IsAmbiguous() {
		return errs.Wrap(errs.ErrInvalidOperation, "ambiguous %s word %s", w.kind, w)
	}
	return nil
}
