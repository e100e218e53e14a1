// Package value implements the canonical ordered codec for typed literals.
//
// A Value is a closed tagged variant over the literal kinds stored by the
// dictionary layer. Encode turns a Value into a self-describing byte
// sequence whose bytewise lexicographic order matches the natural order of
// the values: within a kind, numeric or chronological or lexical order;
// across kinds, the fixed Kind tag precedence. Decode is the total inverse
// of Encode. The codec is pure and stateless; values are immutable.
//
// Arbitrary-precision arithmetic is delegated to math/big and
// github.com/shopspring/decimal; the codec only defines order-preserving,
// round-trippable byte forms for their values.
package value

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the concrete type stored in a Value. The numeric order of
// the Kind constants is the cross-type sort precedence and doubles as the
// leading tag byte of every encoding; it must never be reordered.
type Kind uint8

const (
	// KindInvalid is the zero Value's kind. It has no encoding.
	KindInvalid Kind = iota
	// KindBool is a boolean.
	KindBool
	// KindInt is a signed 64-bit integer.
	KindInt
	// KindUint is an unsigned 64-bit integer.
	KindUint
	// KindBigInt is an arbitrary-precision integer.
	KindBigInt
	// KindRational is an arbitrary-precision rational number.
	KindRational
	// KindFloat is an IEEE-754 double.
	KindFloat
	// KindDecimal is an arbitrary-precision decimal.
	KindDecimal
	// KindDateTime is an instant in time, normalized to UTC.
	KindDateTime
	// KindString is a UTF-8 string.
	KindString
	// KindBytes is a raw byte blob.
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindBigInt:
		return "bigint"
	case KindRational:
		return "rational"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindDateTime:
		return "datetime"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
}

// Value is a typed literal. The zero Value is invalid; obtain one from a
// constructor or Decode. Values are immutable: constructors copy mutable
// inputs, so a Value can be shared freely between goroutines.
type Value struct {
	kind Kind
	i64  int64
	u64  uint64
	f64  float64
	b    bool
	s    string // KindString and KindBytes payload
	big  *big.Int
	rat  *big.Rat
	dec  decimal.Decimal
	t    time.Time
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a signed integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i64: i} }

// Uint returns an unsigned integer Value.
func Uint(u uint64) Value { return Value{kind: KindUint, u64: u} }

// BigInt returns an arbitrary-precision integer Value. The input is copied.
func BigInt(i *big.Int) Value {
	return Value{kind: KindBigInt, big: new(big.Int).Set(i)}
}

// Rational returns an arbitrary-precision rational Value. The input is
// copied and normalized to lowest terms.
func Rational(r *big.Rat) Value {
	return Value{kind: KindRational, rat: new(big.Rat).Set(r)}
}

// Float returns a double-precision float Value. Negative zero is
// normalized to positive zero so that equal values share one encoding.
func Float(f float64) Value {
	if f == 0 {
		f = 0
	}
	return Value{kind: KindFloat, f64: f}
}

// Decimal returns an arbitrary-precision decimal Value.
func Decimal(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }

// DateTime returns an instant Value, normalized to UTC.
func DateTime(t time.Time) Value { return Value{kind: KindDateTime, t: t.UTC()} }

// String returns a UTF-8 string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Bytes returns a raw byte blob Value. The input is copied.
func Bytes(b []byte) Value { return Value{kind: KindBytes, s: string(b)} }

// Kind returns the kind tag.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value has a kind.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean payload if the kind matches.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the signed integer payload if the kind matches.
func (v Value) AsInt() (int64, bool) { return v.i64, v.kind == KindInt }

// AsUint returns the unsigned integer payload if the kind matches.
func (v Value) AsUint() (uint64, bool) { return v.u64, v.kind == KindUint }

// AsBigInt returns a copy of the big integer payload if the kind matches.
func (v Value) AsBigInt() (*big.Int, bool) {
	if v.kind != KindBigInt {
		return nil, false
	}
	return new(big.Int).Set(v.big), true
}

// AsRational returns a copy of the rational payload if the kind matches.
func (v Value) AsRational() (*big.Rat, bool) {
	if v.kind != KindRational {
		return nil, false
	}
	return new(big.Rat).Set(v.rat), true
}

// AsFloat returns the float payload if the kind matches.
func (v Value) AsFloat() (float64, bool) { return v.f64, v.kind == KindFloat }

// AsDecimal returns the decimal payload if the kind matches.
func (v Value) AsDecimal() (decimal.Decimal, bool) { return v.dec, v.kind == KindDecimal }

// AsDateTime returns the instant payload if the kind matches.
func (v Value) AsDateTime() (time.Time, bool) { return v.t, v.kind == KindDateTime }

// AsString returns the string payload if the kind matches.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsBytes returns a copy of the blob payload if the kind matches.
func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return []byte(v.s), true
}

// String implements fmt.Stringer for debugging output.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.b)
	case KindInt:
		return fmt.Sprintf("int(%d)", v.i64)
	case KindUint:
		return fmt.Sprintf("uint(%d)", v.u64)
	case KindBigInt:
		return fmt.Sprintf("bigint(%s)", v.big)
	case KindRational:
		return fmt.Sprintf("rational(%s)", v.rat.RatString())
	case KindFloat:
		return fmt.Sprintf("float(%g)", v.f64)
	case KindDecimal:
		return fmt.Sprintf("decimal(%s)", v.dec)
	case KindDateTime:
		return fmt.Sprintf("datetime(%s)", v.t.Format(time.RFC3339Nano))
	case KindString:
		return fmt.Sprintf("string(%q)", v.s)
	case KindBytes:
		return fmt.Sprintf("bytes(%x)", v.s)
	default:
		return "invalid"
	}
}

// Compare orders two values the same way their encodings order bytewise:
// kind precedence first, then the natural order within the kind. The result
// is unspecified for values Encode rejects, such as NaN floats.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindBool:
		return boolCompare(a.b, b.b)
	case KindInt:
		return cmpOrdered(a.i64, b.i64)
	case KindUint:
		return cmpOrdered(a.u64, b.u64)
	case KindBigInt:
		return a.big.Cmp(b.big)
	case KindRational:
		return a.rat.Cmp(b.rat)
	case KindFloat:
		return cmpOrdered(a.f64, b.f64)
	case KindDecimal:
		return a.dec.Cmp(b.dec)
	case KindDateTime:
		return a.t.Compare(b.t)
	case KindString, KindBytes:
		return cmpOrdered(a.s, b.s)
	default:
		return 0
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindFloat {
		// Covers NaN, which Compare does not order.
		return v.f64 == o.f64 || (v.f64 != v.f64 && o.f64 != o.f64)
	}
	return Compare(v, o) == 0
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func cmpOrdered[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
