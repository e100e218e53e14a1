package value

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformed reports bytes that are not a canonical encoding.
	ErrMalformed = errors.New("value: malformed encoding")
	// ErrUnorderable reports a value with no position in the canonical
	// order, such as a NaN float or a non-UTF-8 string.
	ErrUnorderable = errors.New("value: unorderable value")
	// ErrTooLarge reports a magnitude beyond what the encoding can frame.
	ErrTooLarge = errors.New("value: magnitude too large to encode")
)

const (
	signNegative = 0x00
	signZero     = 0x01
	signPositive = 0x02

	// Rational continued-fraction terms carry a one-byte magnitude length.
	// 0xFF is reserved so that complemented lengths stay above the 0x00
	// run terminator.
	maxTermBytes = 0xFE
)

// Encode returns the canonical byte form of v. For any two encodable
// values a and b, bytes.Compare(Encode(a), Encode(b)) equals Compare(a, b).
func Encode(v Value) ([]byte, error) {
	return Append(nil, v)
}

// Append appends the canonical byte form of v to dst.
func Append(dst []byte, v Value) ([]byte, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return append(dst, byte(KindBool), 0x01), nil
		}
		return append(dst, byte(KindBool), 0x00), nil
	case KindInt:
		return appendFlipped64(append(dst, byte(KindInt)), uint64(v.i64)), nil
	case KindUint:
		return binary.BigEndian.AppendUint64(append(dst, byte(KindUint)), v.u64), nil
	case KindBigInt:
		return appendSignedBig(append(dst, byte(KindBigInt)), v.big)
	case KindRational:
		return appendRational(append(dst, byte(KindRational)), v.rat)
	case KindFloat:
		if math.IsNaN(v.f64) {
			return nil, fmt.Errorf("%w: NaN float", ErrUnorderable)
		}
		return appendFlipped64(append(dst, byte(KindFloat)), floatToOrdered(v.f64)), nil
	case KindDecimal:
		return appendDecimal(append(dst, byte(KindDecimal)), v.dec)
	case KindDateTime:
		dst = appendFlipped64(append(dst, byte(KindDateTime)), uint64(v.t.Unix()))
		return binary.BigEndian.AppendUint32(dst, uint32(v.t.Nanosecond())), nil
	case KindString:
		if !utf8.ValidString(v.s) {
			return nil, fmt.Errorf("%w: invalid UTF-8 string", ErrUnorderable)
		}
		return appendEscaped(append(dst, byte(KindString)), v.s), nil
	case KindBytes:
		return appendEscaped(append(dst, byte(KindBytes)), v.s), nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %s value", ErrUnorderable, v.kind)
	}
}

// Decode parses a canonical encoding. The input must contain exactly one
// value; trailing bytes are an error.
func Decode(b []byte) (Value, error) {
	v, rest, err := DecodeFirst(b)
	if err != nil {
		return Value{}, err
	}
	if len(rest) != 0 {
		return Value{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	return v, nil
}

// DecodeFirst parses the value at the front of b and returns the remainder.
func DecodeFirst(b []byte) (Value, []byte, error) {
	if len(b) == 0 {
		return Value{}, nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	tag, b := Kind(b[0]), b[1:]
	switch tag {
	case KindBool:
		if len(b) < 1 || b[0] > 0x01 {
			return Value{}, nil, fmt.Errorf("%w: bad bool payload", ErrMalformed)
		}
		return Bool(b[0] == 0x01), b[1:], nil
	case KindInt:
		u, rest, err := takeFlipped64(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Int(int64(u)), rest, nil
	case KindUint:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("%w: truncated uint payload", ErrMalformed)
		}
		return Uint(binary.BigEndian.Uint64(b)), b[8:], nil
	case KindBigInt:
		i, rest, err := decodeSignedBig(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{kind: KindBigInt, big: i}, rest, nil
	case KindRational:
		r, rest, err := decodeRational(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{kind: KindRational, rat: r}, rest, nil
	case KindFloat:
		u, rest, err := takeFlipped64(b)
		if err != nil {
			return Value{}, nil, err
		}
		f := orderedToFloat(u)
		if math.IsNaN(f) {
			return Value{}, nil, fmt.Errorf("%w: NaN float payload", ErrMalformed)
		}
		return Float(f), rest, nil
	case KindDecimal:
		d, rest, err := decodeDecimal(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{kind: KindDecimal, dec: d}, rest, nil
	case KindDateTime:
		sec, b, err := takeFlipped64(b)
		if err != nil {
			return Value{}, nil, err
		}
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("%w: truncated datetime payload", ErrMalformed)
		}
		nsec := binary.BigEndian.Uint32(b)
		if nsec >= 1e9 {
			return Value{}, nil, fmt.Errorf("%w: nanoseconds out of range", ErrMalformed)
		}
		return DateTime(time.Unix(int64(sec), int64(nsec))), b[4:], nil
	case KindString:
		s, rest, err := decodeEscaped(b)
		if err != nil {
			return Value{}, nil, err
		}
		if !utf8.Valid(s) {
			return Value{}, nil, fmt.Errorf("%w: invalid UTF-8 payload", ErrMalformed)
		}
		return String(string(s)), rest, nil
	case KindBytes:
		s, rest, err := decodeEscaped(b)
		if err != nil {
			return Value{}, nil, err
		}
		return Value{kind: KindBytes, s: string(s)}, rest, nil
	default:
		return Value{}, nil, fmt.Errorf("%w: unknown kind tag 0x%02x", ErrMalformed, uint8(tag))
	}
}

// Fixed-width integers and floats are stored big endian with the sign bit
// flipped, which maps signed order onto unsigned bytewise order.

func appendFlipped64(dst []byte, u uint64) []byte {
	return binary.BigEndian.AppendUint64(dst, u^(1<<63))
}

func takeFlipped64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated 64-bit payload", ErrMalformed)
	}
	return binary.BigEndian.Uint64(b) ^ (1 << 63), b[8:], nil
}

// floatToOrdered maps IEEE-754 bits so that signed numeric order matches
// the signed integer order applied by appendFlipped64: negatives are
// complemented into ascending position, non-negatives pass through.
func floatToOrdered(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits ^ (1 << 63)
	}
	return bits
}

func orderedToFloat(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(^(u ^ (1 << 63)))
	}
	return math.Float64frombits(u)
}

// Arbitrary-precision integers use a sign byte (0x00 negative, 0x01 zero,
// 0x02 positive) followed by a 4-byte big-endian magnitude length and the
// magnitude bytes without leading zeros. The payload after a negative sign
// byte is bitwise complemented, which reverses the magnitude order.

func appendSignedBig(dst []byte, v *big.Int) ([]byte, error) {
	sign := v.Sign()
	if sign == 0 {
		return append(dst, signZero), nil
	}
	mag := new(big.Int).Abs(v).Bytes()
	if uint64(len(mag)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: integer magnitude of %d bytes", ErrTooLarge, len(mag))
	}
	if sign > 0 {
		dst = append(dst, signPositive)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(mag)))
		return append(dst, mag...), nil
	}
	dst = append(dst, signNegative)
	start := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(mag)))
	dst = append(dst, mag...)
	complement(dst[start:])
	return dst, nil
}

func decodeSignedBig(b []byte) (*big.Int, []byte, error) {
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("%w: missing sign byte", ErrMalformed)
	}
	sign, b := b[0], b[1:]
	if sign == signZero {
		return new(big.Int), b, nil
	}
	if sign != signPositive && sign != signNegative {
		return nil, nil, fmt.Errorf("%w: bad sign byte 0x%02x", ErrMalformed, sign)
	}
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated magnitude length", ErrMalformed)
	}
	head := binary.BigEndian.Uint32(b)
	if sign == signNegative {
		head = ^head
	}
	n := int(head)
	if n == 0 || len(b) < 4+n {
		return nil, nil, fmt.Errorf("%w: truncated magnitude", ErrMalformed)
	}
	mag := make([]byte, n)
	copy(mag, b[4:4+n])
	if sign == signNegative {
		complement(mag)
	}
	if mag[0] == 0 {
		return nil, nil, fmt.Errorf("%w: magnitude has leading zero", ErrMalformed)
	}
	v := new(big.Int).SetBytes(mag)
	if sign == signNegative {
		v.Neg(v)
	}
	return v, b[4+n:], nil
}

// Rationals are stored as a continued fraction: the floor in the signed
// big-integer form, then the Euclidean partial quotients. Terms at odd
// depth are complemented because increasing an odd-depth quotient makes
// the number smaller. Each term carries a one-byte magnitude length in
// [0x01, 0xFE]; the run ends with 0x00 after an even number of terms and
// 0xFF after an odd number, matching the order of the missing tail.

func appendRational(dst []byte, r *big.Rat) ([]byte, error) {
	num := new(big.Int).Set(r.Num())
	den := new(big.Int).Set(r.Denom())
	a0, rem := new(big.Int), new(big.Int)
	a0.DivMod(num, den, rem)

	dst, err := appendSignedBig(dst, a0)
	if err != nil {
		return nil, err
	}
	slot := 1
	q := new(big.Int)
	for rem.Sign() != 0 {
		q.DivMod(den, rem, num) // reuse num as next remainder
		mag := q.Bytes()
		if len(mag) > maxTermBytes {
			return nil, fmt.Errorf("%w: rational term of %d bytes", ErrTooLarge, len(mag))
		}
		start := len(dst)
		dst = append(dst, byte(len(mag)))
		dst = append(dst, mag...)
		if slot&1 == 1 {
			complement(dst[start:])
		}
		den, rem = rem, num
		num = new(big.Int)
		slot++
	}
	if slot&1 == 1 {
		return append(dst, 0x00), nil
	}
	return append(dst, 0xFF), nil
}

func decodeRational(b []byte) (*big.Rat, []byte, error) {
	a0, b, err := decodeSignedBig(b)
	if err != nil {
		return nil, nil, err
	}
	var terms []*big.Int
	slot := 1
	for {
		if len(b) < 1 {
			return nil, nil, fmt.Errorf("%w: unterminated rational", ErrMalformed)
		}
		c := b[0]
		odd := slot&1 == 1
		if (odd && c == 0x00) || (!odd && c == 0xFF) {
			b = b[1:]
			break
		}
		n := int(c)
		if odd {
			n = int(^c)
		}
		if n == 0 || n > maxTermBytes || len(b) < 1+n {
			return nil, nil, fmt.Errorf("%w: bad rational term framing", ErrMalformed)
		}
		mag := make([]byte, n)
		copy(mag, b[1:1+n])
		if odd {
			complement(mag)
		}
		if mag[0] == 0 {
			return nil, nil, fmt.Errorf("%w: rational term has leading zero", ErrMalformed)
		}
		terms = append(terms, new(big.Int).SetBytes(mag))
		b = b[1+n:]
		slot++
	}
	if len(terms) > 0 {
		// Euclid never produces a trailing quotient of one; rejecting it
		// keeps the encoding bijective.
		last := terms[len(terms)-1]
		if last.Cmp(big.NewInt(2)) < 0 {
			return nil, nil, fmt.Errorf("%w: non-canonical rational tail", ErrMalformed)
		}
	}
	x := new(big.Rat).SetInt(a0)
	if len(terms) > 0 {
		acc := new(big.Rat).SetInt(terms[len(terms)-1])
		for i := len(terms) - 2; i >= 0; i-- {
			acc.Inv(acc)
			acc.Add(acc, new(big.Rat).SetInt(terms[i]))
		}
		acc.Inv(acc)
		x.Add(x, acc)
	}
	return x, b, nil
}

// Decimals use the same sign-byte scheme, then the normalized exponent as
// a sign-flipped 64-bit integer and the significant digits one per byte
// offset by one, closed with 0x00. Trailing zero digits are stripped so
// each number has exactly one form. c * 10^e is written as
// 0.digits * 10^E with E = e + len(digits).

func appendDecimal(dst []byte, d decimal.Decimal) ([]byte, error) {
	coeff := d.Coefficient()
	sign := coeff.Sign()
	if sign == 0 {
		return append(dst, signZero), nil
	}
	exp := int64(d.Exponent())
	coeff.Abs(coeff)
	ten, mod := big.NewInt(10), new(big.Int)
	for {
		q := new(big.Int)
		q.DivMod(coeff, ten, mod)
		if mod.Sign() != 0 {
			break
		}
		coeff = q
		exp++
	}
	digits := coeff.String()

	if sign > 0 {
		dst = append(dst, signPositive)
	} else {
		dst = append(dst, signNegative)
	}
	start := len(dst)
	dst = appendFlipped64(dst, uint64(exp+int64(len(digits))))
	for i := 0; i < len(digits); i++ {
		dst = append(dst, digits[i]-'0'+1)
	}
	dst = append(dst, 0x00)
	if sign < 0 {
		complement(dst[start:])
	}
	return dst, nil
}

func decodeDecimal(b []byte) (decimal.Decimal, []byte, error) {
	if len(b) < 1 {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: missing sign byte", ErrMalformed)
	}
	sign, b := b[0], b[1:]
	if sign == signZero {
		return decimal.Zero, b, nil
	}
	if sign != signPositive && sign != signNegative {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: bad sign byte 0x%02x", ErrMalformed, sign)
	}
	if len(b) < 8 {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: truncated decimal exponent", ErrMalformed)
	}
	head := make([]byte, 8)
	copy(head, b[:8])
	if sign == signNegative {
		complement(head)
	}
	e := int64(binary.BigEndian.Uint64(head) ^ (1 << 63))
	b = b[8:]

	var digits []byte
	for {
		if len(b) < 1 {
			return decimal.Decimal{}, nil, fmt.Errorf("%w: unterminated decimal digits", ErrMalformed)
		}
		c := b[0]
		if sign == signNegative {
			c = ^c
		}
		b = b[1:]
		if c == 0x00 {
			break
		}
		if c < 0x01 || c > 0x0A {
			return decimal.Decimal{}, nil, fmt.Errorf("%w: bad decimal digit byte", ErrMalformed)
		}
		digits = append(digits, c-1+'0')
	}
	if len(digits) == 0 || digits[0] == '0' || digits[len(digits)-1] == '0' {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: non-canonical decimal digits", ErrMalformed)
	}
	coeff, ok := new(big.Int).SetString(string(digits), 10)
	if !ok {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: bad decimal digits", ErrMalformed)
	}
	exp := e - int64(len(digits))
	if exp < math.MinInt32 || exp > math.MaxInt32 {
		return decimal.Decimal{}, nil, fmt.Errorf("%w: decimal exponent out of range", ErrMalformed)
	}
	if sign == signNegative {
		coeff.Neg(coeff)
	}
	return decimal.NewFromBigInt(coeff, int32(exp)), b, nil
}

// Strings and blobs escape 0x00 as 0x00 0xFF and terminate with 0x00 0x01,
// which keeps the form prefix free while preserving bytewise order.

func appendEscaped(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == 0x00 {
			dst = append(dst, 0x00, 0xFF)
		} else {
			dst = append(dst, s[i])
		}
	}
	return append(dst, 0x00, 0x01)
}

func decodeEscaped(b []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] != 0x00 {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return nil, nil, fmt.Errorf("%w: truncated escape sequence", ErrMalformed)
		}
		switch b[i+1] {
		case 0x01:
			return out, b[i+2:], nil
		case 0xFF:
			out = append(out, 0x00)
			i++
		default:
			return nil, nil, fmt.Errorf("%w: bad escape byte 0x%02x", ErrMalformed, b[i+1])
		}
	}
	return nil, nil, fmt.Errorf("%w: unterminated byte sequence", ErrMalformed)
}

func complement(p []byte) {
	for i := range p {
		p[i] = ^p[i]
	}
}
