package value

import (
	"bytes"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	vals := []Value{
		Bool(false),
		Bool(true),
		Int(math.MinInt64),
		Int(-5),
		Int(0),
		Int(3),
		Int(math.MaxInt64),
		Uint(0),
		Uint(42),
		Uint(math.MaxUint64),
		BigInt(big.NewInt(0)),
		BigInt(big.NewInt(-123456)),
		BigInt(new(big.Int).Lsh(big.NewInt(1), 200)),
		BigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 200))),
		Rational(big.NewRat(0, 1)),
		Rational(big.NewRat(1, 2)),
		Rational(big.NewRat(-7, 3)),
		Rational(big.NewRat(355, 113)),
		Float(math.Inf(-1)),
		Float(-1.5),
		Float(0),
		Float(math.SmallestNonzeroFloat64),
		Float(1e300),
		Float(math.Inf(1)),
		Decimal(decimal.Zero),
		Decimal(mustDecimal(t, "-12.345")),
		Decimal(mustDecimal(t, "0.001")),
		Decimal(mustDecimal(t, "98765432109876543210.5")),
		DateTime(time.Date(1969, 7, 20, 20, 17, 40, 0, time.UTC)),
		DateTime(time.Date(2026, 8, 31, 12, 0, 0, 123456789, time.UTC)),
		String(""),
		String("hello"),
		String("nul\x00byte"),
		Bytes(nil),
		Bytes([]byte{0x00, 0xFF, 0x00}),
	}

	for _, v := range vals {
		enc, err := Encode(v)
		require.NoError(t, err, "encode %s", v)

		got, err := Decode(enc)
		require.NoError(t, err, "decode %s", v)
		assert.True(t, v.Equal(got), "round trip %s, got %s", v, got)

		reenc, err := Encode(got)
		require.NoError(t, err)
		assert.Equal(t, enc, reenc, "re-encode %s", v)
	}
}

func TestOrderWithinKind(t *testing.T) {
	t.Parallel()

	sorted := [][]Value{
		{Bool(false), Bool(true)},
		{
			Int(math.MinInt64), Int(-1000000), Int(-5), Int(-1), Int(0),
			Int(3), Int(7), Int(1000000), Int(math.MaxInt64),
		},
		{Uint(0), Uint(1), Uint(255), Uint(1 << 40), Uint(math.MaxUint64)},
		{
			BigInt(new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 100))),
			BigInt(big.NewInt(-300)),
			BigInt(big.NewInt(-1)),
			BigInt(big.NewInt(0)),
			BigInt(big.NewInt(1)),
			BigInt(big.NewInt(255)),
			BigInt(big.NewInt(256)),
			BigInt(new(big.Int).Lsh(big.NewInt(1), 100)),
			BigInt(new(big.Int).Lsh(big.NewInt(1), 500)),
		},
		{
			Float(math.Inf(-1)), Float(-1e300), Float(-5), Float(-1.5),
			Float(-math.SmallestNonzeroFloat64), Float(0),
			Float(math.SmallestNonzeroFloat64), Float(1.5), Float(5),
			Float(1e300), Float(math.Inf(1)),
		},
		{
			Decimal(mustDecimal(t, "-1000")),
			Decimal(mustDecimal(t, "-1.3")),
			Decimal(mustDecimal(t, "-1.25")),
			Decimal(mustDecimal(t, "-0.0001")),
			Decimal(decimal.Zero),
			Decimal(mustDecimal(t, "0.0001")),
			Decimal(mustDecimal(t, "0.001")),
			Decimal(mustDecimal(t, "1.25")),
			Decimal(mustDecimal(t, "1.3")),
			Decimal(mustDecimal(t, "12.5")),
			Decimal(mustDecimal(t, "123")),
			Decimal(mustDecimal(t, "1230")),
		},
		{
			DateTime(time.Date(1903, 12, 17, 10, 35, 0, 0, time.UTC)),
			DateTime(time.Date(1969, 12, 31, 23, 59, 59, 999999999, time.UTC)),
			DateTime(time.Unix(0, 0)),
			DateTime(time.Unix(0, 1)),
			DateTime(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)),
		},
		{
			String(""), String("a"), String("a\x00"), String("a\x00b"),
			String("aa"), String("ab"), String("b"),
		},
		{
			Bytes(nil), Bytes([]byte{0x00}), Bytes([]byte{0x00, 0x01}),
			Bytes([]byte{0x01}), Bytes([]byte{0x01, 0x00}), Bytes([]byte{0xFF}),
		},
	}

	for _, run := range sorted {
		encs := make([][]byte, len(run))
		for i, v := range run {
			enc, err := Encode(v)
			require.NoError(t, err, "encode %s", v)
			encs[i] = enc
		}
		for i := 0; i < len(run); i++ {
			for j := 0; j < len(run); j++ {
				want := 0
				switch {
				case i < j:
					want = -1
				case i > j:
					want = 1
				}
				assert.Equal(t, want, bytes.Compare(encs[i], encs[j]),
					"encoded order of %s vs %s", run[i], run[j])
				assert.Equal(t, want, Compare(run[i], run[j]),
					"Compare of %s vs %s", run[i], run[j])
			}
		}
	}
}

func TestNegativeBeforePositive(t *testing.T) {
	t.Parallel()

	a, err := Encode(Int(-5))
	require.NoError(t, err)
	b, err := Encode(Int(3))
	require.NoError(t, err)
	assert.Equal(t, -1, bytes.Compare(a, b))
}

func TestRationalOrderExhaustive(t *testing.T) {
	t.Parallel()

	var rats []*big.Rat
	for p := int64(-20); p <= 20; p++ {
		for q := int64(1); q <= 12; q++ {
			rats = append(rats, big.NewRat(p, q))
		}
	}
	encs := make([][]byte, len(rats))
	for i, r := range rats {
		enc, err := Encode(Rational(r))
		require.NoError(t, err, "encode %s", r.RatString())
		encs[i] = enc

		got, err := Decode(enc)
		require.NoError(t, err)
		dec, ok := got.AsRational()
		require.True(t, ok)
		require.Zero(t, r.Cmp(dec), "round trip %s", r.RatString())
	}
	for i := range rats {
		for j := range rats {
			assert.Equal(t, rats[i].Cmp(rats[j]), bytes.Compare(encs[i], encs[j]),
				"encoded order of %s vs %s", rats[i].RatString(), rats[j].RatString())
		}
	}
}

func TestCrossKindOrder(t *testing.T) {
	t.Parallel()

	// One representative per kind, in tag precedence order. Numeric
	// payloads are deliberately chosen so that only the tag can order them.
	ladder := []Value{
		Bool(true),
		Int(-100),
		Uint(5),
		BigInt(big.NewInt(-999)),
		Rational(big.NewRat(1, 7)),
		Float(-1e10),
		Decimal(mustDecimal(t, "0.5")),
		DateTime(time.Unix(0, 0)),
		String("abc"),
		Bytes([]byte{0x01}),
	}
	prev, err := Encode(ladder[0])
	require.NoError(t, err)
	for _, v := range ladder[1:] {
		enc, err := Encode(v)
		require.NoError(t, err)
		assert.Equal(t, -1, bytes.Compare(prev, enc), "kind order before %s", v)
		prev = enc
	}
}

func TestDecimalCanonicalForm(t *testing.T) {
	t.Parallel()

	a, err := Encode(Decimal(mustDecimal(t, "1.200")))
	require.NoError(t, err)
	b, err := Encode(Decimal(mustDecimal(t, "1.2")))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNegativeZeroFloat(t *testing.T) {
	t.Parallel()

	a, err := Encode(Float(math.Copysign(0, -1)))
	require.NoError(t, err)
	b, err := Encode(Float(0))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnorderable(t *testing.T) {
	t.Parallel()

	_, err := Encode(Float(math.NaN()))
	require.ErrorIs(t, err, ErrUnorderable)

	_, err = Encode(String("bad\xff\xfe"))
	require.ErrorIs(t, err, ErrUnorderable)

	_, err = Encode(Value{})
	require.ErrorIs(t, err, ErrUnorderable)
}

func TestMalformed(t *testing.T) {
	t.Parallel()

	good, err := Encode(Int(7))
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":             {},
		"unknown tag":       {0xEE, 0x01},
		"truncated int":     {byte(KindInt), 0x80},
		"trailing bytes":    append(append([]byte{}, good...), 0x00),
		"bad bool":          {byte(KindBool), 0x02},
		"bad escape":        {byte(KindString), 'a', 0x00, 0x7F},
		"open string":       {byte(KindString), 'a'},
		"bad bigint sign":   {byte(KindBigInt), 0x03},
		"empty bigint":      {byte(KindBigInt), 0x02, 0x00, 0x00, 0x00, 0x00},
		"open rational":     {byte(KindRational), 0x01},
		"bad datetime nsec": {byte(KindDateTime), 0x80, 0, 0, 0, 0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF},
	}
	for name, in := range cases {
		_, err := Decode(in)
		assert.ErrorIs(t, err, ErrMalformed, name)
	}
}

func TestDecodeFirst(t *testing.T) {
	t.Parallel()

	buf, err := Encode(String("k"))
	require.NoError(t, err)
	buf, err = Append(buf, Uint(9))
	require.NoError(t, err)

	v, rest, err := DecodeFirst(buf)
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "k", s)

	v, rest, err = DecodeFirst(rest)
	require.NoError(t, err)
	u, ok := v.AsUint()
	require.True(t, ok)
	assert.Equal(t, uint64(9), u)
	assert.Empty(t, rest)
}

func TestAccessors(t *testing.T) {
	t.Parallel()

	v := Int(-3)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(-3), i)
	_, ok = v.AsUint()
	assert.False(t, ok)
	assert.Equal(t, KindInt, v.Kind())
	assert.True(t, v.IsValid())
	assert.False(t, Value{}.IsValid())

	b := Bytes([]byte{1, 2})
	raw, ok := b.AsBytes()
	require.True(t, ok)
	raw[0] = 9
	again, _ := b.AsBytes()
	assert.Equal(t, []byte{1, 2}, again, "AsBytes returns a copy")
}

func TestValueImmutability(t *testing.T) {
	t.Parallel()

	n := big.NewInt(77)
	v := BigInt(n)
	n.SetInt64(-1)
	got, ok := v.AsBigInt()
	require.True(t, ok)
	assert.Zero(t, got.Cmp(big.NewInt(77)))
}
