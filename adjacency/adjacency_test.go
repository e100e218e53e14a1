package adjacency

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectGroups(t *testing.T, l *List) [][]uint64 {
	t.Helper()
	out := make([][]uint64, 0, l.NumGroups())
	for i := 0; i < l.NumGroups(); i++ {
		g, err := l.Group(i)
		require.NoError(t, err)
		out = append(out, slices.Collect(g))
	}
	return out
}

func TestRoundTripWithEmptyGroups(t *testing.T) {
	groups := [][]uint64{{}, {1, 2}, {}, {3}}
	l := Build(groups)

	require.Equal(t, 4, l.NumGroups())
	require.Equal(t, 3, l.NumValues())

	got := collectGroups(t, l)
	assert.Equal(t, [][]uint64{nil, {1, 2}, nil, {3}}, got)

	n, err := l.GroupLen(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = l.GroupLen(1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGroupOutOfRange(t *testing.T) {
	l := Build([][]uint64{{5}})
	_, err := l.Group(1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = l.GroupLen(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestEmptyList(t *testing.T) {
	l := Build(nil)
	assert.Equal(t, 0, l.NumGroups())
	assert.Equal(t, 0, l.NumValues())
}

func TestAllEmptyGroups(t *testing.T) {
	l := Build([][]uint64{{}, {}, {}})
	require.Equal(t, 3, l.NumGroups())
	assert.Equal(t, 0, l.NumValues())
	for i := 0; i < 3; i++ {
		n, err := l.GroupLen(i)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}
}

func TestLargeGrouping(t *testing.T) {
	var groups [][]uint64
	next := uint64(1)
	for i := 0; i < 300; i++ {
		var g []uint64
		for j := 0; j < i%7; j++ {
			g = append(g, next)
			next += uint64(i%3 + 1)
		}
		groups = append(groups, g)
	}

	l := Build(groups)
	got := collectGroups(t, l)
	for i, want := range groups {
		if len(want) == 0 {
			require.Emptyf(t, got[i], "group %d", i)
			continue
		}
		require.Equalf(t, want, got[i], "group %d", i)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	groups := [][]uint64{{}, {1, 2}, {}, {3}, {100, 200, 300}}
	l := Build(groups)

	buf, err := l.MarshalBinary()
	require.NoError(t, err)
	buf = append(buf, 0x7)

	parsed, rest, err := ParseCombined(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7}, rest)
	assert.Equal(t, collectGroups(t, l), collectGroups(t, parsed))
}

func TestGroupsIterator(t *testing.T) {
	groups := [][]uint64{{9}, {}, {4, 5}}
	l := Build(groups)

	var seen [][]uint64
	for _, g := range l.Groups() {
		seen = append(seen, slices.Collect(g))
	}
	assert.Equal(t, [][]uint64{{9}, nil, {4, 5}}, seen)
}
