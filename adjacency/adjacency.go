// Package adjacency implements a grouped one-to-many encoding: each of N
// left indices maps to zero or more right-hand values.
//
// Groups are laid out in unary in a boundary bit vector: a set bit opens a
// group and one clear bit follows per member, so the vector holds N set bits
// over N+E positions for E total members. Two adjacent set bits are an empty
// group. The members themselves sit in a packed log array in group order.
// Locating a group is one select; its extent runs to the next set bit.
package adjacency

import (
	"errors"
	"fmt"
	"iter"

	"github.com/terminusdb-labs/tdb-succinct/bitvector"
	"github.com/terminusdb-labs/tdb-succinct/logarray"
)

// ErrOutOfRange is returned when a group index is beyond the list bounds.
var ErrOutOfRange = errors.New("adjacency: group index out of range")

// ErrInconsistent indicates a values region whose length disagrees with the
// boundary vector.
type ErrInconsistent struct {
	Positions, Groups, Values int
}

func (e *ErrInconsistent) Error() string {
	return fmt.Sprintf("adjacency: inconsistent regions: %d boundary positions, %d groups, %d values",
		e.Positions, e.Groups, e.Values)
}

// List is an immutable one-to-many relation. Safe for concurrent readers.
type List struct {
	boundaries *bitvector.BitVector
	values     *logarray.LogArray
}

// Option configures the boundary vector's construction parameters.
type Option = bitvector.Option

// Build constructs a List from groups of values in group order.
func Build(groups [][]uint64, opts ...Option) *List {
	bits := bitvector.NewBuilder(opts...)
	values := logarray.NewLateBuilder()

	for _, group := range groups {
		bits.Push(true)
		for _, v := range group {
			bits.Push(false)
			values.Push(v)
		}
	}

	la, err := logarray.Parse(values.Bytes(nil))
	if err != nil {
		panic(fmt.Sprintf("adjacency: builder produced invalid value array: %v", err))
	}
	return &List{boundaries: bits.Freeze(), values: la}
}

// Parse assembles a List from the serialized value region and the three
// boundary bit vector regions.
func Parse(numsBuf, bitsBuf, blocksBuf, sblocksBuf []byte) (*List, error) {
	boundaries, err := bitvector.Parse(bitsBuf, blocksBuf, sblocksBuf)
	if err != nil {
		return nil, err
	}
	values, err := logarray.Parse(numsBuf)
	if err != nil {
		return nil, err
	}
	return assemble(boundaries, values)
}

// ParseCombined reads a List from a single buffer: the boundary vector in
// combined framing followed by the value log array header-first. The
// unconsumed remainder is returned.
func ParseCombined(buf []byte) (*List, []byte, error) {
	boundaries, rest, err := bitvector.ParseCombined(buf)
	if err != nil {
		return nil, nil, err
	}
	values, rest, err := logarray.ParseHeaderFirst(rest)
	if err != nil {
		return nil, nil, err
	}
	l, err := assemble(boundaries, values)
	if err != nil {
		return nil, nil, err
	}
	return l, rest, nil
}

func assemble(boundaries *bitvector.BitVector, values *logarray.LogArray) (*List, error) {
	wantValues := boundaries.Len() - int(boundaries.Count())
	if values.Len() != wantValues {
		return nil, &ErrInconsistent{
			Positions: boundaries.Len(),
			Groups:    int(boundaries.Count()),
			Values:    values.Len(),
		}
	}
	return &List{boundaries: boundaries, values: values}, nil
}

// Regions serializes the list into the four regions consumed by Parse:
// the value log array and the boundary vector's bit, block and superblock
// regions.
func (l *List) Regions() (numsBuf, bitsBuf, blocksBuf, sblocksBuf []byte) {
	b := logarray.NewLateBuilder()
	for v := range l.values.Values() {
		b.Push(v)
	}
	bitsBuf, blocksBuf, sblocksBuf = l.boundaries.Regions()
	return b.Bytes(nil), bitsBuf, blocksBuf, sblocksBuf
}

// MarshalBinary serializes the list in the framing consumed by
// ParseCombined.
func (l *List) MarshalBinary() ([]byte, error) {
	buf, err := l.boundaries.MarshalBinary()
	if err != nil {
		return nil, err
	}
	b := logarray.NewLateBuilder()
	for v := range l.values.Values() {
		b.Push(v)
	}
	return b.BytesHeaderFirst(buf), nil
}

// NumGroups returns the number of left indices.
func (l *List) NumGroups() int { return int(l.boundaries.Count()) }

// NumValues returns the total number of members across all groups.
func (l *List) NumValues() int { return l.values.Len() }

// span returns the boundary positions [start, end) covering group i: the
// group marker and its members.
func (l *List) span(i int) (int, int, error) {
	if i < 0 || i >= l.NumGroups() {
		return 0, 0, fmt.Errorf("%w: group %d of %d", ErrOutOfRange, i, l.NumGroups())
	}
	start, _ := l.boundaries.Select(uint64(i))
	end := l.boundaries.Len()
	if next, ok := l.boundaries.Select(uint64(i) + 1); ok {
		end = next
	}
	return start, end, nil
}

// GroupLen returns the number of members of group i.
func (l *List) GroupLen(i int) (int, error) {
	start, end, err := l.span(i)
	if err != nil {
		return 0, err
	}
	return end - start - 1, nil
}

// Group returns the members of group i in order.
func (l *List) Group(i int) (iter.Seq[uint64], error) {
	start, end, err := l.span(i)
	if err != nil {
		return nil, err
	}
	// Value index of a member position is the count of clear bits before
	// it; the marker at start is the (i+1)-th set bit.
	first := start - i
	n := end - start - 1
	return func(yield func(uint64) bool) {
		for j := 0; j < n; j++ {
			if !yield(l.values.At(first + j)) {
				return
			}
		}
	}, nil
}

// Groups reconstructs the full grouping.
func (l *List) Groups() iter.Seq2[int, iter.Seq[uint64]] {
	return func(yield func(int, iter.Seq[uint64]) bool) {
		for i := 0; i < l.NumGroups(); i++ {
			g, _ := l.Group(i)
			if !yield(i, g) {
				return
			}
		}
	}
}
