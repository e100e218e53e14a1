package dict

import (
	"fmt"
	"iter"

	"github.com/terminusdb-labs/tdb-succinct/value"
)

// StringDict is a sorted dictionary restricted to UTF-8 string entries.
// String order under the canonical codec is plain bytewise order, so the
// caller can prepare input with a standard sort.
type StringDict struct {
	inner *Dict
}

// StringBuilder accumulates strictly increasing strings.
type StringBuilder struct {
	inner *Builder
}

// NewStringBuilder returns an empty string dictionary builder.
func NewStringBuilder(opts ...Option) *StringBuilder {
	return &StringBuilder{inner: NewBuilder(opts...)}
}

// Add appends the next string; input must be strictly increasing.
func (b *StringBuilder) Add(s string) error {
	return b.inner.Add(value.String(s))
}

// Count returns the number of strings added so far.
func (b *StringBuilder) Count() int { return b.inner.Count() }

// Finish freezes the builder into an immutable string dictionary.
func (b *StringBuilder) Finish() (*StringDict, error) {
	d, err := b.inner.Finish()
	if err != nil {
		return nil, err
	}
	return &StringDict{inner: d}, nil
}

// BuildStrings constructs a string dictionary from a strictly increasing
// slice.
func BuildStrings(values []string, opts ...Option) (*StringDict, error) {
	b := NewStringBuilder(opts...)
	for _, s := range values {
		if err := b.Add(s); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// ParseStrings reads a serialized string dictionary and returns any
// trailing bytes.
func ParseStrings(buf []byte) (*StringDict, []byte, error) {
	d, rest, err := Parse(buf)
	if err != nil {
		return nil, nil, err
	}
	return &StringDict{inner: d}, rest, nil
}

// MarshalBinary serializes the dictionary.
func (d *StringDict) MarshalBinary() ([]byte, error) { return d.inner.MarshalBinary() }

// Len returns the number of entries.
func (d *StringDict) Len() int { return d.inner.Len() }

// Get returns the string stored at index i, or ErrOutOfRange.
func (d *StringDict) Get(i int) (string, error) {
	v, err := d.inner.Get(i)
	if err != nil {
		return "", err
	}
	s, ok := v.AsString()
	if !ok {
		return "", &ErrNotString{Index: i, Kind: v.Kind()}
	}
	return s, nil
}

// IndexOf returns the index at which s is stored, or false when absent.
func (d *StringDict) IndexOf(s string) (int, bool, error) {
	return d.inner.IndexOf(value.String(s))
}

// Values yields every (index, string) pair in ascending order.
func (d *StringDict) Values() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		for i, v := range d.inner.Values() {
			s, ok := v.AsString()
			if !ok {
				return
			}
			if !yield(i, s) {
				return
			}
		}
	}
}

// ErrNotString indicates a string dictionary whose storage holds an entry
// of a different kind, which only happens when parsing foreign data.
type ErrNotString struct {
	Index int
	Kind  value.Kind
}

func (e *ErrNotString) Error() string {
	return fmt.Sprintf("dict: entry %d is a %s, not a string", e.Index, e.Kind)
}