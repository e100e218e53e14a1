// Package dict implements an immutable sorted dictionary: a bijection
// between the index range [0, n) and a strictly increasing collection of
// typed values in their canonical byte order.
//
// Entries are stored as length-prefixed canonical encodings grouped into
// fixed-size blocks. A monotonic sequence of block start offsets supports
// binary search over block heads; a lookup then scans at most one block.
package dict

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/terminusdb-labs/tdb-succinct/monotonic"
	"github.com/terminusdb-labs/tdb-succinct/value"
)

// DefaultBlockSize is the number of entries per block when no option
// overrides it.
const DefaultBlockSize = 8

// headerSize is the size of the leading parameter header: entry count,
// block size and entry region length, each big endian.
const headerSize = 24

// ErrOutOfRange is returned when an index is beyond the dictionary bounds.
var ErrOutOfRange = errors.New("dict: index out of range")

// ErrInconsistent indicates serialized regions whose sizes disagree with
// the declared entry count.
var ErrInconsistent = errors.New("dict: inconsistent regions")

// ErrNotSorted indicates build input that is not strictly increasing in
// canonical byte order. Duplicates are rejected with this error as well.
type ErrNotSorted struct {
	Index int
	Prev  value.Value
	Next  value.Value
}

func (e *ErrNotSorted) Error() string {
	return fmt.Sprintf("dict: entry %d (%s) not above its predecessor (%s)", e.Index, e.Next, e.Prev)
}

type config struct {
	blockSize int
}

// Option configures dictionary construction.
type Option func(*config)

// WithBlockSize sets the number of entries per block. Larger blocks shrink
// the offset index at the cost of longer scans per lookup.
func WithBlockSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.blockSize = n
		}
	}
}

// Dict is an immutable sorted dictionary over typed values. It is safe for
// concurrent readers.
type Dict struct {
	data      []byte
	offsets   *monotonic.Sequence
	n         uint64
	blockSize uint64
}

// Builder accumulates strictly increasing values and freezes them into a
// Dict. The zero value is not usable; construct with NewBuilder.
type Builder struct {
	cfg  config
	buf  []byte
	offs []uint64
	last []byte
	n    int
}

// NewBuilder returns an empty dictionary builder.
func NewBuilder(opts ...Option) *Builder {
	cfg := config{blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Builder{cfg: cfg}
}

// Add appends the next value. Values must arrive in strictly increasing
// canonical byte order; anything else, including a duplicate, fails with
// ErrNotSorted. Unencodable values fail with the codec's error.
func (b *Builder) Add(v value.Value) error {
	enc, err := value.Encode(v)
	if err != nil {
		return err
	}
	if b.n > 0 && bytes.Compare(enc, b.last) <= 0 {
		prev, _, perr := value.DecodeFirst(b.last)
		if perr != nil {
			prev = value.Value{}
		}
		return &ErrNotSorted{Index: b.n, Prev: prev, Next: v}
	}
	if b.n%b.cfg.blockSize == 0 {
		b.offs = append(b.offs, uint64(len(b.buf)))
	}
	b.buf = binary.AppendUvarint(b.buf, uint64(len(enc)))
	b.buf = append(b.buf, enc...)
	b.last = enc
	b.n++
	return nil
}

// Count returns the number of values added so far.
func (b *Builder) Count() int { return b.n }

// Finish freezes the builder into an immutable dictionary. The builder
// must not be used afterwards.
func (b *Builder) Finish() (*Dict, error) {
	offsets, err := monotonic.Build(b.offs)
	if err != nil {
		return nil, err
	}
	d := &Dict{
		data:      b.buf,
		offsets:   offsets,
		n:         uint64(b.n),
		blockSize: uint64(b.cfg.blockSize),
	}
	b.buf, b.offs, b.last = nil, nil, nil
	return d, nil
}

// Build constructs a dictionary from a strictly increasing value slice.
func Build(values []value.Value, opts ...Option) (*Dict, error) {
	b := NewBuilder(opts...)
	for _, v := range values {
		if err := b.Add(v); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// Parse reads a serialized dictionary and returns any trailing bytes.
func Parse(buf []byte) (*Dict, []byte, error) {
	if len(buf) < headerSize {
		return nil, nil, fmt.Errorf("%w: %d header bytes, need %d", ErrInconsistent, len(buf), headerSize)
	}
	n := binary.BigEndian.Uint64(buf)
	blockSize := binary.BigEndian.Uint64(buf[8:])
	dataLen := binary.BigEndian.Uint64(buf[16:])
	if blockSize == 0 {
		return nil, nil, fmt.Errorf("%w: zero block size", ErrInconsistent)
	}
	offsets, rest, err := monotonic.Parse(buf[headerSize:])
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < dataLen {
		return nil, nil, fmt.Errorf("%w: %d entry bytes, header declares %d", ErrInconsistent, len(rest), dataLen)
	}
	d := &Dict{
		data:      rest[:dataLen],
		offsets:   offsets,
		n:         n,
		blockSize: blockSize,
	}
	if err := d.validate(); err != nil {
		return nil, nil, err
	}
	return d, rest[dataLen:], nil
}

func (d *Dict) validate() error {
	blocks := (d.n + d.blockSize - 1) / d.blockSize
	if uint64(d.offsets.Len()) != blocks {
		return fmt.Errorf("%w: %d block offsets for %d entries at block size %d",
			ErrInconsistent, d.offsets.Len(), d.n, d.blockSize)
	}
	return nil
}

// MarshalBinary serializes the dictionary.
func (d *Dict) MarshalBinary() ([]byte, error) {
	seq, err := d.offsets.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, headerSize, headerSize+len(seq)+len(d.data))
	binary.BigEndian.PutUint64(buf, d.n)
	binary.BigEndian.PutUint64(buf[8:], d.blockSize)
	binary.BigEndian.PutUint64(buf[16:], uint64(len(d.data)))
	buf = append(buf, seq...)
	return append(buf, d.data...), nil
}

// Len returns the number of entries.
func (d *Dict) Len() int { return int(d.n) }

// BlockSize returns the construction-time entries-per-block parameter.
func (d *Dict) BlockSize() int { return int(d.blockSize) }

// Get returns the value stored at index i, or ErrOutOfRange.
func (d *Dict) Get(i int) (value.Value, error) {
	enc, err := d.entry(i)
	if err != nil {
		return value.Value{}, err
	}
	return value.Decode(enc)
}

// entry returns the canonical encoding stored at index i.
func (d *Dict) entry(i int) ([]byte, error) {
	if i < 0 || uint64(i) >= d.n {
		return nil, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, i, d.n)
	}
	off, err := d.offsets.Get(i / int(d.blockSize))
	if err != nil {
		return nil, err
	}
	enc, next, err := d.readAt(off)
	if err != nil {
		return nil, err
	}
	for skip := uint64(i) % d.blockSize; skip > 0; skip-- {
		if enc, next, err = d.readAt(next); err != nil {
			return nil, err
		}
	}
	return enc, nil
}

func (d *Dict) readAt(off uint64) ([]byte, uint64, error) {
	if off >= uint64(len(d.data)) {
		return nil, 0, fmt.Errorf("%w: entry offset %d beyond %d data bytes", ErrInconsistent, off, len(d.data))
	}
	size, n := binary.Uvarint(d.data[off:])
	if n <= 0 || off+uint64(n)+size > uint64(len(d.data)) {
		return nil, 0, fmt.Errorf("%w: bad entry framing at offset %d", ErrInconsistent, off)
	}
	start := off + uint64(n)
	return d.data[start : start+size], start + size, nil
}

// IndexOf returns the index at which v is stored, or false when the
// dictionary does not contain it.
func (d *Dict) IndexOf(v value.Value) (int, bool, error) {
	enc, err := value.Encode(v)
	if err != nil {
		return 0, false, err
	}
	return d.indexOfEncoded(enc)
}

// indexOfEncoded binary-searches block heads for the last block whose
// first entry is not above the target, then scans that block.
func (d *Dict) indexOfEncoded(target []byte) (int, bool, error) {
	blocks := d.offsets.Len()
	lo, hi := 0, blocks // invariant: head(lo-1) <= target < head(hi)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		head, err := d.blockHead(mid)
		if err != nil {
			return 0, false, err
		}
		if bytes.Compare(head, target) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, false, nil
	}
	block := lo - 1
	off, err := d.offsets.Get(block)
	if err != nil {
		return 0, false, err
	}
	for pos := 0; uint64(pos) < d.blockSize && uint64(block*int(d.blockSize)+pos) < d.n; pos++ {
		enc, next, err := d.readAt(off)
		if err != nil {
			return 0, false, err
		}
		switch bytes.Compare(enc, target) {
		case 0:
			return block*int(d.blockSize) + pos, true, nil
		case 1:
			return 0, false, nil
		}
		off = next
	}
	return 0, false, nil
}

func (d *Dict) blockHead(block int) ([]byte, error) {
	off, err := d.offsets.Get(block)
	if err != nil {
		return nil, err
	}
	head, _, err := d.readAt(off)
	return head, err
}

// Values yields every (index, value) pair in ascending order. Iteration
// stops early if the yield function returns false; a decoding failure ends
// the iteration silently, which only happens on corrupted data.
func (d *Dict) Values() iter.Seq2[int, value.Value] {
	return func(yield func(int, value.Value) bool) {
		var off uint64
		for i := 0; uint64(i) < d.n; i++ {
			enc, next, err := d.readAt(off)
			if err != nil {
				return
			}
			v, err := value.Decode(enc)
			if err != nil {
				return
			}
			if !yield(i, v) {
				return
			}
			off = next
		}
	}
}
