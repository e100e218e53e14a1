// Package logarray implements packed fixed-width integer arrays.
//
// A log array is a contiguous sequence of N unsigned integers, each stored
// in exactly W bits. Choosing W as the minimal width for the largest value
// compresses the whole sequence while keeping random access O(1).
//
// On-disk layout: the data buffer is a sequence of 64-bit big-endian words
// holding the concatenated elements, followed by a single control word:
// a 32-bit length (low part), an 8-bit width and the 24 high bits of the
// length. The maximum width is 64 and the maximum length is 2^56-1.
package logarray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/terminusdb-labs/tdb-succinct/internal/bitio"
)

// ControlWordSize is the size of the trailing control word in bytes.
const ControlWordSize = 8

// MaxLen is the largest representable element count.
const MaxLen = 1<<56 - 1

// ErrOutOfRange is returned when an index is beyond the array bounds.
var ErrOutOfRange = errors.New("logarray: index out of range")

// ErrBufferTooSmall indicates a buffer shorter than one control word.
type ErrBufferTooSmall struct {
	Size int
}

func (e *ErrBufferTooSmall) Error() string {
	return fmt.Sprintf("logarray: expected buffer size (%d) >= %d", e.Size, ControlWordSize)
}

// ErrWidthTooLarge indicates a control word declaring a width above 64.
type ErrWidthTooLarge struct {
	Width uint8
}

func (e *ErrWidthTooLarge) Error() string {
	return fmt.Sprintf("logarray: expected width (%d) <= 64", e.Width)
}

// ErrUnexpectedBufferSize indicates a buffer whose size does not match the
// length and width declared by its control word.
type ErrUnexpectedBufferSize struct {
	Size     uint64
	Expected uint64
	Len      uint64
	Width    uint8
}

func (e *ErrUnexpectedBufferSize) Error() string {
	return fmt.Sprintf("logarray: expected buffer size (%d) to be %d for %d elements and width %d",
		e.Size, e.Expected, e.Len, e.Width)
}

// LogArray is an immutable packed integer array. The zero value is not
// usable; obtain one from Parse or a builder.
//
// A LogArray may be a slice of a larger array, in which case first points at
// the first accessible element of the shared buffer.
type LogArray struct {
	data  []byte
	first uint64
	n     uint64
	width uint8
}

// ParseControlWord extracts the element count and width from a control word
// without validation.
func ParseControlWord(buf []byte) (uint64, uint8) {
	low := uint64(binary.BigEndian.Uint32(buf))
	width := buf[4]
	high := uint64(binary.BigEndian.Uint32(buf[4:]) & 0xFFFFFF)
	return high<<32 | low, width
}

// ControlWord encodes an element count and width.
func ControlWord(n uint64, width uint8) [8]byte {
	if n > MaxLen {
		panic(fmt.Sprintf("logarray: length %d exceeds control word limit %d", n, uint64(MaxLen)))
	}
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	binary.BigEndian.PutUint32(buf[4:], uint32(n>>32))
	buf[4] = width
	return buf
}

// DataSize returns the size in bytes of the packed data region for n
// elements of the given width, excluding the control word.
func DataSize(n uint64, width uint8) int {
	return int(bitio.WordsFor(n, width)) * bitio.WordSize
}

func validate(size int, n uint64, width uint8, allowTrailing bool) error {
	if width > 64 {
		return &ErrWidthTooLarge{Width: width}
	}
	expected := uint64(DataSize(n, width)) + ControlWordSize
	if allowTrailing {
		if uint64(size) < expected {
			return &ErrUnexpectedBufferSize{Size: uint64(size), Expected: expected, Len: n, Width: width}
		}
		return nil
	}
	if uint64(size) != expected {
		return &ErrUnexpectedBufferSize{Size: uint64(size), Expected: expected, Len: n, Width: width}
	}
	return nil
}

// Parse constructs a LogArray from a buffer whose final word is the control
// word. The buffer is retained, not copied.
func Parse(buf []byte) (*LogArray, error) {
	if len(buf) < ControlWordSize {
		return nil, &ErrBufferTooSmall{Size: len(buf)}
	}
	n, width := ParseControlWord(buf[len(buf)-ControlWordSize:])
	if err := validate(len(buf), n, width, false); err != nil {
		return nil, err
	}
	return &LogArray{data: buf, n: n, width: width}, nil
}

// ParseHeaderFirst constructs a LogArray from a buffer whose control word
// precedes the data, returning the unconsumed remainder. This is the framing
// used when several regions are concatenated in one blob.
func ParseHeaderFirst(buf []byte) (*LogArray, []byte, error) {
	if len(buf) < ControlWordSize {
		return nil, nil, &ErrBufferTooSmall{Size: len(buf)}
	}
	n, width := ParseControlWord(buf)
	if err := validate(len(buf), n, width, true); err != nil {
		return nil, nil, err
	}
	size := DataSize(n, width)
	data := buf[ControlWordSize : ControlWordSize+size]
	rest := buf[ControlWordSize+size:]
	return &LogArray{data: data, n: n, width: width}, rest, nil
}

// Len returns the number of elements.
func (la *LogArray) Len() int { return int(la.n) }

// Width returns the bit width of each element.
func (la *LogArray) Width() uint8 { return la.width }

// Get returns the element at index i, or ErrOutOfRange.
func (la *LogArray) Get(i int) (uint64, error) {
	if i < 0 || uint64(i) >= la.n {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, i, la.n)
	}
	return la.at(uint64(i)), nil
}

// At returns the element at index i. It panics if i is out of range; use Get
// when the index is not known to be valid.
func (la *LogArray) At(i int) uint64 {
	if i < 0 || uint64(i) >= la.n {
		panic(fmt.Sprintf("logarray: expected index (%d) < length (%d)", i, la.n))
	}
	return la.at(uint64(i))
}

func (la *LogArray) at(i uint64) uint64 {
	return bitio.ReadWindow(la.data, (la.first+i)*uint64(la.width), la.width)
}

// Slice returns a logical sub-array sharing the underlying buffer.
func (la *LogArray) Slice(off, n int) (*LogArray, error) {
	if off < 0 || n < 0 || uint64(off)+uint64(n) > la.n {
		return nil, fmt.Errorf("%w: slice [%d, %d+%d) of length %d", ErrOutOfRange, off, off, n, la.n)
	}
	return &LogArray{
		data:  la.data,
		first: la.first + uint64(off),
		n:     uint64(n),
		width: la.width,
	}, nil
}

// Values iterates the elements in index order. The iterator is restartable.
func (la *LogArray) Values() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for i := uint64(0); i < la.n; i++ {
			if !yield(la.at(i)) {
				return
			}
		}
	}
}
