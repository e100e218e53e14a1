// Package bitio provides the word-level primitives shared by the packed
// structures: reading a w-bit window at an arbitrary bit offset of a
// big-endian word buffer, and accumulating values into whole words during
// construction.
//
// All buffers are sequences of 64-bit big-endian words. A window never spans
// more than two words because widths are capped at 64.
package bitio

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// WordSize is the size of a data word in bytes.
const WordSize = 8

// ReadWindow returns the w-bit unsigned integer starting at bit offset off
// in buf. The caller guarantees that the window lies inside the buffer; w
// must be in [0, 64].
func ReadWindow(buf []byte, off uint64, w uint8) uint64 {
	if w == 0 {
		return 0
	}

	byteIndex := off >> 6 << 3
	first := binary.BigEndian.Uint64(buf[byteIndex:])

	leading := 64 - uint64(w)
	shift := off & 63

	if shift+uint64(w) <= 64 {
		return first << shift >> leading
	}

	// The window straddles a word boundary: low bits of the first word are
	// the high bits of the value.
	second := binary.BigEndian.Uint64(buf[byteIndex+8:])
	secondWidth := shift + uint64(w) - 64

	firstPart := first << shift >> shift << secondWidth
	secondPart := second >> (64 - secondWidth)

	return firstPart | secondPart
}

// WidthFor returns the minimum number of bits needed to represent v.
// WidthFor(0) is 0.
func WidthFor(v uint64) uint8 {
	return uint8(bits.Len64(v))
}

// Fits reports whether v can be represented in w bits.
func Fits(v uint64, w uint8) bool {
	if w >= 64 {
		return true
	}
	return v>>w == 0
}

// WordsFor returns the number of data words needed to hold n elements of
// width w.
func WordsFor(n uint64, w uint8) uint64 {
	nbits := n * uint64(w)
	return (nbits + 63) >> 6
}

// Accumulator packs fixed-width values into 64-bit words and hands each
// completed word to emit. It is the single implementation of the packing
// arithmetic used by every builder.
type Accumulator struct {
	width   uint8
	current uint64
	offset  uint8
	count   uint64
	emit    func(word uint64) error
}

// NewAccumulator returns an accumulator for values of the given width.
func NewAccumulator(width uint8, emit func(word uint64) error) *Accumulator {
	return &Accumulator{width: width, emit: emit}
}

// Count returns the number of values pushed so far.
func (a *Accumulator) Count() uint64 { return a.count }

// Width returns the accumulator's element width.
func (a *Accumulator) Width() uint8 { return a.width }

// Push appends one value. It fails if v does not fit in the accumulator
// width.
func (a *Accumulator) Push(v uint64) error {
	if !Fits(v, a.width) {
		return fmt.Errorf("value %d does not fit in %d bits", v, a.width)
	}
	a.count++

	if a.width == 0 {
		return nil
	}

	leading := 64 - a.width
	a.current |= v << leading >> a.offset
	a.offset += a.width

	if a.offset >= 64 {
		if err := a.emit(a.current); err != nil {
			return err
		}
		a.offset -= 64

		if a.offset == 0 {
			a.current = 0
		} else {
			// Low bits of v spill into the next word.
			a.current = v << (64 - a.offset)
		}
	}

	return nil
}

// Flush emits the trailing partial word, if any. The accumulator must not be
// pushed to afterwards.
func (a *Accumulator) Flush() error {
	if a.count*uint64(a.width)&63 != 0 {
		return a.emit(a.current)
	}
	return nil
}

// AppendWord appends a big-endian word to buf.
func AppendWord(buf []byte, word uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, word)
}
