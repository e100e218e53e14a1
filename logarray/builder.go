package logarray

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/terminusdb-labs/tdb-succinct/internal/bitio"
)

// ErrValueOverflow indicates a pushed value that does not fit in the
// builder's declared width.
type ErrValueOverflow struct {
	Value uint64
	Width uint8
}

func (e *ErrValueOverflow) Error() string {
	return fmt.Sprintf("logarray: expected value (%d) to fit in %d bits", e.Value, e.Width)
}

// Builder streams a log array of a declared width to an io.Writer. Values
// are packed into words as they arrive, so the full sequence never has to be
// resident in memory. Builders are single-writer; serialize external access.
type Builder struct {
	w   io.Writer
	acc *bitio.Accumulator
}

// NewBuilder returns a streaming builder writing elements of the given
// width. Width must be at most 64.
func NewBuilder(w io.Writer, width uint8) *Builder {
	if width > 64 {
		panic(fmt.Sprintf("logarray: width %d > 64", width))
	}
	b := &Builder{w: w}
	b.acc = bitio.NewAccumulator(width, func(word uint64) error {
		var buf [bitio.WordSize]byte
		binary.BigEndian.PutUint64(buf[:], word)
		_, err := w.Write(buf[:])
		return err
	})
	return b
}

// Count returns the number of elements pushed so far.
func (b *Builder) Count() uint64 { return b.acc.Count() }

// Push appends one value. It fails with ErrValueOverflow if the value does
// not fit in the declared width, and passes through writer errors.
func (b *Builder) Push(v uint64) error {
	if !bitio.Fits(v, b.acc.Width()) {
		return &ErrValueOverflow{Value: v, Width: b.acc.Width()}
	}
	return b.acc.Push(v)
}

// PushValues appends a batch of values.
func (b *Builder) PushValues(vals []uint64) error {
	for _, v := range vals {
		if err := b.Push(v); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes the trailing partial data word and the control word. The
// builder must not be used afterwards.
func (b *Builder) Finalize() error {
	if err := b.acc.Flush(); err != nil {
		return err
	}
	cw := ControlWord(b.acc.Count(), b.acc.Width())
	_, err := b.w.Write(cw[:])
	return err
}

// LateBuilder buffers values until the minimum width is known, then packs
// them in a second pass. Use it when the maximum value is not known up
// front; use Builder for true streaming with a declared width.
type LateBuilder struct {
	vals  []uint64
	width uint8
}

// NewLateBuilder returns an empty width-discovering builder.
func NewLateBuilder() *LateBuilder {
	return &LateBuilder{}
}

// Push appends one value, widening the eventual element width if needed.
func (b *LateBuilder) Push(v uint64) {
	b.vals = append(b.vals, v)
	if w := bitio.WidthFor(v); w > b.width {
		b.width = w
	}
}

// PushValues appends a batch of values.
func (b *LateBuilder) PushValues(vals []uint64) {
	for _, v := range vals {
		b.Push(v)
	}
}

// Count returns the number of buffered values.
func (b *LateBuilder) Count() uint64 { return uint64(len(b.vals)) }

// Last returns the most recently pushed value.
func (b *LateBuilder) Last() (uint64, bool) {
	if len(b.vals) == 0 {
		return 0, false
	}
	return b.vals[len(b.vals)-1], true
}

// Width returns the minimum width covering all buffered values.
func (b *LateBuilder) Width() uint8 { return b.width }

// Bytes packs the buffered values and appends the serialized array, control
// word last, to buf.
func (b *LateBuilder) Bytes(buf []byte) []byte {
	buf = b.appendData(buf)
	cw := ControlWord(uint64(len(b.vals)), b.width)
	return append(buf, cw[:]...)
}

// BytesHeaderFirst packs the buffered values with a leading control word,
// the framing consumed by ParseHeaderFirst.
func (b *LateBuilder) BytesHeaderFirst(buf []byte) []byte {
	cw := ControlWord(uint64(len(b.vals)), b.width)
	buf = append(buf, cw[:]...)
	return b.appendData(buf)
}

func (b *LateBuilder) appendData(buf []byte) []byte {
	acc := bitio.NewAccumulator(b.width, func(word uint64) error {
		buf = bitio.AppendWord(buf, word)
		return nil
	})
	for _, v := range b.vals {
		// Width was computed from these exact values; Push cannot fail.
		_ = acc.Push(v)
	}
	_ = acc.Flush()
	return buf
}

// WriteTo packs the buffered values to w in the control-word-last framing.
func (b *LateBuilder) WriteTo(w io.Writer) (int64, error) {
	buf := b.Bytes(nil)
	n, err := w.Write(buf)
	return int64(n), err
}

// FromValues builds a serialized log array, control word last, choosing the
// minimum width for the input.
func FromValues(vals []uint64) []byte {
	b := NewLateBuilder()
	b.PushValues(vals)
	return b.Bytes(nil)
}
