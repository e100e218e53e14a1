package bitvector

import (
	"fmt"
	"math/bits"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/bits-and-blooms/bitset"

	"github.com/terminusdb-labs/tdb-succinct/internal/bitio"
	"github.com/terminusdb-labs/tdb-succinct/logarray"
)

// ErrPositionOutOfRange indicates a set position at or beyond the declared
// vector length.
type ErrPositionOutOfRange struct {
	Position uint64
	Length   uint64
}

func (e *ErrPositionOutOfRange) Error() string {
	return fmt.Sprintf("bitvector: set position %d >= length %d", e.Position, e.Length)
}

// Builder accumulates bits and freezes them into an immutable BitVector.
// Bits are staged in an in-memory bitset; the rank index regions are
// computed in a single pass at freeze time. Builders are single-writer.
type Builder struct {
	staged *bitset.BitSet
	n      uint64
	cfg    config
}

// NewBuilder returns an empty builder.
func NewBuilder(opts ...Option) *Builder {
	return &Builder{
		staged: bitset.New(0),
		cfg:    applyOptions(opts),
	}
}

// Push appends one bit.
func (b *Builder) Push(bit bool) {
	if bit {
		b.staged.Set(uint(b.n))
	}
	b.n++
}

// Len returns the number of bits pushed so far.
func (b *Builder) Len() int { return int(b.n) }

// Freeze packs the staged bits and builds the rank index.
func (b *Builder) Freeze() *BitVector {
	numWords := bitio.WordsFor(b.n, 1)
	words := make([]byte, 0, numWords*bitio.WordSize)

	blocks := logarray.NewLateBuilder()
	sblocks := logarray.NewLateBuilder()

	var total, inSuper uint64
	staged := b.staged.Bytes()
	for w := uint64(0); w < numWords; w++ {
		if w%b.cfg.sbWords == 0 {
			sblocks.Push(total)
			inSuper = 0
		}
		blocks.Push(inSuper)

		var word uint64
		if w < uint64(len(staged)) {
			// The staging bitset is LSB-first; the serialized form is
			// MSB-first.
			word = bits.Reverse64(staged[w])
		}
		words = bitio.AppendWord(words, word)

		pc := uint64(bits.OnesCount64(word))
		total += pc
		inSuper += pc
	}

	blockArr, err := logarray.Parse(blocks.Bytes(nil))
	if err != nil {
		panic(fmt.Sprintf("bitvector: freeze produced invalid block index: %v", err))
	}
	sblockArr, err := logarray.Parse(sblocks.Bytes(nil))
	if err != nil {
		panic(fmt.Sprintf("bitvector: freeze produced invalid superblock index: %v", err))
	}

	return &BitVector{
		words:   words,
		n:       b.n,
		total:   total,
		blocks:  blockArr,
		sblocks: sblockArr,
		sbWords: b.cfg.sbWords,
	}
}

// Build constructs a BitVector from a bool sequence.
func Build(bitsIn []bool, opts ...Option) *BitVector {
	b := NewBuilder(opts...)
	for _, bit := range bitsIn {
		b.Push(bit)
	}
	return b.Freeze()
}

// FromPositions constructs a BitVector of the given length with the listed
// positions set. Positions may repeat and need not be sorted.
func FromPositions(length uint64, positions []uint64, opts ...Option) (*BitVector, error) {
	b := NewBuilder(opts...)
	b.n = length
	for _, p := range positions {
		if p >= length {
			return nil, &ErrPositionOutOfRange{Position: p, Length: length}
		}
		b.staged.Set(uint(p))
	}
	return b.Freeze(), nil
}

// FromRoaring constructs a BitVector of the given length from the set
// positions of a roaring bitmap.
func FromRoaring(length uint64, bm *roaring64.Bitmap, opts ...Option) (*BitVector, error) {
	b := NewBuilder(opts...)
	b.n = length
	it := bm.Iterator()
	for it.HasNext() {
		p := it.Next()
		if p >= length {
			return nil, &ErrPositionOutOfRange{Position: p, Length: length}
		}
		b.staged.Set(uint(p))
	}
	return b.Freeze(), nil
}
