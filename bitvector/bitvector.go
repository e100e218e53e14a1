// Package bitvector implements immutable bit vectors with constant-time
// rank and select.
//
// A bit vector serializes as three regions. The bits region packs the bits
// into 64-bit big-endian words, most significant bit first, followed by a
// log array control word holding the bit count. Two log arrays index it for
// rank: the superblock region samples the cumulative set-bit count before
// each superblock, and the block region records, for every data word, the
// set-bit count from the start of its superblock. Rank is one lookup in each
// plus a masked popcount; select binary-searches the superblock samples and
// scans at most one superblock. The index overhead is sub-linear in the raw
// bit storage.
package bitvector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/terminusdb-labs/tdb-succinct/internal/bitio"
	"github.com/terminusdb-labs/tdb-succinct/logarray"
)

// DefaultSuperblockWords is the default rank sampling interval, in data
// words per superblock (8 words = 512 bits).
const DefaultSuperblockWords = 8

// sblockHeaderSize is the size of the sampling interval header that leads
// the superblock region.
const sblockHeaderSize = 8

// ErrOutOfRange is returned when a bit index is beyond the vector bounds.
var ErrOutOfRange = errors.New("bitvector: index out of range")

// ErrIndexMismatch indicates rank index regions inconsistent with the bits
// region, which means corruption or mixed-up regions.
type ErrIndexMismatch struct {
	Words, Blocks, Superblocks int
}

func (e *ErrIndexMismatch) Error() string {
	return fmt.Sprintf("bitvector: rank index mismatch: %d data words, %d block samples, %d superblock samples",
		e.Words, e.Blocks, e.Superblocks)
}

// BitVector is an immutable bit sequence with rank/select support. Safe for
// concurrent readers.
type BitVector struct {
	words   []byte
	n       uint64
	total   uint64
	blocks  *logarray.LogArray
	sblocks *logarray.LogArray
	sbWords uint64
}

// Option configures construction-time parameters.
type Option func(*config)

type config struct {
	sbWords uint64
}

// WithSuperblockWords sets the rank sampling interval in words per
// superblock. Larger intervals shrink the index and lengthen the bounded
// scan in select.
func WithSuperblockWords(words int) Option {
	return func(c *config) {
		if words > 0 {
			c.sbWords = uint64(words)
		}
	}
}

func applyOptions(opts []Option) config {
	c := config{sbWords: DefaultSuperblockWords}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Parse assembles a BitVector from its three serialized regions. Buffers
// are retained, not copied.
func Parse(bitsBuf, blocksBuf, sblocksBuf []byte) (*BitVector, error) {
	if len(bitsBuf) < logarray.ControlWordSize {
		return nil, &logarray.ErrBufferTooSmall{Size: len(bitsBuf)}
	}
	n, width := logarray.ParseControlWord(bitsBuf[len(bitsBuf)-logarray.ControlWordSize:])
	if width != 1 {
		return nil, &logarray.ErrWidthTooLarge{Width: width}
	}
	words := bitsBuf[:len(bitsBuf)-logarray.ControlWordSize]
	if len(words) != logarray.DataSize(n, 1) {
		return nil, &logarray.ErrUnexpectedBufferSize{
			Size:     uint64(len(bitsBuf)),
			Expected: uint64(logarray.DataSize(n, 1)) + logarray.ControlWordSize,
			Len:      n,
			Width:    width,
		}
	}

	blocks, err := logarray.Parse(blocksBuf)
	if err != nil {
		return nil, err
	}
	if len(sblocksBuf) < sblockHeaderSize {
		return nil, &logarray.ErrBufferTooSmall{Size: len(sblocksBuf)}
	}
	sbWords := binary.BigEndian.Uint64(sblocksBuf)
	sblocks, err := logarray.Parse(sblocksBuf[sblockHeaderSize:])
	if err != nil {
		return nil, err
	}
	return assemble(words, n, blocks, sblocks, sbWords)
}

// ParseCombined reads the three regions from a single buffer in header-first
// framing (bits, blocks, superblocks), returning the unconsumed remainder.
func ParseCombined(buf []byte) (*BitVector, []byte, error) {
	if len(buf) < logarray.ControlWordSize {
		return nil, nil, &logarray.ErrBufferTooSmall{Size: len(buf)}
	}
	n, width := logarray.ParseControlWord(buf)
	if width != 1 {
		return nil, nil, &logarray.ErrWidthTooLarge{Width: width}
	}
	size := logarray.DataSize(n, 1)
	if len(buf) < logarray.ControlWordSize+size {
		return nil, nil, &logarray.ErrUnexpectedBufferSize{
			Size:     uint64(len(buf)),
			Expected: uint64(logarray.ControlWordSize + size),
			Len:      n,
			Width:    width,
		}
	}
	words := buf[logarray.ControlWordSize : logarray.ControlWordSize+size]

	blocks, rest, err := logarray.ParseHeaderFirst(buf[logarray.ControlWordSize+size:])
	if err != nil {
		return nil, nil, err
	}
	if len(rest) < sblockHeaderSize {
		return nil, nil, &logarray.ErrBufferTooSmall{Size: len(rest)}
	}
	sbWords := binary.BigEndian.Uint64(rest)
	sblocks, rest, err := logarray.ParseHeaderFirst(rest[sblockHeaderSize:])
	if err != nil {
		return nil, nil, err
	}

	bv, err := assemble(words, n, blocks, sblocks, sbWords)
	if err != nil {
		return nil, nil, err
	}
	return bv, rest, nil
}

func assemble(words []byte, n uint64, blocks, sblocks *logarray.LogArray, sbWords uint64) (*BitVector, error) {
	numWords := len(words) / bitio.WordSize
	mismatch := &ErrIndexMismatch{Words: numWords, Blocks: blocks.Len(), Superblocks: sblocks.Len()}
	if sbWords == 0 {
		return nil, mismatch
	}
	if blocks.Len() != numWords {
		return nil, mismatch
	}
	if sblocks.Len() != int((uint64(numWords)+sbWords-1)/sbWords) {
		return nil, mismatch
	}

	bv := &BitVector{
		words:   words,
		n:       n,
		blocks:  blocks,
		sblocks: sblocks,
		sbWords: sbWords,
	}
	bv.total = bv.Rank(int(n))
	return bv, nil
}

// Len returns the number of bits.
func (bv *BitVector) Len() int { return int(bv.n) }

// Count returns the total number of set bits.
func (bv *BitVector) Count() uint64 { return bv.total }

// Get returns the bit at position i, or ErrOutOfRange.
func (bv *BitVector) Get(i int) (bool, error) {
	if i < 0 || uint64(i) >= bv.n {
		return false, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, i, bv.n)
	}
	return bv.get(uint64(i)), nil
}

func (bv *BitVector) get(i uint64) bool {
	return bitio.ReadWindow(bv.words, i, 1) == 1
}

// Rank returns the number of set bits in [0, i). Arguments beyond the
// length are clamped, so Rank(Len) is the total set-bit count.
func (bv *BitVector) Rank(i int) uint64 {
	if i <= 0 || bv.n == 0 {
		return 0
	}
	pos := uint64(i)
	if pos > bv.n {
		pos = bv.n
	}

	word := pos >> 6
	rank := uint64(0)
	if word < uint64(bv.blocks.Len()) {
		rank = bv.sblocks.At(int(word/bv.sbWords)) + bv.blocks.At(int(word))
	} else {
		// pos is exactly at the end of the last word.
		word--
		rank = bv.sblocks.At(int(word/bv.sbWords)) + bv.blocks.At(int(word))
		return rank + uint64(bits.OnesCount64(bv.word(word)))
	}

	if off := pos & 63; off != 0 {
		rank += uint64(bits.OnesCount64(bv.word(word) >> (64 - off)))
	}
	return rank
}

// Select returns the position of the (k+1)-th set bit, counting from zero,
// and false if fewer than k+1 bits are set.
func (bv *BitVector) Select(k uint64) (int, bool) {
	if k >= bv.total {
		return 0, false
	}

	// Largest superblock whose prefix count is <= k.
	lo, hi := 0, bv.sblocks.Len()-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if bv.sblocks.At(mid) <= k {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	numWords := uint64(bv.blocks.Len())
	word := uint64(lo) * bv.sbWords
	count := bv.sblocks.At(lo)
	for ; word < numWords; word++ {
		w := bv.word(word)
		pc := uint64(bits.OnesCount64(w))
		if count+pc > k {
			return int(word<<6 + selectInWord(w, k-count)), true
		}
		count += pc
	}

	// Unreachable when the index regions are consistent with total.
	return 0, false
}

func (bv *BitVector) word(i uint64) uint64 {
	return bitio.ReadWindow(bv.words, i<<6, 64)
}

// selectInWord returns the position from the most significant bit of the
// (j+1)-th set bit of w. The caller guarantees w has more than j set bits.
func selectInWord(w uint64, j uint64) uint64 {
	for {
		lead := uint64(bits.LeadingZeros64(w))
		if j == 0 {
			return lead
		}
		j--
		w &^= 1 << (63 - lead)
	}
}

// Regions returns the three serialized regions: bits (control word last),
// block samples, and superblock samples prefixed by the sampling interval.
func (bv *BitVector) Regions() (bitsBuf, blocksBuf, sblocksBuf []byte) {
	cw := logarray.ControlWord(bv.n, 1)
	bitsBuf = make([]byte, 0, len(bv.words)+logarray.ControlWordSize)
	bitsBuf = append(bitsBuf, bv.words...)
	bitsBuf = append(bitsBuf, cw[:]...)

	blocksBuf = rebuildLogArray(bv.blocks, false)
	sblocksBuf = binary.BigEndian.AppendUint64(nil, bv.sbWords)
	sblocksBuf = append(sblocksBuf, rebuildLogArray(bv.sblocks, false)...)
	return bitsBuf, blocksBuf, sblocksBuf
}

// MarshalBinary serializes the vector in the combined header-first framing
// consumed by ParseCombined.
func (bv *BitVector) MarshalBinary() ([]byte, error) {
	cw := logarray.ControlWord(bv.n, 1)
	buf := append([]byte{}, cw[:]...)
	buf = append(buf, bv.words...)
	buf = append(buf, rebuildLogArray(bv.blocks, true)...)
	buf = binary.BigEndian.AppendUint64(buf, bv.sbWords)
	buf = append(buf, rebuildLogArray(bv.sblocks, true)...)
	return buf, nil
}

func rebuildLogArray(la *logarray.LogArray, headerFirst bool) []byte {
	b := logarray.NewLateBuilder()
	for v := range la.Values() {
		b.Push(v)
	}
	if headerFirst {
		return b.BytesHeaderFirst(nil)
	}
	return b.Bytes(nil)
}
