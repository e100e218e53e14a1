// Package monotonic implements sorted integer sequences stored as packed
// deltas with periodic absolute checkpoints.
//
// A sequence of non-decreasing values is split into runs of a fixed
// checkpoint interval C. A checkpoints log array holds the absolute value at
// the start of each run; a deltas log array holds value[i] - value[i-1] for
// every other position. Since deltas of a dense sorted sequence are small,
// the packed width shrinks accordingly. Point access decodes at most C-1
// deltas; predecessor and successor binary-search the checkpoints and then
// scan one run.
package monotonic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/terminusdb-labs/tdb-succinct/logarray"
)

// DefaultCheckpointInterval is the default run length between absolute
// checkpoints.
const DefaultCheckpointInterval = 64

// headerSize is the size of the leading parameter header: element count and
// checkpoint interval, both big-endian u64.
const headerSize = 16

// ErrOutOfRange is returned when an index is beyond the sequence bounds.
var ErrOutOfRange = errors.New("monotonic: index out of range")

// ErrNotSorted indicates build input that is not non-decreasing.
type ErrNotSorted struct {
	Index      int
	Prev, Next uint64
}

func (e *ErrNotSorted) Error() string {
	return fmt.Sprintf("monotonic: not sorted at index %d: %d > %d", e.Index, e.Prev, e.Next)
}

// ErrInconsistent indicates serialized regions whose sizes disagree with
// the declared element count and interval.
type ErrInconsistent struct {
	Len, Checkpoints, Deltas int
	Interval                 uint64
}

func (e *ErrInconsistent) Error() string {
	return fmt.Sprintf("monotonic: inconsistent regions: %d elements, %d checkpoints, %d deltas, interval %d",
		e.Len, e.Checkpoints, e.Deltas, e.Interval)
}

// Sequence is an immutable non-decreasing integer sequence. Safe for
// concurrent readers.
type Sequence struct {
	checkpoints *logarray.LogArray
	deltas      *logarray.LogArray
	n           uint64
	interval    uint64
}

// Option configures construction-time parameters.
type Option func(*config)

type config struct {
	interval uint64
}

// WithCheckpointInterval sets the run length between absolute checkpoints.
// Shorter runs speed up point access at the cost of index size.
func WithCheckpointInterval(interval int) Option {
	return func(c *config) {
		if interval > 0 {
			c.interval = uint64(interval)
		}
	}
}

// Build constructs a Sequence, failing with ErrNotSorted on a decreasing
// adjacent pair.
func Build(values []uint64, opts ...Option) (*Sequence, error) {
	cfg := config{interval: DefaultCheckpointInterval}
	for _, opt := range opts {
		opt(&cfg)
	}

	checkpoints := logarray.NewLateBuilder()
	deltas := logarray.NewLateBuilder()

	var prev uint64
	for i, v := range values {
		if i > 0 && v < prev {
			return nil, &ErrNotSorted{Index: i, Prev: prev, Next: v}
		}
		if uint64(i)%cfg.interval == 0 {
			checkpoints.Push(v)
		} else {
			deltas.Push(v - prev)
		}
		prev = v
	}

	return &Sequence{
		checkpoints: mustParse(checkpoints.Bytes(nil)),
		deltas:      mustParse(deltas.Bytes(nil)),
		n:           uint64(len(values)),
		interval:    cfg.interval,
	}, nil
}

// FromLogArrays assembles a Sequence from already parsed checkpoint and
// delta regions. The region lengths must agree with n and the configured
// checkpoint interval, or ErrInconsistent is returned.
func FromLogArrays(checkpoints, deltas *logarray.LogArray, n int, opts ...Option) (*Sequence, error) {
	cfg := config{interval: DefaultCheckpointInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Sequence{checkpoints: checkpoints, deltas: deltas, n: uint64(n), interval: cfg.interval}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func mustParse(buf []byte) *logarray.LogArray {
	la, err := logarray.Parse(buf)
	if err != nil {
		panic(fmt.Sprintf("monotonic: builder produced invalid log array: %v", err))
	}
	return la
}

// Parse reads a Sequence from its serialized form: a parameter header, then
// the checkpoints and deltas log arrays in header-first framing. The
// unconsumed remainder is returned.
func Parse(buf []byte) (*Sequence, []byte, error) {
	if len(buf) < headerSize {
		return nil, nil, &logarray.ErrBufferTooSmall{Size: len(buf)}
	}
	n := binary.BigEndian.Uint64(buf)
	interval := binary.BigEndian.Uint64(buf[8:])

	checkpoints, rest, err := logarray.ParseHeaderFirst(buf[headerSize:])
	if err != nil {
		return nil, nil, err
	}
	deltas, rest, err := logarray.ParseHeaderFirst(rest)
	if err != nil {
		return nil, nil, err
	}

	s := &Sequence{checkpoints: checkpoints, deltas: deltas, n: n, interval: interval}
	if err := s.validate(); err != nil {
		return nil, nil, err
	}
	return s, rest, nil
}

func (s *Sequence) validate() error {
	if s.interval == 0 {
		return &ErrInconsistent{Len: int(s.n), Checkpoints: s.checkpoints.Len(), Deltas: s.deltas.Len(), Interval: s.interval}
	}
	wantCheckpoints := int((s.n + s.interval - 1) / s.interval)
	wantDeltas := int(s.n) - wantCheckpoints
	if wantDeltas < 0 {
		wantDeltas = 0
	}
	if s.checkpoints.Len() != wantCheckpoints || s.deltas.Len() != wantDeltas {
		return &ErrInconsistent{Len: int(s.n), Checkpoints: s.checkpoints.Len(), Deltas: s.deltas.Len(), Interval: s.interval}
	}
	return nil
}

// MarshalBinary serializes the sequence in the framing consumed by Parse.
func (s *Sequence) MarshalBinary() ([]byte, error) {
	buf := binary.BigEndian.AppendUint64(nil, s.n)
	buf = binary.BigEndian.AppendUint64(buf, s.interval)
	buf = rebuild(s.checkpoints, buf)
	buf = rebuild(s.deltas, buf)
	return buf, nil
}

func rebuild(la *logarray.LogArray, buf []byte) []byte {
	b := logarray.NewLateBuilder()
	for v := range la.Values() {
		b.Push(v)
	}
	return b.BytesHeaderFirst(buf)
}

// Len returns the number of elements.
func (s *Sequence) Len() int { return int(s.n) }

// Get returns the element at index i, or ErrOutOfRange.
func (s *Sequence) Get(i int) (uint64, error) {
	if i < 0 || uint64(i) >= s.n {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, i, s.n)
	}
	return s.at(uint64(i)), nil
}

func (s *Sequence) at(i uint64) uint64 {
	run := i / s.interval
	v := s.checkpoints.At(int(run))
	base := run * s.interval
	for j := base; j < i; j++ {
		v += s.deltas.At(int(j - run))
	}
	return v
}

// runEnd returns the index one past the last element of the run starting at
// checkpoint r.
func (s *Sequence) runEnd(r uint64) uint64 {
	end := (r + 1) * s.interval
	if end > s.n {
		end = s.n
	}
	return end
}

// Values iterates the decoded sequence in order.
func (s *Sequence) Values() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		var v uint64
		for i := uint64(0); i < s.n; i++ {
			run := i / s.interval
			if i%s.interval == 0 {
				v = s.checkpoints.At(int(run))
			} else {
				v += s.deltas.At(int(i - run - 1))
			}
			if !yield(v) {
				return
			}
		}
	}
}

// IndexOf returns the index of the first occurrence of v.
func (s *Sequence) IndexOf(v uint64) (int, bool) {
	i, val, ok := s.ceiling(v)
	if !ok || val != v {
		return 0, false
	}
	return i, true
}

// Successor returns the smallest stored value >= v along with its index.
func (s *Sequence) Successor(v uint64) (uint64, int, bool) {
	i, val, ok := s.ceiling(v)
	if !ok {
		return 0, 0, false
	}
	return val, i, true
}

// Predecessor returns the largest stored value <= v along with an index at
// which it is stored.
func (s *Sequence) Predecessor(v uint64) (uint64, int, bool) {
	i, val, ok := s.ceiling(v)
	if ok && val == v {
		return val, i, true
	}
	// All stored values at i and beyond are > v; the predecessor is the
	// element before the ceiling, when there is one.
	if !ok {
		if s.n == 0 {
			return 0, 0, false
		}
		last := s.n - 1
		return s.at(last), int(last), true
	}
	if i == 0 {
		return 0, 0, false
	}
	return s.at(uint64(i) - 1), i - 1, true
}

// NearestIndexOf returns the index where v is or would be inserted,
// clamped to [0, Len].
func (s *Sequence) NearestIndexOf(v uint64) int {
	i, _, ok := s.ceiling(v)
	if !ok {
		return int(s.n)
	}
	return i
}

// ceiling locates the first element >= v: binary search for the first run
// whose checkpoint is >= v, then a bounded scan of the run before it.
func (s *Sequence) ceiling(v uint64) (int, uint64, bool) {
	if s.n == 0 {
		return 0, 0, false
	}

	lo, hi := 0, s.checkpoints.Len()
	for lo < hi {
		mid := (lo + hi) / 2
		if s.checkpoints.At(mid) >= v {
			hi = mid
		} else {
			lo = mid + 1
		}
	}

	if lo > 0 {
		// The first element >= v may lie inside the preceding run.
		run := uint64(lo - 1)
		val := s.checkpoints.At(lo - 1)
		for i := run * s.interval; i < s.runEnd(run); i++ {
			if i > run*s.interval {
				val += s.deltas.At(int(i - run - 1))
			}
			if val >= v {
				return int(i), val, true
			}
		}
	}

	if lo < s.checkpoints.Len() {
		return int(uint64(lo) * s.interval), s.checkpoints.At(lo), true
	}
	return 0, 0, false
}
