package succinct

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/terminusdb-labs/tdb-succinct/adjacency"
	"github.com/terminusdb-labs/tdb-succinct/bitvector"
	"github.com/terminusdb-labs/tdb-succinct/blobstore"
	"github.com/terminusdb-labs/tdb-succinct/dict"
	"github.com/terminusdb-labs/tdb-succinct/logarray"
	"github.com/terminusdb-labs/tdb-succinct/monotonic"
	"github.com/terminusdb-labs/tdb-succinct/value"
)

// The structure packages report precise, package-local errors. Callers
// that treat all structures uniformly can normalize any of them to one of
// these kinds with Translate.
var (
	// ErrOutOfRange reports an index or position beyond structure
	// bounds. Always a caller bug, never worth retrying.
	ErrOutOfRange = errors.New("out of range")
	// ErrNotSorted reports builder input violating an ordering
	// precondition. Fatal to that build.
	ErrNotSorted = errors.New("input not sorted")
	// ErrMalformedEncoding reports bytes no valid encoding produces.
	// Signals corruption or a version mismatch.
	ErrMalformedEncoding = errors.New("malformed encoding")
	// ErrUnorderable reports a value with no position in the canonical
	// order, such as a NaN float.
	ErrUnorderable = errors.New("unorderable value")
	// ErrTruncated reports a persisted structure shorter than its
	// header declares. Always fatal, never retried.
	ErrTruncated = errors.New("truncated structure")
	// ErrIO reports a transient failure from the byte-region provider
	// or sink. The structures never retry internally; the caller owns
	// retry policy.
	ErrIO = errors.New("io failure")
)

// Translate maps a structure package error onto the error kinds above,
// wrapping so both the kind and the original error satisfy errors.Is and
// errors.As. Errors of other origins, such as transient I/O failures from
// a blob store, pass through unchanged for the caller's retry policy.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	// Bounds violations.
	if errors.Is(err, logarray.ErrOutOfRange) ||
		errors.Is(err, bitvector.ErrOutOfRange) ||
		errors.Is(err, monotonic.ErrOutOfRange) ||
		errors.Is(err, adjacency.ErrOutOfRange) ||
		errors.Is(err, dict.ErrOutOfRange) {
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	var bvPos *bitvector.ErrPositionOutOfRange
	if errors.As(err, &bvPos) {
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	var overflow *logarray.ErrValueOverflow
	if errors.As(err, &overflow) {
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}

	// Ordering preconditions.
	var monoSort *monotonic.ErrNotSorted
	var dictSort *dict.ErrNotSorted
	if errors.As(err, &monoSort) || errors.As(err, &dictSort) {
		return fmt.Errorf("%w: %w", ErrNotSorted, err)
	}

	// Codec failures.
	if errors.Is(err, value.ErrMalformed) {
		return fmt.Errorf("%w: %w", ErrMalformedEncoding, err)
	}
	if errors.Is(err, value.ErrUnorderable) || errors.Is(err, value.ErrTooLarge) {
		return fmt.Errorf("%w: %w", ErrUnorderable, err)
	}

	// Regions shorter or differently shaped than their headers declare.
	if errors.Is(err, blobstore.ErrTruncated) ||
		errors.Is(err, dict.ErrInconsistent) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	var laSmall *logarray.ErrBufferTooSmall
	var laWidth *logarray.ErrWidthTooLarge
	var laSize *logarray.ErrUnexpectedBufferSize
	var bvShape *bitvector.ErrIndexMismatch
	var monoShape *monotonic.ErrInconsistent
	var adjShape *adjacency.ErrInconsistent
	if errors.As(err, &laSmall) || errors.As(err, &laWidth) || errors.As(err, &laSize) ||
		errors.As(err, &bvShape) || errors.As(err, &monoShape) || errors.As(err, &adjShape) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}

	// Filesystem failures from a local blob store. Other transport
	// errors, such as SDK responses from a remote store, already carry
	// their own retryability and pass through unchanged.
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && !errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return err
}
