package blobstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType selects the block compression applied to stored blobs.
type CompressionType uint8

const (
	// CompressionNone stores blobs verbatim.
	CompressionNone CompressionType = 0
	// CompressionLZ4 favors decompression speed for hot structures.
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD favors ratio for cold or remote structures.
	CompressionZSTD CompressionType = 2
)

// frame layout: [type byte][uncompressed size u32 LE][payload].
// An incompressible payload is stored with the none type regardless of
// the requested algorithm.
const frameHeaderSize = 5

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress frames and compresses data with the given algorithm. Payloads
// that do not shrink are framed uncompressed, so Decompress never needs to
// know the requested algorithm.
func Compress(data []byte, ct CompressionType) ([]byte, error) {
	var payload []byte
	switch ct {
	case CompressionNone:
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 && n < len(data) {
			payload = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(data, make([]byte, 0, len(data)))
		zstdEncoderPool.Put(enc)
		if len(payload) >= len(data) {
			payload = nil
		}
	default:
		return nil, fmt.Errorf("blobstore: unknown compression type %d", ct)
	}

	if payload == nil {
		payload = data
		ct = CompressionNone
	}
	out := make([]byte, 0, frameHeaderSize+len(payload))
	out = append(out, byte(ct))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(data)))
	return append(out, payload...), nil
}

// Decompress reverses Compress.
func Decompress(framed []byte) ([]byte, error) {
	if len(framed) < frameHeaderSize {
		return nil, fmt.Errorf("%w: %d frame bytes", ErrTruncated, len(framed))
	}
	ct := CompressionType(framed[0])
	size := binary.LittleEndian.Uint32(framed[1:])
	payload := framed[frameHeaderSize:]

	switch ct {
	case CompressionNone:
		if uint32(len(payload)) != size {
			return nil, fmt.Errorf("%w: %d payload bytes, frame declares %d", ErrTruncated, len(payload), size)
		}
		out := make([]byte, size)
		copy(out, payload)
		return out, nil
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: %d decompressed bytes, frame declares %d", ErrTruncated, n, size)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, size))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: %d decompressed bytes, frame declares %d", ErrTruncated, len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blobstore: unknown compression type %d", ct)
	}
}

// CompressingStore wraps a BlobStore and transparently compresses whole
// blobs. Open reads and decompresses the full blob into memory, so it
// suits archival or remote backends rather than mmap-hot local data.
type CompressingStore struct {
	inner BlobStore
	ct    CompressionType
}

// NewCompressingStore wraps store with the given compression algorithm.
func NewCompressingStore(store BlobStore, ct CompressionType) *CompressingStore {
	return &CompressingStore{inner: store, ct: ct}
}

// Open opens and decompresses a blob.
func (s *CompressingStore) Open(ctx context.Context, name string) (Blob, error) {
	framed, err := Fetch(ctx, s.inner, name)
	if err != nil {
		return nil, err
	}
	data, err := Decompress(framed)
	if err != nil {
		return nil, err
	}
	return &memoryBlob{data: data}, nil
}

// Create buffers writes and compresses the blob when it is closed.
func (s *CompressingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return &compressingWritableBlob{ctx: ctx, store: s, name: name}, nil
}

// Put compresses and writes a complete blob atomically.
func (s *CompressingStore) Put(ctx context.Context, name string, data []byte) error {
	framed, err := Compress(data, s.ct)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, framed)
}

// Delete removes a blob.
func (s *CompressingStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List returns the names of all blobs with the given prefix.
func (s *CompressingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type compressingWritableBlob struct {
	ctx   context.Context
	store *CompressingStore
	name  string
	buf   []byte
}

func (w *compressingWritableBlob) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *compressingWritableBlob) Sync() error { return nil }

func (w *compressingWritableBlob) Close() error {
	return w.store.Put(w.ctx, w.name, w.buf)
}
