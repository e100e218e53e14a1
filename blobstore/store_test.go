package blobstore

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreRoundTrip(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Open(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "alpha", []byte("first blob")))

	w, err := store.Create(ctx, "beta/nested")
	require.NoError(t, err)
	_, err = w.Write([]byte("second "))
	require.NoError(t, err)
	_, err = w.Write([]byte("blob"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	b, err := store.Open(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.Size())
	p := make([]byte, 4)
	_, err = b.ReadAt(p, 6)
	require.NoError(t, err)
	assert.Equal(t, "blob", string(p))
	require.NoError(t, b.Close())

	data, err := Fetch(ctx, store, "beta/nested")
	require.NoError(t, err)
	assert.Equal(t, "second blob", string(data))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta/nested"}, names)

	names, err = store.List(ctx, "beta/")
	require.NoError(t, err)
	assert.Equal(t, []string{"beta/nested"}, names)

	require.NoError(t, store.Delete(ctx, "alpha"))
	require.NoError(t, store.Delete(ctx, "alpha"), "deleting an absent blob")
	_, err = store.Open(ctx, "alpha")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	t.Parallel()
	testStoreRoundTrip(t, NewLocalStore(t.TempDir()))
}

func TestLocalStoreMappable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "blob", []byte("mapped content")))
	b, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer b.Close()

	m, ok := b.(Mappable)
	require.True(t, ok)
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mapped content", string(data))
}

func TestLocalStoreNoPartialWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	w, err := store.Create(ctx, "pending")
	require.NoError(t, err)
	_, err = w.Write([]byte("half-done"))
	require.NoError(t, err)

	// Not yet closed: the name must not resolve and List must not show it.
	_, err = store.Open(ctx, "pending")
	assert.ErrorIs(t, err, ErrNotFound)
	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	data, err := Fetch(ctx, store, "pending")
	require.NoError(t, err)
	assert.Equal(t, "half-done", string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file left behind")
	}
}

func TestLocalStoreFailedWriteKeepsPrevious(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	require.NoError(t, store.Put(ctx, "region", []byte("good")))

	w, err := store.Create(ctx, "region")
	require.NoError(t, err)
	lw := w.(*localWritableBlob)
	_, err = lw.Write([]byte("par"))
	require.NoError(t, err)

	// Closing the fd under the blob makes the next write fail.
	require.NoError(t, lw.f.Close())
	_, err = lw.Write([]byte("tial"))
	require.Error(t, err)

	// Close after a failed write must abort, not rename a short file
	// over the previous version.
	assert.Error(t, lw.Close())
	data, err := Fetch(ctx, store, "region")
	require.NoError(t, err)
	assert.Equal(t, "good", string(data))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temp file left behind")
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k", []byte("v1")))
	b, err := store.Open(ctx, "k")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Put(ctx, "k", []byte("v2")))
	data, err := ReadAll(b)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data), "open blob keeps its snapshot")
}

func TestFetchDetachesMappedData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Put(ctx, "blob", []byte("still valid")))
	data, err := Fetch(ctx, store, "blob")
	require.NoError(t, err)
	assert.Equal(t, "still valid", string(data))
	assert.Equal(t, "still valid", string(append([]byte(nil), data...)))
}

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	compressible := bytes.Repeat([]byte("terminus"), 512)
	inputs := map[string][]byte{
		"empty":        {},
		"tiny":         []byte("x"),
		"compressible": compressible,
	}
	for _, ct := range []CompressionType{CompressionNone, CompressionLZ4, CompressionZSTD} {
		for name, in := range inputs {
			framed, err := Compress(in, ct)
			require.NoError(t, err, "type %d input %s", ct, name)
			out, err := Decompress(framed)
			require.NoError(t, err, "type %d input %s", ct, name)
			assert.Equal(t, in, out, "type %d input %s", ct, name)
		}
		framed, err := Compress(compressible, ct)
		require.NoError(t, err)
		if ct != CompressionNone {
			assert.Less(t, len(framed), len(compressible), "type %d should shrink repetitive data", ct)
		}
	}

	_, err := Compress(nil, CompressionType(9))
	assert.Error(t, err)
	_, err = Decompress([]byte{0x01})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestCompressingStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	inner := NewMemoryStore()
	store := NewCompressingStore(inner, CompressionZSTD)

	payload := bytes.Repeat([]byte("succinct"), 1024)
	require.NoError(t, store.Put(ctx, "blob", payload))

	// The inner store holds the framed, smaller representation.
	raw, err := Fetch(ctx, inner, "blob")
	require.NoError(t, err)
	assert.Less(t, len(raw), len(payload))

	got, err := Fetch(ctx, store, "blob")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	_, err = w.Write(payload[:100])
	require.NoError(t, err)
	_, err = w.Write(payload[100:])
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err = Fetch(ctx, store, "streamed")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"blob", "streamed"}, names)
}
