// Package succinct provides the compact data-structure layer of a
// graph-style database: packed integer arrays, bit vectors with rank and
// select, delta-encoded monotonic sequences, grouped adjacency encodings,
// an order-preserving typed value codec, and sorted dictionaries built
// from all of the above.
//
// Every structure is immutable once built and safe for concurrent readers
// without locking. Construction follows a two-phase pattern: a builder
// accumulates input (single writer), then freezes into a reader over a
// byte region. The serialized forms are position-independent, so a reader
// can work directly over a memory-mapped file or any other byte source.
//
// # Packages
//
//   - logarray: fixed-bitwidth packed integer arrays
//   - bitvector: bitmaps with O(1) rank and O(log n) select
//   - monotonic: sorted sequences with predecessor/successor search
//   - adjacency: one-to-many groupings over packed values
//   - value: canonical ordered encodings for typed literals
//   - dict: sorted value-to-index bijections over blocks
//   - blobstore: named byte regions on memory, disk or S3
//   - storage: blob bundles persisting whole structures
//
// # Quick start
//
//	b := dict.NewStringBuilder()
//	for _, s := range []string{"alpha", "beta", "gamma"} {
//		_ = b.Add(s)
//	}
//	d, _ := b.Finish()
//	idx, ok, _ := d.IndexOf("beta") // 1, true
//
// Persisting to a store:
//
//	store := blobstore.NewLocalStore("/var/lib/graph")
//	buf, _ := d.MarshalBinary()
//	_ = store.Put(ctx, "layer0/values", buf)
package succinct
