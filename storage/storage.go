// Package storage persists structures as named blob bundles. A structure
// whose reader wants independently addressable regions (bit vectors,
// adjacency lists) gets one blob per region; single-region structures get
// one blob. Bundle reads and writes run in parallel per region.
package storage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/terminusdb-labs/tdb-succinct/adjacency"
	"github.com/terminusdb-labs/tdb-succinct/bitvector"
	"github.com/terminusdb-labs/tdb-succinct/blobstore"
	"github.com/terminusdb-labs/tdb-succinct/dict"
	"github.com/terminusdb-labs/tdb-succinct/logarray"
	"github.com/terminusdb-labs/tdb-succinct/monotonic"
)

// BitVectorFiles names the three regions of a serialized bit vector.
type BitVectorFiles struct {
	Bits    string
	Blocks  string
	SBlocks string
}

// BitVectorFilesAt derives region names from a common prefix.
func BitVectorFilesAt(prefix string) BitVectorFiles {
	return BitVectorFiles{
		Bits:    prefix + "-bits",
		Blocks:  prefix + "-blocks",
		SBlocks: prefix + "-sblocks",
	}
}

// Save writes all regions of the bit vector.
func (f BitVectorFiles) Save(ctx context.Context, store blobstore.BlobStore, bv *bitvector.BitVector) error {
	bits, blocks, sblocks := bv.Regions()
	return putAll(ctx, store, map[string][]byte{
		f.Bits:    bits,
		f.Blocks:  blocks,
		f.SBlocks: sblocks,
	})
}

// Load reads all regions and reassembles the bit vector.
func (f BitVectorFiles) Load(ctx context.Context, store blobstore.BlobStore) (*bitvector.BitVector, error) {
	bufs, err := fetchAll(ctx, store, f.Bits, f.Blocks, f.SBlocks)
	if err != nil {
		return nil, err
	}
	return bitvector.Parse(bufs[0], bufs[1], bufs[2])
}

// AdjacencyFiles names the four regions of a serialized adjacency list.
type AdjacencyFiles struct {
	Nums    string
	Bits    string
	Blocks  string
	SBlocks string
}

// AdjacencyFilesAt derives region names from a common prefix.
func AdjacencyFilesAt(prefix string) AdjacencyFiles {
	return AdjacencyFiles{
		Nums:    prefix + "-nums",
		Bits:    prefix + "-bits",
		Blocks:  prefix + "-blocks",
		SBlocks: prefix + "-sblocks",
	}
}

// Save writes all regions of the adjacency list.
func (f AdjacencyFiles) Save(ctx context.Context, store blobstore.BlobStore, l *adjacency.List) error {
	nums, bits, blocks, sblocks := l.Regions()
	return putAll(ctx, store, map[string][]byte{
		f.Nums:    nums,
		f.Bits:    bits,
		f.Blocks:  blocks,
		f.SBlocks: sblocks,
	})
}

// Load reads all regions and reassembles the adjacency list.
func (f AdjacencyFiles) Load(ctx context.Context, store blobstore.BlobStore) (*adjacency.List, error) {
	bufs, err := fetchAll(ctx, store, f.Nums, f.Bits, f.Blocks, f.SBlocks)
	if err != nil {
		return nil, err
	}
	return adjacency.Parse(bufs[0], bufs[1], bufs[2], bufs[3])
}

// LogArrayFile names a single serialized packed integer array.
type LogArrayFile struct {
	Name string
}

// Save writes the log array.
func (f LogArrayFile) Save(ctx context.Context, store blobstore.BlobStore, la *logarray.LogArray) error {
	b := logarray.NewLateBuilder()
	for v := range la.Values() {
		b.Push(v)
	}
	return store.Put(ctx, f.Name, b.Bytes(nil))
}

// Load reads and parses the log array.
func (f LogArrayFile) Load(ctx context.Context, store blobstore.BlobStore) (*logarray.LogArray, error) {
	buf, err := blobstore.Fetch(ctx, store, f.Name)
	if err != nil {
		return nil, err
	}
	return logarray.Parse(buf)
}

// SequenceFile names a single serialized monotonic sequence.
type SequenceFile struct {
	Name string
}

// Save writes the sequence.
func (f SequenceFile) Save(ctx context.Context, store blobstore.BlobStore, s *monotonic.Sequence) error {
	buf, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	return store.Put(ctx, f.Name, buf)
}

// Load reads and parses the sequence.
func (f SequenceFile) Load(ctx context.Context, store blobstore.BlobStore) (*monotonic.Sequence, error) {
	buf, err := blobstore.Fetch(ctx, store, f.Name)
	if err != nil {
		return nil, err
	}
	s, _, err := monotonic.Parse(buf)
	return s, err
}

// DictFile names a single serialized sorted dictionary.
type DictFile struct {
	Name string
}

// Save writes the dictionary.
func (f DictFile) Save(ctx context.Context, store blobstore.BlobStore, d *dict.Dict) error {
	buf, err := d.MarshalBinary()
	if err != nil {
		return err
	}
	return store.Put(ctx, f.Name, buf)
}

// Load reads and parses the dictionary.
func (f DictFile) Load(ctx context.Context, store blobstore.BlobStore) (*dict.Dict, error) {
	buf, err := blobstore.Fetch(ctx, store, f.Name)
	if err != nil {
		return nil, err
	}
	d, _, err := dict.Parse(buf)
	return d, err
}

func putAll(ctx context.Context, store blobstore.BlobStore, blobs map[string][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, data := range blobs {
		g.Go(func() error {
			return store.Put(ctx, name, data)
		})
	}
	return g.Wait()
}

func fetchAll(ctx context.Context, store blobstore.BlobStore, names ...string) ([][]byte, error) {
	bufs := make([][]byte, len(names))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			buf, err := blobstore.Fetch(ctx, store, name)
			bufs[i] = buf
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bufs, nil
}
