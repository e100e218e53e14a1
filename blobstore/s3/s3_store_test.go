package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminusdb-labs/tdb-succinct/blobstore"
)

// fakeClient is an in-memory stand-in for the S3 API, enough to exercise
// head, ranged get, put, multipart upload, delete and paginated listing.
type fakeClient struct {
	mu       sync.Mutex
	objects  map[string][]byte
	parts    map[string]map[int32][]byte
	pageSize int
	getCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string][]byte),
		parts:   make(map[string]map[int32][]byte),
	}
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	if rng := aws.ToString(in.Range); rng != "" {
		var start, end int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
			return nil, fmt.Errorf("bad range %q", rng)
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		data = data[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		fmt.Sscanf(tok, "%d", &start)
	}
	end := len(keys)
	truncated := false
	if f.pageSize > 0 && start+f.pageSize < len(keys) {
		end = start + f.pageSize
		truncated = true
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if truncated {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (f *fakeClient) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.Key)
	f.parts[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeClient) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts[aws.ToString(in.UploadId)][aws.ToInt32(in.PartNumber)] = data
	etag := fmt.Sprintf("part-%d", aws.ToInt32(in.PartNumber))
	return &s3.UploadPartOutput{ETag: aws.String(etag)}, nil
}

func (f *fakeClient) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.UploadId)
	parts := f.parts[id]
	var nums []int
	for n := range parts {
		nums = append(nums, int(n))
	}
	sort.Ints(nums)
	var data []byte
	for _, n := range nums {
		data = append(data, parts[int32(n)]...)
	}
	f.objects[aws.ToString(in.Key)] = data
	delete(f.parts, id)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeClient) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.parts, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestOpenNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(newFakeClient(), "bucket", WithPrefix("db/"))
	_, err := store.Open(context.Background(), "absent")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestRangedReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := newFakeClient()
	client.objects["db/blob"] = []byte("0123456789abcdef")
	store := NewStore(client, "bucket", WithPrefix("db"), WithReadLimit(1<<20))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(16), blob.Size())

	p := make([]byte, 4)
	n, err := blob.ReadAt(p, 10)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(p[:n]))

	// Short read at the tail must report EOF with the bytes it got.
	n, err = blob.ReadAt(p, 14)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ef", string(p[:n]))

	_, err = blob.ReadAt(p, 16)
	assert.ErrorIs(t, err, io.EOF)

	// Each ReadAt is a single ranged request, not a full download.
	assert.Equal(t, 3, client.getCalls)
}

func TestReadLimitLargerThanBurst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// A whole-blob fetch issues one ReadAt for more bytes than the
	// limiter burst; it must throttle, not fail.
	payload := bytes.Repeat([]byte("region-word-"), 5500)
	client := newFakeClient()
	client.objects["big"] = payload
	store := NewStore(client, "bucket", WithReadLimit(64<<10))
	require.Greater(t, len(payload), 64<<10)

	data, err := blobstore.Fetch(ctx, store, "big")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestPutDeleteList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := newFakeClient()
	client.pageSize = 2
	store := NewStore(client, "bucket", WithPrefix("db/"))

	for _, name := range []string{"base/bits", "base/blocks", "base/sblocks", "dict/entries", "dict/offsets"} {
		require.NoError(t, store.Put(ctx, name, []byte(name)))
	}

	names, err := store.List(ctx, "base/")
	require.NoError(t, err)
	assert.Equal(t, []string{"base/bits", "base/blocks", "base/sblocks"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 5, "pagination covers every page")

	require.NoError(t, store.Delete(ctx, "dict/entries"))
	names, err = store.List(ctx, "dict/")
	require.NoError(t, err)
	assert.Equal(t, []string{"dict/offsets"}, names)
}

func TestStreamingUpload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	client := newFakeClient()
	store := NewStore(client, "bucket")

	w, err := store.Create(ctx, "streamed")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err := w.Write([]byte(fmt.Sprintf("chunk-%03d;", i)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	data, err := blobstore.Fetch(ctx, store, "streamed")
	require.NoError(t, err)
	assert.Len(t, data, 1000)
	assert.True(t, strings.HasPrefix(string(data), "chunk-000;"))
	assert.True(t, strings.HasSuffix(string(data), "chunk-099;"))

	// Double close reports the pipe error instead of blocking.
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)
}
