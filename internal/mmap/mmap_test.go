package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenReadClose(t *testing.T) {
	t.Parallel()

	content := []byte("hello, mapped world")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)

	assert.Equal(t, content, m.Bytes())
	assert.Equal(t, int64(len(content)), m.Size())

	p := make([]byte, 6)
	n, err := m.ReadAt(p, 7)
	require.NoError(t, err)
	assert.Equal(t, "mapped", string(p[:n]))

	_, err = m.ReadAt(p, int64(len(content)))
	assert.ErrorIs(t, err, io.EOF)
	_, err = m.ReadAt(p, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)

	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	_, err = m.ReadAt(p, 0)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, m.Close(), "close is idempotent")
}

func TestOpenEmptyFile(t *testing.T) {
	t.Parallel()

	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	assert.Zero(t, m.Size())

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, m.Close())
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShortFinalRead(t *testing.T) {
	t.Parallel()

	m, err := Open(writeTemp(t, []byte("abc")))
	require.NoError(t, err)
	defer m.Close()

	p := make([]byte, 8)
	n, err := m.ReadAt(p, 1)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	assert.Equal(t, "bc", string(p[:n]))
}
