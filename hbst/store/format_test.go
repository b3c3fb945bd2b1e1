package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeHeaderRoundtrip(t *testing.T) {
	h := &TreeHeader{
		Identifier:                     7,
		NumberOfMatchablesCompressed:   1000,
		NumberOfTrainingEntries:        3,
		NumberOfMatchablesUncompressed: 1200,
		NumberOfLeafs:                  12,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTreeHeader(&buf, h))
	require.Equal(t, TreeHeaderSize, buf.Len())

	got, err := ReadTreeHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, *h, got)
}

func TestNodeHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNodeHeader(&buf, &NodeHeader{Depth: 1, NumberOfMatchablesUncompressed: 2, NumberOfMatchablesCompressed: 3}))
	require.Equal(t, NodeHeaderSize, buf.Len())
	// depth first, little endian
	assert.Equal(t, byte(1), buf.Bytes()[0])
	assert.Equal(t, byte(2), buf.Bytes()[8])
	assert.Equal(t, byte(3), buf.Bytes()[16])
}

func TestEndianness(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEndianness(&buf))
	require.NoError(t, ReadEndianness(&buf))

	err := ReadEndianness(bytes.NewReader([]byte{1}))
	assert.True(t, errors.Is(err, ErrEndianness))

	assert.Error(t, ReadEndianness(bytes.NewReader(nil)))
}

func TestReadTreeHeaderTruncated(t *testing.T) {
	_, err := ReadTreeHeader(bytes.NewReader(make([]byte, TreeHeaderSize-1)))
	assert.Error(t, err)
}

func TestOpenMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.hbst")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 3}, 0644))

	view, err := OpenMmap(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, view.Bytes())
	require.NoError(t, view.Close())
	require.NoError(t, view.Close())

	empty := filepath.Join(dir, "empty.hbst")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = OpenMmap(empty)
	assert.Error(t, err)

	_, err = OpenMmap(filepath.Join(dir, "missing.hbst"))
	assert.Error(t, err)
}
