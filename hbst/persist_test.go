package hbst

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchSummary struct {
	query, reference uint64
	distance         uint32
}

func summarize(matches []Match[uint64]) []matchSummary {
	out := make([]matchSummary, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchSummary{m.ObjectQuery, m.ObjectReferences[0], m.Distance})
	}
	return out
}

func TestSaveLoadRoundtrip(t *testing.T) {
	f := newFixture()
	tree := newFixtureTree(t, f, SplitEven)
	query := f.noisy(f.train[4], 6)

	dir := t.TempDir()
	path := filepath.Join(dir, "db.hbst")
	require.NoError(t, tree.SaveTo(path))

	loaded, err := NewTreeFromFile[uint64](path, quietConfig(fixtureConfig()))
	require.NoError(t, err)

	assert.Equal(t, tree.TrainedIdentifiers(), loaded.TrainedIdentifiers())
	assert.Equal(t, tree.NumberOfMatchablesCompressed(), loaded.NumberOfMatchablesCompressed())
	assert.Equal(t, tree.NumberOfMatchablesUncompressed(), loaded.NumberOfMatchablesUncompressed())
	assert.Equal(t, tree.NumberOfLeaves(), loaded.NumberOfLeaves())
	assert.Equal(t, tree.Depth(), loaded.Depth())
	checkTreeStructure(t, loaded)

	assert.Equal(t, summarize(tree.Match(query, 10)), summarize(loaded.Match(query, 10)))
	want := tree.MatchPerImage(query, 10)
	got := loaded.MatchPerImage(query, 10)
	require.Equal(t, len(want), len(got))
	for id := range want {
		assert.Equal(t, len(want[id]), len(got[id]), "identifier %d", id)
	}
	assert.Equal(t, tree.ScorePerImage(query, true, 10), loaded.ScorePerImage(query, true, 10))

	// the loaded tree keeps training
	require.NoError(t, loaded.Add(f.query[0], SplitEven))
	assert.Equal(t, 11, loaded.Size())
	checkTreeStructure(t, loaded)
}

func TestWriteToLayout(t *testing.T) {
	d := NewDescriptor(16)
	d.Set(0)
	d.Set(9)
	cfg := quietConfig(DefaultConfig())
	cfg.DescriptorBits = 16
	tree, err := NewTreeFromMatchables(3, []*Matchable[uint64]{NewMatchable(uint64(42), d, 5)}, SplitEven, cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := tree.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	raw := buf.Bytes()
	require.Equal(t, byte(0), raw[0])
	hdr := raw[1 : 1+store.TreeHeaderSize]
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(hdr[0:]))  // identifier
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(hdr[8:]))  // compressed
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(hdr[16:])) // training entries
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(hdr[24:])) // uncompressed
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(hdr[32:])) // leaves
	rest := raw[1+store.TreeHeaderSize:]
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(rest[0:])) // trained identifier
	leaf := rest[8:]
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(leaf[0:]))  // depth
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(leaf[16:])) // compressed
	assert.Equal(t, int32(-1), int32(binary.LittleEndian.Uint32(leaf[24:])))
	assert.Equal(t, []byte{0x01, 0x02}, leaf[28:30]) // bits 0 and 9
	assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(leaf[30:]))
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(leaf[38:]))
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(leaf[46:]))
	assert.Len(t, raw, 1+store.TreeHeaderSize+8+store.NodeHeaderSize+4+2+8+16)

	empty, err := NewTree[uint64](0, cfg)
	require.NoError(t, err)
	n, err = empty.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), n)
	assert.Equal(t, uint64(3), empty.Identifier())
	matches := empty.Match([]*Matchable[uint64]{NewMatchable(uint64(0), d.Clone(), 1)}, 1)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(42), matches[0].ObjectReferences[0])
}

func TestReadFromStopsAtDatabaseEnd(t *testing.T) {
	f := newFixture()
	tree := newFixtureTree(t, f, SplitEven)
	var buf bytes.Buffer
	written, err := tree.WriteTo(&buf)
	require.NoError(t, err)
	trailing := []byte("next-record!")
	buf.Write(trailing)

	r := bytes.NewReader(buf.Bytes())
	loaded, err := NewTree[uint64](0, quietConfig(fixtureConfig()))
	require.NoError(t, err)
	n, err := loaded.ReadFrom(r)
	require.NoError(t, err)
	assert.Equal(t, written, n)
	assert.Equal(t, len(trailing), r.Len())

	rest := make([]byte, len(trailing))
	_, err = r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, trailing, rest)
	assert.Equal(t, tree.NumberOfLeaves(), loaded.NumberOfLeaves())
}

func TestReadRejectsEndianness(t *testing.T) {
	f := newFixture()
	tree := newFixtureTree(t, f, SplitEven)
	var buf bytes.Buffer
	_, err := tree.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.Bytes()
	raw[0] = 1

	path := filepath.Join(t.TempDir(), "db.hbst")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	fresh, err := NewTree[uint64](0, quietConfig(fixtureConfig()))
	require.NoError(t, err)
	err = fresh.LoadFrom(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEndianness))
	assert.Zero(t, fresh.Size())
	assert.Zero(t, fresh.NumberOfLeaves())

	// an existing database stays intact
	before := tree.NumberOfLeaves()
	require.Error(t, tree.LoadFrom(path))
	assert.Equal(t, before, tree.NumberOfLeaves())
	assert.Equal(t, 10, tree.Size())
	assert.Len(t, tree.MatchPerImage(f.train[0], 1)[0], fixtureDescriptorsPerImg)
}

func TestReadRejectsInconsistentCount(t *testing.T) {
	f := newFixture()
	tree := newFixtureTree(t, f, SplitEven)
	var buf bytes.Buffer
	_, err := tree.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.Bytes()
	binary.LittleEndian.PutUint64(raw[1+8:], tree.NumberOfMatchablesCompressed()+1)

	fresh, err := NewTree[uint64](0, quietConfig(fixtureConfig()))
	require.NoError(t, err)
	_, err = fresh.ReadFrom(bytes.NewReader(raw))
	assert.True(t, errors.Is(err, ErrInconsistentDatabase))
	assert.Zero(t, fresh.Size())
}

func TestReadRejectsTruncated(t *testing.T) {
	f := newFixture()
	tree := newFixtureTree(t, f, SplitEven)
	var buf bytes.Buffer
	_, err := tree.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.Bytes()

	fresh, err := NewTree[uint64](0, quietConfig(fixtureConfig()))
	require.NoError(t, err)
	for _, cut := range []int{1, 20, 1 + store.TreeHeaderSize + 4, len(raw) / 2, len(raw) - 1} {
		_, err = fresh.ReadFrom(bytes.NewReader(raw[:cut]))
		assert.Error(t, err, "cut at %d", cut)
	}
	assert.Zero(t, fresh.Size())
}

func TestLoadMissingFile(t *testing.T) {
	tree, err := NewTree[uint64](0, quietConfig(DefaultConfig()))
	require.NoError(t, err)
	assert.Error(t, tree.LoadFrom(filepath.Join(t.TempDir(), "missing.hbst")))
	_, err = NewTreeFromFile[uint64](filepath.Join(t.TempDir(), "missing.hbst"), quietConfig(DefaultConfig()))
	assert.Error(t, err)
}

func TestSaveToAtomicAndAppendTo(t *testing.T) {
	f := newFixture()
	cfg := quietConfig(fixtureConfig())
	path := filepath.Join(t.TempDir(), "db.hbst")

	tree, err := AppendTo(path, 9, f.train[0], SplitEven, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), tree.Identifier())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	tree, err = AppendTo(path, 9, f.train[1], SplitEven, cfg)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, tree.TrainedIdentifiers())

	loaded, err := NewTreeFromFile[uint64](path, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), loaded.Identifier())
	assert.Equal(t, uint64(2*fixtureDescriptorsPerImg), loaded.NumberOfMatchablesCompressed())
	assert.Len(t, loaded.MatchPerImage(f.train[1], 1)[1], fixtureDescriptorsPerImg)

	require.NoError(t, loaded.SaveToAtomic(path))
	again, err := NewTreeFromFile[uint64](path, cfg)
	require.NoError(t, err)
	assert.Equal(t, loaded.NumberOfLeaves(), again.NumberOfLeaves())
}

func TestSaveToAtomicReplaces(t *testing.T) {
	f := newFixture()
	cfg := quietConfig(fixtureConfig())
	path := filepath.Join(t.TempDir(), "db.hbst")

	first, err := NewTreeFromMatchables(1, f.train[0], SplitEven, cfg)
	require.NoError(t, err)
	require.NoError(t, first.SaveToAtomic(path))
	second, err := NewTreeFromMatchables(2, f.train[1], SplitEven, cfg)
	require.NoError(t, err)
	require.NoError(t, second.SaveToAtomic(path))

	loaded, err := NewTreeFromFile[uint64](path, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Identifier())
	assert.Equal(t, []uint64{1}, loaded.TrainedIdentifiers())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// a target that cannot be replaced is kept and the temporary file removed
	dir := filepath.Join(t.TempDir(), "occupied")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "child"), 0755))
	assert.Error(t, second.SaveToAtomic(dir))
	_, err = os.Stat(filepath.Join(dir, "child"))
	assert.NoError(t, err)
	_, err = os.Stat(dir + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestMergedRoundtrip(t *testing.T) {
	f := newFixture()
	cfg := quietConfig(fixtureConfig())
	cfg.MergeDescriptors = true
	tree, err := NewTree[uint64](0, cfg)
	require.NoError(t, err)
	require.NoError(t, tree.Add(f.train[0], SplitEven))
	require.NoError(t, tree.Add(copies(f.train[0], 1), SplitEven))

	var buf bytes.Buffer
	_, err = tree.WriteTo(&buf)
	require.NoError(t, err)
	loaded, err := NewTree[uint64](0, cfg)
	require.NoError(t, err)
	_, err = loaded.ReadFrom(&buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), loaded.NumberOfMatchablesCompressed())
	assert.Equal(t, uint64(2000), loaded.NumberOfMatchablesUncompressed())
	matches := loaded.MatchPerImage(f.train[0], 1)
	assert.Len(t, matches[0], 1000)
	assert.Len(t, matches[1], 1000)
}

func TestCodecs(t *testing.T) {
	d := NewDescriptor(256)
	d.Set(17)
	kp, err := NewTreeFromMatchables(0, []*Matchable[Keypoint]{NewMatchable(Keypoint{X: 1.5, Y: -2}, d, 4)}, SplitEven, quietConfig(DefaultConfig()))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = kp.WriteTo(&buf)
	require.NoError(t, err)

	back, err := NewTree[Keypoint](0, quietConfig(DefaultConfig()))
	require.NoError(t, err)
	_, err = back.ReadFrom(&buf)
	require.NoError(t, err)
	matches := back.Match([]*Matchable[Keypoint]{NewMatchable(Keypoint{}, d.Clone(), 0)}, 1)
	require.Len(t, matches, 1)
	assert.Equal(t, Keypoint{X: 1.5, Y: -2}, matches[0].ObjectReferences[0])

	type custom struct{ a int }
	ct, err := NewTree[custom](0, quietConfig(DefaultConfig()))
	require.NoError(t, err)
	_, err = ct.WriteTo(&buf)
	assert.True(t, errors.Is(err, ErrNoCodec))
}
