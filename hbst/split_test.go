package hbst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func desc16(bits ...int) Descriptor {
	d := NewDescriptor(16)
	for _, b := range bits {
		d.Set(b)
	}
	return d
}

// batch16 returns one matchable per bit list, payloads 0..n-1.
func batch16(identifier uint64, sets ...[]int) []*Matchable[uint64] {
	out := make([]*Matchable[uint64], 0, len(sets))
	for i, s := range sets {
		out = append(out, NewMatchable(uint64(i), desc16(s...), identifier))
	}
	return out
}

func config16(threshold uint64, maxPartitioning float64) *Config {
	cfg := quietConfig(DefaultConfig())
	cfg.DescriptorBits = 16
	cfg.SplitThreshold = threshold
	cfg.MaxPartitioning = maxPartitioning
	return cfg
}

func rootSplitBit(t *testing.T, tree *Tree[uint64]) int {
	t.Helper()
	require.NotEqual(t, noNode, tree.root)
	n := tree.arena.at(tree.root)
	require.True(t, n.hasLeafs, "root is a leaf")
	return int(n.splitBit)
}

func TestSplitEvenBitChoice(t *testing.T) {
	// bits 3 and 5 both split exactly in half; the scan stops at the first one
	tree, err := NewTreeFromMatchables(0, batch16(0, []int{3, 5}, []int{3}, []int{5}, nil),
		SplitEven, config16(4, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 3, rootSplitBit(t, tree))
	assert.Equal(t, 2, tree.NumberOfLeaves())

	// bit 1: 0.3 off, bits 4 and 6: 0.1 off; the first strictly better bit wins
	sets := [][]int{{1, 4, 6}, {4, 6}, nil, nil, nil}
	tree, err = NewTreeFromMatchables(0, batch16(0, sets...), SplitEven, config16(5, 0.2))
	require.NoError(t, err)
	assert.Equal(t, 4, rootSplitBit(t, tree))
	checkTreeStructure(t, tree)
}

func TestSplitEvenRejectsOverBound(t *testing.T) {
	// best bit is 0.25 off the half, above the 0.1 bound
	tree, err := NewTreeFromMatchables(0, batch16(0, []int{2}, nil, nil, nil), SplitEven, config16(1, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NumberOfLeaves())

	tree, err = NewTreeFromMatchables(0, batch16(0, []int{2}, nil, nil, nil), SplitEven, config16(1, 0.3))
	require.NoError(t, err)
	assert.Equal(t, 2, rootSplitBit(t, tree))
}

func TestSplitUnevenBitChoice(t *testing.T) {
	// bits 2 and 7 are both 0.25 off; the first one is kept
	sets := [][]int{{2}, {7}, nil, nil}
	tree, err := NewTreeFromMatchables(0, batch16(0, sets...), SplitUneven, config16(4, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 2, rootSplitBit(t, tree))
	assert.Equal(t, 2, tree.NumberOfLeaves())

	// 0.25 is not more imbalanced than 0.3
	tree, err = NewTreeFromMatchables(0, batch16(0, sets...), SplitUneven, config16(4, 0.3))
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NumberOfLeaves())

	// bits set in every resident never split
	tree, err = NewTreeFromMatchables(0, batch16(0, []int{0, 9}, []int{0}, []int{0}, []int{0}),
		SplitUneven, config16(4, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 9, rootSplitBit(t, tree))
}

func TestSplitThresholdBlocksSplit(t *testing.T) {
	sets := [][]int{{3, 5}, {3}, {5}, nil}
	tree, err := NewTreeFromMatchables(0, batch16(0, sets...), SplitEven, config16(5, 0.1))
	require.NoError(t, err)
	assert.Equal(t, 1, tree.NumberOfLeaves())
	assert.Equal(t, 0, tree.Depth())
}

func TestAddResplitsTouchedLeaf(t *testing.T) {
	tree, err := NewTree[uint64](0, config16(4, 0.1))
	require.NoError(t, err)

	require.NoError(t, tree.Add(batch16(0, []int{3}, nil), SplitEven))
	assert.Equal(t, 1, tree.NumberOfLeaves())

	require.NoError(t, tree.Add(batch16(1, []int{3}, nil), SplitEven))
	assert.Equal(t, 2, tree.NumberOfLeaves())
	assert.Equal(t, 3, rootSplitBit(t, tree))
	checkTreeStructure(t, tree)

	for _, id := range tree.arena.leaves(tree.root) {
		n := tree.arena.at(id)
		require.Len(t, n.matchables, 2)
		assert.Equal(t, n.matchables[0].Descriptor().Bit(3), n.matchables[1].Descriptor().Bit(3))
	}
}
