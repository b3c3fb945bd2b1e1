package hbst

import (
	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/btree"
)

// Tree is a hierarchical binary search tree over descriptors of a fixed width.
//
// A Tree is not safe for concurrent mutation. Concurrent read-only queries (Match,
// MatchPerImage, scoring, MatchParallel) on a tree that is not being mutated are safe.
type Tree[T any] struct {
	cfg   *Config
	log   logrus.FieldLogger
	split *splitParams
	codec PayloadCodec[T]

	arena   arena[T]
	root    nodeID
	header  store.TreeHeader
	trained *btree.BTreeG[uint64]
	pending []*Matchable[T]

	merges []MatchableMerge[T]
}

// MatchableMerge records a matchable absorbed by a resident during the last training call.
// Query is no longer part of the tree; QueryObject is its payload now held by Reference.
type MatchableMerge[T any] struct {
	Query       *Matchable[T]
	QueryObject T
	Reference   *Matchable[T]
}

func newTrainedSet() *btree.BTreeG[uint64] {
	return btree.NewBTreeG[uint64](func(a, b uint64) bool { return a < b })
}

// NewTree creates an empty tree. Uses DefaultConfig if cfg is nil.
func NewTree[T any](identifier uint64, cfg *Config) (*Tree[T], error) {
	if cfg != nil {
		c := *cfg
		cfg = &c
	}
	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tree[T]{
		cfg:     cfg,
		log:     cfg.Logger.WithField("tree", identifier),
		split:   newSplitParams(cfg),
		codec:   defaultCodec[T](),
		root:    noNode,
		header:  store.TreeHeader{Identifier: identifier},
		trained: newTrainedSet(),
	}
	return t, nil
}

// NewTreeFromMatchables builds a tree from one batch in a single pass. The batch is owned by
// the tree afterwards.
func NewTreeFromMatchables[T any](identifier uint64, batch []*Matchable[T], strategy SplittingStrategy, cfg *Config) (*Tree[T], error) {
	t, err := NewTree[T](identifier, cfg)
	if err != nil {
		return nil, err
	}
	return t, t.seed(batch, NewFullDescriptor(t.cfg.DescriptorBits), strategy)
}

// NewTreeFromMatchablesMasked is NewTreeFromMatchables restricted to the split bits set in mask.
func NewTreeFromMatchablesMasked[T any](identifier uint64, batch []*Matchable[T], mask Descriptor, strategy SplittingStrategy, cfg *Config) (*Tree[T], error) {
	t, err := NewTree[T](identifier, cfg)
	if err != nil {
		return nil, err
	}
	if mask.Bits() != t.cfg.DescriptorBits {
		return nil, errors.Wrapf(ErrDescriptorWidthMismatch, "bit mask has %d bits, tree uses %d",
			mask.Bits(), t.cfg.DescriptorBits)
	}
	return t, t.seed(batch, mask.Clone(), strategy)
}

// seed bulk builds the initial tree and records the batch identifier as its only training
// entry.
func (t *Tree[T]) seed(batch []*Matchable[T], mask Descriptor, strategy SplittingStrategy) error {
	if err := checkStrategy(strategy); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	if err := t.checkBatch(batch); err != nil {
		return err
	}
	for _, m := range batch {
		m.take()
	}
	t.build(batch, mask, strategy)
	t.trained.Set(batch[0].identifier)
	t.header.NumberOfTrainingEntries = uint64(t.trained.Len())
	return nil
}

// WithCodec sets the payload codec used by persistence and returns t.
func (t *Tree[T]) WithCodec(c PayloadCodec[T]) *Tree[T] {
	t.codec = c
	return t
}

// Config returns the tree configuration.
func (t *Tree[T]) Config() *Config {
	return t.cfg
}

// Identifier returns the tree identifier.
func (t *Tree[T]) Identifier() uint64 { return t.header.Identifier }

// Size returns the number of distinct trained identifiers.
func (t *Tree[T]) Size() int { return t.trained.Len() }

// TrainedIdentifiers returns the trained identifiers in ascending order.
func (t *Tree[T]) TrainedIdentifiers() []uint64 {
	ids := make([]uint64, 0, t.trained.Len())
	t.trained.Scan(func(id uint64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// NumberOfMatchablesUncompressed returns the number of entries integrated by training, before
// merging.
func (t *Tree[T]) NumberOfMatchablesUncompressed() uint64 {
	return t.header.NumberOfMatchablesUncompressed
}

// NumberOfMatchablesCompressed returns the number of matchables stored in leaves. Equal to
// the uncompressed count unless merging is enabled.
func (t *Tree[T]) NumberOfMatchablesCompressed() uint64 {
	return t.header.NumberOfMatchablesCompressed
}

// NumberOfPendingMatchables returns the number of matchables buffered for the next Train.
func (t *Tree[T]) NumberOfPendingMatchables() int { return len(t.pending) }

// NumberOfLeaves walks the tree and counts its leaves.
func (t *Tree[T]) NumberOfLeaves() int {
	return len(t.arena.leaves(t.root))
}

// Depth returns the depth of the deepest leaf, 0 for a single leaf or an empty tree.
func (t *Tree[T]) Depth() int {
	var d uint64
	for _, id := range t.arena.leaves(t.root) {
		if n := t.arena.at(id); n.header.Depth > d {
			d = n.header.Depth
		}
	}
	return int(d)
}

// Merges returns the merges performed by the last Train or MatchAndAdd call.
func (t *Tree[T]) Merges() []MatchableMerge[T] { return t.merges }

// NumberOfMergedMatchablesLastTraining returns len(Merges()).
func (t *Tree[T]) NumberOfMergedMatchablesLastTraining() int { return len(t.merges) }

// Clear releases every node and matchable, including buffered ones. The identifier is kept.
func (t *Tree[T]) Clear() {
	t.arena.reset()
	t.root = noNode
	t.trained = newTrainedSet()
	t.pending = nil
	t.merges = nil
	t.header = store.TreeHeader{Identifier: t.header.Identifier}
	t.cfg.Metrics.size(0, 0)
}

// build bulk builds the root from ms, which must already be owned by t.
func (t *Tree[T]) build(ms []*Matchable[T], mask Descriptor, strategy SplittingStrategy) {
	merge := t.cfg.MergeDescriptors
	t.root = t.arena.alloc(noNode, 0, mask, ms, merge)
	splits := t.arena.grow(t.root, strategy, t.split)
	t.header.NumberOfMatchablesCompressed = uint64(len(ms))
	t.header.NumberOfMatchablesUncompressed += weight(ms, merge)
	t.cfg.Metrics.added(len(ms))
	t.updateSize()
	t.log.WithFields(logrus.Fields{
		"matchables": len(ms),
		"strategy":   strategy,
		"splits":     splits,
	}).Debug("built tree")
}

// checkBatch validates descriptor widths and the single identifier of batch.
func (t *Tree[T]) checkBatch(batch []*Matchable[T]) error {
	id := batch[0].identifier
	for i, m := range batch {
		if m.descriptor.Bits() != t.cfg.DescriptorBits {
			return errors.Wrapf(ErrDescriptorWidthMismatch, "matchable %d has %d bits, tree uses %d",
				i, m.descriptor.Bits(), t.cfg.DescriptorBits)
		}
		if m.identifier != id {
			return errors.Wrapf(ErrMixedIdentifiers, "matchable %d has identifier %d, batch %d",
				i, m.identifier, id)
		}
	}
	return nil
}

func (t *Tree[T]) updateSize() {
	if t.cfg.Metrics == nil {
		return
	}
	t.cfg.Metrics.size(uint64(t.NumberOfLeaves()), t.header.NumberOfMatchablesCompressed)
}

func defaultCodec[T any]() PayloadCodec[T] {
	var zero T
	var c any
	switch any(zero).(type) {
	case uint64:
		c = Uint64Codec{}
	case uint32:
		c = Uint32Codec{}
	case Keypoint:
		c = KeypointCodec{}
	default:
		return nil
	}
	return c.(PayloadCodec[T])
}
