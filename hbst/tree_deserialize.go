package hbst

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/ic-timon/hbst/hbst/store"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
)

// countingReader tracks the number of bytes consumed for io.ReaderFrom.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// leafRecord is one parsed leaf before the topology is rebuilt.
type leafRecord[T any] struct {
	header     store.NodeHeader
	path       []int32
	matchables []*Matchable[T]
}

// ReadFrom replaces the content of t with a database read from r. On error t is left
// unchanged. The tree identifier is taken from the database. The returned count covers
// the database bytes only. Readers that implement io.ByteReader are read exactly up to the
// end of the database; others are buffered and may be read past it.
func (t *Tree[T]) ReadFrom(r io.Reader) (int64, error) {
	if t.codec == nil {
		return 0, ErrNoCodec
	}
	if _, ok := r.(io.ByteReader); !ok {
		r = bufio.NewReader(r)
	}
	cr := &countingReader{r: r}
	header, trained, leaves, err := t.parse(cr)
	if err != nil {
		return cr.n, err
	}
	var a arena[T]
	root, err := t.rebuild(&a, leaves)
	if err != nil {
		return cr.n, err
	}

	// swap only once everything is consistent
	t.arena = a
	t.root = root
	t.header = header
	t.trained = trained
	t.pending = nil
	t.merges = nil
	t.log = t.cfg.Logger.WithField("tree", header.Identifier)
	t.updateSize()
	return cr.n, nil
}

func (t *Tree[T]) parse(r io.Reader) (store.TreeHeader, *btree.BTreeG[uint64], []leafRecord[T], error) {
	var header store.TreeHeader
	if err := store.ReadEndianness(r); err != nil {
		return header, nil, nil, err
	}
	header, err := store.ReadTreeHeader(r)
	if err != nil {
		return header, nil, nil, err
	}

	trained := newTrainedSet()
	var word [8]byte
	for i := uint64(0); i < header.NumberOfTrainingEntries; i++ {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return header, nil, nil, errors.Wrap(err, "read trained identifiers")
		}
		trained.Set(binary.LittleEndian.Uint64(word[:]))
	}
	if uint64(trained.Len()) != header.NumberOfTrainingEntries {
		return header, nil, nil, errors.Wrap(ErrInconsistentDatabase, "duplicate trained identifiers")
	}

	bits := t.cfg.DescriptorBits
	descriptorBytes := bits / 8
	payloadBytes := t.codec.Size()
	raw := make([]byte, descriptorBytes+8)
	entry := make([]byte, 8+payloadBytes)

	var leaves []leafRecord[T]
	var read uint64
	for i := uint64(0); i < header.NumberOfLeafs; i++ {
		h, err := store.ReadNodeHeader(r)
		if err != nil {
			return header, nil, nil, err
		}
		if h.Depth > uint64(bits) {
			return header, nil, nil, errors.Wrapf(ErrInconsistentDatabase, "leaf %d depth %d exceeds %d bits", i, h.Depth, bits)
		}
		if h.NumberOfMatchablesCompressed == 0 {
			return header, nil, nil, errors.Wrapf(ErrInconsistentDatabase, "leaf %d is empty", i)
		}
		path := make([]int32, h.Depth+1)
		if err := binary.Read(r, binary.LittleEndian, path); err != nil {
			return header, nil, nil, errors.Wrap(err, "read bit index order")
		}
		if path[h.Depth] != store.SplitBitSentinel {
			return header, nil, nil, errors.Wrapf(ErrInconsistentDatabase, "leaf %d bit index order not terminated", i)
		}

		ms := make([]*Matchable[T], 0, min(h.NumberOfMatchablesCompressed, 1<<16))
		for j := uint64(0); j < h.NumberOfMatchablesCompressed; j++ {
			if _, err := io.ReadFull(r, raw); err != nil {
				return header, nil, nil, errors.Wrap(err, "read matchable data")
			}
			d := DescriptorFromBytes(raw[:descriptorBytes])
			count := binary.LittleEndian.Uint64(raw[descriptorBytes:])
			if count == 0 {
				return header, nil, nil, errors.Wrapf(ErrInconsistentDatabase, "matchable without objects in leaf %d", i)
			}
			objects := make(map[uint64]T, min(count, 1<<10))
			for k := uint64(0); k < count; k++ {
				if _, err := io.ReadFull(r, entry); err != nil {
					return header, nil, nil, errors.Wrap(err, "read object data")
				}
				objects[binary.LittleEndian.Uint64(entry[:8])] = t.codec.Get(entry[8:])
			}
			m := NewMatchableFromObjects(objects, d)
			m.owned = true
			ms = append(ms, m)
		}
		read += uint64(len(ms))
		leaves = append(leaves, leafRecord[T]{header: h, path: path, matchables: ms})
	}
	if read != header.NumberOfMatchablesCompressed {
		return header, nil, nil, errors.Wrapf(ErrInconsistentDatabase,
			"number of loaded matchables %d inconsistent with header %d", read, header.NumberOfMatchablesCompressed)
	}
	return header, trained, leaves, nil
}

// rebuild replays the bit index order of every leaf, allocating the shared path prefixes
// on demand. Directions are taken from a resident descriptor.
func (t *Tree[T]) rebuild(a *arena[T], leaves []leafRecord[T]) (nodeID, error) {
	if len(leaves) == 0 {
		return noNode, nil
	}
	bits := t.cfg.DescriptorBits
	merge := t.cfg.MergeDescriptors
	root := a.alloc(noNode, 0, NewFullDescriptor(bits), nil, merge)
	for i, leaf := range leaves {
		sample := leaf.matchables[len(leaf.matchables)-1].descriptor
		cur := root
		for depth := uint64(0); depth < leaf.header.Depth; depth++ {
			bit := leaf.path[depth]
			n := a.at(cur)
			if n.matchables != nil || bit < 0 || int(bit) >= bits {
				return noNode, errors.Wrapf(ErrInconsistentDatabase, "leaf %d invalid split bit %d at depth %d", i, bit, depth)
			}
			if !n.hasLeafs {
				if !n.bitMask.Bit(int(bit)) {
					return noNode, errors.Wrapf(ErrInconsistentDatabase, "leaf %d reuses split bit %d", i, bit)
				}
				mask := n.bitMask.Clone()
				mask.Clear(int(bit))
				n.hasLeafs = true
				n.splitBit = bit
				right := a.alloc(cur, depth+1, mask, nil, merge)
				left := a.alloc(cur, depth+1, mask.Clone(), nil, merge)
				n = a.at(cur)
				n.right, n.left = right, left
			} else if n.splitBit != bit {
				return noNode, errors.Wrapf(ErrInconsistentDatabase, "leaf %d split bit %d conflicts with %d at depth %d",
					i, bit, n.splitBit, depth)
			}
			if sample.Bit(int(bit)) {
				cur = n.right
			} else {
				cur = n.left
			}
		}
		n := a.at(cur)
		if n.hasLeafs || n.matchables != nil {
			return noNode, errors.Wrapf(ErrInconsistentDatabase, "leaf %d collides with an existing node", i)
		}
		n.matchables = leaf.matchables
		n.header.NumberOfMatchablesUncompressed = leaf.header.NumberOfMatchablesUncompressed
		n.header.NumberOfMatchablesCompressed = uint64(len(leaf.matchables))
	}

	var total uint64
	for _, id := range a.leaves(root) {
		n := a.at(id)
		if len(n.matchables) == 0 {
			return noNode, errors.Wrap(ErrInconsistentDatabase, "unable to reconstruct tree with read matchables")
		}
		total += uint64(len(n.matchables))
	}
	if total != uint64(countMatchables(leaves)) {
		return noNode, errors.Wrap(ErrInconsistentDatabase, "reconstructed matchable count mismatch")
	}
	return root, nil
}

func countMatchables[T any](leaves []leafRecord[T]) int {
	n := 0
	for _, l := range leaves {
		n += len(l.matchables)
	}
	return n
}
