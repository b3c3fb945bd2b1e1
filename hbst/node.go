package hbst

import "github.com/ic-timon/hbst/hbst/store"

// nodeID addresses a node inside the tree's arena.
type nodeID int32

const noNode nodeID = -1

// node is either a leaf holding matchables or an internal node with a split bit and two
// children. Children are owned through their arena index; parent is a back reference.
type node[T any] struct {
	header   store.NodeHeader
	parent   nodeID
	left     nodeID // descriptors with the split bit unset
	right    nodeID // descriptors with the split bit set
	splitBit int32
	hasLeafs bool

	onBits       uint64  // matchables with the split bit set at split time
	partitioning float64 // achieved |0.5 - set fraction| of the split bit

	bitMask    Descriptor // bits still available below this node
	matchables []*Matchable[T]
}

// arena stores every node of a tree; indices are stable for the lifetime of the tree.
// Pointers returned by at are invalidated by alloc.
type arena[T any] struct {
	nodes []node[T]
}

func (a *arena[T]) alloc(parent nodeID, depth uint64, mask Descriptor, ms []*Matchable[T], merge bool) nodeID {
	id := nodeID(len(a.nodes))
	a.nodes = append(a.nodes, node[T]{
		header:     store.NodeHeader{Depth: depth},
		parent:     parent,
		left:       noNode,
		right:      noNode,
		splitBit:   -1,
		bitMask:    mask,
		matchables: ms,
	})
	n := &a.nodes[id]
	n.header.NumberOfMatchablesUncompressed = weight(ms, merge)
	n.header.NumberOfMatchablesCompressed = uint64(len(ms))
	return id
}

func (a *arena[T]) at(id nodeID) *node[T] { return &a.nodes[id] }

func (a *arena[T]) reset() { a.nodes = nil }

// weight counts the entries represented by ms: merged matchables count once per entry.
func weight[T any](ms []*Matchable[T], merge bool) uint64 {
	if !merge {
		return uint64(len(ms))
	}
	var n uint64
	for _, m := range ms {
		n += m.entries(merge)
	}
	return n
}

// descend routes d from root to its leaf. Returns noNode for an empty tree.
func (a *arena[T]) descend(root nodeID, d Descriptor) nodeID {
	cur := root
	for cur != noNode {
		n := &a.nodes[cur]
		if !n.hasLeafs {
			return cur
		}
		if d.Bit(int(n.splitBit)) {
			cur = n.right
		} else {
			cur = n.left
		}
	}
	return noNode
}

// leaves returns all leaves below root, left subtree first.
func (a *arena[T]) leaves(root nodeID) []nodeID {
	if root == noNode {
		return nil
	}
	var out []nodeID
	stack := []nodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &a.nodes[id]
		if n.hasLeafs {
			stack = append(stack, n.right, n.left)
			continue
		}
		out = append(out, id)
	}
	return out
}

// path returns the split bits from root down to id, terminated by the leaf's -1.
func (a *arena[T]) path(id nodeID) []int32 {
	var rev []int32
	for cur := id; cur != noNode; cur = a.nodes[cur].parent {
		rev = append(rev, a.nodes[cur].splitBit)
	}
	out := make([]int32, len(rev))
	for i, b := range rev {
		out[len(rev)-1-i] = b
	}
	return out
}
