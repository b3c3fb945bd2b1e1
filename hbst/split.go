package hbst

import (
	"math"
	"math/rand"
)

// splitParams carries the configuration threaded through every splitting call.
type splitParams struct {
	bits            int
	maxDepth        uint64
	splitThreshold  uint64
	maxPartitioning float64
	merge           bool
	rng             *rand.Rand
	metrics         *Metrics
}

func newSplitParams(cfg *Config) *splitParams {
	return &splitParams{
		bits:            cfg.DescriptorBits,
		maxDepth:        uint64(cfg.MaxDepth),
		splitThreshold:  cfg.SplitThreshold,
		maxPartitioning: cfg.MaxPartitioning,
		merge:           cfg.MergeDescriptors,
		rng:             rand.New(rand.NewSource(cfg.Seed)),
		metrics:         cfg.Metrics,
	}
}

// grow splits id and, recursively, every child it spawns. Returns the number of splits.
func (a *arena[T]) grow(id nodeID, s SplittingStrategy, p *splitParams) int {
	splits := 0
	stack := []nodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !a.spawnLeafs(cur, s, p) {
			continue
		}
		splits++
		n := a.at(cur)
		// right subtree first
		stack = append(stack, n.left, n.right)
	}
	return splits
}

// spawnLeafs tries to turn leaf id into an internal node with two children.
func (a *arena[T]) spawnLeafs(id nodeID, s SplittingStrategy, p *splitParams) bool {
	n := a.at(id)
	if n.hasLeafs {
		return false
	}
	n.header.NumberOfMatchablesCompressed = uint64(len(n.matchables))

	if n.header.Depth >= p.maxDepth {
		return false
	}
	if n.header.NumberOfMatchablesUncompressed < p.splitThreshold || len(n.matchables) == 0 {
		return false
	}

	bit, onBits, partitioning, ok := chooseSplitBit(n, s, p)
	if !ok {
		return false
	}
	// 退化划分（一侧为空）不分裂
	if onBits == 0 || onBits >= uint64(len(n.matchables)) {
		return false
	}

	mask := n.bitMask.Clone()
	mask.Clear(bit)
	ones := make([]*Matchable[T], 0, onBits)
	zeros := make([]*Matchable[T], 0, uint64(len(n.matchables))-onBits)
	for _, m := range n.matchables {
		if m.descriptor.Bit(bit) {
			ones = append(ones, m)
		} else {
			zeros = append(zeros, m)
		}
	}

	n.hasLeafs = true
	n.splitBit = int32(bit)
	n.onBits = onBits
	n.partitioning = partitioning
	n.matchables = nil
	n.header.NumberOfMatchablesCompressed = 0
	depth := n.header.Depth + 1

	right := a.alloc(id, depth, mask, ones, p.merge)
	left := a.alloc(id, depth, mask, zeros, p.merge)
	n = a.at(id)
	n.right = right
	n.left = left
	p.metrics.split()
	return true
}

// chooseSplitBit selects the split bit for leaf n according to s and reports whether the
// achieved partitioning is acceptable.
func chooseSplitBit[T any](n *node[T], s SplittingStrategy, p *splitParams) (bit int, onBits uint64, partitioning float64, ok bool) {
	bit = -1
	switch s {
	case DoNothing:
		return -1, 0, 0, false

	case SplitEven:
		partitioning = p.maxPartitioning
		for b := 0; b < p.bits; b++ {
			if !n.bitMask.Bit(b) {
				continue
			}
			frac, set := setBitFraction(n, b, p.merge)
			cur := math.Abs(0.5 - frac)
			if cur < partitioning {
				partitioning, onBits, bit = cur, set, b
				if partitioning == 0 {
					break
				}
			}
		}
		return bit, onBits, partitioning, bit != -1 && partitioning < p.maxPartitioning

	case SplitUneven:
		partitioning = 0
		for b := 0; b < p.bits; b++ {
			if !n.bitMask.Bit(b) {
				continue
			}
			frac, set := setBitFraction(n, b, p.merge)
			// all-or-nothing bits cannot split
			if set == 0 || set == uint64(len(n.matchables)) {
				continue
			}
			if cur := math.Abs(0.5 - frac); cur > partitioning {
				partitioning, onBits, bit = cur, set, b
			}
		}
		// accepted when more imbalanced than maxPartitioning
		return bit, onBits, partitioning, bit != -1 && partitioning > p.maxPartitioning

	case SplitRandomUniform:
		available := make([]int, 0, p.bits)
		for b := 0; b < p.bits; b++ {
			if n.bitMask.Bit(b) {
				available = append(available, b)
			}
		}
		if len(available) == 0 {
			return -1, 0, 0, false
		}
		bit = available[p.rng.Intn(len(available))]
		frac, set := setBitFraction(n, bit, p.merge)
		partitioning = math.Abs(0.5 - frac)
		return bit, set, partitioning, partitioning < p.maxPartitioning

	default:
		// rejected by checkStrategy before any mutation
		panic(ErrUnknownStrategy)
	}
}

// setBitFraction returns the weighted fraction of entries with bit b set and the number of
// matchables (not entries) with the bit set.
func setBitFraction[T any](n *node[T], b int, merge bool) (float64, uint64) {
	var weighted, actual uint64
	for _, m := range n.matchables {
		if m.descriptor.Bit(b) {
			actual++
			if merge {
				weighted += m.numberOfObjects
			} else {
				weighted++
			}
		}
	}
	return float64(weighted) / float64(n.header.NumberOfMatchablesUncompressed), actual
}
