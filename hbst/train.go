package hbst

import "github.com/sirupsen/logrus"

// placement is a matchable waiting to be appended to its leaf once routing is done.
type placement[T any] struct {
	leaf nodeID
	m    *Matchable[T]
}

// Add hands batch to the tree and trains it with strategy. All matchables must share one
// identifier; they are owned by the tree afterwards and must not be passed to it again.
// With DoNothing the batch is only buffered until the next Train.
func (t *Tree[T]) Add(batch []*Matchable[T], strategy SplittingStrategy) error {
	if len(batch) == 0 {
		return nil
	}
	if err := checkStrategy(strategy); err != nil {
		return err
	}
	if err := t.checkBatch(batch); err != nil {
		return err
	}
	for _, m := range batch {
		m.take()
	}
	t.trained.Set(batch[0].identifier)
	t.header.NumberOfTrainingEntries = uint64(t.trained.Len())
	t.pending = append(t.pending, batch...)
	return t.Train(strategy)
}

// Train integrates all buffered matchables. On an empty tree this is a bulk build; otherwise
// every matchable is routed to its leaf, appended (or merged into a resident when merging is
// enabled) and the touched leaves are re-split.
func (t *Tree[T]) Train(strategy SplittingStrategy) error {
	if err := checkStrategy(strategy); err != nil {
		return err
	}
	if len(t.pending) == 0 || strategy == DoNothing {
		return nil
	}
	pending := t.pending
	t.pending = nil
	t.merges = nil

	if t.root == noNode {
		t.build(pending, NewFullDescriptor(t.cfg.DescriptorBits), strategy)
		return nil
	}

	merge := t.cfg.MergeDescriptors
	absorbed := make(map[*Matchable[T]]struct{})
	placements := make([]placement[T], 0, len(pending))
	touched := newLeafSet()
	for _, m := range pending {
		leaf := t.arena.descend(t.root, m.descriptor)
		n := t.arena.at(leaf)
		if ref := t.mergeCandidate(n.matchables, m, absorbed); ref != nil {
			t.merges = append(t.merges, MatchableMerge[T]{Query: m, QueryObject: m.object, Reference: ref})
			absorbed[ref] = struct{}{}
		} else {
			placements = append(placements, placement[T]{leaf: leaf, m: m})
		}
		// 合并与否叶子都需要重新评估
		n.header.NumberOfMatchablesUncompressed += m.entries(merge)
		touched.add(leaf)
	}
	t.integrate(placements, touched, strategy)
	t.header.NumberOfMatchablesUncompressed += weight(pending, merge)

	t.log.WithFields(logrus.Fields{
		"matchables": len(pending),
		"merged":     len(t.merges),
		"leaves":     t.NumberOfLeaves(),
		"strategy":   strategy,
	}).Debug("trained tree")
	return nil
}

// MatchAndAdd matches batch against the current residents of the tree, per reference
// identifier, and then integrates the batch exactly like Add. Matches never include
// members of batch itself. On an empty tree the batch seeds the tree and no matches are
// returned.
func (t *Tree[T]) MatchAndAdd(batch []*Matchable[T], maxDistance uint32, strategy SplittingStrategy) (MatchMap[T], error) {
	if len(batch) == 0 {
		return MatchMap[T]{}, nil
	}
	if err := checkStrategy(strategy); err != nil {
		return nil, err
	}
	if err := t.checkBatch(batch); err != nil {
		return nil, err
	}
	for _, m := range batch {
		m.take()
	}
	identifier := batch[0].identifier
	t.merges = nil

	if t.root == noNode {
		t.build(batch, NewFullDescriptor(t.cfg.DescriptorBits), strategy)
		t.trained.Set(identifier)
		t.header.NumberOfTrainingEntries = uint64(t.trained.Len())
		return MatchMap[T]{}, nil
	}

	matches := t.newMatchMap(len(batch))
	merge := t.cfg.MergeDescriptors
	absorbed := make(map[*Matchable[T]]struct{})
	placements := make([]placement[T], 0, len(batch))
	touched := newLeafSet()
	best := make(map[uint64]*Match[T])
	for _, m := range batch {
		leaf := t.arena.descend(t.root, m.descriptor)
		n := t.arena.at(leaf)

		clear(best)
		matchExhaustive(m, n.matchables, maxDistance, best)
		for id, match := range best {
			matches[id] = append(matches[id], *match)
		}
		t.cfg.Metrics.scanned(len(n.matchables))

		if ref := t.mergeCandidate(n.matchables, m, absorbed); ref != nil {
			t.merges = append(t.merges, MatchableMerge[T]{Query: m, QueryObject: m.object, Reference: ref})
			absorbed[ref] = struct{}{}
		} else {
			placements = append(placements, placement[T]{leaf: leaf, m: m})
		}
		n.header.NumberOfMatchablesUncompressed += m.entries(merge)
		touched.add(leaf)
	}
	t.cfg.Metrics.queried("match_and_add", len(batch))
	t.integrate(placements, touched, strategy)
	t.header.NumberOfMatchablesUncompressed += weight(batch, merge)
	t.trained.Set(identifier)
	t.header.NumberOfTrainingEntries = uint64(t.trained.Len())

	t.log.WithFields(logrus.Fields{
		"identifier": identifier,
		"matchables": len(batch),
		"merged":     len(t.merges),
		"references": len(matches),
	}).Debug("matched and added batch")
	return matches, nil
}

// mergeCandidate returns the first resident within merge distance of m that has not
// absorbed a matchable in the current call and holds no entry for m's identifier, or nil.
func (t *Tree[T]) mergeCandidate(residents []*Matchable[T], m *Matchable[T], absorbed map[*Matchable[T]]struct{}) *Matchable[T] {
	if !t.cfg.MergeDescriptors {
		return nil
	}
	for _, ref := range residents {
		if _, ok := absorbed[ref]; ok {
			continue
		}
		if _, ok := ref.objects[m.identifier]; ok {
			continue
		}
		if ref.Distance(m) <= t.cfg.MaxMergeDistance {
			return ref
		}
	}
	return nil
}

// integrate applies the merges and placements collected during routing and re-splits the
// touched leaves.
func (t *Tree[T]) integrate(placements []placement[T], touched *leafSet, strategy SplittingStrategy) {
	for _, mg := range t.merges {
		mg.Reference.MergeSingle(mg.Query)
	}
	for _, p := range placements {
		n := t.arena.at(p.leaf)
		n.matchables = append(n.matchables, p.m)
	}
	splits := 0
	for _, leaf := range touched.order {
		splits += t.arena.grow(leaf, strategy, t.split)
	}
	t.header.NumberOfMatchablesCompressed += uint64(len(placements))
	t.cfg.Metrics.added(len(placements))
	t.cfg.Metrics.merged(len(t.merges))
	t.updateSize()
	if splits > 0 {
		t.log.WithField("splits", splits).Debug("spawned leaves")
	}
}

// leafSet keeps touched leaves in first-touch order.
type leafSet struct {
	seen  map[nodeID]struct{}
	order []nodeID
}

func newLeafSet() *leafSet {
	return &leafSet{seen: make(map[nodeID]struct{})}
}

func (s *leafSet) add(id nodeID) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}
