package hbst

import "github.com/pkg/errors"

// Match is a query matchable together with its best reference(s). References holds more
// than one entry only for per-identifier matching when several residents tie at Distance.
type Match[T any] struct {
	Query            *Matchable[T]
	References       []*Matchable[T]
	ObjectQuery      T
	ObjectReferences []T
	Distance         uint32
}

// MatchMap maps a reference identifier to the matches found for it.
type MatchMap[T any] map[uint64][]Match[T]

// Match returns, for every query whose leaf holds a resident strictly closer than
// maxDistance, the closest such resident. The first resident found wins ties.
// Queries are never owned or modified by the tree. Like every query operation, Match
// panics with ErrDescriptorWidthMismatch on a query of another width than the tree.
func (t *Tree[T]) Match(query []*Matchable[T], maxDistance uint32) []Match[T] {
	if len(query) == 0 || t.root == noNode {
		return nil
	}
	matches := make([]Match[T], 0, len(query))
	for _, q := range query {
		if m, ok := t.matchBest(q, maxDistance); ok {
			matches = append(matches, m)
		}
	}
	t.cfg.Metrics.queried("match", len(query))
	return matches
}

func (t *Tree[T]) checkQuery(q *Matchable[T]) {
	if q.descriptor.Bits() != t.cfg.DescriptorBits {
		panic(errors.Wrapf(ErrDescriptorWidthMismatch, "query has %d bits, tree uses %d",
			q.descriptor.Bits(), t.cfg.DescriptorBits))
	}
}

// leafOf returns the leaf q descends to. The tree must not be empty.
func (t *Tree[T]) leafOf(q *Matchable[T]) *node[T] {
	t.checkQuery(q)
	return t.arena.at(t.arena.descend(t.root, q.descriptor))
}

func (t *Tree[T]) matchBest(q *Matchable[T], maxDistance uint32) (Match[T], bool) {
	n := t.leafOf(q)
	t.cfg.Metrics.scanned(len(n.matchables))
	var best *Matchable[T]
	bestDistance := maxDistance
	for _, ref := range n.matchables {
		if d := q.Distance(ref); d < bestDistance {
			best, bestDistance = ref, d
		}
	}
	if best == nil {
		return Match[T]{}, false
	}
	return Match[T]{
		Query:            q,
		References:       []*Matchable[T]{best},
		ObjectQuery:      q.firstObject(),
		ObjectReferences: []T{best.firstObject()},
		Distance:         bestDistance,
	}, true
}

// MatchLazy is Match restricted to the first resident of each reached leaf.
func (t *Tree[T]) MatchLazy(query []*Matchable[T], maxDistance uint32) []Match[T] {
	if len(query) == 0 || t.root == noNode {
		return nil
	}
	var matches []Match[T]
	for _, q := range query {
		n := t.leafOf(q)
		if len(n.matchables) == 0 {
			continue
		}
		ref := n.matchables[0]
		if d := q.Distance(ref); d < maxDistance {
			matches = append(matches, Match[T]{
				Query:            q,
				References:       []*Matchable[T]{ref},
				ObjectQuery:      q.firstObject(),
				ObjectReferences: []T{ref.firstObject()},
				Distance:         d,
			})
		}
	}
	t.cfg.Metrics.queried("match_lazy", len(query))
	return matches
}

// MatchPerImage returns, per trained identifier, the best matches of every query among the
// residents of its leaf. Best distances are tracked independently per reference identifier
// and tied residents are all kept. The map holds an entry, possibly empty, for every
// trained identifier.
func (t *Tree[T]) MatchPerImage(query []*Matchable[T], maxDistance uint32) MatchMap[T] {
	if len(query) == 0 || t.trained.Len() == 0 {
		return MatchMap[T]{}
	}
	matches := t.newMatchMap(len(query))
	if t.root == noNode {
		return matches
	}
	best := make(map[uint64]*Match[T])
	for _, q := range query {
		n := t.leafOf(q)
		t.cfg.Metrics.scanned(len(n.matchables))
		clear(best)
		matchExhaustive(q, n.matchables, maxDistance, best)
		for id, m := range best {
			matches[id] = append(matches[id], *m)
		}
	}
	t.cfg.Metrics.queried("match_per_image", len(query))
	return matches
}

// newMatchMap returns a map with an empty match list for every trained identifier.
func (t *Tree[T]) newMatchMap(capacity int) MatchMap[T] {
	matches := make(MatchMap[T], t.trained.Len())
	t.trained.Scan(func(id uint64) bool {
		matches[id] = make([]Match[T], 0, capacity)
		return true
	})
	return matches
}

// matchExhaustive scans residents and keeps, per reference identifier, the matches at the
// smallest distance strictly below maxDistance.
func matchExhaustive[T any](q *Matchable[T], residents []*Matchable[T], maxDistance uint32, best map[uint64]*Match[T]) {
	queryObject := q.object
	for _, ref := range residents {
		d := q.Distance(ref)
		if d >= maxDistance {
			continue
		}
		for id, obj := range ref.objects {
			cur, ok := best[id]
			switch {
			case !ok:
				best[id] = &Match[T]{
					Query:            q,
					References:       []*Matchable[T]{ref},
					ObjectQuery:      queryObject,
					ObjectReferences: []T{obj},
					Distance:         d,
				}
			case d < cur.Distance:
				cur.References = append(cur.References[:0], ref)
				cur.ObjectReferences = append(cur.ObjectReferences[:0], obj)
				cur.Distance = d
			case d == cur.Distance:
				cur.References = append(cur.References, ref)
				cur.ObjectReferences = append(cur.ObjectReferences, obj)
			}
		}
	}
}
