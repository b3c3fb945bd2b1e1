package hbst

import "sort"

// Score is the matching score of a query set against one reference identifier.
type Score struct {
	NumberOfMatches     uint64
	MatchingRatio       float64
	IdentifierReference uint64
}

// ScoreVector holds one Score per trained identifier.
type ScoreVector []Score

// NumberOfMatches counts the queries whose leaf holds at least one resident strictly closer
// than maxDistance.
func (t *Tree[T]) NumberOfMatches(query []*Matchable[T], maxDistance uint32) uint64 {
	if len(query) == 0 || t.root == noNode {
		return 0
	}
	var count uint64
	for _, q := range query {
		n := t.leafOf(q)
		for _, ref := range n.matchables {
			if maxDistance > q.Distance(ref) {
				count++
				break
			}
		}
	}
	t.cfg.Metrics.queried("number_of_matches", len(query))
	return count
}

// MatchingRatio is NumberOfMatches divided by the number of queries; 0 for no queries.
func (t *Tree[T]) MatchingRatio(query []*Matchable[T], maxDistance uint32) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(t.NumberOfMatches(query, maxDistance)) / float64(len(query))
}

// NumberOfMatchesLazy is NumberOfMatches restricted to the first resident of each leaf.
func (t *Tree[T]) NumberOfMatchesLazy(query []*Matchable[T], maxDistance uint32) uint64 {
	if len(query) == 0 || t.root == noNode {
		return 0
	}
	var count uint64
	for _, q := range query {
		n := t.leafOf(q)
		if len(n.matchables) > 0 && maxDistance > q.Distance(n.matchables[0]) {
			count++
		}
	}
	t.cfg.Metrics.queried("number_of_matches_lazy", len(query))
	return count
}

// MatchingRatioLazy is NumberOfMatchesLazy divided by the number of queries.
func (t *Tree[T]) MatchingRatioLazy(query []*Matchable[T], maxDistance uint32) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(t.NumberOfMatchesLazy(query, maxDistance)) / float64(len(query))
}

// ScorePerImage counts, per trained identifier, the queries matched by at least one resident
// carrying that identifier. Each query counts at most once per identifier. With sortOutput
// the result is ordered by descending ratio, ties keeping identifier order.
func (t *Tree[T]) ScorePerImage(query []*Matchable[T], sortOutput bool, maxDistance uint32) ScoreVector {
	if len(query) == 0 {
		return ScoreVector{}
	}
	scores := make(ScoreVector, 0, t.trained.Len())
	index := make(map[uint64]int, t.trained.Len())
	t.trained.Scan(func(id uint64) bool {
		index[id] = len(scores)
		scores = append(scores, Score{IdentifierReference: id})
		return true
	})

	if t.root != noNode {
		matched := make(map[uint64]struct{})
		for _, q := range query {
			n := t.leafOf(q)
			clear(matched)
			for _, ref := range n.matchables {
				if q.Distance(ref) >= maxDistance {
					continue
				}
				for id := range ref.objects {
					if _, ok := matched[id]; ok {
						continue
					}
					i, ok := index[id]
					if !ok {
						continue
					}
					scores[i].NumberOfMatches++
					matched[id] = struct{}{}
				}
			}
		}
		t.cfg.Metrics.queried("score_per_image", len(query))
	}

	total := float64(len(query))
	for i := range scores {
		scores[i].MatchingRatio = float64(scores[i].NumberOfMatches) / total
	}
	if sortOutput {
		sort.SliceStable(scores, func(i, j int) bool {
			return scores[i].MatchingRatio > scores[j].MatchingRatio
		})
	}
	return scores
}
