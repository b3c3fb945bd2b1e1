package hbst

import (
	"runtime"
	"sync"
)

// matchJob 单个查询描述子的匹配任务
type matchJob[T any] struct {
	query       *Matchable[T]
	maxDistance uint32
	result      *Match[T]
	found       *bool
	wg          *sync.WaitGroup
}

// MatchPool is a resident worker pool answering single-best queries against one tree.
// The tree must not be mutated while the pool is in use.
type MatchPool[T any] struct {
	tree *Tree[T]
	jobs chan matchJob[T]
	wg   sync.WaitGroup
}

// NewMatchPool starts nWorkers workers (runtime.NumCPU() if <= 0).
func NewMatchPool[T any](tree *Tree[T], nWorkers, bufSize int) *MatchPool[T] {
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	p := &MatchPool[T]{
		tree: tree,
		jobs: make(chan matchJob[T], bufSize),
	}
	for i := 0; i < nWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *MatchPool[T]) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		*job.result, *job.found = p.tree.matchBest(job.query, job.maxDistance)
		job.wg.Done()
	}
}

// Match returns the same matches as Tree.Match, in query order.
func (p *MatchPool[T]) Match(query []*Matchable[T], maxDistance uint32) []Match[T] {
	if len(query) == 0 || p.tree.root == noNode {
		return nil
	}
	// width panics stay on the caller's goroutine
	for _, q := range query {
		p.tree.checkQuery(q)
	}
	results := make([]Match[T], len(query))
	found := make([]bool, len(query))
	var wg sync.WaitGroup
	wg.Add(len(query))
	for i, q := range query {
		p.jobs <- matchJob[T]{
			query:       q,
			maxDistance: maxDistance,
			result:      &results[i],
			found:       &found[i],
			wg:          &wg,
		}
	}
	wg.Wait()

	matches := results[:0]
	for i := range results {
		if found[i] {
			matches = append(matches, results[i])
		}
	}
	p.tree.cfg.Metrics.queried("match_parallel", len(query))
	return matches
}

// Close stops the workers.
func (p *MatchPool[T]) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// MatchParallel is Tree.Match spread over nWorkers goroutines with a short-lived pool.
func (t *Tree[T]) MatchParallel(query []*Matchable[T], maxDistance uint32, nWorkers int) []Match[T] {
	p := NewMatchPool(t, nWorkers, len(query))
	defer p.Close()
	return p.Match(query, maxDistance)
}
