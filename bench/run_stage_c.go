// 阶段 C: 高并发只读查询（单树并发 Match 与 MatchPool 对比）
package main

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ic-timon/hbst/bench/gen"
	"github.com/ic-timon/hbst/bench/metrics"
	"github.com/ic-timon/hbst/hbst"
)

func runStageC(opts stageOpts) {
	const totalRequests = 2000
	concurrencyList := []int{1, 4, 8, 16, 32}

	cfg := opts.treeConfig()
	tree, err := hbst.NewTree[uint64](0, cfg)
	if err != nil {
		opts.log.WithError(err).Fatal("创建树失败")
	}
	bits := cfg.DescriptorBits
	imgs := gen.Images(opts.images, opts.perImage, bits, opts.setBits, 99)
	for i, img := range imgs {
		if err := tree.Add(gen.Matchables(img, uint64(i)), cfg.Strategy); err != nil {
			opts.log.WithError(err).Fatal("训练失败")
		}
	}

	// 每个请求是单个描述子的查询
	noisy := gen.Noisy(imgs[0], opts.noise, 5)
	queries := make([][]*hbst.Matchable[uint64], totalRequests)
	for i := range queries {
		j := i % len(noisy)
		queries[i] = gen.Matchables(noisy[j:j+1], uint64(opts.images))
	}

	var rows []metrics.StageCRow
	for _, concurrency := range concurrencyList {
		metrics.GC()
		t0 := time.Now()
		durations := runMatchTree(tree, queries, cfg.MatchDistance, concurrency)
		elapsed := time.Since(t0).Seconds()
		rows = append(rows, stageCRow(concurrency, durations, elapsed))
		r := rows[len(rows)-1]
		fmt.Printf("阶段 C: 并发=%d QPS=%.0f P50=%.3fms P99=%.3fms P99/P50=%.2f\n",
			concurrency, r.QPS, r.MatchP50Ms, r.MatchP99Ms, r.P99P50Ratio)
	}

	// 整批查询走 MatchPool
	batch := gen.Matchables(noisy, uint64(opts.images))
	for _, workers := range concurrencyList {
		pool := hbst.NewMatchPool(tree, workers, 2*workers)
		t0 := time.Now()
		matches := pool.Match(batch, cfg.MatchDistance)
		elapsed := time.Since(t0)
		pool.Close()
		fmt.Printf("阶段 C: MatchPool workers=%d 批量=%d 耗时=%.2fms 匹配=%d\n",
			workers, len(batch), metrics.DurMs(elapsed), len(matches))
	}

	path := metrics.ReportPath("bench_report_stage_c_", ".csv")
	if err := metrics.WriteStageCCSV(rows, path); err != nil {
		opts.log.WithError(err).Error("写入报告失败")
		return
	}
	fmt.Printf("报告已写入 %s\n", path)
}

func stageCRow(concurrency int, durations []time.Duration, elapsedSec float64) metrics.StageCRow {
	stats := metrics.LatencyStatsFromDurations(durations)
	ratio := 0.0
	if stats.P50Ms > 0 {
		ratio = stats.P99Ms / stats.P50Ms
	}
	return metrics.StageCRow{
		Concurrency:  concurrency,
		Queries:      len(durations),
		QPS:          float64(len(durations)) / elapsedSec,
		MatchP50Ms:   stats.P50Ms,
		MatchP99Ms:   stats.P99Ms,
		NumGoroutine: runtime.NumGoroutine(),
		P99P50Ratio:  ratio,
	}
}

// runMatchTree 按 worker 均分请求并发执行 Match，返回每个请求的耗时
func runMatchTree(tree *hbst.Tree[uint64], queries [][]*hbst.Matchable[uint64], maxDistance uint32, concurrency int) []time.Duration {
	total := len(queries)
	durations := make([]time.Duration, total)
	var wg sync.WaitGroup
	for c := 0; c < concurrency; c++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < total; i += concurrency {
				t1 := time.Now()
				tree.Match(queries[i], maxDistance)
				durations[i] = time.Since(t1)
			}
		}(c)
	}
	wg.Wait()
	return durations
}
