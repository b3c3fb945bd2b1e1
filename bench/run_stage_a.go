// 阶段 A: 切分策略与参数寻优（构建耗时、树形、匹配延迟、召回）
package main

import (
	"fmt"
	"time"

	"github.com/ic-timon/hbst/bench/gen"
	"github.com/ic-timon/hbst/bench/metrics"
	"github.com/ic-timon/hbst/hbst"
)

func runStageA(opts stageOpts) {
	const matchRuns = 20

	strategies := []hbst.SplittingStrategy{hbst.SplitEven, hbst.SplitUneven, hbst.SplitRandomUniform}
	partitioningList := []float64{0.05, 0.1, 0.25, 0.45}
	threshList := []uint64{50, 100, 200}

	bits := opts.cfg.DescriptorBits
	imgs := gen.Images(opts.images, opts.perImage, bits, opts.setBits, 42)
	query := gen.Matchables(gen.Noisy(imgs[0], opts.noise, 7), uint64(opts.images))

	var rows []metrics.StageARow
	for _, strategy := range strategies {
		for _, mp := range partitioningList {
			for _, thresh := range threshList {
				fmt.Printf("阶段 A: Strategy=%s MaxPartitioning=%.2f SplitThreshold=%d\n", strategy, mp, thresh)
				metrics.GC()

				cfg := opts.treeConfig()
				cfg.MaxPartitioning = mp
				cfg.SplitThreshold = thresh
				tree, err := hbst.NewTree[uint64](0, cfg)
				if err != nil {
					opts.log.WithError(err).Fatal("创建树失败")
				}

				t0 := time.Now()
				for i, img := range imgs {
					if err := tree.Add(gen.Matchables(img, uint64(i)), strategy); err != nil {
						opts.log.WithError(err).Fatal("训练失败")
					}
				}
				buildDur := time.Since(t0)

				durations := make([]time.Duration, matchRuns)
				var matches []hbst.Match[uint64]
				for i := 0; i < matchRuns; i++ {
					t1 := time.Now()
					matches = tree.Match(query, cfg.MatchDistance)
					durations[i] = time.Since(t1)
				}
				stats := metrics.LatencyStatsFromDurations(durations)

				row := metrics.StageARow{
					Strategy:        strategy.String(),
					MaxPartitioning: mp,
					SplitThreshold:  thresh,
					Matchables:      tree.NumberOfMatchablesCompressed(),
					Leaves:          tree.NumberOfLeaves(),
					Depth:           tree.Depth(),
					BuildDurMs:      metrics.DurMs(buildDur),
					MatchP50Ms:      stats.P50Ms,
					MatchP99Ms:      stats.P99Ms,
					Matches:         len(matches),
					Correct:         countCorrect(matches),
				}
				rows = append(rows, row)
				fmt.Printf("  Build=%.0fms Leaves=%d Depth=%d MatchP50=%.2fms P99=%.2fms 匹配=%d 正确=%d\n",
					row.BuildDurMs, row.Leaves, row.Depth, row.MatchP50Ms, row.MatchP99Ms, row.Matches, row.Correct)
			}
		}
	}

	path := metrics.ReportPath("bench_report_stage_a_", ".csv")
	if err := metrics.WriteStageACSV(rows, path); err != nil {
		opts.log.WithError(err).Error("写入报告失败")
		return
	}
	fmt.Printf("报告已写入 %s\n", path)
}

// countCorrect 统计命中原始图像 0 中同一下标描述子的匹配数
func countCorrect(matches []hbst.Match[uint64]) int {
	n := 0
	for _, m := range matches {
		if m.References[0].Identifier() == 0 && m.ObjectReferences[0] == m.ObjectQuery {
			n++
		}
	}
	return n
}
