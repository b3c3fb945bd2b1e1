// 阶段 B: 逐图像增量 MatchAndAdd（容量增长、合并、单步耗时）
package main

import (
	"fmt"
	"time"

	"github.com/ic-timon/hbst/bench/gen"
	"github.com/ic-timon/hbst/bench/metrics"
	"github.com/ic-timon/hbst/hbst"
)

func runStageB(opts stageOpts) {
	cfg := opts.treeConfig()
	tree, err := hbst.NewTree[uint64](0, cfg)
	if err != nil {
		opts.log.WithError(err).Fatal("创建树失败")
	}

	// 奇数图像为前一张的带噪副本，模拟连续帧的重复观测
	bits := cfg.DescriptorBits
	var rows []metrics.StageBRow
	var prev []hbst.Descriptor
	for i := 0; i < opts.images; i++ {
		var ds []hbst.Descriptor
		if i%2 == 1 {
			ds = gen.Noisy(prev, opts.noise, int64(i))
		} else {
			ds = gen.RandomDescriptors(opts.perImage, bits, opts.setBits, int64(1000+i))
		}
		prev = ds

		t0 := time.Now()
		mm, err := tree.MatchAndAdd(gen.Matchables(ds, uint64(i)), cfg.MatchDistance, cfg.Strategy)
		if err != nil {
			opts.log.WithError(err).Fatal("MatchAndAdd 失败")
		}
		stepDur := time.Since(t0)

		matches := 0
		for _, ms := range mm {
			matches += len(ms)
		}
		row := metrics.StageBRow{
			Images:       tree.Size(),
			Compressed:   tree.NumberOfMatchablesCompressed(),
			Uncompressed: tree.NumberOfMatchablesUncompressed(),
			Leaves:       tree.NumberOfLeaves(),
			StepDurMs:    metrics.DurMs(stepDur),
			Matches:      matches,
			Merged:       tree.NumberOfMergedMatchablesLastTraining(),
			HeapAllocMB:  metrics.Take().HeapMB(),
		}
		rows = append(rows, row)
		fmt.Printf("阶段 B: 图像=%d 存储=%d/%d Leaves=%d Step=%.1fms 匹配=%d 合并=%d Heap=%.1fMB\n",
			row.Images, row.Compressed, row.Uncompressed, row.Leaves, row.StepDurMs, row.Matches, row.Merged, row.HeapAllocMB)
	}

	path := metrics.ReportPath("bench_report_stage_b_", ".csv")
	if err := metrics.WriteStageBCSV(rows, path); err != nil {
		opts.log.WithError(err).Error("写入报告失败")
		return
	}
	fmt.Printf("报告已写入 %s\n", path)
}
