// 阶段 D: 持久化读写（SaveToAtomic 与 mmap 加载），并校验加载后匹配结果一致
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ic-timon/hbst/bench/gen"
	"github.com/ic-timon/hbst/bench/metrics"
	"github.com/ic-timon/hbst/hbst"
)

func runStageD(opts stageOpts) {
	const runs = 5

	cfg := opts.treeConfig()
	bits := cfg.DescriptorBits
	imgs := gen.Images(opts.images, opts.perImage, bits, opts.setBits, 2024)
	query := gen.Matchables(gen.Noisy(imgs[0], opts.noise, 11), uint64(opts.images))

	tmpPath := filepath.Join(os.TempDir(), "hbst-stage-d.db")
	defer os.Remove(tmpPath)

	tree, err := hbst.NewTree[uint64](0, cfg)
	if err != nil {
		opts.log.WithError(err).Fatal("创建树失败")
	}

	var rows []metrics.StageDRow
	for i, img := range imgs {
		if err := tree.Add(gen.Matchables(img, uint64(i)), cfg.Strategy); err != nil {
			opts.log.WithError(err).Fatal("训练失败")
		}
		want := tree.ScorePerImage(query, true, cfg.MatchDistance)

		var saveSum, loadSum time.Duration
		consistent := true
		for r := 0; r < runs; r++ {
			t0 := time.Now()
			if err := tree.SaveToAtomic(tmpPath); err != nil {
				opts.log.WithError(err).Fatal("保存失败")
			}
			saveSum += time.Since(t0)

			t1 := time.Now()
			loaded, err := hbst.NewTreeFromFile[uint64](tmpPath, opts.treeConfig())
			if err != nil {
				opts.log.WithError(err).Fatal("加载失败")
			}
			loadSum += time.Since(t1)
			consistent = consistent && sameScores(want, loaded.ScorePerImage(query, true, cfg.MatchDistance))
		}

		st, err := os.Stat(tmpPath)
		if err != nil {
			opts.log.WithError(err).Fatal("读取文件信息失败")
		}
		row := metrics.StageDRow{
			Matchables: tree.NumberOfMatchablesCompressed(),
			FileBytes:  st.Size(),
			SaveDurMs:  metrics.DurMs(saveSum) / runs,
			LoadDurMs:  metrics.DurMs(loadSum) / runs,
			Consistent: consistent,
		}
		rows = append(rows, row)
		fmt.Printf("阶段 D: 描述子=%d 文件=%.1fKB Save=%.2fms Load=%.2fms 一致=%t (avg of %d runs)\n",
			row.Matchables, float64(row.FileBytes)/1024, row.SaveDurMs, row.LoadDurMs, row.Consistent, runs)
		if !consistent {
			opts.log.WithField("matchables", row.Matchables).Warn("加载后评分与内存树不一致")
		}
	}

	path := metrics.ReportPath("bench_report_stage_d_", ".csv")
	if err := metrics.WriteStageDCSV(rows, path); err != nil {
		opts.log.WithError(err).Error("写入报告失败")
		return
	}
	fmt.Printf("报告已写入 %s\n", path)
}

func sameScores(a, b hbst.ScoreVector) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
