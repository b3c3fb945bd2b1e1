// 压测入口：-stage a|b|c|d
package main

import (
	"flag"
	"fmt"

	"github.com/ic-timon/hbst/bench/metrics"
	"github.com/ic-timon/hbst/hbst"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type stageOpts struct {
	cfg      *hbst.Config
	log      logrus.FieldLogger
	images   int
	perImage int
	setBits  int
	noise    int
}

// treeConfig 复制基础配置，避免各轮压测互相影响
func (o stageOpts) treeConfig() *hbst.Config {
	c := *o.cfg
	return &c
}

func main() {
	stage := flag.String("stage", "", "压测阶段: a(切分参数寻优) | b(增量 MatchAndAdd) | c(高并发查询) | d(持久化读写)")
	configPath := flag.String("config", "", "HBST YAML 配置文件，为空时使用默认配置")
	images := flag.Int("images", 10, "训练图像数")
	perImage := flag.Int("per-image", 1000, "每张图像的描述子数")
	setBits := flag.Int("set-bits", 18, "每个描述子随机置位次数")
	noise := flag.Int("noise", 10, "查询描述子额外翻转的位数")
	verbose := flag.Bool("v", false, "输出 debug 日志")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := hbst.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("加载配置失败")
	}
	reg := prometheus.NewRegistry()
	cfg.Logger = log
	cfg.Metrics = hbst.NewMetrics(reg, "hbst")

	opts := stageOpts{
		cfg:      cfg,
		log:      log.WithField("stage", *stage),
		images:   *images,
		perImage: *perImage,
		setBits:  *setBits,
		noise:    *noise,
	}
	info := metrics.NewRunInfo(*stage)
	log.WithFields(logrus.Fields{
		"run_id":   info.RunID,
		"cpu":      info.CPU,
		"popcount": info.Popcount,
	}).Info("开始压测")

	switch *stage {
	case "a":
		runStageA(opts)
	case "b":
		runStageB(opts)
	case "c":
		runStageC(opts)
	case "d":
		runStageD(opts)
	default:
		log.Fatal("请指定 -stage a|b|c|d")
	}

	if info.Prometheus, err = metrics.Gather(reg); err != nil {
		log.WithError(err).Warn("采集 Prometheus 指标失败")
	}
	path := metrics.ReportPath("bench_run_"+*stage+"_", ".json")
	if err := metrics.WriteJSON(info, path); err != nil {
		log.WithError(err).Error("写入运行信息失败")
	}
	fmt.Println("压测完成")
}
