package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ic-timon/hbst/popcnt"
	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	P50Ms float64
	P95Ms float64
	P99Ms float64
	AvgMs float64
	N     int
}

// StageARow 阶段 A 单行数据：切分参数寻优
type StageARow struct {
	Strategy        string
	MaxPartitioning float64
	SplitThreshold  uint64
	Matchables      uint64
	Leaves          int
	Depth           int
	BuildDurMs      float64
	MatchP50Ms      float64
	MatchP99Ms      float64
	Matches         int
	Correct         int
}

// StageBRow 阶段 B 单行数据：逐图像增量 MatchAndAdd
type StageBRow struct {
	Images       int
	Compressed   uint64
	Uncompressed uint64
	Leaves       int
	StepDurMs    float64
	Matches      int
	Merged       int
	HeapAllocMB  float64
}

// StageCRow 阶段 C 单行数据：并发只读查询
type StageCRow struct {
	Concurrency  int
	Queries      int
	QPS          float64
	MatchP50Ms   float64
	MatchP99Ms   float64
	NumGoroutine int
	P99P50Ratio  float64
}

// StageDRow 阶段 D 单行数据：持久化读写
type StageDRow struct {
	Matchables uint64
	FileBytes  int64
	SaveDurMs  float64
	LoadDurMs  float64
	Consistent bool
}

// RunInfo 一次压测运行的环境与指标汇总
type RunInfo struct {
	RunID      string             `json:"run_id"`
	Stage      string             `json:"stage"`
	Started    time.Time          `json:"started"`
	GoVersion  string             `json:"go_version"`
	CPU        string             `json:"cpu"`
	Popcount   string             `json:"popcount"`
	Prometheus map[string]float64 `json:"prometheus,omitempty"`
}

// NewRunInfo 采集当前机器信息
func NewRunInfo(stage string) *RunInfo {
	return &RunInfo{
		RunID:     uuid.NewString(),
		Stage:     stage,
		Started:   time.Now(),
		GoVersion: runtime.Version(),
		CPU:       cpuid.CPU.BrandName,
		Popcount:  popcnt.Desc(),
	}
}

// LatencyStatsFromDurations 从耗时列表计算 P50/P95/P99 与均值
func LatencyStatsFromDurations(durations []time.Duration) LatencyStats {
	if len(durations) == 0 {
		return LatencyStats{}
	}
	ms := make([]float64, len(durations))
	for i, d := range durations {
		ms[i] = float64(d.Nanoseconds()) / 1e6
	}
	sort.Float64s(ms)
	return LatencyStats{
		P50Ms: stat.Quantile(0.50, stat.Empirical, ms, nil),
		P95Ms: stat.Quantile(0.95, stat.Empirical, ms, nil),
		P99Ms: stat.Quantile(0.99, stat.Empirical, ms, nil),
		AvgMs: stat.Mean(ms, nil),
		N:     len(ms),
	}
}

// DurMs 转换为毫秒
func DurMs(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// WriteStageACSV 写入阶段 A 报告
func WriteStageACSV(rows []StageARow, path string) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Strategy,
			fmt.Sprintf("%.2f", r.MaxPartitioning),
			fmt.Sprintf("%d", r.SplitThreshold),
			fmt.Sprintf("%d", r.Matchables),
			fmt.Sprintf("%d", r.Leaves),
			fmt.Sprintf("%d", r.Depth),
			fmt.Sprintf("%.2f", r.BuildDurMs),
			fmt.Sprintf("%.3f", r.MatchP50Ms),
			fmt.Sprintf("%.3f", r.MatchP99Ms),
			fmt.Sprintf("%d", r.Matches),
			fmt.Sprintf("%d", r.Correct),
		})
	}
	return writeCSV(path, []string{"Strategy", "MaxPartitioning", "SplitThreshold", "Matchables", "Leaves", "Depth",
		"BuildDurMs", "MatchP50Ms", "MatchP99Ms", "Matches", "Correct"}, out)
}

// WriteStageBCSV 写入阶段 B 报告
func WriteStageBCSV(rows []StageBRow, path string) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", r.Images),
			fmt.Sprintf("%d", r.Compressed),
			fmt.Sprintf("%d", r.Uncompressed),
			fmt.Sprintf("%d", r.Leaves),
			fmt.Sprintf("%.2f", r.StepDurMs),
			fmt.Sprintf("%d", r.Matches),
			fmt.Sprintf("%d", r.Merged),
			fmt.Sprintf("%.2f", r.HeapAllocMB),
		})
	}
	return writeCSV(path, []string{"Images", "Compressed", "Uncompressed", "Leaves", "StepDurMs", "Matches",
		"Merged", "HeapAllocMB"}, out)
}

// WriteStageCCSV 写入阶段 C 报告
func WriteStageCCSV(rows []StageCRow, path string) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", r.Concurrency),
			fmt.Sprintf("%d", r.Queries),
			fmt.Sprintf("%.0f", r.QPS),
			fmt.Sprintf("%.3f", r.MatchP50Ms),
			fmt.Sprintf("%.3f", r.MatchP99Ms),
			fmt.Sprintf("%d", r.NumGoroutine),
			fmt.Sprintf("%.2f", r.P99P50Ratio),
		})
	}
	return writeCSV(path, []string{"Concurrency", "Queries", "QPS", "MatchP50Ms", "MatchP99Ms", "NumGoroutine",
		"P99P50Ratio"}, out)
}

// WriteStageDCSV 写入阶段 D 报告
func WriteStageDCSV(rows []StageDRow, path string) error {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			fmt.Sprintf("%d", r.Matchables),
			fmt.Sprintf("%d", r.FileBytes),
			fmt.Sprintf("%.2f", r.SaveDurMs),
			fmt.Sprintf("%.2f", r.LoadDurMs),
			fmt.Sprintf("%t", r.Consistent),
		})
	}
	return writeCSV(path, []string{"Matchables", "FileBytes", "SaveDurMs", "LoadDurMs", "Consistent"}, out)
}

// WriteJSON 写入 JSON 报告
func WriteJSON(v interface{}, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "write %s", path)
}

// ReportDir 报告输出目录
const ReportDir = "report"

// ReportPath 生成 report/ 目录下带时间戳的报告路径，ext 含点号
func ReportPath(prefix, ext string) string {
	return filepath.Join(ReportDir, prefix+time.Now().Format("20060102_150405")+ext)
}
