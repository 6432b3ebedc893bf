package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"
)

// BenchmarkResult 一次压缩基准的结果：吞吐与压缩效果
type BenchmarkResult struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`

	// 吞吐
	OpsPerSec   float64 `json:"ops_per_sec"`
	NsPerOp     int64   `json:"ns_per_op"`
	BytesPerSec float64 `json:"bytes_per_sec"` // 未压缩字节
	AllocBytes  int64   `json:"alloc_bytes"`
	Allocs      int64   `json:"allocs"`

	// 输入
	Dataset   string `json:"dataset"`
	DataSize  int    `json:"data_size"`  // 行数
	DataBytes int64  `json:"data_bytes"` // canonical 大小

	// 压缩效果
	CompressedSize   int64   `json:"compressed_size,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	Encoding         string  `json:"encoding,omitempty"` // 根节点编码
	Tree             string  `json:"tree,omitempty"`
	Depth            int     `json:"depth,omitempty"`

	// 压缩器参数
	MaxCascade  int `json:"max_cascade,omitempty"`
	Concurrency int `json:"concurrency,omitempty"`

	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	CPU       string `json:"cpu"`
}

// ResultSet 一次运行的全部结果
type ResultSet struct {
	Timestamp time.Time          `json:"timestamp"`
	Commit    string             `json:"commit,omitempty"`
	Version   string             `json:"version,omitempty"`
	Results   []*BenchmarkResult `json:"results"`
}

// NewResultSet 创建新的结果集
func NewResultSet() *ResultSet {
	return &ResultSet{Timestamp: time.Now()}
}

// Add 添加结果
func (rs *ResultSet) Add(r *BenchmarkResult) {
	rs.Results = append(rs.Results, r)
}

// Find returns the result with the given name.
func (rs *ResultSet) Find(name string) (*BenchmarkResult, bool) {
	for _, r := range rs.Results {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// DatasetSummary 按数据集汇总的压缩效果
type DatasetSummary struct {
	Dataset    string
	Runs       int
	MeanRatio  float64
	WorstRatio float64
	// Encodings 统计各根编码被选中的次数
	Encodings map[string]int
}

// Summarize 按数据集名称排序返回汇总
func (rs *ResultSet) Summarize() []DatasetSummary {
	byDataset := make(map[string]*DatasetSummary)
	for _, r := range rs.Results {
		s, ok := byDataset[r.Dataset]
		if !ok {
			s = &DatasetSummary{Dataset: r.Dataset, Encodings: make(map[string]int), WorstRatio: r.CompressionRatio}
			byDataset[r.Dataset] = s
		}
		s.Runs++
		s.MeanRatio += r.CompressionRatio
		s.WorstRatio = min(s.WorstRatio, r.CompressionRatio)
		s.Encodings[r.Encoding]++
	}
	out := make([]DatasetSummary, 0, len(byDataset))
	for _, s := range byDataset {
		s.MeanRatio /= float64(s.Runs)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dataset < out[j].Dataset })
	return out
}

// SaveToFile 以 JSON 保存，必要时创建目录
func (rs *ResultSet) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// LoadFromFile 从文件加载结果
func LoadFromFile(filename string) (*ResultSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var rs ResultSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return &rs, nil
}

// Compare 与基线比较
func (rs *ResultSet) Compare(baseline *ResultSet) *ComparisonReport {
	return CompareResults(baseline, rs)
}

// BenchmarkResultFromTesting fills the timing fields from r.
func BenchmarkResultFromTesting(name string, r testing.BenchmarkResult, dataBytes int64) *BenchmarkResult {
	res := &BenchmarkResult{
		Name:       name,
		Timestamp:  time.Now(),
		NsPerOp:    r.NsPerOp(),
		AllocBytes: r.AllocedBytesPerOp(),
		Allocs:     r.AllocsPerOp(),
		DataBytes:  dataBytes,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		CPU:        fmt.Sprintf("%d cores", runtime.NumCPU()),
	}
	if secs := r.T.Seconds(); secs > 0 {
		res.OpsPerSec = float64(r.N) / secs
		res.BytesPerSec = float64(dataBytes) * float64(r.N) / secs
	}
	return res
}
