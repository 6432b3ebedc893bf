package bench

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/compressor"
)

// Runner 基准测试运行器
type Runner struct {
	Config    *BenchmarkConfig
	ResultSet *ResultSet
	OutputDir string

	// benchmark 计时函数，测试中可替换
	benchmark func(f func(b *testing.B)) testing.BenchmarkResult
}

// NewRunner 创建新的运行器
func NewRunner(cfg *BenchmarkConfig) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Runner{
		Config:    cfg,
		ResultSet: NewResultSet(),
		OutputDir: cfg.OutputDir,
		benchmark: testing.Benchmark,
	}
}

// RunAll 运行所有基准测试并保存结果
func (r *Runner) RunAll(ctx context.Context) (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	outputFile := filepath.Join(r.OutputDir, fmt.Sprintf("bench_%s.json", timestamp))

	for _, name := range r.Config.Datasets {
		for _, size := range r.Config.DataSizes {
			a, err := Generate(name, size, 1)
			if err != nil {
				return "", err
			}
			for _, depth := range r.Config.MaxCascades {
				for _, par := range r.Config.Parallelisms {
					if err := ctx.Err(); err != nil {
						return "", err
					}
					res, err := r.runOne(ctx, name, a, depth, par)
					if err != nil {
						return "", fmt.Errorf("%s/size=%d: %w", name, size, err)
					}
					r.ResultSet.Add(res)
					if r.Config.Verbose {
						fmt.Printf("%-60s %8.2fx %12.0f ops/s  %s\n", res.Name, res.CompressionRatio, res.OpsPerSec, res.Encoding)
					}
				}
			}
		}
	}

	if r.Config.Verbose {
		for _, s := range r.ResultSet.Summarize() {
			fmt.Printf("%-20s runs=%d mean=%.2fx worst=%.2fx encodings=%v\n", s.Dataset, s.Runs, s.MeanRatio, s.WorstRatio, s.Encodings)
		}
	}

	// 保存结果
	if err := r.ResultSet.SaveToFile(outputFile); err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}
	return outputFile, nil
}

// runOne 压缩一次得到压缩树，再计时重复压缩
func (r *Runner) runOne(ctx context.Context, dataset string, a array.Array, depth, par int) (*BenchmarkResult, error) {
	c, err := compressor.New(compressor.WithMaxCascade(depth), compressor.WithParallelism(par))
	if err != nil {
		return nil, err
	}
	compress := func(a array.Array) (*compressor.CompressionTree, error) {
		if par <= 1 || a.Len() <= r.Config.ChunkRows {
			_, tree, err := c.Compress(a, nil)
			return tree, err
		}
		chunked, err := Chunk(a, r.Config.ChunkRows)
		if err != nil {
			return nil, err
		}
		_, tree, err := c.CompressChunked(ctx, chunked)
		return tree, err
	}

	tree, err := compress(a)
	if err != nil {
		return nil, err
	}
	dataBytes := int64(array.NBytes(a))
	var runErr error
	br := r.benchmark(func(b *testing.B) {
		b.ReportAllocs()
		b.SetBytes(dataBytes)
		for i := 0; i < b.N; i++ {
			if _, err := compress(a); err != nil {
				runErr = err
				b.FailNow()
			}
		}
	})
	if runErr != nil {
		return nil, runErr
	}

	name := fmt.Sprintf("%s/size=%d/cascade=%d/par=%d", dataset, a.Len(), depth, par)
	res := BenchmarkResultFromTesting(name, br, dataBytes)
	res.Dataset = dataset
	res.DataSize = a.Len()
	res.CompressedSize = int64(tree.NBytes)
	if tree.NBytes > 0 {
		res.CompressionRatio = float64(dataBytes) / float64(tree.NBytes)
	}
	res.Encoding = rootEncoding(tree)
	res.Tree = tree.String()
	res.Depth = tree.Depth()
	res.MaxCascade = depth
	res.Concurrency = par
	return res, nil
}

// Chunk splits a into chunks of at most rows values.
func Chunk(a array.Array, rows int) (*array.ChunkedArray, error) {
	var chunks []array.Array
	for start := 0; start < a.Len(); start += rows {
		s, err := array.Slice(a, start, min(start+rows, a.Len()))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, s)
	}
	return array.NewChunkedArray(a.DataType(), chunks)
}

func rootEncoding(t *compressor.CompressionTree) string {
	if t.Canonical() {
		return "canonical"
	}
	if t.Encoding == array.ChunkedID && len(t.Children) > 0 {
		return rootEncoding(t.Children[0])
	}
	return string(t.Encoding)
}

// CompareWithBaseline 与基线比较
func (r *Runner) CompareWithBaseline(baselineFile string) (*ComparisonReport, error) {
	baseline, err := LoadFromFile(baselineFile)
	if err != nil {
		return nil, err
	}

	return r.ResultSet.Compare(baseline), nil
}
