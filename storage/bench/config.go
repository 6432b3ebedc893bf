package bench

// BenchmarkConfig 基准测试配置
type BenchmarkConfig struct {
	// 数据规模
	DataSizes []int // 行数，如 [1000, 10000, 100000]

	// 数据集名称，见 Datasets
	Datasets []string

	// 级联深度
	MaxCascades []int // 如 [1, 3]

	// 分块并发度，1 表示直接压缩整个数组
	Parallelisms []int // 如 [1, 4]

	// 每个分块的行数
	ChunkRows int

	// 输出目录
	OutputDir string

	// 是否打印每条结果
	Verbose bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *BenchmarkConfig {
	return &BenchmarkConfig{
		DataSizes:    []int{1000, 10000, 100000},
		Datasets:     DatasetNames(),
		MaxCascades:  []int{3},
		Parallelisms: []int{1, 4},
		ChunkRows:    8192,
		OutputDir:    "bench_results",
		Verbose:      true,
	}
}
