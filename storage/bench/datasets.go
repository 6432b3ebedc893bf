package bench

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
)

// Dataset 生成指定行数的测试数组，同一 seed 结果相同
type Dataset func(n int, seed int64) (array.Array, error)

var datasets = map[string]Dataset{
	"int64_random":     int64Random,
	"int64_sequential": int64Sequential,
	"int64_repeated":   int64Repeated,
	"int32_runs":       int32Runs,
	"float64_prices":   float64Prices,
	"float64_random":   float64Random,
	"utf8_urls":        utf8URLs,
	"timestamp_micros": timestampMicros,
	"sparse_nulls":     sparseNulls,
}

// DatasetNames returns the registered dataset names in sorted order.
func DatasetNames() []string {
	names := make([]string, 0, len(datasets))
	for name := range datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate builds the named dataset.
func Generate(name string, n int, seed int64) (array.Array, error) {
	gen, ok := datasets[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset %q", name)
	}
	return gen(n, seed)
}

func int64Random(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]int64, n)
	for i := range data {
		data[i] = rng.Int63()
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func int64Sequential(n int, _ int64) (array.Array, error) {
	data := make([]int64, n)
	for i := range data {
		data[i] = int64(i) + 1_000_000
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func int64Repeated(n int, _ int64) (array.Array, error) {
	data := make([]int64, n)
	for i := range data {
		data[i] = int64(i % 10)
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func int32Runs(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]int32, n)
	v := int32(0)
	for i := range data {
		if rng.Intn(50) == 0 {
			v = rng.Int31n(1000)
		}
		data[i] = v
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func float64Prices(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(rng.Intn(100000)) / 100
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func float64Random(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.Float64()
	}
	return array.FromSlice(data, array.NonNullable()), nil
}

func utf8URLs(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	b := array.NewVarBinBuilder(arrow.Utf8(arrow.NonNullable))
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.AppendString(fmt.Sprintf("https://www.example.com/products/item-%d?ref=%s", rng.Intn(5000), []string{"home", "search", "mail"}[rng.Intn(3)]))
	}
	return b.NewArray()
}

func timestampMicros(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := make([]int64, n)
	for i := range ticks {
		ticks[i] = base.Add(time.Duration(i)*time.Second + time.Duration(rng.Intn(1000))*time.Millisecond).UnixMicro()
	}
	return array.NewTimestampArray(arrow.Microsecond, "UTC", ticks, array.NonNullable())
}

func sparseNulls(n int, seed int64) (array.Array, error) {
	rng := rand.New(rand.NewSource(seed))
	data := make([]int64, n)
	valid := make([]bool, n)
	for i := range data {
		if rng.Intn(100) == 0 {
			data[i], valid[i] = rng.Int63n(1<<20), true
		}
	}
	return array.FromNullable(data, valid), nil
}
