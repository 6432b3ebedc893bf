package compressor

import (
	"math/rand"

	"github.com/wzqhbustb/cascade/storage/array"
)

// sampleThreshold is the length above which trials run on a sample.
func (c *Compressor) sampleThreshold() int {
	return c.cfg.SampleSize * c.cfg.SampleCount
}

// sample draws SampleCount contiguous slices of SampleSize values, one from
// each equal partition of a, at seeded offsets within the partition. Arrays at
// or below the threshold are returned whole.
func (c *Compressor) sample(a array.Array) (array.Array, error) {
	n := a.Len()
	if n <= c.sampleThreshold() {
		return a, nil
	}
	starts := sampleStarts(n, c.cfg.SampleSize, c.cfg.SampleCount, c.cfg.Seed)
	slices := make([]array.Array, len(starts))
	for k, start := range starts {
		s, err := array.Slice(a, start, start+c.cfg.SampleSize)
		if err != nil {
			return nil, err
		}
		slices[k] = s
	}
	return array.Concat(a.DataType(), slices)
}

// sampleStarts returns count slice starts, each inside its own partition of
// n values, deterministic for a given seed.
func sampleStarts(n, size, count int, seed int64) []int {
	rng := rand.New(rand.NewSource(seed))
	starts := make([]int, count)
	part := n / count
	for k := range starts {
		lo := k * part
		hi := lo + part
		if k == count-1 {
			hi = n
		}
		// 分区小于一个切片时从分区起点取
		span := hi - lo - size
		if span <= 0 {
			starts[k] = min(lo, n-size)
			continue
		}
		starts[k] = lo + rng.Intn(span+1)
	}
	return starts
}
