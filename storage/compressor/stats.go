package compressor

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
)

// exactDistinctLimit bounds the hash map used for exact distinct counting;
// larger inputs fall back to a HyperLogLog estimate.
const exactDistinctLimit = 1 << 14

// Stats are the cheap facts candidate schemes test before a trial. They are
// computed over the canonical sample, never the whole array.
type Stats struct {
	// Array is the canonical sample the statistics describe.
	Array array.Array

	Len   int
	Valid int

	// PType is set for primitive arrays. Extension arrays are neither
	// primitive nor varbin.
	PType       arrow.PType
	IsPrimitive bool
	IsVarBin    bool

	// Distinct counts distinct valid values, exactly below
	// exactDistinctLimit.
	Distinct      int
	DistinctExact bool
	// Runs counts maximal runs of equal neighbours; nulls form runs too.
	Runs int
	// Dominant is the occurrence count of the most frequent value, nulls
	// counted as one value.
	Dominant int
	// Negative reports a valid negative signed integer.
	Negative bool
}

// DistinctRatio is Distinct over Valid.
func (s *Stats) DistinctRatio() float64 {
	if s.Valid == 0 {
		return 1
	}
	return float64(s.Distinct) / float64(s.Valid)
}

// RunRatio is Runs over Len.
func (s *Stats) RunRatio() float64 {
	if s.Len == 0 {
		return 1
	}
	return float64(s.Runs) / float64(s.Len)
}

// DominantRatio is Dominant over Len.
func (s *Stats) DominantRatio() float64 {
	if s.Len == 0 {
		return 0
	}
	return float64(s.Dominant) / float64(s.Len)
}

// ComputeStats computes sample statistics over a canonical array.
func ComputeStats(a array.Array) (*Stats, error) {
	canon, err := array.Canonicalize(a)
	if err != nil {
		return nil, err
	}
	st := &Stats{Array: canon, Len: canon.Len()}
	storage := canon
	if ext, ok := canon.(*array.ExtensionArray); ok {
		storage = ext.Storage()
	}
	if p, ok := canon.(*array.PrimitiveArray); ok {
		st.PType, st.IsPrimitive = p.PType(), true
	}
	_, st.IsVarBin = canon.(*array.VarBinArray)

	keys, ok := valueKeys(storage)
	if !ok {
		nulls, err := array.NullCount(canon)
		if err != nil {
			return nil, err
		}
		st.Valid = st.Len - nulls
		st.Distinct, st.Runs = st.Valid, st.Len
		return st, nil
	}
	valid := func(i int) bool { return storage.IsValid(i) }
	st.Valid, st.Runs = countRuns(keys, valid)
	st.Distinct, st.Dominant, st.DistinctExact = countDistinct(keys, valid)
	if st.IsPrimitive && st.PType.IsSigned() && st.PType.IsInt() {
		for i, k := range keys {
			if valid(i) && int64(k) < 0 {
				st.Negative = true
				break
			}
		}
	}
	return st, nil
}

// valueKeys maps every value to a 64-bit key: the value bits for fixed
// width types and a hash for variable width ones.
func valueKeys(a array.Array) ([]uint64, bool) {
	switch arr := a.(type) {
	case *array.PrimitiveArray:
		if arr.PType().IsFloat() {
			wide := array.ToWide[float64](arr)
			keys := make([]uint64, len(wide))
			for i, v := range wide {
				keys[i] = math.Float64bits(v)
			}
			return keys, true
		}
		if arr.PType().IsSigned() {
			wide := array.ToWide[int64](arr)
			keys := make([]uint64, len(wide))
			for i, v := range wide {
				keys[i] = uint64(v)
			}
			return keys, true
		}
		return array.ToWide[uint64](arr), true
	case *array.BoolArray:
		keys := make([]uint64, arr.Len())
		for i := range keys {
			if arr.Value(i) {
				keys[i] = 1
			}
		}
		return keys, true
	case *array.VarBinArray:
		keys := make([]uint64, arr.Len())
		for i := range keys {
			keys[i] = xxhash.Sum64(arr.Bytes(i))
		}
		return keys, true
	case *array.DecimalArray:
		values := arr.Values()
		keys := make([]uint64, len(values))
		var b [16]byte
		for i, d := range values {
			binary.LittleEndian.PutUint64(b[:8], d.Lo)
			binary.LittleEndian.PutUint64(b[8:], uint64(d.Hi))
			keys[i] = xxhash.Sum64(b[:])
		}
		return keys, true
	}
	return nil, false
}

// countRuns counts valid values and runs of equal neighbours.
func countRuns(keys []uint64, valid func(int) bool) (int, int) {
	if len(keys) == 0 {
		return 0, 0
	}
	n, runs := 0, 1
	for i := range keys {
		vi := valid(i)
		if vi {
			n++
		}
		if i == 0 {
			continue
		}
		vp := valid(i - 1)
		if vi != vp || (vi && keys[i] != keys[i-1]) {
			runs++
		}
	}
	return n, runs
}

// countDistinct returns the distinct valid values and the count of the most
// frequent value. Past exactDistinctLimit keys the distinct count is
// estimated and the dominant count covers only the tracked keys.
func countDistinct(keys []uint64, valid func(int) bool) (int, int, bool) {
	counts := make(map[uint64]int)
	nulls, dominant := 0, 0
	exact := true
	for i, k := range keys {
		if !valid(i) {
			nulls++
			continue
		}
		c, ok := counts[k]
		if !ok && len(counts) >= exactDistinctLimit {
			exact = false
			continue
		}
		counts[k] = c + 1
		dominant = max(dominant, c+1)
	}
	dominant = max(dominant, nulls)
	if exact {
		return len(counts), dominant, true
	}
	return int(estimateCardinality(keys, valid)), dominant, false
}

// estimateCardinality approximates the distinct count with HyperLogLog and
// linear counting for small sets.
func estimateCardinality(keys []uint64, valid func(int) bool) uint64 {
	const precision = 10
	const numRegisters = 1 << precision
	registers := make([]uint8, numRegisters)

	for i, k := range keys {
		if !valid(i) {
			continue
		}
		hash := mix64(k)
		registerIdx := hash >> (64 - precision)
		remaining := hash << precision
		leadingZeros := uint8(bits.LeadingZeros64(remaining)) + 1
		if leadingZeros > registers[registerIdx] {
			registers[registerIdx] = leadingZeros
		}
	}

	sum := 0.0
	zeroCount := 0
	for _, reg := range registers {
		if reg == 0 {
			zeroCount++
		}
		sum += math.Pow(2, -float64(reg))
	}

	// alpha for m >= 128
	alpha := 0.7213 / (1 + 1.079/float64(numRegisters))
	estimate := alpha * float64(numRegisters*numRegisters) / sum

	if estimate <= 2.5*float64(numRegisters) && zeroCount > 0 {
		estimate = float64(numRegisters) * math.Log(float64(numRegisters)/float64(zeroCount))
	}
	return uint64(estimate)
}

// mix64 is the MurmurHash3 finalizer.
func mix64(v uint64) uint64 {
	h := v
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}
