package array

import (
	"sort"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ChunkedID EncodingID = "cascade.chunked"

// ChunkedArray is an ordered sequence of arrays of one dtype.
type ChunkedArray struct {
	Base
	chunks []Array
	// ends[k] is the exclusive end of chunk k
	ends []int
}

func NewChunkedArray(dt arrow.DataType, chunks []Array) (*ChunkedArray, error) {
	ends := make([]int, len(chunks))
	total := 0
	for k, c := range chunks {
		if !arrow.Equal(c.DataType(), dt) {
			return nil, errors.TypeMismatch("chunked", dt.Name(), c.DataType().Name())
		}
		total += c.Len()
		ends[k] = total
	}
	return &ChunkedArray{Base: NewBase(dt, total), chunks: chunks, ends: ends}, nil
}

func (c *ChunkedArray) Encoding() EncodingID { return ChunkedID }
func (c *ChunkedArray) Chunks() []Array      { return c.chunks }
func (c *ChunkedArray) NumChunks() int       { return len(c.chunks) }

// locate returns the chunk holding position i and the position within it.
func (c *ChunkedArray) locate(i int) (int, int) {
	k := sort.SearchInts(c.ends, i+1)
	start := 0
	if k > 0 {
		start = c.ends[k-1]
	}
	return k, i - start
}

func (c *ChunkedArray) ScalarAt(i int) (arrow.Scalar, error) {
	k, j := c.locate(i)
	return c.chunks[k].ScalarAt(j)
}

func (c *ChunkedArray) IsValid(i int) bool {
	k, j := c.locate(i)
	return c.chunks[k].IsValid(j)
}

func (c *ChunkedArray) Slice(start, stop int) (Array, error) {
	var out []Array
	if start < stop {
		first, fj := c.locate(start)
		last, lj := c.locate(stop - 1)
		for k := first; k <= last; k++ {
			lo, hi := 0, c.chunks[k].Len()
			if k == first {
				lo = fj
			}
			if k == last {
				hi = lj + 1
			}
			if lo == hi {
				continue
			}
			s, err := Slice(c.chunks[k], lo, hi)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return NewChunkedArray(c.dtype, out)
}

func (c *ChunkedArray) Validity() (Validity, error) {
	if !c.dtype.Nullable() {
		return NonNullable(), nil
	}
	bm := arrow.NewBitmap(0)
	for _, ch := range c.chunks {
		v, err := ch.Validity()
		if err != nil {
			return Validity{}, err
		}
		for i := 0; i < ch.Len(); i++ {
			bm.Append(v.IsValid(i))
		}
	}
	return FromBitmap(bm), nil
}

func (c *ChunkedArray) ToCanonical() (Array, error) {
	return Concat(c.dtype, c.chunks)
}

func (c *ChunkedArray) Accept(v ArrayVisitor) error {
	for _, ch := range c.chunks {
		if err := v.VisitChild("chunk", ch); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChunkedArray) Metadata() ([]byte, error) {
	w := &MetaWriter{}
	w.Uvarint(uint64(len(c.chunks)))
	for _, ch := range c.chunks {
		w.Uvarint(uint64(ch.Len()))
	}
	return w.Finish(), nil
}

func (c *ChunkedArray) Validate() error {
	for _, ch := range c.chunks {
		if err := ch.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *ChunkedArray) Filter(mask *arrow.Bitmap) (Array, error) {
	out := make([]Array, 0, len(c.chunks))
	start := 0
	for k, ch := range c.chunks {
		f, err := Filter(ch, mask.Slice(start, c.ends[k]))
		if err != nil {
			return nil, err
		}
		if f.Len() > 0 {
			out = append(out, f)
		}
		start = c.ends[k]
	}
	return NewChunkedArray(c.dtype, out)
}

// ComputeStatistic merges per-chunk statistics in order.
func (c *ChunkedArray) ComputeStatistic(stat Stat) (Precision, error) {
	if len(c.chunks) == 0 {
		return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(ChunkedID))
	}
	needed := []Stat{stat}
	switch stat {
	case StatIsSorted, StatIsStrictSorted, StatIsConstant:
		needed = append(needed, StatMin, StatMax)
	}
	var merged *StatsSet
	for _, ch := range c.chunks {
		if ch.Len() == 0 {
			continue
		}
		ss := NewStatsSet()
		for _, k := range needed {
			if v, ok, err := ComputeStat(ch, k); err != nil {
				return Precision{}, err
			} else if ok {
				ss.Set(k, v)
			}
		}
		if merged == nil {
			merged = ss
		} else {
			merged = MergeOrdered(merged, ss)
		}
	}
	if merged != nil {
		if v, ok := merged.Get(stat); ok {
			return v, nil
		}
	}
	return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(ChunkedID))
}

func init() {
	Register(EncodingVTable{
		ID:        ChunkedID,
		Prototype: (*ChunkedArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			r := NewMetaReader(ChunkedID, parts.Metadata)
			n := int(r.Uvarint())
			lens := make([]int, n)
			for i := range lens {
				lens[i] = int(r.Uvarint())
			}
			if err := r.Err(); err != nil {
				return nil, err
			}
			if len(parts.Children) != n {
				return nil, errors.Corrupt(string(ChunkedID), "chunk count mismatch")
			}
			chunks := make([]Array, n)
			for i := range chunks {
				ch, err := ctx.DecodeChild(parts.Children[i], dtype, lens[i])
				if err != nil {
					return nil, err
				}
				chunks[i] = ch
			}
			return NewChunkedArray(dtype, chunks)
		},
	})
}
