package array

import (
	"sort"
	"sync"

	"github.com/wzqhbustb/cascade/storage/arrow"
)

// Stat is a statistic kind.
type Stat uint8

const (
	StatIsConstant Stat = iota
	StatIsSorted
	StatIsStrictSorted
	StatMin
	StatMax
	StatNullCount
	StatTrueCount
	StatRunCount
	StatUncompressedSize
)

var statNames = [...]string{
	"is_constant", "is_sorted", "is_strict_sorted", "min", "max",
	"null_count", "true_count", "run_count", "uncompressed_size",
}

func (s Stat) String() string { return statNames[s] }

// AllStats lists every statistic kind.
var AllStats = []Stat{
	StatIsConstant, StatIsSorted, StatIsStrictSorted, StatMin, StatMax,
	StatNullCount, StatTrueCount, StatRunCount, StatUncompressedSize,
}

// Precision is a statistic value that is either exact or a bound.
type Precision struct {
	Value arrow.Scalar
	Exact bool
}

func Exact(v arrow.Scalar) Precision   { return Precision{Value: v, Exact: true} }
func Inexact(v arrow.Scalar) Precision { return Precision{Value: v} }

// StatsSet caches statistics of one array. It is safe for concurrent use.
type StatsSet struct {
	mu     sync.RWMutex
	values map[Stat]Precision
}

func NewStatsSet() *StatsSet {
	return &StatsSet{values: make(map[Stat]Precision)}
}

func (s *StatsSet) Get(k Stat) (Precision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[k]
	return v, ok
}

// GetExact returns a statistic only if it is known exactly.
func (s *StatsSet) GetExact(k Stat) (arrow.Scalar, bool) {
	v, ok := s.Get(k)
	if !ok || !v.Exact {
		return arrow.Scalar{}, false
	}
	return v.Value, true
}

func (s *StatsSet) Set(k Stat, v Precision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[k] = v
}

func (s *StatsSet) Clear(k Stat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, k)
}

// Keys returns the cached statistic kinds in order.
func (s *StatsSet) Keys() []Stat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]Stat, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone copies the cached values.
func (s *StatsSet) Clone() *StatsSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewStatsSet()
	for k, v := range s.values {
		out.values[k] = v
	}
	return out
}

// Inherit copies statistics that a transformation preserves, such as
// the ones of the child a dictionary or run-end array shares with its parent.
func (s *StatsSet) Inherit(from *StatsSet, kinds ...Stat) {
	for _, k := range kinds {
		if v, ok := from.Get(k); ok {
			s.Set(k, v)
		}
	}
}

// MergeOrdered combines statistics of two adjacent chunks, lhs first. A
// statistic missing from either side is dropped; an inexact input makes the
// merged value inexact.
func MergeOrdered(lhs, rhs *StatsSet) *StatsSet {
	out := NewStatsSet()

	lmin, lminOK := lhs.Get(StatMin)
	rmin, rminOK := rhs.Get(StatMin)
	lmax, lmaxOK := lhs.Get(StatMax)
	rmax, rmaxOK := rhs.Get(StatMax)

	if lminOK && rminOK {
		if v, ok := pick(lmin, rmin, -1); ok {
			out.Set(StatMin, v)
		}
	}
	if lmaxOK && rmaxOK {
		if v, ok := pick(lmax, rmax, 1); ok {
			out.Set(StatMax, v)
		}
	}

	for _, k := range []Stat{StatNullCount, StatTrueCount, StatUncompressedSize} {
		l, lok := lhs.Get(k)
		r, rok := rhs.Get(k)
		if lok && rok {
			a, _ := l.Value.AsUint64()
			b, _ := r.Value.AsUint64()
			out.Set(k, Precision{Value: arrow.UintScalar(arrow.U64, a+b, arrow.NonNullable), Exact: l.Exact && r.Exact})
		}
	}

	// sortedness needs both sides sorted and lhs.max <= rhs.min (< for strict)
	for _, k := range []Stat{StatIsSorted, StatIsStrictSorted} {
		l, lok := lhs.GetExact(k)
		r, rok := rhs.GetExact(k)
		if !lok || !rok {
			continue
		}
		lb, _ := l.AsBool()
		rb, _ := r.AsBool()
		if !lb || !rb {
			out.Set(k, Exact(arrow.BoolScalar(false, arrow.NonNullable)))
			continue
		}
		if !lmaxOK || !rminOK {
			continue
		}
		c, err := lmax.Value.Compare(rmin.Value)
		if err != nil {
			continue
		}
		sorted := c <= 0
		if k == StatIsStrictSorted {
			sorted = c < 0
		}
		exact := lmax.Exact && rmin.Exact
		if exact || !sorted {
			out.Set(k, Precision{Value: arrow.BoolScalar(sorted, arrow.NonNullable), Exact: exact})
		}
	}

	l, lok := lhs.GetExact(StatIsConstant)
	r, rok := rhs.GetExact(StatIsConstant)
	if lok && rok {
		lb, _ := l.AsBool()
		rb, _ := r.AsBool()
		switch {
		case !lb || !rb:
			out.Set(StatIsConstant, Exact(arrow.BoolScalar(false, arrow.NonNullable)))
		case lminOK && rminOK && lmin.Exact && rmin.Exact:
			out.Set(StatIsConstant, Exact(arrow.BoolScalar(lmin.Value.Equal(rmin.Value), arrow.NonNullable)))
		}
	}
	return out
}

// pick returns the lesser (dir -1) or greater (dir 1) of two bounds.
func pick(a, b Precision, dir int) (Precision, bool) {
	c, err := a.Value.Compare(b.Value)
	if err != nil {
		return Precision{}, false
	}
	v := a
	if c*dir < 0 {
		v = b
	}
	return Precision{Value: v.Value, Exact: a.Exact && b.Exact}, true
}
