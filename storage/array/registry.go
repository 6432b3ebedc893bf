package array

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wzqhbustb/cascade/storage/arrow"
)

// Capability is a bit set of the optional interfaces an encoding provides.
type Capability uint16

const (
	CapFilter Capability = 1 << iota
	CapTake
	CapCast
	CapStatistics
	CapIsConstant
	CapCompare
	CapBinaryNumeric
)

func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	names := []string{"filter", "take", "cast", "statistics", "is_constant", "compare", "binary_numeric"}
	var out []string
	for i, n := range names {
		if c&(1<<i) != 0 {
			out = append(out, n)
		}
	}
	return strings.Join(out, "|")
}

// DecodeFunc rebuilds an array from its parts.
type DecodeFunc func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error)

// EncodingVTable describes an encoding to the registry.
type EncodingVTable struct {
	ID     EncodingID
	Decode DecodeFunc
	// Prototype is a typed nil or zero value of the encoding's array type,
	// used to discover its capabilities.
	Prototype Array
}

// Registry maps encoding ids to vtables. Each id is registered once.
type Registry struct {
	mu      sync.RWMutex
	vtables map[EncodingID]EncodingVTable
	caps    map[EncodingID]Capability
	order   []EncodingID
}

func NewRegistry() *Registry {
	return &Registry{
		vtables: make(map[EncodingID]EncodingVTable),
		caps:    make(map[EncodingID]Capability),
	}
}

// Register adds vt. It panics on a duplicate id.
func (r *Registry) Register(vt EncodingVTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vtables[vt.ID]; ok {
		panic(fmt.Sprintf("encoding %q registered twice", vt.ID))
	}
	r.vtables[vt.ID] = vt
	r.caps[vt.ID] = capabilitiesOf(vt.Prototype)
	r.order = append(r.order, vt.ID)
}

func (r *Registry) Lookup(id EncodingID) (EncodingVTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vt, ok := r.vtables[id]
	return vt, ok
}

// Registered returns ids in registration order.
func (r *Registry) Registered() []EncodingID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]EncodingID(nil), r.order...)
}

// Capabilities returns the optional interfaces id provides.
func (r *Registry) Capabilities(id EncodingID) Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caps[id]
}

func capabilitiesOf(a Array) Capability {
	var c Capability
	if _, ok := a.(FilterFn); ok {
		c |= CapFilter
	}
	if _, ok := a.(TakeFn); ok {
		c |= CapTake
	}
	if _, ok := a.(CastFn); ok {
		c |= CapCast
	}
	if _, ok := a.(StatisticsFn); ok {
		c |= CapStatistics
	}
	if _, ok := a.(IsConstantFn); ok {
		c |= CapIsConstant
	}
	if _, ok := a.(CompareFn); ok {
		c |= CapCompare
	}
	if _, ok := a.(BinaryNumericFn); ok {
		c |= CapBinaryNumeric
	}
	return c
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry encodings add themselves
// to in init.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds vt to the default registry.
func Register(vt EncodingVTable) { defaultRegistry.Register(vt) }

// Lookup finds id in the default registry.
func Lookup(id EncodingID) (EncodingVTable, bool) { return defaultRegistry.Lookup(id) }

// Registered lists the default registry's ids in registration order.
func Registered() []EncodingID { return defaultRegistry.Registered() }

// Capabilities queries the default registry.
func Capabilities(id EncodingID) Capability { return defaultRegistry.Capabilities(id) }
