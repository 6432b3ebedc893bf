package array

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasCanonicalEncodings(t *testing.T) {
	for _, id := range []EncodingID{NullID, BoolID, PrimitiveID, VarBinID, StructID, ListID, DecimalID, ExtensionID, ChunkedID} {
		vt, ok := Lookup(id)
		require.True(t, ok, "missing %s", id)
		assert.Equal(t, id, vt.ID)
		assert.NotNil(t, vt.Decode)
	}
	assert.Contains(t, Registered(), PrimitiveID)
}

func TestRegistryCapabilities(t *testing.T) {
	caps := Capabilities(PrimitiveID)
	for _, c := range []Capability{CapFilter, CapTake, CapCast, CapStatistics, CapIsConstant, CapCompare, CapBinaryNumeric} {
		assert.True(t, caps.Has(c), "primitive lacks %s", c)
	}

	chunked := Capabilities(ChunkedID)
	assert.True(t, chunked.Has(CapFilter))
	assert.True(t, chunked.Has(CapStatistics))
	assert.False(t, chunked.Has(CapTake))
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	vt := EncodingVTable{ID: "test.dup", Prototype: (*opaqueArray)(nil)}
	r.Register(vt)
	assert.Panics(t, func() { r.Register(vt) })
	assert.Equal(t, []EncodingID{"test.dup"}, r.Registered())
	assert.Equal(t, Capability(0), r.Capabilities("test.dup"))
}
