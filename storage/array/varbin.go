package array

import (
	"fmt"
	"unicode/utf8"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const VarBinID EncodingID = "cascade.varbin"

// VarBinArray holds utf8 or binary values as int64 offsets into a shared
// data buffer. Element i spans data[offsets[i]:offsets[i+1]].
type VarBinArray struct {
	Base
	offsets  *arrow.Buffer
	data     *arrow.Buffer
	validity Validity
}

// NewVarBinArray validates offsets and builds the array. dt must be utf8 or
// binary and its nullability must match validity.
func NewVarBinArray(dt arrow.DataType, offsets, data *arrow.Buffer, validity Validity) (*VarBinArray, error) {
	if !arrow.IsVarBin(dt) {
		return nil, errors.TypeMismatch("varbin", "utf8 or binary", dt.Name())
	}
	offs := arrow.View[int64](offsets)
	if len(offs) == 0 {
		return nil, errors.InvalidArg("varbin", "offsets must hold at least one entry")
	}
	length := len(offs) - 1
	if err := validity.Check(length, dt.Nullable()); err != nil {
		return nil, err
	}
	if offs[0] < 0 || offs[length] > int64(data.Len()) {
		return nil, errors.RangeOutOfBounds("varbin", int(offs[0]), int(offs[length]), data.Len())
	}
	return &VarBinArray{
		Base:     NewBase(dt, length),
		offsets:  offsets,
		data:     data,
		validity: validity,
	}, nil
}

// VarBinFromStrings builds a utf8 array. It panics on a validity mismatch.
func VarBinFromStrings(values []string, validity Validity) *VarBinArray {
	b := NewVarBinBuilder(arrow.Utf8(arrow.Nullability(validity.Nullable())))
	for i, v := range values {
		if validity.IsValid(i) {
			b.AppendString(v)
		} else {
			b.AppendNull()
		}
	}
	return b.newVarBin(validity)
}

// VarBinFromBytes builds a binary array. It panics on a validity mismatch.
func VarBinFromBytes(values [][]byte, validity Validity) *VarBinArray {
	b := NewVarBinBuilder(arrow.Binary(arrow.Nullability(validity.Nullable())))
	for i, v := range values {
		if validity.IsValid(i) {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
	return b.newVarBin(validity)
}

func (v *VarBinArray) Encoding() EncodingID        { return VarBinID }
func (v *VarBinArray) Offsets() []int64            { return arrow.View[int64](v.offsets) }
func (v *VarBinArray) OffsetsBuffer() *arrow.Buffer { return v.offsets }
func (v *VarBinArray) Data() *arrow.Buffer         { return v.data }
func (v *VarBinArray) IsValid(i int) bool          { return v.validity.IsValid(i) }
func (v *VarBinArray) Validity() (Validity, error) { return v.validity, nil }
func (v *VarBinArray) RawValidity() Validity       { return v.validity }
func (v *VarBinArray) ToCanonical() (Array, error) { return v, nil }
func (v *VarBinArray) Metadata() ([]byte, error)   { return nil, nil }

// Bytes returns a zero-copy view of element i.
func (v *VarBinArray) Bytes(i int) []byte {
	offs := v.Offsets()
	return v.data.Bytes()[offs[i]:offs[i+1]]
}

func (v *VarBinArray) ScalarAt(i int) (arrow.Scalar, error) {
	b := v.Bytes(i)
	if v.dtype.ID() == arrow.UTF8 {
		return arrow.NewScalar(v.dtype, string(b)), nil
	}
	return arrow.NewScalar(v.dtype, append([]byte(nil), b...)), nil
}

func (v *VarBinArray) Slice(start, stop int) (Array, error) {
	return &VarBinArray{
		Base:     NewBase(v.dtype, stop-start),
		offsets:  v.offsets.Slice(start*8, (stop+1)*8),
		data:     v.data,
		validity: v.validity.Slice(start, stop),
	}, nil
}

func (v *VarBinArray) Accept(vis ArrayVisitor) error {
	if err := vis.VisitBuffer(v.offsets); err != nil {
		return err
	}
	if err := vis.VisitBuffer(v.data); err != nil {
		return err
	}
	return vis.VisitValidity(v.validity)
}

func (v *VarBinArray) Validate() error {
	offs := v.Offsets()
	for i := 1; i < len(offs); i++ {
		if offs[i] < offs[i-1] {
			return errors.InvalidArg("varbin", fmt.Sprintf("offsets decrease at %d", i))
		}
	}
	if v.dtype.ID() == arrow.UTF8 {
		for i := 0; i < v.length; i++ {
			if v.IsValid(i) && !utf8.Valid(v.Bytes(i)) {
				return errors.InvalidArg("varbin", fmt.Sprintf("invalid utf8 at %d", i))
			}
		}
	}
	return v.validity.Check(v.length, v.dtype.Nullable())
}

// ValueBytes returns the byte size of the referenced value range.
func (v *VarBinArray) ValueBytes() int {
	offs := v.Offsets()
	return int(offs[len(offs)-1] - offs[0])
}

func (v *VarBinArray) Filter(mask *arrow.Bitmap) (Array, error) {
	b := NewVarBinBuilder(v.dtype)
	b.Reserve(mask.CountSet())
	for i := 0; i < mask.Len(); i++ {
		if mask.IsSet(i) {
			b.Append(v.Bytes(i))
		}
	}
	return b.newVarBin(v.validity.Filter(mask)), nil
}

func (v *VarBinArray) Take(indices *PrimitiveArray) (Array, error) {
	idx := indices.Indices()
	validity := v.validity.Take(indices)
	b := NewVarBinBuilder(v.dtype.WithNullability(arrow.Nullability(validity.Nullable())))
	b.Reserve(len(idx))
	for i, j := range idx {
		if indices.IsValid(i) {
			b.Append(v.Bytes(j))
		} else {
			b.Append(nil)
		}
	}
	return b.newVarBin(validity), nil
}

func (v *VarBinArray) Cast(dt arrow.DataType) (Array, error) {
	validity, err := v.validity.CastNullability(dt.Nullable(), v.length)
	if err != nil {
		return nil, err
	}
	switch t := dt.(type) {
	case *arrow.Utf8Type:
		if v.dtype.ID() == arrow.BINARY {
			for i := 0; i < v.length; i++ {
				if v.IsValid(i) && !utf8.Valid(v.Bytes(i)) {
					return nil, errors.InvalidArg("cast", fmt.Sprintf("invalid utf8 at %d", i))
				}
			}
		}
		return NewVarBinArray(t, v.offsets, v.data, validity)
	case *arrow.BinaryType:
		return NewVarBinArray(t, v.offsets, v.data, validity)
	case *arrow.ExtensionType:
		storage, err := Cast(v, t.Storage())
		if err != nil {
			return nil, err
		}
		return NewExtensionArray(t, storage)
	}
	return nil, errors.NotImplemented("cast "+dt.Name(), string(VarBinID))
}

func (v *VarBinArray) ComputeStatistic(stat Stat) (Precision, error) {
	if stat == StatUncompressedSize {
		return Exact(arrow.UintScalar(arrow.U64,
			uint64(v.ValueBytes()+v.offsets.Len()+validityBytes(v.validity)), arrow.NonNullable)), nil
	}
	return genericStatistic(v, stat)
}

func (v *VarBinArray) IsConstant(IsConstantOpts) (bool, error) {
	return genericIsConstant(v)
}

func (v *VarBinArray) Compare(rhs Array, op Operator) (Array, error) {
	return compareCanonical(v, rhs, op)
}

func (v *VarBinArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", v.dtype.Name(), string(VarBinID))
}

func init() {
	Register(EncodingVTable{
		ID:        VarBinID,
		Prototype: (*VarBinArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			if len(parts.Buffers) != 2 {
				return nil, errors.Corrupt(string(VarBinID), fmt.Sprintf("expected 2 buffers, got %d", len(parts.Buffers)))
			}
			if parts.Buffers[0].Len() != (length+1)*8 {
				return nil, errors.DecodeSizeMismatch(string(VarBinID), (length+1)*8, parts.Buffers[0].Len())
			}
			validity, err := parts.DecodeValidity(length)
			if err != nil {
				return nil, err
			}
			return NewVarBinArray(dtype, parts.Buffers[0], parts.Buffers[1], validity)
		},
	})
}
