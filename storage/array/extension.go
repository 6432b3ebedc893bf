package array

import (
	"github.com/google/uuid"

	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const ExtensionID EncodingID = "cascade.extension"

// ExtensionArray attaches an extension type to a storage array.
type ExtensionArray struct {
	Base
	storage Array
}

func NewExtensionArray(dt *arrow.ExtensionType, storage Array) (*ExtensionArray, error) {
	if !arrow.Equal(dt.Storage(), storage.DataType()) {
		return nil, errors.TypeMismatch("extension", dt.Storage().Name(), storage.DataType().Name())
	}
	return &ExtensionArray{Base: NewBase(dt, storage.Len()), storage: storage}, nil
}

// NewUUIDArray stores ids as 16-byte binary values.
func NewUUIDArray(ids []uuid.UUID, validity Validity) (*ExtensionArray, error) {
	vals := make([][]byte, len(ids))
	for i := range ids {
		vals[i] = ids[i][:]
	}
	storage := VarBinFromBytes(vals, validity)
	return NewExtensionArray(arrow.UUID(arrow.Nullability(validity.Nullable())).(*arrow.ExtensionType), storage)
}

// NewTimestampArray wraps i64 ticks with a timestamp type.
func NewTimestampArray(unit arrow.TimeUnit, tz string, ticks []int64, validity Validity) (*ExtensionArray, error) {
	dt := arrow.Timestamp(unit, tz, arrow.Nullability(validity.Nullable())).(*arrow.ExtensionType)
	return NewExtensionArray(dt, FromSlice(ticks, validity))
}

func (e *ExtensionArray) Encoding() EncodingID        { return ExtensionID }
func (e *ExtensionArray) Storage() Array              { return e.storage }
func (e *ExtensionArray) IsValid(i int) bool          { return e.storage.IsValid(i) }
func (e *ExtensionArray) Validity() (Validity, error) { return e.storage.Validity() }
func (e *ExtensionArray) Metadata() ([]byte, error)   { return nil, nil }
func (e *ExtensionArray) Validate() error             { return e.storage.Validate() }

func (e *ExtensionArray) extType() *arrow.ExtensionType { return e.dtype.(*arrow.ExtensionType) }

func (e *ExtensionArray) ScalarAt(i int) (arrow.Scalar, error) {
	s, err := e.storage.ScalarAt(i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	return arrow.ExtensionScalar(e.dtype, s), nil
}

func (e *ExtensionArray) wrap(storage Array, err error) (Array, error) {
	if err != nil {
		return nil, err
	}
	dt := e.dtype.WithNullability(arrow.Nullability(storage.DataType().Nullable())).(*arrow.ExtensionType)
	return NewExtensionArray(dt, storage)
}

func (e *ExtensionArray) Slice(start, stop int) (Array, error) {
	return e.wrap(Slice(e.storage, start, stop))
}

func (e *ExtensionArray) ToCanonical() (Array, error) {
	if IsCanonical(e.storage) {
		return e, nil
	}
	return e.wrap(Canonicalize(e.storage))
}

func (e *ExtensionArray) Accept(v ArrayVisitor) error {
	return v.VisitChild("storage", e.storage)
}

func (e *ExtensionArray) Filter(mask *arrow.Bitmap) (Array, error) {
	return e.wrap(Filter(e.storage, mask))
}

func (e *ExtensionArray) Take(indices *PrimitiveArray) (Array, error) {
	return e.wrap(Take(e.storage, indices))
}

func (e *ExtensionArray) Cast(dt arrow.DataType) (Array, error) {
	if t, ok := dt.(*arrow.ExtensionType); ok && t.ExtID() == e.extType().ExtID() {
		storage, err := Cast(e.storage, t.Storage())
		if err != nil {
			return nil, err
		}
		return NewExtensionArray(t, storage)
	}
	if arrow.EqualIgnoreNullability(dt, e.extType().Storage()) {
		return Cast(e.storage, dt)
	}
	return nil, errors.NotImplemented("cast "+dt.Name(), string(ExtensionID))
}

func (e *ExtensionArray) ComputeStatistic(stat Stat) (Precision, error) {
	p, ok, err := ComputeStat(e.storage, stat)
	if err != nil {
		return Precision{}, err
	}
	if !ok {
		return Precision{}, errors.NotImplemented("statistic "+stat.String(), string(ExtensionID))
	}
	if stat == StatMin || stat == StatMax {
		p.Value = p.Value.WithDataType(e.dtype.WithNullability(arrow.NonNullable))
	}
	return p, nil
}

func (e *ExtensionArray) IsConstant(opts IsConstantOpts) (bool, error) {
	return IsConstant(e.storage, opts)
}

func (e *ExtensionArray) Compare(rhs Array, op Operator) (Array, error) {
	var rstorage Array = rhs
	if c, ok := rhs.(ScalarConstant); ok {
		return Compare(e.storage, &scalarArray{s: c.ConstantScalar().Storage(), n: rhs.Len()}, op)
	}
	canon, err := Canonicalize(rhs)
	if err != nil {
		return nil, err
	}
	if ext, ok := canon.(*ExtensionArray); ok {
		rstorage = ext.storage
	}
	return Compare(e.storage, rstorage, op)
}

func (e *ExtensionArray) BinaryNumeric(rhs Array, op NumericOp) (Array, error) {
	return nil, errors.UnsupportedType("binary_numeric", e.dtype.Name(), string(ExtensionID))
}

func init() {
	Register(EncodingVTable{
		ID:        ExtensionID,
		Prototype: (*ExtensionArray)(nil),
		Decode: func(parts *ArrayParts, ctx *DecodeContext, dtype arrow.DataType, length int) (Array, error) {
			dt, ok := dtype.(*arrow.ExtensionType)
			if !ok {
				return nil, errors.TypeMismatch("decode extension", "extension", dtype.Name())
			}
			if len(parts.Children) != 1 {
				return nil, errors.Corrupt(string(ExtensionID), "expected one storage child")
			}
			storage, err := ctx.DecodeChild(parts.Children[0], dt.Storage(), length)
			if err != nil {
				return nil, err
			}
			return NewExtensionArray(dt, storage)
		},
	})
}
