package compressor

import (
	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/encoding"
)

type dateTimePartsScheme struct{}

func (dateTimePartsScheme) ID() array.EncodingID { return encoding.DateTimePartsID }
func (dateTimePartsScheme) Cost() int            { return CostStructural }

func (dateTimePartsScheme) CanCompress(_ *Context, st *Stats) bool {
	return arrow.IsTimestamp(st.Array.DataType()) && st.Valid > 0
}

func (dateTimePartsScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	d, err := encoding.DateTimePartsEncode(a)
	if err != nil {
		return nil, nil, err
	}
	days, dt, err := ctx.CompressChild(d.Days(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	seconds, st, err := ctx.CompressChild(d.Seconds(), like.Child(1))
	if err != nil {
		return nil, nil, err
	}
	subseconds, sst, err := ctx.CompressChild(d.Subseconds(), like.Child(2))
	if err != nil {
		return nil, nil, err
	}
	out, err := encoding.NewDateTimeParts(d.DataType(), days, seconds, subseconds)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.DateTimePartsID, Children: []*CompressionTree{dt, st, sst}}, nil
}

type decimalBytePartsScheme struct{}

func (decimalBytePartsScheme) ID() array.EncodingID { return encoding.DecimalBytePartsID }
func (decimalBytePartsScheme) Cost() int            { return CostStructural }

func (decimalBytePartsScheme) CanCompress(_ *Context, st *Stats) bool {
	_, ok := st.Array.(*array.DecimalArray)
	return ok && st.Valid > 0
}

func (decimalBytePartsScheme) Compress(ctx *Context, a array.Array, like *CompressionTree) (array.Array, *CompressionTree, error) {
	d, err := encoding.DecimalBytePartsEncode(a)
	if err != nil {
		return nil, nil, err
	}
	msp, mt, err := ctx.CompressChild(d.MSP(), like.Child(0))
	if err != nil {
		return nil, nil, err
	}
	children := []*CompressionTree{mt}
	var lower array.Array
	if d.Lower() != nil {
		var lt *CompressionTree
		if lower, lt, err = ctx.CompressChild(d.Lower(), like.Child(1)); err != nil {
			return nil, nil, err
		}
		children = append(children, lt)
	}
	out, err := encoding.NewDecimalByteParts(d.DataType(), msp, lower)
	if err != nil {
		return nil, nil, err
	}
	return out, &CompressionTree{Encoding: encoding.DecimalBytePartsID, Children: children}, nil
}
