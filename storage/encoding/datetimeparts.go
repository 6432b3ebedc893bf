package encoding

import (
	"fmt"

	"github.com/wzqhbustb/cascade/storage/array"
	"github.com/wzqhbustb/cascade/storage/arrow"
	"github.com/wzqhbustb/cascade/storage/errors"
)

const DateTimePartsID array.EncodingID = "cascade.datetimeparts"

const secondsPerDay = 86_400

// DateTimePartsArray splits timestamps into whole days since the epoch,
// seconds within the day and sub-second ticks. Days carry the validity.
type DateTimePartsArray struct {
	array.Base
	days       array.Array
	seconds    array.Array
	subseconds array.Array
	perSecond  int64
}

// NewDateTimeParts builds the parts array for a timestamp dtype.
func NewDateTimeParts(dt arrow.DataType, days, seconds, subseconds array.Array) (*DateTimePartsArray, error) {
	unit, _, ok := arrow.TimestampOptions(dt)
	if !ok {
		return nil, errors.TypeMismatch("datetimeparts", "timestamp", dt.Name())
	}
	if unit.PerSecond() == 0 {
		return nil, errors.InvalidArg("datetimeparts", "unsupported time unit "+unit.String())
	}
	for name, c := range map[string]array.Array{"days": days, "seconds": seconds, "subseconds": subseconds} {
		p, ok := arrow.PTypeOf(c.DataType())
		if !ok || !p.IsInt() {
			return nil, errors.InvalidArg("datetimeparts", name+" must be integers, got "+c.DataType().Name())
		}
	}
	if days.Len() != seconds.Len() || days.Len() != subseconds.Len() {
		return nil, errors.InvalidArg("datetimeparts", fmt.Sprintf("part lengths differ: %d, %d, %d", days.Len(), seconds.Len(), subseconds.Len()))
	}
	if days.DataType().Nullable() != dt.Nullable() {
		return nil, errors.InvalidArg("datetimeparts", "days nullability must match dtype")
	}
	return &DateTimePartsArray{
		Base:       array.NewBase(dt, days.Len()),
		days:       days,
		seconds:    seconds,
		subseconds: subseconds,
		perSecond:  unit.PerSecond(),
	}, nil
}

func (d *DateTimePartsArray) Encoding() array.EncodingID        { return DateTimePartsID }
func (d *DateTimePartsArray) Days() array.Array                 { return d.days }
func (d *DateTimePartsArray) Seconds() array.Array              { return d.seconds }
func (d *DateTimePartsArray) Subseconds() array.Array           { return d.subseconds }
func (d *DateTimePartsArray) IsValid(i int) bool                { return d.days.IsValid(i) }
func (d *DateTimePartsArray) Validity() (array.Validity, error) { return d.days.Validity() }

func (d *DateTimePartsArray) join(days, seconds, sub int64) int64 {
	return (days*secondsPerDay+seconds)*d.perSecond + sub
}

func intAt(a array.Array, i int) (int64, error) {
	s, err := a.ScalarAt(i)
	if err != nil {
		return 0, err
	}
	if v, ok := s.AsInt64(); ok {
		return v, nil
	}
	return 0, errors.Overflow("datetimeparts", s.String(), "i64")
}

func (d *DateTimePartsArray) ScalarAt(i int) (arrow.Scalar, error) {
	days, err := intAt(d.days, i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	seconds, err := intAt(d.seconds, i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	sub, err := intAt(d.subseconds, i)
	if err != nil {
		return arrow.Scalar{}, err
	}
	return arrow.NewScalar(d.DataType(), d.join(days, seconds, sub)), nil
}

func (d *DateTimePartsArray) children(fn func(array.Array) (array.Array, error)) (array.Array, error) {
	days, err := fn(d.days)
	if err != nil {
		return nil, err
	}
	seconds, err := fn(d.seconds)
	if err != nil {
		return nil, err
	}
	subseconds, err := fn(d.subseconds)
	if err != nil {
		return nil, err
	}
	dt := d.DataType().WithNullability(arrow.Nullability(days.DataType().Nullable()))
	return NewDateTimeParts(dt, days, seconds, subseconds)
}

func (d *DateTimePartsArray) Slice(start, stop int) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Slice(c, start, stop) })
}

func (d *DateTimePartsArray) Filter(mask *arrow.Bitmap) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Filter(c, mask) })
}

func (d *DateTimePartsArray) Take(indices *array.PrimitiveArray) (array.Array, error) {
	return d.children(func(c array.Array) (array.Array, error) { return array.Take(c, indices) })
}

func (d *DateTimePartsArray) ToCanonical() (array.Array, error) {
	days, err := primitiveOf(d.days, "datetimeparts")
	if err != nil {
		return nil, err
	}
	seconds, err := primitiveOf(d.seconds, "datetimeparts")
	if err != nil {
		return nil, err
	}
	subseconds, err := primitiveOf(d.subseconds, "datetimeparts")
	if err != nil {
		return nil, err
	}
	dv, sv, uv := array.ToWide[int64](days), array.ToWide[int64](seconds), array.ToWide[int64](subseconds)
	ticks := make([]int64, len(dv))
	for i := range ticks {
		if days.IsValid(i) {
			ticks[i] = d.join(dv[i], sv[i], uv[i])
		}
	}
	unit, tz, _ := arrow.TimestampOptions(d.DataType())
	return array.NewTimestampArray(unit, tz, ticks, days.RawValidity())
}

func (d *DateTimePartsArray) Accept(v array.ArrayVisitor) error {
	if err := v.VisitChild("days", d.days); err != nil {
		return err
	}
	if err := v.VisitChild("seconds", d.seconds); err != nil {
		return err
	}
	return v.VisitChild("subseconds", d.subseconds)
}

func (d *DateTimePartsArray) Metadata() ([]byte, error) {
	w := new(array.MetaWriter)
	for _, c := range []array.Array{d.days, d.seconds, d.subseconds} {
		p, _ := arrow.PTypeOf(c.DataType())
		w.Byte(byte(p)).Bool(c.DataType().Nullable())
	}
	return w.Finish(), nil
}

func (d *DateTimePartsArray) Validate() error { return nil }

func (d *DateTimePartsArray) ComputeStatistic(stat array.Stat) (array.Precision, error) {
	if stat == array.StatNullCount {
		n, err := array.NullCount(d.days)
		if err != nil {
			return array.Precision{}, err
		}
		return exactU64(n), nil
	}
	return array.Precision{}, notImplemented("statistic "+stat.String(), DateTimePartsID)
}

// IsConstant holds exactly when all three parts are constant.
func (d *DateTimePartsArray) IsConstant(opts array.IsConstantOpts) (bool, error) {
	for _, c := range []array.Array{d.days, d.seconds, d.subseconds} {
		ok, err := array.IsConstant(c, opts)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func init() {
	array.Register(array.EncodingVTable{
		ID:        DateTimePartsID,
		Prototype: (*DateTimePartsArray)(nil),
		Decode: func(parts *array.ArrayParts, ctx *array.DecodeContext, dtype arrow.DataType, length int) (array.Array, error) {
			m := array.NewMetaReader(DateTimePartsID, parts.Metadata)
			var children [3]array.Array
			names := [3]string{"days", "seconds", "subseconds"}
			var types [3]arrow.DataType
			for k := range types {
				p := arrow.PType(m.Byte())
				types[k] = arrow.Primitive(p, arrow.Nullability(m.Bool()))
			}
			if err := m.Err(); err != nil {
				return nil, err
			}
			for k, name := range names {
				cp, err := childAt(parts, name)
				if err != nil {
					return nil, err
				}
				if children[k], err = ctx.DecodeChild(cp, types[k], length); err != nil {
					return nil, err
				}
			}
			return NewDateTimeParts(dtype, children[0], children[1], children[2])
		},
	})
}

// floorDivMod divides rounding toward negative infinity.
func floorDivMod(a, b int64) (int64, int64) {
	q, r := a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// DateTimePartsEncode splits a timestamp array. Days become the narrowest
// signed type and the other parts the narrowest unsigned type.
func DateTimePartsEncode(a array.Array) (*DateTimePartsArray, error) {
	unit, _, ok := arrow.TimestampOptions(a.DataType())
	if !ok || unit.PerSecond() == 0 {
		return nil, errors.UnsupportedType("datetimeparts_encode", a.DataType().Name(), string(DateTimePartsID))
	}
	p, err := primitiveOf(a, "datetimeparts_encode")
	if err != nil {
		return nil, err
	}
	perSecond := unit.PerSecond()
	ticks := array.ToWide[int64](p)
	days := make([]int64, len(ticks))
	seconds := make([]uint64, len(ticks))
	subseconds := make([]uint64, len(ticks))
	var lo, hi int64
	for i, t := range ticks {
		if !p.IsValid(i) {
			continue
		}
		secs, sub := floorDivMod(t, perSecond)
		day, sec := floorDivMod(secs, secondsPerDay)
		days[i], seconds[i], subseconds[i] = day, uint64(sec), uint64(sub)
		lo, hi = min(lo, day), max(hi, day)
	}
	daysArr, err := array.FromWide(signedFor(lo, hi), days, p.RawValidity())
	if err != nil {
		return nil, err
	}
	return NewDateTimeParts(a.DataType(), daysArr, narrowUnsigned(seconds), narrowUnsigned(subseconds))
}

// signedFor returns the narrowest signed ptype holding [lo, hi].
func signedFor(lo, hi int64) arrow.PType {
	for _, p := range []arrow.PType{arrow.I8, arrow.I16, arrow.I32} {
		if lo >= p.MinInt() && hi <= int64(p.MaxUint()) {
			return p
		}
	}
	return arrow.I64
}
