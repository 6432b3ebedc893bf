package arrow

import "fmt"

// Built-in extension identifiers.
const (
	TimestampID = "cascade.timestamp"
	DateID      = "cascade.date"
	UUIDID      = "cascade.uuid"
)

// ExtensionType wraps a storage type with an identifier and opaque metadata.
// Nullability follows the storage type.
type ExtensionType struct {
	extID    string
	storage  DataType
	metadata []byte
}

func (t *ExtensionType) ID() TypeID { return EXTENSION }
func (t *ExtensionType) Name() string {
	switch t.extID {
	case TimestampID:
		unit, tz, _ := TimestampOptions(t)
		if tz != "" {
			return fmt.Sprintf("timestamp[%s, %s]%s", unit, tz, suffix(Nullability(t.Nullable())))
		}
		return fmt.Sprintf("timestamp[%s]%s", unit, suffix(Nullability(t.Nullable())))
	case DateID:
		unit, _ := DateOptions(t)
		return fmt.Sprintf("date[%s]%s", unit, suffix(Nullability(t.Nullable())))
	case UUIDID:
		return "uuid" + suffix(Nullability(t.Nullable()))
	}
	return fmt.Sprintf("ext<%s, %s>", t.extID, t.storage.Name())
}
func (t *ExtensionType) Nullable() bool    { return t.storage.Nullable() }
func (t *ExtensionType) ExtID() string     { return t.extID }
func (t *ExtensionType) Storage() DataType { return t.storage }
func (t *ExtensionType) Metadata() []byte  { return t.metadata }
func (t *ExtensionType) WithNullability(n Nullability) DataType {
	return &ExtensionType{extID: t.extID, storage: t.storage.WithNullability(n), metadata: t.metadata}
}

// Extension builds an extension type.
func Extension(id string, storage DataType, metadata []byte) DataType {
	return &ExtensionType{extID: id, storage: storage, metadata: metadata}
}

// StorageType unwraps extension types to their storage type.
func StorageType(dt DataType) DataType {
	for {
		ext, ok := dt.(*ExtensionType)
		if !ok {
			return dt
		}
		dt = ext.storage
	}
}

// TimeUnit is the resolution of a temporal value.
type TimeUnit uint8

const (
	Nanosecond TimeUnit = iota
	Microsecond
	Millisecond
	Second
	Day
)

func (u TimeUnit) String() string {
	switch u {
	case Nanosecond:
		return "ns"
	case Microsecond:
		return "us"
	case Millisecond:
		return "ms"
	case Second:
		return "s"
	case Day:
		return "D"
	}
	return fmt.Sprintf("unit(%d)", uint8(u))
}

// PerSecond returns the number of ticks per second, 0 for Day.
func (u TimeUnit) PerSecond() int64 {
	switch u {
	case Nanosecond:
		return 1_000_000_000
	case Microsecond:
		return 1_000_000
	case Millisecond:
		return 1_000
	case Second:
		return 1
	}
	return 0
}

// Timestamp is an i64 count of unit ticks since the epoch.
func Timestamp(unit TimeUnit, tz string, n Nullability) DataType {
	meta := append([]byte{byte(unit)}, tz...)
	return Extension(TimestampID, Primitive(I64, n), meta)
}

// TimestampOptions returns the unit and zone of a timestamp type.
func TimestampOptions(dt DataType) (TimeUnit, string, bool) {
	ext, ok := dt.(*ExtensionType)
	if !ok || ext.extID != TimestampID || len(ext.metadata) < 1 {
		return 0, "", false
	}
	return TimeUnit(ext.metadata[0]), string(ext.metadata[1:]), true
}

// Date is days since the epoch over i32, or milliseconds over i64.
func Date(unit TimeUnit, n Nullability) DataType {
	p := I32
	if unit != Day {
		p = I64
	}
	return Extension(DateID, Primitive(p, n), []byte{byte(unit)})
}

// DateOptions returns the unit of a date type.
func DateOptions(dt DataType) (TimeUnit, bool) {
	ext, ok := dt.(*ExtensionType)
	if !ok || ext.extID != DateID || len(ext.metadata) != 1 {
		return 0, false
	}
	return TimeUnit(ext.metadata[0]), true
}

// UUID stores 16-byte identifiers as binary values.
func UUID(n Nullability) DataType {
	return Extension(UUIDID, Binary(n), nil)
}

// IsTimestamp reports whether dt is the timestamp extension.
func IsTimestamp(dt DataType) bool {
	_, _, ok := TimestampOptions(dt)
	return ok
}
