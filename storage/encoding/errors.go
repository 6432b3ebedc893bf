package encoding

import (
	lerrors "github.com/wzqhbustb/cascade/storage/errors"
)

var (
	// ErrUnsupportedType indicates the encoder doesn't support this data type.
	ErrUnsupportedType = lerrors.New(lerrors.ErrUnsupportedType).
		Op("encode").
		Build()

	// ErrTooManyExceptions indicates an encoding would need more patches than
	// its caller allows.
	ErrTooManyExceptions = lerrors.New(lerrors.ErrEncodeFailed).
		Op("encode").
		Context("reason", "too many exceptions").
		Build()
)

// IsRejected reports whether err means an encoding does not apply to its
// input, as opposed to a failure.
func IsRejected(err error) bool {
	if err == nil {
		return false
	}
	return lerrors.IsAny(err, lerrors.ErrUnsupportedType, lerrors.ErrEncodeFailed)
}
