package errors

// OutOfBounds reports an index or range outside an array.
func OutOfBounds(op string, index, length int) error {
	return New(ErrOutOfBounds).
		Op(op).
		Context("index", index).
		Context("length", length).
		Build()
}

// RangeOutOfBounds reports a [start, stop) range outside an array.
func RangeOutOfBounds(op string, start, stop, length int) error {
	return New(ErrOutOfBounds).
		Op(op).
		Context("start", start).
		Context("stop", stop).
		Context("length", length).
		Build()
}

// NotImplemented reports an operation an encoding does not provide and that
// has no generic fallback.
func NotImplemented(op string, encoding string) error {
	return New(ErrNotImplemented).
		Op(op).
		Encoding(encoding).
		Build()
}

// Overflow reports a numeric result that does not fit its target type.
func Overflow(op string, value any, target string) error {
	return New(ErrOverflow).
		Op(op).
		Context("value", value).
		Context("target", target).
		Build()
}

// TypeMismatch reports two data types that were required to agree.
func TypeMismatch(op string, expected, actual string) error {
	return New(ErrTypeMismatch).
		Op(op).
		Context("expected_type", expected).
		Context("actual_type", actual).
		Build()
}

// LengthMismatch reports two lengths that were required to agree.
func LengthMismatch(op string, what string, expected, actual int) error {
	return New(ErrInvalidArgument).
		Op(op).
		Context("what", what).
		Context("expected", expected).
		Context("actual", actual).
		Build()
}
