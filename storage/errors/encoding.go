package errors

import "fmt"

// DecodeFailed reports that bytes or parts could not be turned back into
// values. err may be nil.
func DecodeFailed(encoding string, reason string, err error) error {
	return New(ErrDecodeFailed).
		Op("decode").
		Encoding(encoding).
		Context("reason", reason).
		Wrap(err).
		Build()
}

// UnsupportedType reports that an encoding cannot hold a data type.
func UnsupportedType(op string, dataType string, encoding string) error {
	return New(ErrUnsupportedType).
		Op(op).
		Encoding(encoding).
		Context("data_type", dataType).
		Build()
}

// CompressionFailed reports a failure of a general-purpose byte codec.
func CompressionFailed(codec string, inputSize int, err error) error {
	return New(ErrCompressionFailed).
		Op(fmt.Sprintf("%s_compress", codec)).
		Context("codec", codec).
		Context("input_size", inputSize).
		Wrap(err).
		Build()
}

// DecodeSizeMismatch reports a length disagreement after decoding.
func DecodeSizeMismatch(encoding string, expected, actual int) error {
	return New(ErrDecodeFailed).
		Op("decode").
		Encoding(encoding).
		Context("expected_values", expected).
		Context("actual_values", actual).
		Context("reason", "size mismatch after decoding").
		Build()
}

// Corrupt reports invalid metadata or an unexpected buffer/child count.
func Corrupt(encoding string, reason string) error {
	return New(ErrCorrupt).
		Op("decode").
		Encoding(encoding).
		Context("reason", reason).
		Severity(SeverityFatal).
		Build()
}
