package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
)

// ErrorCode classifies an error.
type ErrorCode int

const (
	// general (1-99)
	ErrUnknown ErrorCode = iota
	ErrInvalidArgument
	ErrNotSupported
	ErrNotImplemented
	ErrOutOfBounds
	ErrOverflow

	// metadata and decoding (100-199)
	ErrCorrupt
	ErrDecodeFailed
	ErrTypeMismatch

	// encoding (200-299)
	ErrEncodeFailed
	ErrUnsupportedType
	ErrCompressionFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrNotSupported:
		return "NotSupported"
	case ErrNotImplemented:
		return "NotImplemented"
	case ErrOutOfBounds:
		return "OutOfBounds"
	case ErrOverflow:
		return "Overflow"
	case ErrCorrupt:
		return "Corrupt"
	case ErrDecodeFailed:
		return "DecodeFailed"
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrEncodeFailed:
		return "EncodeFailed"
	case ErrUnsupportedType:
		return "UnsupportedType"
	case ErrCompressionFailed:
		return "CompressionFailed"
	default:
		return fmt.Sprintf("ErrorCode(%d)", c)
	}
}

// ErrorSeverity tells callers whether the process state is still sound.
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota // recoverable, may be ignored
	SeverityError                        // operation failed, state is consistent
	SeverityFatal                        // state may be inconsistent
)

// Error is the structured error returned by every package of the module.
type Error struct {
	Code     ErrorCode
	Severity ErrorSeverity
	Op       string         // e.g. "scalar_at", "bitpack"
	Encoding string         // encoding id, when one is involved
	Err      error          // cause
	Context  map[string]any // offending index, value, lengths...
	Stack    []byte
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s:%s]", e.Code, e.Op))

	if e.Encoding != "" {
		parts = append(parts, "encoding="+e.Encoding)
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, strings.Join(kv, " "))
	}

	if e.Err != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Err))
	}

	return "cascade error: " + strings.Join(parts, " | ")
}

// Unwrap supports errors.As/Is.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether the error carries code.
func (e *Error) IsCode(code ErrorCode) bool {
	return e.Code == code
}

// WithContext adds a context entry and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorBuilder builds an *Error fluently.
type ErrorBuilder struct {
	err *Error
}

func New(code ErrorCode) *ErrorBuilder {
	return &ErrorBuilder{
		err: &Error{
			Code:     code,
			Severity: SeverityError,
			Context:  make(map[string]any),
		},
	}
}

func (b *ErrorBuilder) Op(op string) *ErrorBuilder {
	b.err.Op = op
	return b
}

func (b *ErrorBuilder) Encoding(id string) *ErrorBuilder {
	b.err.Encoding = id
	return b
}

func (b *ErrorBuilder) Wrap(err error) *ErrorBuilder {
	b.err.Err = err
	return b
}

func (b *ErrorBuilder) Severity(s ErrorSeverity) *ErrorBuilder {
	b.err.Severity = s
	return b
}

func (b *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	b.err.Context[key] = value
	return b
}

func (b *ErrorBuilder) WithStack() *ErrorBuilder {
	b.err.Stack = debug.Stack()
	return b
}

func (b *ErrorBuilder) Build() error {
	return b.err
}

// Unknown wraps an unclassified error.
func Unknown(op string, err error) error {
	return New(ErrUnknown).Op(op).Wrap(err).Build()
}

// InvalidArg reports malformed constructor or call input.
func InvalidArg(op string, msg string) error {
	return New(ErrInvalidArgument).Op(op).Context("message", msg).Build()
}

// Is reports whether err, or any cause in its chain, carries code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	var ce *Error
	if errors.As(err, &ce) {
		if ce.Code == code {
			return true
		}
		if ce.Err != nil {
			return Is(ce.Err, code)
		}
	}

	return false
}

// IsAny reports whether err matches any of codes.
func IsAny(err error, codes ...ErrorCode) bool {
	for _, code := range codes {
		if Is(err, code) {
			return true
		}
	}
	return false
}

// IsRecoverable reports whether the error left the process in a sound state.
func IsRecoverable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Severity == SeverityWarning || ce.Severity == SeverityError
	}
	return false
}

// IsFatal reports whether the error is fatal.
func IsFatal(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode returns the code of err, or ErrUnknown for foreign errors.
func GetCode(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrUnknown
}
