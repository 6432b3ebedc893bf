package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	err := New(ErrOutOfBounds).
		Op("scalar_at").
		Encoding("cascade.dict").
		Context("index", 12).
		Context("length", 10).
		Build()

	var ce *Error
	require.True(t, stderrors.As(err, &ce))
	assert.Equal(t, ErrOutOfBounds, ce.Code)
	assert.Equal(t, "scalar_at", ce.Op)
	assert.Equal(t, SeverityError, ce.Severity)
	assert.Contains(t, err.Error(), "encoding=cascade.dict")
	assert.Contains(t, err.Error(), "index=12 length=10")
}

func TestIs_WalksCauseChain(t *testing.T) {
	inner := Overflow("cast", int64(300), "u8")
	outer := DecodeFailed("cascade.for", "reference out of range", inner)
	wrapped := fmt.Errorf("compress: %w", outer)

	assert.True(t, Is(wrapped, ErrDecodeFailed))
	assert.True(t, Is(wrapped, ErrOverflow))
	assert.False(t, Is(wrapped, ErrCorrupt))
	assert.True(t, IsAny(wrapped, ErrCorrupt, ErrOverflow))
	assert.False(t, Is(nil, ErrOverflow))
	assert.False(t, Is(stderrors.New("plain"), ErrOverflow))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrNotImplemented, GetCode(NotImplemented("filter", "cascade.fsst")))
	assert.Equal(t, ErrUnknown, GetCode(stderrors.New("plain")))
}

func TestSeverity(t *testing.T) {
	err := Corrupt("cascade.alp", "missing exponents")
	assert.True(t, IsFatal(err))
	assert.False(t, IsRecoverable(err))

	err = InvalidArg("new_bitpacked", "bit width must be positive")
	assert.False(t, IsFatal(err))
	assert.True(t, IsRecoverable(err))
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "OutOfBounds", ErrOutOfBounds.String())
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())
}
