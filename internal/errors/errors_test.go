package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrTypeValidation, "test error message")

	assert.Equal(t, ErrTypeValidation, err.Type)
	assert.Equal(t, "test error message", err.Message)
	assert.NoError(t, err.Cause)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrTypeDataset, "failed to create dataset %s", "ds_abc")

	assert.Equal(t, ErrTypeDataset, err.Type)
	assert.Equal(t, "failed to create dataset ds_abc", err.Message)
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(originalErr, ErrTypeNetwork, "network operation failed")

	assert.Equal(t, ErrTypeNetwork, wrappedErr.Type)
	assert.Equal(t, "network operation failed", wrappedErr.Message)
	assert.Equal(t, originalErr, wrappedErr.Cause)
	assert.ErrorIs(t, wrappedErr, originalErr)
}

func TestWrapf(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrapf(
		originalErr,
		ErrTypeNetwork,
		"failed to connect to %s:%d",
		"localhost",
		8080,
	)

	assert.Equal(t, ErrTypeNetwork, wrappedErr.Type)
	assert.Equal(t, "failed to connect to localhost:8080", wrappedErr.Message)
	assert.Equal(t, originalErr, wrappedErr.Cause)
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "error without cause",
			err: &Error{
				Type:    ErrTypeValidation,
				Message: "invalid input",
			},
			expected: "validation: invalid input",
		},
		{
			name: "error with cause",
			err: &Error{
				Type:    ErrTypeLoad,
				Message: "could not read worksheet",
				Cause:   errors.New("unexpected EOF"),
			},
			expected: "load: could not read worksheet: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestIsType(t *testing.T) {
	loadErr := New(ErrTypeLoad, "bad file")

	assert.True(t, IsType(loadErr, ErrTypeLoad))
	assert.False(t, IsType(loadErr, ErrTypePlan))
	assert.False(t, IsType(errors.New("plain"), ErrTypeLoad))

	// Wrapped through fmt should still be detectable
	wrapped := fmt.Errorf("outer: %w", loadErr)
	assert.True(t, IsType(wrapped, ErrTypeLoad))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrTypeRender, GetType(New(ErrTypeRender, "boom")))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
}

func TestWithSuggestion(t *testing.T) {
	err := NewLoadError("unreadable file", errors.New("zip: not a valid zip file"))

	assert.Equal(t, ErrTypeLoad, err.Type)
	assert.Len(t, err.Suggestions, 2)
}
