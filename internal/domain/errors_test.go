package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeRetrievalFailure, "retrieval failed", errors.New("timeout"))
	assert.Equal(t, "[RETRIEVAL_FAILURE] retrieval failed: timeout", wrapped.Error())
}

func TestDomainError_WithCauseMatchesSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrGenerationFailure.WithCause(cause)

	assert.True(t, errors.Is(err, ErrGenerationFailure))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrRetrievalFailure))
	assert.Nil(t, ErrGenerationFailure.Err, "sentinel must not be mutated")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), ""},
		{"domain error", ErrEmptyQuery, ErrCodeEmptyQuery},
		{"wrapped domain error", fmt.Errorf("answer: %w", ErrIndexUnavailable), ErrCodeIndexUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ErrRetrievalFailure.WithCause(errors.New("x")), ErrCodeRetrievalFailure))
	assert.False(t, IsCode(nil, ErrCodeRetrievalFailure))
	assert.False(t, IsCode(errors.New("x"), ErrCodeRetrievalFailure))
}

func TestEmptyQueryMessage(t *testing.T) {
	assert.Equal(t, EmptyQueryMessage, ErrEmptyQuery.Message)
}
