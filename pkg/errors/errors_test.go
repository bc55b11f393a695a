package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))

	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.EqualError(t, err, "internal server error: boom")
	assert.Nil(t, FromError(nil))
}

func TestCloneKeepsCodeAndMatchesSentinel(t *testing.T) {
	clone := Clone(ErrNotFound, "term not found")
	wrapped := fmt.Errorf("lookup: %w", clone)

	assert.Equal(t, "term not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrConflict))
}

func TestWithDetailsCopies(t *testing.T) {
	detailed := WithDetails(ErrValidation, []string{"start date must be before end date"})

	assert.Equal(t, []string{"start date must be before end date"}, detailed.Details)
	assert.Nil(t, ErrValidation.Details)
	assert.Same(t, FromError(detailed), detailed)
}
