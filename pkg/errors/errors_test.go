package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorPassesThroughTypedErrors(t *testing.T) {
	err := Clone(ErrNotFound, "query not found")
	got := FromError(fmt.Errorf("lookup: %w", err))
	require.Equal(t, http.StatusNotFound, got.Status)
	require.Equal(t, "query not found", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(errors.New("connection refused"))
	require.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Contains(t, got.Error(), "connection refused")
}

func TestIsMatchesClones(t *testing.T) {
	assert.True(t, errors.Is(Clone(ErrValidation, "appNo is required"), ErrValidation))
	assert.False(t, errors.Is(ErrValidation, ErrNotFound))
	assert.True(t, IsUnavailable(fmt.Errorf("insert: %w", Unavailable(errors.New("dial tcp"), "store down"))))
}
