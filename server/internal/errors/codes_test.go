package errors

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestServiceErrorFormatting(t *testing.T) {
	err := NotFound("conversation not found")
	assert.Equal(t, "[NOT_FOUND] conversation not found", err.Error())

	wrapped := StoreFailure("insert failed", pkgerrors.New("connection reset"))
	assert.Contains(t, wrapped.Error(), "[STORE_FAILURE]")
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(ValidationFailed("bad role"), ErrCodeValidationFailed))
	assert.False(t, IsCode(ValidationFailed("bad role"), ErrCodeNotFound))
	assert.False(t, IsCode(pkgerrors.New("plain"), ErrCodeNotFound))
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeModelFailure, GetCodeFromError(ModelFailure("encode failed", nil), ErrCodeStoreFailure))
	assert.Equal(t, ErrCodeStoreFailure, GetCodeFromError(pkgerrors.New("plain"), ErrCodeStoreFailure))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := pkgerrors.New("root cause")
	err := Wrap(cause, ErrCodeStoreFailure, "query failed")
	assert.Equal(t, cause, err.Unwrap())
}
