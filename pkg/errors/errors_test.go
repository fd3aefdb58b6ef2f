package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_Status(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		typ    ErrorType
		status int
	}{
		{"validation", NewValidationError("bad"), ErrorTypeValidation, http.StatusBadRequest},
		{"not found", NewNotFoundError("node"), ErrorTypeNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("taken"), ErrorTypeConflict, http.StatusConflict},
		{"capacity", NewCapacityError("nodes", 500), ErrorTypeCapacity, http.StatusUnprocessableEntity},
		{"internal", NewInternalError("boom"), ErrorTypeInternal, http.StatusInternalServerError},
		{"timeout", NewTimeoutError("poll"), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"unauthorized", NewUnauthorizedError(""), ErrorTypeUnauthorized, http.StatusUnauthorized},
		{"canceled", NewCanceledError("generate"), ErrorTypeCanceled, 499},
		{"database", NewDatabaseError("save", errors.New("io")), ErrorTypeDatabase, http.StatusInternalServerError},
		{"external", NewExternalError("fal", errors.New("502")), ErrorTypeExternal, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.err.Type)
			assert.Equal(t, tt.status, StatusCode(tt.err))
			assert.True(t, IsType(fmt.Errorf("wrapped: %w", tt.err), tt.typ))
		})
	}
}

func TestStatusCode_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(&AppError{Type: ErrorTypeInternal}))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("graph")))
	assert.True(t, IsValidation(NewValidationError("x")))
	assert.True(t, IsCapacity(NewCapacityError("edges", 1)))
	assert.True(t, IsCanceled(NewCanceledError("x")))
	assert.False(t, IsNotFound(errors.New("graph not found")))
	assert.Nil(t, GetAppError(nil))
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewDatabaseError("save", cause)

	assert.Equal(t, "DATABASE: database operation 'save' failed (caused by: disk full)", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NOT_FOUND: node not found", NewNotFoundError("node").Error())
}

func TestAppError_Builders(t *testing.T) {
	err := NewValidationError("rejected").
		WithCode("CONNECTION_REJECTED").
		WithDetails(map[string]interface{}{"edge": "e1"})

	assert.Equal(t, "CONNECTION_REJECTED", err.Code)
	assert.Equal(t, "e1", err.Details["edge"])
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ctx"))

	wrapped := Wrap(NewNotFoundError("node").WithCode("NODE_MISSING"), "load graph")
	app := GetAppError(wrapped)
	require.NotNil(t, app)
	assert.Equal(t, ErrorTypeNotFound, app.Type)
	assert.Equal(t, "load graph: node not found", app.Message)
	assert.Equal(t, "NODE_MISSING", app.Code)
	assert.Equal(t, http.StatusNotFound, app.HTTPStatus)

	plain := errors.New("socket closed")
	wrapped = Wrapf(plain, "save %s", "g1")
	app = GetAppError(wrapped)
	require.NotNil(t, app)
	assert.Equal(t, ErrorTypeInternal, app.Type)
	assert.Equal(t, "save g1", app.Message)
	assert.ErrorIs(t, wrapped, plain)
}
