package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Codes(t *testing.T) {
	tests := []struct {
		err  *Error
		code int
	}{
		{NotFound("widget", "1"), 404},
		{PermissionDenied("no"), 400},
		{InvalidInput("bad"), 400},
		{DriverUnavailable("get"), 503},
		{BackendFailure("db", errors.New("boom")), 500},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Kind), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
		})
	}
}

func TestError_Message(t *testing.T) {
	err := NotFound("widget", "w1")
	assert.Equal(t, "NOT_FOUND: object not found (type=widget, id=w1)", err.Error())

	err = BackendFailure("db", errors.New("disk full"))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "no drivers available for get", DriverUnavailable("get").Message)
}

func TestError_HelpersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("update: %w", PermissionDenied("price is read-only"))

	assert.True(t, IsPermissionDenied(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, KindPermissionDenied, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestBody(t *testing.T) {
	body := Body(fmt.Errorf("get: %w", NotFound("widget", "w1")))
	assert.Equal(t, ErrorBody{Error: "NOT_FOUND", Message: "object not found", Code: 404}, body)

	body = Body(errors.New("unexpected"))
	assert.Equal(t, "BACKEND_FAILURE", body.Error)
	assert.Equal(t, 500, body.Code)
}
