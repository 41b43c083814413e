package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "contractType", Message: "must be a string"}
	assert.Equal(t, "validation error: contractType - must be a string", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	err = &ErrValidation{Message: "malformed JSON"}
	assert.Equal(t, "validation error: malformed JSON", err.Error())
}

func TestErrBodyTooLarge(t *testing.T) {
	err := &ErrBodyTooLarge{Limit: 1024}
	assert.Equal(t, "request body exceeds 1024 bytes", err.Error())
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(err))
}

func TestErrUnsupportedMediaType(t *testing.T) {
	err := &ErrUnsupportedMediaType{ContentType: "text/plain"}
	assert.Contains(t, err.Error(), "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, HTTPStatus(err))
}

func TestHTTPStatus_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("generic error")))
}
