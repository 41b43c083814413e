// Package server provides the HTTP REST API for the contract analyzer.
package server

import (
	"fmt"
	"net/http"
)

// ErrValidation indicates the request body could not be decoded
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrBodyTooLarge indicates the request body exceeded the limit
type ErrBodyTooLarge struct {
	Limit int64
}

func (e *ErrBodyTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d bytes", e.Limit)
}

// ErrUnsupportedMediaType indicates a non-JSON request body
type ErrUnsupportedMediaType struct {
	ContentType string
}

func (e *ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("unsupported content type %q, expected application/json", e.ContentType)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case *ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
