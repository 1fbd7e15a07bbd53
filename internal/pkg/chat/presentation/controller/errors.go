package controller

import (
	"errors"
	"net/http"
	"time"

	"matchchat/internal/pkg/chat/application/event"
	"matchchat/internal/pkg/chat/application/usecase"
)

// errorCode maps use case errors onto error frame codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrInvalidPayload):
		return event.CodeInvalidPayload
	case errors.Is(err, usecase.ErrPersistence):
		return event.CodePersistenceFailed
	case errors.Is(err, usecase.ErrNotFound):
		return event.CodeNotFound
	case errors.Is(err, usecase.ErrNotConnected):
		return event.CodeForbidden
	default:
		return event.CodeInternal
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrNotConnected):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides persistence internals from clients.
func errorMessage(err error) string {
	if errors.Is(err, usecase.ErrPersistence) {
		return usecase.ErrPersistence.Error()
	}
	return err.Error()
}

const defaultInflightTimeout = 5 * time.Second

// inflightOrDefault bounds one engine call made on behalf of a request.
func inflightOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultInflightTimeout
	}
	return d
}
