// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
)

// ServiceError represents a structured error response from the chat
// service. Callers can use errors.As to extract the structured
// information:
//
//	var serviceErr *gateway.ServiceError
//	if errors.As(err, &serviceErr) {
//	    if serviceErr.Code == gateway.ErrCodeAuthFailed { ... }
//	}
type ServiceError struct {
	// Code is the service error code (e.g., "AUTHENTICATION_FAILED").
	Code string `json:"code"`
	// Message is the human-readable error description from the server.
	Message string `json:"message"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("talk service: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Service error codes.
const (
	// ErrCodeAuthFailed means the token or credentials were rejected.
	// The session layer reacts by clearing its local auth material.
	ErrCodeAuthFailed = "AUTHENTICATION_FAILED"

	// ErrCodeConcurrentLogin means another device logged in with the
	// same account and took over the session. Fatal to polling.
	ErrCodeConcurrentLogin = "CONCURRENT_LOGIN"

	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInvalidParam = "INVALID_PARAMETER"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// IsServiceError checks whether err is a *ServiceError with the given
// error code.
func IsServiceError(err error, code string) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code == code
	}
	return false
}
