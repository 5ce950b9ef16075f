package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport errors
var (
	ErrTransport         = errors.New("connection error")
	ErrMalformedResponse = errors.New("malformed response")
)

// Session errors
var (
	ErrUnauthorized     = errors.New("unauthorized")     // 401
	ErrNotAuthenticated = errors.New("not authenticated") // no token, request not attempted
	ErrTokenNotFound    = errors.New("token not found")
	ErrLoginFailed      = errors.New("login failed")
	ErrRegisterFailed   = errors.New("registration failed")
)

// Validation errors (client input)
var (
	ErrInvalidConfidence   = errors.New("confidence must be between 0 and 1")
	ErrInvalidSource       = errors.New("source must be one of all, video, audio")
	ErrTitleRequired       = errors.New("title is required")
	ErrCourseCodeRequired  = errors.New("course code is required")
	ErrInvalidDuration     = errors.New("duration must be a positive number of minutes")
	ErrUsernameRequired    = errors.New("username is required")
	ErrEmailRequired       = errors.New("email is required")
	ErrPasswordRequired    = errors.New("password is required")
	ErrInvalidRole         = errors.New("role must be one of student, invigilator, proctor, admin")
	ErrNoActiveExamination = errors.New("no active examination")
)

// Config errors
var (
	ErrBackendRequired      = errors.New("backend is required")
	ErrConfirmationDeclined = errors.New("confirmation declined")
	ErrEndpointConflict     = errors.New("endpoint conflict")
)

// APIError is a non-2xx answer from the backend carrying its detail message
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// Is lets a 401 answer match ErrUnauthorized
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// DetailOf extracts the server provided message from err, if any
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

// IsTransport reports whether err means the backend could not be reached or understood
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformedResponse)
}
