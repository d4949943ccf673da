package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx reply from a taskmatch server. Code and ErrorCode
// mirror ErrorResponse and are empty when the reply was not from taskmatch.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr, true
	}
	return nil, false
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("api error: %d", e.Status)
	default:
		return "api error"
	}
}

// FromTaskmatch reports whether the reply carried a taskmatch error body.
func (e *APIError) FromTaskmatch() bool { return e != nil && e.Code != "" }

// Unauthorized reports a rejected bearer token or webhook signature.
func (e *APIError) Unauthorized() bool {
	return e != nil && (e.Code == "unauthorized" || e.Code == "forbidden" || e.Status == http.StatusUnauthorized)
}

// Throttled reports that a classify or import limiter turned the request away.
func (e *APIError) Throttled() bool {
	return e != nil && (e.Code == "resource_exhausted" || e.Status == http.StatusTooManyRequests)
}

// GraphMisconfigured reports that the project's task graph could not be
// turned into a snapshot.
func (e *APIError) GraphMisconfigured() bool {
	return e != nil && e.Code == "configuration_error"
}

// ServerFault reports a 5xx reply.
func (e *APIError) ServerFault() bool { return e != nil && e.Status >= http.StatusInternalServerError }
