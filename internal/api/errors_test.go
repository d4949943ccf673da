package api

import (
	"fmt"
	"net/http"
	"testing"
)

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		err          *APIError
		unauthorized bool
		throttled    bool
		graph        bool
		fault        bool
		taskmatch    bool
	}{
		{"bad token", &APIError{Status: http.StatusUnauthorized, Code: "unauthorized"}, true, false, false, false, true},
		{"limiter", &APIError{Status: http.StatusTooManyRequests, Code: "resource_exhausted"}, false, true, false, false, true},
		{"graph", &APIError{Status: http.StatusUnprocessableEntity, Code: "configuration_error", ErrorCode: 2201}, false, false, true, false, true},
		{"store", &APIError{Status: http.StatusInternalServerError, Code: "internal"}, false, false, false, true, true},
		{"proxy", &APIError{Status: http.StatusBadGateway}, false, false, false, true, false},
		{"nil", nil, false, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.err
			if e.Unauthorized() != tt.unauthorized || e.Throttled() != tt.throttled ||
				e.GraphMisconfigured() != tt.graph || e.ServerFault() != tt.fault || e.FromTaskmatch() != tt.taskmatch {
				t.Fatalf("unexpected classification for %+v", e)
			}
		})
	}
}

func TestAsAPIErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("classify: %w", &APIError{Status: http.StatusNotFound, Message: "api error: 404 Not Found"})
	apiErr, ok := AsAPIError(wrapped)
	if !ok || apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected wrapped api error, got %v %v", apiErr, ok)
	}
	if _, ok := AsAPIError(fmt.Errorf("plain")); ok {
		t.Fatal("plain errors are not api errors")
	}
	if got := wrapped.Error(); got != "classify: api error: 404 Not Found" {
		t.Fatalf("unexpected message %q", got)
	}
}
