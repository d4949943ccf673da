package server

import (
	"errors"
	"net/http"
	"testing"
)

func TestValidateProjectID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"acme/widgets", true},
		{"acme-inc/widgets.go", true},
		{"a/b", true},
		{"default-project", true},
		{"", false},
		{"acme", false},
		{"acme/", false},
		{"/widgets", false},
		{"acme/widgets/extra", false},
		{"-acme/widgets", false},
		{"acme/..", false},
		{"acme corp/widgets", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := validateProjectID(tt.id); got != tt.want {
				t.Fatalf("validateProjectID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestRequireProjectID(t *testing.T) {
	if _, err := requireProjectID("acme/widgets"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := requireProjectID("")
	var apiErr apiError
	if !errors.As(err, &apiErr) || apiErr.errCode != ErrCodeMissingRequired || apiErr.status != http.StatusBadRequest {
		t.Fatalf("expected missing-required error, got %#v", err)
	}

	_, err = requireProjectID("nope")
	if !errors.As(err, &apiErr) || apiErr.errCode != ErrCodeInvalidProject {
		t.Fatalf("expected invalid-project error, got %#v", err)
	}
}
