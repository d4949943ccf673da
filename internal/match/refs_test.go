package match

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "hyphenated id", text: "fixes T-42 login bug", want: []string{"t-42"}},
		{name: "hash number", text: "closes #123", want: []string{"123"}},
		{name: "hash with prefix", text: "see #AUTH-7 and AUTH-7 again", want: []string{"auth-7"}},
		{name: "underscore id", text: "Refs node_login_form.", want: []string{"node_login_form", "node_login", "login_form"}},
		{name: "no delimiter", text: "fixes T42 login bug", want: []string{"t42"}},
		{name: "id inside branch name", text: "Merge branch 'T-42-login-page'", want: []string{
			"t-42-login-page", "t-42-login", "t-42", "42-login-page", "42-login", "login-page",
		}},
		{name: "plain words are not codes", text: "frontend: tweak styles", want: nil},
		{name: "order of appearance", text: "B-2 then #9 then a-1", want: []string{"b-2", "9", "a-1"}},
		{name: "none", text: "Update README", want: nil},
		{name: "empty", text: "   ", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractReferences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ExtractReferences(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractReferencesSkipsLongTokens(t *testing.T) {
	long := strings.Repeat("a", 20) + "-" + strings.Repeat("b", 20)
	if got := ExtractReferences("see " + long); got != nil {
		t.Fatalf("expected long token to be skipped, got %v", got)
	}
}

func TestContainsReference(t *testing.T) {
	tests := []struct {
		text string
		id   string
		want bool
	}{
		{"frontend: tweak styles", "frontend", true},
		{"Frontend tweaks", "FRONTEND", true},
		{"frontends everywhere", "frontend", false},
		{"release v1.2 today", "v1.2", true},
		{"release v1.20 today", "v1.2", false},
		{"closes #123", "123", true},
		{"Merge branch 'T-42-login-page'", "T-42", true},
		{"see AT-42", "T-42", false},
		{"see T-420", "T-42", false},
		{"T-420 then T-42", "T-42", true},
		{"anything", "  ", false},
	}
	for _, tt := range tests {
		if got := containsReference(tt.text, tt.id); got != tt.want {
			t.Fatalf("containsReference(%q, %q) = %v, want %v", tt.text, tt.id, got, tt.want)
		}
	}
}
