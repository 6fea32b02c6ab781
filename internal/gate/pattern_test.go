package gate

import "testing"

func TestMatchForbiddenPath(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"secrets.env", "secrets.env", true},
		{"secrets.env", "other.env", false},
		{"dist/", "dist/bundle.js", true},
		{"dist/", "dist", true},
		{"dist/", "distillery.go", false},
		{"internal/*/generated.go", "internal/api/generated.go", true},
		{"internal/*/generated.go", "internal/api/sub/generated.go", false},
		{"*.env", "prod.env", false}, // "*" only matches a whole segment, not a partial one
		{"*", "anything", true},
	}
	for _, tt := range tests {
		got := MatchForbiddenPath(tt.pattern, tt.rel)
		if got != tt.want {
			t.Errorf("MatchForbiddenPath(%q, %q) = %v, want %v", tt.pattern, tt.rel, got, tt.want)
		}
	}
}

func TestMatchAnyForbiddenPath(t *testing.T) {
	patterns := []string{"secrets.env", "dist/"}
	if !MatchAnyForbiddenPath(patterns, "dist/bundle.js") {
		t.Error("want match for dist/bundle.js")
	}
	if MatchAnyForbiddenPath(patterns, "src/main.go") {
		t.Error("want no match for src/main.go")
	}
}
