package validation

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidator_Validate(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}
	schema := Schema{"tldr": KindString}

	tests := []struct {
		name     string
		response any
		want     Result
	}{
		{
			name:     "valid",
			response: map[string]any{"tldr": strings.Repeat("x", 40)},
			want:     Result{Valid: true},
		},
		{
			name:     "schema valid but quality warning",
			response: map[string]any{"tldr": "tiny"},
			want: Result{
				QualityWarnings: []string{"tldr too short: 4 characters (minimum 20)"},
			},
		},
		{
			name:     "schema error",
			response: map[string]any{"tldr": 7},
			want: Result{
				SchemaErrors:    []string{"field tldr: expected string, got number"},
				QualityWarnings: []string{"tldr too short: 0 characters (minimum 20)"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate("tldr", tt.response, schema)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Validate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResult_SchemaValid(t *testing.T) {
	if !(Result{QualityWarnings: []string{"w"}}).SchemaValid() {
		t.Error("quality warnings must not fail the schema gate")
	}
	if (Result{SchemaErrors: []string{"e"}}).SchemaValid() {
		t.Error("schema errors must fail the schema gate")
	}
}
