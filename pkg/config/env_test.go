package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_GENAI_STRING", "")
	assert.Equal(t, "fallback", GetEnvString("TEST_GENAI_STRING", "fallback"))

	t.Setenv("TEST_GENAI_STRING", "value")
	assert.Equal(t, "value", GetEnvString("TEST_GENAI_STRING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "unset", value: "", want: 7},
		{name: "valid", value: "42", want: 42},
		{name: "padded", value: " 12 ", want: 12},
		{name: "negative", value: "-3", want: -3},
		{name: "invalid", value: "abc", want: 7},
		{name: "float", value: "1.5", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_GENAI_INT", tt.value)
			assert.Equal(t, tt.want, GetEnvInt("TEST_GENAI_INT", 7))
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{name: "unset", value: "", want: 2.0},
		{name: "valid", value: "1.5", want: 1.5},
		{name: "integer", value: "3", want: 3},
		{name: "invalid", value: "fast", want: 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_GENAI_FLOAT", tt.value)
			assert.Equal(t, tt.want, GetEnvFloat("TEST_GENAI_FLOAT", 2.0))
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   bool
		want  bool
	}{
		{name: "unset uses default", value: "", def: true, want: true},
		{name: "true", value: "true", def: false, want: true},
		{name: "one", value: "1", def: false, want: true},
		{name: "false", value: "FALSE", def: true, want: false},
		{name: "zero", value: "0", def: true, want: false},
		{name: "invalid uses default", value: "yes", def: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_GENAI_BOOL", tt.value)
			assert.Equal(t, tt.want, GetEnvBool("TEST_GENAI_BOOL", tt.def))
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "unset", value: "", want: time.Second},
		{name: "milliseconds", value: "250ms", want: 250 * time.Millisecond},
		{name: "hours", value: "24h", want: 24 * time.Hour},
		{name: "missing unit", value: "30", want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_GENAI_DURATION", tt.value)
			assert.Equal(t, tt.want, GetEnvDuration("TEST_GENAI_DURATION", time.Second))
		})
	}
}

func TestGetEnvStringList(t *testing.T) {
	def := []string{"default"}

	t.Setenv("TEST_GENAI_LIST", "")
	assert.Equal(t, def, GetEnvStringList("TEST_GENAI_LIST", def))

	t.Setenv("TEST_GENAI_LIST", " a, b ,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, GetEnvStringList("TEST_GENAI_LIST", def))

	t.Setenv("TEST_GENAI_LIST", " , ,")
	assert.Equal(t, def, GetEnvStringList("TEST_GENAI_LIST", def))
}
