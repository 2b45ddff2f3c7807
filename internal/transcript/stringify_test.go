package transcript

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named struct{ name string }

func (n named) String() string { return "named(" + n.name + ")" }

func TestToString(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{name: "string", input: "plain", expected: "plain"},
		{name: "nil", input: nil, expected: "null"},
		{name: "error", input: errors.New("failed"), expected: "failed"},
		{name: "stringer", input: named{"x"}, expected: "named(x)"},
		{name: "bool", input: true, expected: "true"},
		{name: "int", input: 42, expected: "42"},
		{name: "integral float", input: 3.0, expected: "3"},
		{name: "fraction", input: 0.5, expected: "0.5"},
		{name: "nan", input: math.NaN(), expected: "NaN"},
		{name: "infinity", input: math.Inf(1), expected: "Infinity"},
		{name: "short array", input: []any{1, 2, 3}, expected: "[1, 2, 3]"},
		{name: "object", input: map[string]any{"a": 1}, expected: "{\n  \"a\": 1\n}"},
		{name: "raw json", input: []byte(`{"b":true}`), expected: "{\n  \"b\": true\n}"},
		{name: "invalid raw bytes", input: []byte("not json"), expected: "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ToString(tt.input))
		})
	}
}

func TestIndentContinuation(t *testing.T) {
	assert.Equal(t, "> a", IndentContinuation("> ", "a"))
	assert.Equal(t, "> a\n  b\n  ", IndentContinuation("> ", "a\nb\n"))
}
