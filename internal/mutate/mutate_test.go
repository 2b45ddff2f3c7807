package mutate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapMemberAccesses(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "bare identifier", input: "db", expected: "db"},
		{name: "property", input: "db.users", expected: `__get(db, "users")`},
		{name: "nested property", input: "a.b.c", expected: `__get(__get(a, "b"), "c")`},
		{name: "method without args", input: "db.users.find()", expected: `__call(__get(db, "users"), "find")`},
		{
			name:     "method with args",
			input:    `db.users.find({name = "x"}, {_id = 0})`,
			expected: `__call(__get(db, "users"), "find", {name = "x"}, {_id = 0})`,
		},
		{
			name:     "chained calls",
			input:    "db.users.find().limit(2)",
			expected: `__call(__call(__get(db, "users"), "find"), "limit", 2)`,
		},
		{name: "property of call result", input: "f(x).y", expected: `__get(f(x), "y")`},
		{name: "property of index", input: "a[0].b", expected: `__get(a[0], "b")`},
		{name: "property of string", input: `"abc".length`, expected: `__get("abc", "length")`},
		{name: "nested in arguments", input: "print(db.users.count())", expected: `print(__call(__get(db, "users"), "count"))`},
		{name: "operands around operator", input: "a.x + b.y", expected: `__get(a, "x") + __get(b, "y")`},
		{name: "assignment target", input: "DBQuery.shellBatchSize = 10", expected: `__get(DBQuery, "shellBatchSize") = 10`},
		{name: "inside interpolation", input: `"n=${a.b}"`, expected: `"n=${__get(a, "b")}"`},
		{name: "object values", input: `{k = a.b}`, expected: `{k = __get(a, "b")}`},
		{name: "parenthesized receiver", input: "(a).b", expected: `__get((a), "b")`},
		{name: "statements", input: "x = db.a; x.count()", expected: `x = __get(db, "a"); __call(x, "count")`},
		{name: "number literal untouched", input: "1.5 + 2", expected: "1.5 + 2"},
		{name: "line comment dropped", input: "a.b // note\nc", expected: `__get(a, "b") ` + "\nc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := SwapMemberAccesses(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestSwapMemberAccesses_Idempotent(t *testing.T) {
	inputs := []string{
		"db.users.find({a = 1}).limit(2)",
		"x = db.a; x.count()",
		`print("${db.users.count()}")`,
	}
	for _, input := range inputs {
		once, err := SwapMemberAccesses(input)
		require.NoError(t, err)
		twice, err := SwapMemberAccesses(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, input)
	}
}

func TestSwapMemberAccesses_LexError(t *testing.T) {
	_, err := SwapMemberAccesses("'single quoted'")
	assert.Error(t, err)
}

func TestSwapMemberAccesses_TabIndentation(t *testing.T) {
	out, err := SwapMemberAccesses("a.b\t+\tc")
	require.NoError(t, err)
	assert.Equal(t, `__get(a, "b") + c`, strings.ReplaceAll(out, "\t", " "))
}

func TestLex_SeparatorsAreTokens(t *testing.T) {
	tokens, err := Lex("a; b\nc")
	require.NoError(t, err)

	separators := 0
	for _, tok := range tokens {
		if IsSeparator(tok) {
			separators++
		}
	}
	assert.Equal(t, 2, separators)
}

func TestMutator_Mutate(t *testing.T) {
	out, err := New().Mutate("db.getName()")
	require.NoError(t, err)
	assert.Equal(t, `__call(db, "getName")`, out)
}
