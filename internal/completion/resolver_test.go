package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshell/internal/testutils"
	"webshell/pkg/shelltypes"
)

func TestResolveChain(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		cursor     int
		ok         bool
		expression string
		prefix     string
	}{
		{name: "single level", line: "db.us", cursor: -1, ok: true, expression: "db", prefix: "us"},
		{name: "two levels", line: "db.users.fi", cursor: -1, ok: true, expression: "db.users", prefix: "fi"},
		{name: "trailing dot", line: "db.users.", cursor: -1, ok: true, expression: "db.users", prefix: ""},
		{name: "cursor mid line", line: "db.us + 1", cursor: 5, ok: true, expression: "db", prefix: "us"},
		{name: "dollar and underscore", line: "$root._meta.x", cursor: -1, ok: true, expression: "$root._meta", prefix: "x"},
		{name: "word only", line: "db", cursor: -1, ok: false},
		{name: "start of line dot", line: ".x", cursor: -1, ok: false},
		{name: "string", line: `"db.us`, cursor: -1, ok: false},
		{name: "call in chain", line: "a().b", cursor: -1, ok: false},
		{name: "empty", line: "", cursor: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, ok := ResolveChain(testutils.NewMockEditor(tt.line, tt.cursor))
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Empty(t, ctx.Chain)
				return
			}
			assert.Equal(t, tt.expression, ctx.Expression())
			assert.Equal(t, tt.prefix, ctx.Prefix())
		})
	}
}

func TestResolveChain_RootFirstOrder(t *testing.T) {
	ctx, ok := ResolveChain(testutils.NewMockEditor("a.b.c.d", -1))
	require.True(t, ok)

	texts := make([]string, len(ctx.Chain))
	for i, tok := range ctx.Chain {
		texts[i] = tok.Text
	}
	assert.Equal(t, []string{"a", "b", "c"}, texts)
	assert.Equal(t, shelltypes.TokenWord, ctx.Chain[0].Kind)
	assert.Equal(t, shelltypes.TokenProperty, ctx.Chain[2].Kind)
}

func TestResolveChain_PlaceholderKinds(t *testing.T) {
	editor := &testutils.MockEditor{
		Tokens: []shelltypes.Token{
			{Start: 0, End: 1, Text: "a", Kind: shelltypes.TokenWord},
			{Start: 1, End: 2, Text: ".", Kind: shelltypes.TokenOther},
		},
		Pos: shelltypes.Position{Ch: 2},
	}
	ctx, ok := ResolveChain(editor)
	require.True(t, ok)
	assert.Equal(t, shelltypes.TokenProperty, ctx.Token.Kind)
	assert.Equal(t, 2, ctx.Token.Start)
	assert.Equal(t, 2, ctx.Token.End)

	editor.Tokens[1].Text = "("
	ctx, ok = ResolveChain(editor)
	require.False(t, ok)
	assert.Equal(t, shelltypes.TokenOther, ctx.Token.Kind)
}

func TestClassify(t *testing.T) {
	root := &testutils.MockDatabase{DBName: "test"}
	other := &testutils.MockDatabase{DBName: "other"}
	env := testEnv{root: root}

	assert.Equal(t, RoleDatabaseRoot, Classify(root, env))
	assert.Equal(t, RoleUnrecognized, Classify(other, env), "only the session's own root handle")
	assert.Equal(t, RoleCollection, Classify(root.GetCollection("users"), env))
	assert.Equal(t, RoleUnrecognized, Classify(map[string]any{"a": 1}, env))
	assert.Equal(t, RoleUnrecognized, Classify(nil, env))
	assert.Equal(t, "collection", RoleCollection.String())
}

func TestEngine_FirstMatchWins(t *testing.T) {
	engine := NewEngine(doubleRule{})
	root := &testutils.MockDatabase{DBName: "test"}

	rule, ok := engine.Match(root, testEnv{root: root})
	require.True(t, ok)
	assert.Equal(t, "db-collections", rule.ID())

	rule, ok = engine.Match(3.5, testEnv{root: root})
	require.True(t, ok)
	assert.Equal(t, "double", rule.ID())

	_, ok = NewEngine().Match(3.5, testEnv{root: root})
	assert.False(t, ok)
	assert.Len(t, engine.Rules(), 3)
}
