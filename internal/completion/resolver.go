// Package completion implements context-sensitive autocompletion for the shell.
// It reconstructs the dotted access chain at the cursor, evaluates the chain's
// side-effect-free prefix in the sandbox, picks a completion rule for the
// resulting value and delivers candidates to the editor exactly once.
package completion

import (
	"regexp"
	"strings"

	"webshell/pkg/shelltypes"
)

// wordToken matches identifier-like token text, including the empty string.
var wordToken = regexp.MustCompile(`^[\w$]*$`)

// Context is the resolved completion context at the cursor.
type Context struct {
	// Chain is the access chain leading to the cursor, root first.
	Chain []shelltypes.Token
	// Token is the token under the cursor, possibly a zero-width placeholder.
	Token shelltypes.Token
	// Line is the cursor line.
	Line int
}

// Prefix returns the partially typed text completions are filtered by.
func (c Context) Prefix() string {
	return c.Token.Text
}

// Expression joins the chain into the dotted expression submitted to the sandbox.
func (c Context) Expression() string {
	parts := make([]string, len(c.Chain))
	for i, tok := range c.Chain {
		parts[i] = tok.Text
	}
	return strings.Join(parts, ".")
}

// Range returns the editor range replaced by a chosen candidate.
func (c Context) Range() (shelltypes.Position, shelltypes.Position) {
	return shelltypes.Position{Line: c.Line, Ch: c.Token.Start},
		shelltypes.Position{Line: c.Line, Ch: c.Token.End}
}

// ResolveChain walks backwards from the cursor through the editor's tokens and
// rebuilds the dotted property chain that leads to it. The second return value
// is false when no completion applies. The returned Context carries the cursor
// token even when resolution fails, so callers can report the replaced range.
func ResolveChain(editor shelltypes.Editor) (Context, bool) {
	cur := editor.Cursor()
	token := editor.TokenAt(cur)
	ctx := Context{Token: token, Line: cur.Line}

	if token.Kind == shelltypes.TokenString || token.Kind == shelltypes.TokenComment {
		return ctx, false
	}

	if !wordToken.MatchString(token.Text) {
		kind := shelltypes.TokenOther
		if token.Text == "." {
			kind = shelltypes.TokenProperty
		}
		token = shelltypes.Token{Start: cur.Ch, End: cur.Ch, Text: "", Kind: kind}
		ctx.Token = token
	}

	var chain []shelltypes.Token
	prop := token
	for prop.Kind == shelltypes.TokenProperty {
		if prop.Start <= 0 {
			return ctx, false
		}
		dot := editor.TokenAt(shelltypes.Position{Line: cur.Line, Ch: prop.Start})
		if dot.Text != "." || dot.Start <= 0 {
			return ctx, false
		}
		prop = editor.TokenAt(shelltypes.Position{Line: cur.Line, Ch: dot.Start})
		if prop.Text == "" || !wordToken.MatchString(prop.Text) {
			return ctx, false
		}
		chain = append(chain, prop)
	}

	if len(chain) == 0 {
		return ctx, false
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	ctx.Chain = chain
	return ctx, true
}
