// Package testutils provides fakes of the shell's collaborators for tests.
// The fakes record how they were called so tests can assert on callback
// discipline and rendering side effects.
package testutils

import (
	"unicode"

	"webshell/pkg/shelltypes"
)

// MockEditor is an editor over a fixed token list on line 0.
type MockEditor struct {
	Tokens []shelltypes.Token
	Pos    shelltypes.Position

	// TokenAtCalls counts TokenAt lookups.
	TokenAtCalls int
}

// NewMockEditor tokenizes line and places the cursor at column cursor.
// A negative cursor places it at the end of the line.
func NewMockEditor(line string, cursor int) *MockEditor {
	if cursor < 0 {
		cursor = len(line)
	}
	return &MockEditor{
		Tokens: TokenizeLine(line),
		Pos:    shelltypes.Position{Line: 0, Ch: cursor},
	}
}

// Cursor implements shelltypes.Editor.
func (m *MockEditor) Cursor() shelltypes.Position {
	return m.Pos
}

// TokenAt implements shelltypes.Editor with start < ch <= end lookup semantics.
func (m *MockEditor) TokenAt(pos shelltypes.Position) shelltypes.Token {
	m.TokenAtCalls++
	if pos.Ch <= 0 {
		return shelltypes.Token{}
	}
	for _, tok := range m.Tokens {
		if tok.Start < pos.Ch && pos.Ch <= tok.End {
			return tok
		}
	}
	return shelltypes.Token{Start: pos.Ch, End: pos.Ch}
}

// TokenizeLine splits a line into editor tokens with JavaScript-like rules:
// identifiers after a dot are properties, quoted runs are strings, "//" starts
// a comment and whitespace runs are their own tokens.
func TokenizeLine(line string) []shelltypes.Token {
	var tokens []shelltypes.Token
	afterDot := false
	i := 0
	for i < len(line) {
		start := i
		c := rune(line[i])
		switch {
		case isIdent(c):
			for i < len(line) && isIdent(rune(line[i])) {
				i++
			}
			kind := shelltypes.TokenWord
			if afterDot {
				kind = shelltypes.TokenProperty
			}
			tokens = append(tokens, shelltypes.Token{Start: start, End: i, Text: line[start:i], Kind: kind})
			afterDot = false
		case c == '"' || c == '\'':
			i++
			for i < len(line) && rune(line[i]) != c {
				i++
			}
			if i < len(line) {
				i++
			}
			tokens = append(tokens, shelltypes.Token{Start: start, End: i, Text: line[start:i], Kind: shelltypes.TokenString})
			afterDot = false
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			i = len(line)
			tokens = append(tokens, shelltypes.Token{Start: start, End: i, Text: line[start:i], Kind: shelltypes.TokenComment})
		case unicode.IsSpace(c):
			for i < len(line) && unicode.IsSpace(rune(line[i])) {
				i++
			}
			tokens = append(tokens, shelltypes.Token{Start: start, End: i, Text: line[start:i]})
		default:
			i++
			tokens = append(tokens, shelltypes.Token{Start: start, End: i, Text: line[start:i]})
			afterDot = c == '.'
		}
	}
	return tokens
}

func isIdent(c rune) bool {
	return c == '_' || c == '$' || unicode.IsLetter(c) || unicode.IsDigit(c)
}
