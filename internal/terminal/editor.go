// Package terminal hosts a shell session on a terminal: line input with
// history and TAB completion through readline, and a response view that
// prints the transcript as it grows.
package terminal

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"webshell/pkg/shelltypes"
)

// LineEditor is a shelltypes.Editor over a single input line. Columns are
// byte offsets into the line.
type LineEditor struct {
	line   string
	cursor int
	tokens []shelltypes.Token
}

// NewLineEditor tokenizes line and places the cursor at byte offset cursor.
func NewLineEditor(line string, cursor int) *LineEditor {
	cursor = max(0, min(cursor, len(line)))
	return &LineEditor{line: line, cursor: cursor, tokens: tokenize(line)}
}

// Cursor implements shelltypes.Editor.
func (e *LineEditor) Cursor() shelltypes.Position {
	return shelltypes.Position{Line: 0, Ch: e.cursor}
}

// TokenAt implements shelltypes.Editor. Positions between tokens yield an
// empty token at that position.
func (e *LineEditor) TokenAt(pos shelltypes.Position) shelltypes.Token {
	if pos.Ch <= 0 {
		return shelltypes.Token{}
	}
	for _, tok := range e.tokens {
		if tok.Start < pos.Ch && pos.Ch <= tok.End {
			return tok
		}
	}
	return shelltypes.Token{Start: pos.Ch, End: pos.Ch}
}

// Tokens returns the line's tokens.
func (e *LineEditor) Tokens() []shelltypes.Token {
	return append([]shelltypes.Token(nil), e.tokens...)
}

// tokenize lexes line with the statement syntax. Identifiers directly after
// a dot are properties, and a quoted string including its interpolations is
// a single string token.
func tokenize(line string) []shelltypes.Token {
	raw, _ := hclsyntax.LexExpression([]byte(line), "<input>", hcl.InitialPos)

	var tokens []shelltypes.Token
	quoteDepth, quoteStart := 0, 0
	var prev hclsyntax.TokenType
	for _, tok := range raw {
		start, end := tok.Range.Start.Byte, tok.Range.End.Byte
		switch tok.Type {
		case hclsyntax.TokenEOF:
			continue
		case hclsyntax.TokenOQuote, hclsyntax.TokenOHeredoc:
			if quoteDepth == 0 {
				quoteStart = start
			}
			quoteDepth++
			continue
		case hclsyntax.TokenCQuote, hclsyntax.TokenCHeredoc:
			quoteDepth--
			if quoteDepth == 0 {
				tokens = append(tokens, shelltypes.Token{
					Start: quoteStart, End: end, Text: line[quoteStart:end], Kind: shelltypes.TokenString,
				})
			}
			prev = tok.Type
			continue
		}
		if quoteDepth > 0 {
			continue
		}

		kind := shelltypes.TokenOther
		switch tok.Type {
		case hclsyntax.TokenIdent:
			kind = shelltypes.TokenWord
			if prev == hclsyntax.TokenDot && len(tokens) > 0 && tokens[len(tokens)-1].End == start {
				kind = shelltypes.TokenProperty
			}
		case hclsyntax.TokenComment:
			kind = shelltypes.TokenComment
		case hclsyntax.TokenNewline:
			prev = tok.Type
			continue
		}
		tokens = append(tokens, shelltypes.Token{Start: start, End: end, Text: line[start:end], Kind: kind})
		prev = tok.Type
	}

	// an unterminated string runs to the end of the line
	if quoteDepth > 0 {
		tokens = append(tokens, shelltypes.Token{
			Start: quoteStart, End: len(line), Text: line[quoteStart:], Kind: shelltypes.TokenString,
		})
	}
	return tokens
}
