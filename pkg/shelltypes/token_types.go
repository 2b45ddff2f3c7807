// Package shelltypes defines editor token types for webshell.
// This file contains the lexical snapshot types the editor hands to the
// completion pipeline and the completion result delivered back to it.
package shelltypes

// TokenKind classifies a token reported by the editor.
type TokenKind int

const (
	// TokenOther is any token that is not one of the kinds below (punctuation, whitespace, operators).
	TokenOther TokenKind = iota
	// TokenWord is a bare identifier that is not preceded by a dot.
	TokenWord
	// TokenProperty is an identifier that follows a dot, or a lone dot reclassified by the resolver.
	TokenProperty
	// TokenString is a string literal, including its quotes.
	TokenString
	// TokenComment is a line or block comment.
	TokenComment
)

// String returns the lowercase kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenWord:
		return "word"
	case TokenProperty:
		return "property"
	case TokenString:
		return "string"
	case TokenComment:
		return "comment"
	default:
		return "other"
	}
}

// Position addresses a column on a line of the editor buffer.
type Position struct {
	Line int
	Ch   int
}

// Token is an immutable snapshot of a lexical unit at a cursor location.
// Start and End are column offsets on the token's line; End is exclusive.
type Token struct {
	Start int
	End   int
	Text  string
	Kind  TokenKind
}

// CompletionResult is delivered to the editor once per completion attempt.
// From and To span the text the editor replaces with the chosen candidate.
type CompletionResult struct {
	List []string
	From Position
	To   Position
}

// DeliverFunc receives the completion result for one completion attempt.
type DeliverFunc func(CompletionResult)
