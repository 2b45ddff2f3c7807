package output

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/muesli/termenv"
)

// Highlighter colours single lines of shell statements and results.
type Highlighter struct {
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewHighlighter creates a highlighter for the given chroma style and
// terminal colour profile. It returns nil for terminals without colour.
func NewHighlighter(styleName string, profile termenv.Profile) *Highlighter {
	var formatter chroma.Formatter
	switch profile {
	case termenv.TrueColor:
		formatter = formatters.Get("terminal16m")
	case termenv.ANSI256:
		formatter = formatters.Get("terminal256")
	case termenv.ANSI:
		formatter = formatters.Get("terminal16")
	default:
		return nil
	}

	lexer := lexers.Get("hcl")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return &Highlighter{
		lexer:     chroma.Coalesce(lexer),
		formatter: formatter,
		style:     styles.Get(styleName),
	}
}

// Highlight returns text with terminal colour sequences. On any failure the
// text is returned unchanged.
func (h *Highlighter) Highlight(text string) string {
	if h == nil || strings.TrimSpace(text) == "" {
		return text
	}
	it, err := h.lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var b strings.Builder
	if err := h.formatter.Format(&b, h.style, it); err != nil {
		return text
	}
	// the lexer appends a newline to its input
	return strings.ReplaceAll(b.String(), "\n", "")
}
