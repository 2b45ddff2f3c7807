package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
)

const echoPrompt = "> "

// Printer writes transcript lines, styling each according to its classes.
type Printer struct {
	styleProvider StyleProvider
	highlighter   *Highlighter
	writer        io.Writer
	mode          Mode
	forcePlain    bool
	silent        bool
	prefix        string

	// Thread safety for concurrent output
	mu sync.Mutex
}

// NewPrinter creates a new Printer with the given options.
// By default, it writes to os.Stdout with automatic mode detection.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// PrintLine writes one transcript line. Lines classed as plain text are
// drawn with the plain style; echoed statements get the echo style on their
// prompt; everything else is syntax highlighted.
func (p *Printer) PrintLine(text string, classes ...string) {
	if p.silent {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	line := text
	if p.styled() {
		line = p.render(text, classes)
	}
	_, _ = fmt.Fprint(p.writer, p.prefix+line+"\n") // Ignore write errors for output operations
}

// Println writes text followed by a newline, without styling.
func (p *Printer) Println(text string) {
	if p.silent {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprint(p.writer, p.prefix+text+"\n")
}

// Error writes text as a plain text line.
func (p *Printer) Error(text string) {
	p.PrintLine(text, ClassPlainText)
}

func (p *Printer) render(text string, classes []string) string {
	switch {
	case slices.Contains(classes, ClassPlainText):
		return p.style(StylePlain).Render(text)
	case strings.HasPrefix(text, echoPrompt):
		return p.style(StyleEcho).Render(echoPrompt) + p.highlight(strings.TrimPrefix(text, echoPrompt))
	case text == strings.TrimSpace(echoPrompt):
		return p.style(StyleEcho).Render(text)
	}
	return p.highlight(text)
}

func (p *Printer) highlight(text string) string {
	if p.highlighter == nil {
		return p.style(StyleResult).Render(text)
	}
	return p.highlighter.Highlight(text)
}

func (p *Printer) style(class string) TextStyle {
	if p.styleProvider == nil {
		return PlainTextStyle{}
	}
	return p.styleProvider.GetStyle(class)
}

func (p *Printer) styled() bool {
	if p.forcePlain || p.mode == ModePlain {
		return false
	}
	return p.mode == ModeStyled || p.styleProvider != nil || p.highlighter != nil
}

// IsStylable returns true if the printer can apply styles.
func (p *Printer) IsStylable() bool {
	return !p.forcePlain && p.styleProvider != nil && p.styleProvider.IsAvailable()
}

// String returns a string representation for debugging.
func (p *Printer) String() string {
	hasStyles := "no"
	if p.IsStylable() {
		hasStyles = "yes"
	}
	return fmt.Sprintf("Printer{mode: %v, styles: %s, writer: %T}", p.mode, hasStyles, p.writer)
}
