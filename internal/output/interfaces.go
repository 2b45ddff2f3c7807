// Package output renders transcript lines to the terminal.
// It uses dependency injection to support optional styling: the printer
// depends only on StyleProvider, not on a concrete theme.
package output

// StyleProvider supplies the styles used for each line class.
type StyleProvider interface {
	// GetStyle returns the style for a line class such as "plain" or "echo".
	GetStyle(class string) TextStyle

	// IsAvailable returns true if the provider is ready to provide styles.
	// This allows the printer to fall back to plain text.
	IsAvailable() bool

	// ChromaStyle names the chroma style used to highlight statements and results.
	ChromaStyle() string
}

// TextStyle represents the capability to render text with styling.
// This interface is implemented by lipgloss.Style.
type TextStyle interface {
	Render(text string) string
}

// Mode defines the output modes the printer can operate in.
type Mode int

const (
	// ModeAuto styles output when a style provider is available.
	ModeAuto Mode = iota

	// ModeStyled forces styled output.
	ModeStyled

	// ModePlain forces plain text output.
	ModePlain
)

// Line classes.
const (
	// ClassPlainText marks lines rendered from plain string payloads.
	ClassPlainText = "mws-cm-plain-text"

	// StylePlain is the style key for plain text lines.
	StylePlain = "plain"
	// StyleEcho is the style key for the prompt of echoed statements.
	StyleEcho = "echo"
	// StyleResult is the style key for structured results when highlighting is off.
	StyleResult = "result"
)
