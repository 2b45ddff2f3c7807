package output

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrinter_PlainOutput(t *testing.T) {
	result := CaptureOutput(func(p *Printer) {
		p.PrintLine("> db.users.find()")
		p.PrintLine("plain", ClassPlainText)
		p.Println("message")
		p.Error("ERROR: bad")
	})
	assert.Equal(t, "> db.users.find()\nplain\nmessage\nERROR: bad\n", result)
}

func TestPrinter_StyledClasses(t *testing.T) {
	provider := NewMockStyleProvider()

	tests := []struct {
		name     string
		text     string
		classes  []string
		expected string
	}{
		{name: "plain text", text: "hello", classes: []string{ClassPlainText}, expected: "[plain]hello[/plain]\n"},
		{name: "echo", text: "> db.a", expected: "[echo]> [/echo][result]db.a[/result]\n"},
		{name: "blank echo", text: ">", expected: "[echo]>[/echo]\n"},
		{name: "result", text: `{ "a" : 1 }`, expected: `[result]{ "a" : 1 }[/result]` + "\n"},
		{name: "plain wins over echo", text: "> quoted", classes: []string{"other", ClassPlainText}, expected: "[plain]> quoted[/plain]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CaptureOutputWithStyles(provider, func(p *Printer) {
				p.PrintLine(tt.text, tt.classes...)
			})
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPrinter_UnavailableProviderFallsBack(t *testing.T) {
	provider := NewMockStyleProvider()
	provider.SetAvailable(false)
	result := CaptureOutputWithStyles(provider, func(p *Printer) {
		p.PrintLine("hello", ClassPlainText)
	})
	assert.Equal(t, "hello\n", result)
}

func TestPrinter_SilentAndPrefix(t *testing.T) {
	buffer := NewCaptureBuffer()
	NewPrinter(WithWriter(buffer), Silent()).PrintLine("hidden")
	assert.Zero(t, buffer.Len())

	NewPrinter(WithWriter(buffer), TestMode(), WithPrefix("| ")).PrintLine("shown")
	assert.Equal(t, []string{"| shown"}, buffer.Lines())
	assert.True(t, buffer.Contains("shown"))
}

func TestThemes(t *testing.T) {
	assert.Equal(t, []string{"monokai", "plain", "solarized-dark", "solarized-light"}, ThemeNames())

	renderer := lipgloss.NewRenderer(NewCaptureBuffer())
	renderer.SetColorProfile(termenv.TrueColor)

	theme, err := LoadTheme("", renderer)
	require.NoError(t, err)
	assert.Equal(t, DefaultTheme, theme.Name())
	assert.Equal(t, "solarized-dark", theme.ChromaStyle())
	assert.Contains(t, theme.GetStyle(StylePlain).Render("x"), "\x1b[")
	assert.Equal(t, "x", theme.GetStyle("undefined").Render("x"))

	_, err = LoadTheme("neon", renderer)
	assert.ErrorContains(t, err, "solarized-dark")
}

func TestThemedPrinter(t *testing.T) {
	buffer := NewCaptureBuffer()
	printer, err := NewThemedPrinter(buffer, "monokai", termenv.Ascii)
	require.NoError(t, err)
	printer.PrintLine("> db.users", ClassPlainText)
	printer.PrintLine(`{ "a" : 1 }`)
	assert.Equal(t, "> db.users\n{ \"a\" : 1 }\n", buffer.String())

	buffer.Reset()
	printer, err = NewThemedPrinter(buffer, "monokai", termenv.TrueColor)
	require.NoError(t, err)
	printer.PrintLine(`db.users.find({name = "ann"})`)
	out := buffer.String()
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "ann")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	_, err = NewThemedPrinter(buffer, "neon", termenv.TrueColor)
	assert.Error(t, err)
}

func TestHighlighter(t *testing.T) {
	assert.Nil(t, NewHighlighter("monokai", termenv.Ascii))

	var h *Highlighter
	assert.Equal(t, "db.a", h.Highlight("db.a"))

	h = NewHighlighter("monokai", termenv.ANSI256)
	require.NotNil(t, h)
	assert.Equal(t, "  ", h.Highlight("  "))
	assert.NotContains(t, h.Highlight(`x = "a"`), "\n")
}
