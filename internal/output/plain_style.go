package output

// PlainTextStyle renders text unchanged.
type PlainTextStyle struct{}

// Render implements TextStyle.
func (PlainTextStyle) Render(text string) string {
	return text
}
