package terminal

import (
	"strings"
	"sync"

	"webshell/internal/output"
	"webshell/pkg/shelltypes"
)

// View is a shelltypes.ResponseView that keeps the transcript in memory and
// prints lines through a Printer as they are refreshed. Printed lines are
// never reprinted, which suits the append-only transcript.
type View struct {
	mu      sync.Mutex
	printer *output.Printer
	lines   []string
	classes map[int][]string
	printed int
	visible bool
}

// NewView creates a hidden view printing through printer.
func NewView(printer *output.Printer) *View {
	return &View{
		printer: printer,
		lines:   []string{""},
		classes: make(map[int][]string),
	}
}

// LineCount implements shelltypes.ResponseView.
func (v *View) LineCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.lines)
}

// Line implements shelltypes.ResponseView.
func (v *View) Line(n int) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n < 0 || n >= len(v.lines) {
		return ""
	}
	return v.lines[n]
}

// ReplaceRange implements shelltypes.ResponseView.
func (v *View) ReplaceRange(text string, pos shelltypes.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if pos.Line < 0 || pos.Line >= len(v.lines) {
		pos = shelltypes.Position{Line: len(v.lines) - 1, Ch: len(v.lines[len(v.lines)-1])}
	}
	current := v.lines[pos.Line]
	ch := max(0, min(pos.Ch, len(current)))

	inserted := strings.Split(current[:ch]+text+current[ch:], "\n")
	rest := append([]string(nil), v.lines[pos.Line+1:]...)
	v.lines = append(append(v.lines[:pos.Line], inserted...), rest...)
}

// AddLineClass implements shelltypes.ResponseView.
func (v *View) AddLineClass(line int, class string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.classes[line] = append(v.classes[line], class)
}

// Refresh prints every line not printed yet.
func (v *View) Refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.visible {
		return
	}
	for ; v.printed < len(v.lines); v.printed++ {
		v.printer.PrintLine(v.lines[v.printed], v.classes[v.printed]...)
	}
}

// Show implements shelltypes.ResponseView.
func (v *View) Show() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.visible = true
}

// NudgeInput is a no-op: the prompt always follows the printed transcript.
func (v *View) NudgeInput() {}

// ScrollToBottom is a no-op: the terminal scrolls as lines are printed.
func (v *View) ScrollToBottom() {}

// Lines returns a copy of the transcript.
func (v *View) Lines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.lines...)
}
