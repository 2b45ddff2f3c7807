package terminal

import (
	"sync"
)

// promptSetter is the part of readline.Instance the prompt drives.
type promptSetter interface {
	SetPrompt(prompt string)
}

// Prompt is the shelltypes.InputArea of a terminal: hiding the prompt while
// a statement runs and tracking whether input is accepted.
type Prompt struct {
	mu       sync.Mutex
	target   promptSetter
	prompt   string
	readOnly bool
	shown    bool
}

// NewPrompt creates a visible, writable prompt.
func NewPrompt(target promptSetter, prompt string) *Prompt {
	return &Prompt{target: target, prompt: prompt, shown: true}
}

// SetReadOnly implements shelltypes.InputArea.
func (p *Prompt) SetReadOnly(readOnly bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readOnly = readOnly
}

// ShowPrompt implements shelltypes.InputArea.
func (p *Prompt) ShowPrompt(show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = show
	if p.target == nil {
		return
	}
	if show {
		p.target.SetPrompt(p.prompt)
	} else {
		p.target.SetPrompt("")
	}
}

// ReadOnly reports whether input is currently rejected.
func (p *Prompt) ReadOnly() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readOnly
}

// Shown reports whether the prompt is visible.
func (p *Prompt) Shown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shown
}
