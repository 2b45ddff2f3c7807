// Package transcript renders shell responses into an append-only transcript.
// Every insertion is stringified, optionally prefixed, appended after the
// existing text and then made visible by showing and scrolling the view.
package transcript

import (
	"strings"
	"sync"

	"webshell/pkg/shelltypes"
)

// PlainTextClass tags transcript lines that hold plain string output.
const PlainTextClass = "mws-cm-plain-text"

// Entry is one rendered response.
type Entry struct {
	Text        string
	IsPlainText bool
	Prefixed    bool
}

// Renderer appends responses to a response view. It is safe for concurrent
// use; insertions are serialized in arrival order.
type Renderer struct {
	mu      sync.Mutex
	view    shelltypes.ResponseView
	entries []Entry
	shown   bool
}

// NewRenderer creates a renderer over view.
func NewRenderer(view shelltypes.ResponseView) *Renderer {
	return &Renderer{view: view}
}

// InsertLine appends data to the transcript. A non-empty prefix is put in
// front of the first line and continuation lines are indented to match.
func (r *Renderer) InsertLine(data any, prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(data, prefix, true)
}

// InsertArray appends each row as its own response and refreshes the view once.
func (r *Renderer) InsertArray(rows []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.insert(row, "", false)
	}
	r.view.Refresh()
}

// Entries returns a copy of the responses rendered so far.
func (r *Renderer) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// HasShownResponse reports whether anything has been rendered yet.
func (r *Renderer) HasShownResponse() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown
}

func (r *Renderer) insert(data any, prefix string, refresh bool) {
	_, isString := data.(string)
	text := ToString(data)
	if prefix != "" {
		text = IndentContinuation(prefix, text)
	}

	separator := ""
	if r.shown {
		separator = "\n"
	}

	lastLine := r.view.LineCount() - 1
	end := shelltypes.Position{Line: lastLine, Ch: len(r.view.Line(lastLine))}
	r.view.ReplaceRange(separator+text, end)

	entry := Entry{Text: text, IsPlainText: isString && prefix == "", Prefixed: prefix != ""}
	if entry.IsPlainText {
		inserted := strings.Count(text, "\n") + 1
		total := r.view.LineCount()
		for i := total - inserted; i < total; i++ {
			r.view.AddLineClass(i, PlainTextClass)
		}
	}
	r.entries = append(r.entries, entry)
	r.shown = true

	r.view.Show()
	r.view.NudgeInput()
	if refresh {
		r.view.Refresh()
	}
	r.view.ScrollToBottom()
}

// IndentContinuation prepends prefix to text and pads every following line
// with as many spaces as the prefix is long.
func IndentContinuation(prefix, text string) string {
	padding := strings.Repeat(" ", len(prefix))
	return prefix + strings.ReplaceAll(text, "\n", "\n"+padding)
}
