// Package shelltypes defines core architectural interfaces for webshell.
// This file contains the collaborator contracts the shell core depends on:
// the editor, the response view, the evaluator sandbox and the database
// binding. Concrete implementations live under internal/.
package shelltypes

// Editor exposes the input editor's cursor and tokenizer to the completion pipeline.
type Editor interface {
	Cursor() Position
	// TokenAt returns the token that ends at or covers pos (start < pos.Ch <= end).
	// At column 0 it returns an empty token.
	TokenAt(pos Position) Token
}

// ResponseView is the read-only widget and scroll container that displays the transcript.
type ResponseView interface {
	LineCount() int
	Line(n int) string
	// ReplaceRange inserts text at pos.
	ReplaceRange(text string, pos Position)
	AddLineClass(line int, class string)
	Refresh()

	// Show makes the response area visible. It starts hidden.
	Show()
	// NudgeInput moves the input area up so it merges with the transcript.
	NudgeInput()
	ScrollToBottom()
}

// InputArea is the editable input line of a shell.
type InputArea interface {
	SetReadOnly(readOnly bool)
	ShowPrompt(show bool)
}

// EvalCallback receives the outcome of one evaluation. It is invoked at most once per Eval call.
type EvalCallback func(out any, isError bool)

// Evaluator is the sandboxed scripting environment statements run in.
// Eval reports syntax failures through its error return; runtime failures
// arrive through the callback with isError set. Callers must not assume
// the callback runs before Eval returns.
type Evaluator interface {
	Eval(src string, cb EvalCallback) error
	SetGlobal(name string, value any)
	GetGlobal(name string) any
}

// ErrorClass is the sandbox-native error constructor, returned by GetGlobal("Error").
type ErrorClass interface {
	IsInstance(v any) bool
}

// NativeFunc is a host function injected into the sandbox as a global.
type NativeFunc func(args ...any) (any, error)

// SourceMutator rewrites user statements before they are evaluated.
type SourceMutator interface {
	Mutate(src string) (string, error)
}

// KeywordHandler handles shell keywords such as "it" or "help".
// It reports whether the input was fully handled.
type KeywordHandler interface {
	HandleKeywords(input string) bool
}

// MethodInvoker is implemented by host handles whose methods are callable from the sandbox.
type MethodInvoker interface {
	Invoke(method string, args []any) (any, error)
}

// PropertyGetter is implemented by host handles with readable properties.
type PropertyGetter interface {
	GetProperty(name string) (any, bool)
}

// PropertySetter is implemented by host handles with assignable properties.
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// Database is the root database handle bound into the sandbox as "db".
type Database interface {
	Name() string
	// GetCollectionNames lists collections asynchronously. cb is invoked exactly once.
	GetCollectionNames(cb func(names []string, err error))
	GetCollection(name string) Collection
}

// Collection is a named collection handle with an introspectable method set.
type Collection interface {
	Name() string
	FullName() string
	Methods() []string
}

// Cursor is a paginated query result that prints itself in batches.
type Cursor interface {
	PrintBatch() error
}

// ResultSink receives cursor output. It is implemented by the shell session.
type ResultSink interface {
	InsertResponseArray(rows []any)
	InsertResponseLine(data any)
	// ShellBatchSize returns the configured page size or reports and returns a configuration error.
	ShellBatchSize() (int, error)
	SetLastUsedCursor(c Cursor)
}
