package terminal

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

// DefaultCompletionTimeout bounds how long TAB waits for candidates.
const DefaultCompletionTimeout = 2 * time.Second

// Completer produces completions for an editor snapshot.
type Completer interface {
	Complete(editor shelltypes.Editor, deliver shelltypes.DeliverFunc)
}

// AutoCompleter adapts a Completer to readline's AutoCompleter interface.
type AutoCompleter struct {
	mu        sync.RWMutex
	completer Completer
	timeout   time.Duration
}

// NewAutoCompleter creates an adapter. A non-positive timeout selects
// DefaultCompletionTimeout.
func NewAutoCompleter(completer Completer, timeout time.Duration) *AutoCompleter {
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &AutoCompleter{completer: completer, timeout: timeout}
}

// Attach replaces the completer candidates are requested from.
func (a *AutoCompleter) Attach(completer Completer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completer = completer
}

// Do implements readline.AutoCompleter. It returns the untyped suffix of
// every candidate and the length in runes of the text already typed.
func (a *AutoCompleter) Do(line []rune, pos int) (newLine [][]rune, offset int) {
	a.mu.RLock()
	completer := a.completer
	a.mu.RUnlock()
	if completer == nil {
		return nil, 0
	}

	pos = max(0, min(pos, len(line)))
	text := string(line)
	cursor := len(string(line[:pos]))

	results := make(chan shelltypes.CompletionResult, 1)
	completer.Complete(NewLineEditor(text, cursor), func(result shelltypes.CompletionResult) {
		select {
		case results <- result:
		default:
		}
	})

	var result shelltypes.CompletionResult
	select {
	case result = <-results:
	case <-time.After(a.timeout):
		logger.Debug("Completion timed out", "line", text, "timeout", a.timeout)
		return nil, 0
	}

	from := max(0, min(result.From.Ch, cursor))
	typed := text[from:cursor]

	var suggestions [][]rune
	for _, candidate := range result.List {
		if strings.HasPrefix(candidate, typed) {
			suggestions = append(suggestions, []rune(strings.TrimPrefix(candidate, typed)))
		}
	}
	return suggestions, utf8.RuneCountInString(typed)
}
