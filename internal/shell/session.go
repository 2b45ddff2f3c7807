// Package shell provides the interactive shell session: it echoes and
// evaluates submitted statements, renders results and errors into the
// transcript, and serves completions for the input editor.
package shell

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	"webshell/internal/completion"
	"webshell/internal/logger"
	"webshell/internal/mutate"
	"webshell/internal/transcript"
	"webshell/pkg/shelltypes"
)

var (
	// ErrInputDisabled is returned by HandleInput while a statement is still being evaluated.
	ErrInputDisabled = errors.New("input is disabled")
	// ErrInvalidBatchSize is returned when DBQuery.shellBatchSize is not a positive number.
	ErrInvalidBatchSize = errors.New("invalid shell batch size")
)

// DefaultBatchSize is the number of documents printed per cursor batch.
const DefaultBatchSize = 20

const batchSizeMessage = "ERROR: Please set DBQuery.shellBatchSize to a valid numerical value."

// State is the per-session mutable state.
type State struct {
	// ShellBatchSize is kept as assigned so that invalid values surface when a cursor prints.
	ShellBatchSize any
	InputEnabled   bool
	LastUsedCursor shelltypes.Cursor
}

// Shell is one shell session.
type Shell struct {
	mu    sync.Mutex
	state State
	// ready is closed while input is enabled
	ready chan struct{}

	renderer  *transcript.Renderer
	evaluator shelltypes.Evaluator
	db        shelltypes.Database
	mutator   shelltypes.SourceMutator
	keywords  shelltypes.KeywordHandler
	input     shelltypes.InputArea
	completer *completion.Completer
	rules     []completion.Rule
}

// Option configures a Shell.
type Option func(*Shell)

// WithInputArea attaches the input area toggled by EnableInput.
func WithInputArea(input shelltypes.InputArea) Option {
	return func(s *Shell) {
		s.input = input
	}
}

// WithKeywordHandler replaces the built-in keyword handling.
func WithKeywordHandler(h shelltypes.KeywordHandler) Option {
	return func(s *Shell) {
		s.keywords = h
	}
}

// WithMutator replaces the statement rewriter.
func WithMutator(m shelltypes.SourceMutator) Option {
	return func(s *Shell) {
		s.mutator = m
	}
}

// WithBatchSize sets the initial DBQuery.shellBatchSize.
func WithBatchSize(size any) Option {
	return func(s *Shell) {
		s.state.ShellBatchSize = size
	}
}

// WithCompletionRules appends rules after the built-in completion rules.
func WithCompletionRules(rules ...completion.Rule) Option {
	return func(s *Shell) {
		s.rules = append(s.rules, rules...)
	}
}

// binder is implemented by databases whose cursors print into a shell.
type binder interface {
	Bind(sink shelltypes.ResultSink)
}

// New creates a session rendering into view, evaluating with evaluator and
// bound to db.
func New(view shelltypes.ResponseView, evaluator shelltypes.Evaluator, db shelltypes.Database, opts ...Option) *Shell {
	s := &Shell{
		state: State{
			ShellBatchSize: float64(DefaultBatchSize),
			InputEnabled:   true,
		},
		renderer:  transcript.NewRenderer(view),
		evaluator: evaluator,
		db:        db,
		mutator:   mutate.New(),
		ready:     make(chan struct{}),
	}
	close(s.ready)
	s.keywords = s
	for _, opt := range opts {
		opt(s)
	}
	s.completer = completion.NewCompleter(evaluator, completion.NewEngine(s.rules...), s)
	if b, ok := db.(binder); ok {
		b.Bind(s)
	}
	s.injectGlobals()
	logger.Debug("Shell session created", "database", db.Name())
	return s
}

// Renderer returns the session's transcript renderer.
func (s *Shell) Renderer() *transcript.Renderer {
	return s.renderer
}

// State returns a snapshot of the session state.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RootDatabase implements completion.Environment.
func (s *Shell) RootDatabase() shelltypes.Database {
	return s.db
}

// Complete serves completions at the editor's cursor.
func (s *Shell) Complete(editor shelltypes.Editor, deliver shelltypes.DeliverFunc) {
	s.completer.Complete(editor, deliver)
}

// EnableInput toggles whether the input area accepts statements.
func (s *Shell) EnableInput(enabled bool) {
	s.mu.Lock()
	if enabled != s.state.InputEnabled {
		if enabled {
			close(s.ready)
		} else {
			s.ready = make(chan struct{})
		}
	}
	s.state.InputEnabled = enabled
	input := s.input
	s.mu.Unlock()

	if input != nil {
		input.SetReadOnly(!enabled)
		input.ShowPrompt(enabled)
	}
}

// InputReady returns a channel that is closed once the session accepts
// input again.
func (s *Shell) InputReady() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// InsertResponseLine implements shelltypes.ResultSink.
func (s *Shell) InsertResponseLine(data any) {
	s.renderer.InsertLine(data, "")
}

// InsertResponseArray implements shelltypes.ResultSink.
func (s *Shell) InsertResponseArray(rows []any) {
	s.renderer.InsertArray(rows)
}

// SetLastUsedCursor implements shelltypes.ResultSink.
func (s *Shell) SetLastUsedCursor(c shelltypes.Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastUsedCursor = c
}

// ShellBatchSize implements shelltypes.ResultSink. An invalid setting is
// reported in the transcript and returned as ErrInvalidBatchSize.
func (s *Shell) ShellBatchSize() (int, error) {
	s.mu.Lock()
	raw := s.state.ShellBatchSize
	s.mu.Unlock()

	n, ok := parseBatchSize(raw)
	if !ok {
		s.renderer.InsertLine(batchSizeMessage, "")
		return 0, ErrInvalidBatchSize
	}
	return n, nil
}

// SetShellBatchSize stores the raw batch size setting.
func (s *Shell) SetShellBatchSize(size any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ShellBatchSize = size
}

func parseBatchSize(raw any) (int, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
		return 0, false
	}
	return int(f), true
}

// InsertError renders an evaluation failure. Go errors and sandbox Error
// instances show their own text; objects with a message show
// "ERROR: <message>"; anything else shows "ERROR: <value>".
func (s *Shell) InsertError(err any) {
	s.renderer.InsertLine(s.errorText(err), "")
}

func (s *Shell) errorText(err any) string {
	if e, ok := err.(error); ok {
		return e.Error()
	}
	if class, ok := s.evaluator.GetGlobal("Error").(shelltypes.ErrorClass); ok && class.IsInstance(err) {
		return transcript.ToString(err)
	}
	switch e := err.(type) {
	case map[string]any:
		if msg, ok := e["message"]; ok {
			return "ERROR: " + transcript.ToString(msg)
		}
	case shelltypes.PropertyGetter:
		if msg, ok := e.GetProperty("message"); ok {
			return "ERROR: " + transcript.ToString(msg)
		}
	}
	return "ERROR: " + transcript.ToString(err)
}
