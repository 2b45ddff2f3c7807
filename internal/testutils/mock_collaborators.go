package testutils

import (
	"errors"
	"strings"
	"sync"

	"webshell/pkg/shelltypes"
)

// ErrMockSyntax is returned by MockEvaluator for sources registered as syntax errors.
var ErrMockSyntax = errors.New("mock syntax error")

// MockEvaluator resolves sources from fixed tables. It can call back
// synchronously, asynchronously, or panic, to exercise every caller path.
type MockEvaluator struct {
	mu sync.Mutex

	Values       map[string]any
	RuntimeErrs  map[string]any
	SyntaxErrs   map[string]bool
	PanicOn      map[string]bool
	Async        bool
	SkipCallback bool

	globals map[string]any
	calls   []string
	wg      sync.WaitGroup
}

// NewMockEvaluator creates an evaluator with empty tables.
func NewMockEvaluator() *MockEvaluator {
	return &MockEvaluator{
		Values:      make(map[string]any),
		RuntimeErrs: make(map[string]any),
		SyntaxErrs:  make(map[string]bool),
		PanicOn:     make(map[string]bool),
		globals:     make(map[string]any),
	}
}

// Eval implements shelltypes.Evaluator.
func (m *MockEvaluator) Eval(src string, cb shelltypes.EvalCallback) error {
	m.mu.Lock()
	m.calls = append(m.calls, src)
	panicking := m.PanicOn[src]
	syntax := m.SyntaxErrs[src]
	rtErr, isErr := m.RuntimeErrs[src]
	value := m.Values[src]
	async := m.Async
	skip := m.SkipCallback
	m.mu.Unlock()

	if panicking {
		panic("mock evaluator panic: " + src)
	}
	if syntax {
		return ErrMockSyntax
	}
	if skip {
		return nil
	}

	run := func() {
		if isErr {
			cb(rtErr, true)
			return
		}
		cb(value, false)
	}
	if async {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			run()
		}()
		return nil
	}
	run()
	return nil
}

// Wait blocks until asynchronous callbacks have run.
func (m *MockEvaluator) Wait() {
	m.wg.Wait()
}

// SetGlobal implements shelltypes.Evaluator.
func (m *MockEvaluator) SetGlobal(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.globals[name] = value
}

// GetGlobal implements shelltypes.Evaluator.
func (m *MockEvaluator) GetGlobal(name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globals[name]
}

// Calls returns the sources evaluated so far.
func (m *MockEvaluator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockDatabase is a database handle with a fixed collection listing.
type MockDatabase struct {
	DBName      string
	Collections []string
	ListErr     error
	Async       bool

	wg sync.WaitGroup
}

// Name implements shelltypes.Database.
func (m *MockDatabase) Name() string {
	return m.DBName
}

// GetCollectionNames implements shelltypes.Database.
func (m *MockDatabase) GetCollectionNames(cb func([]string, error)) {
	names := append([]string(nil), m.Collections...)
	if !m.Async {
		cb(names, m.ListErr)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		cb(names, m.ListErr)
	}()
}

// GetCollection implements shelltypes.Database.
func (m *MockDatabase) GetCollection(name string) shelltypes.Collection {
	return &MockCollection{CollName: name, DBName: m.DBName, MethodNames: DefaultCollectionMethods()}
}

// Wait blocks until asynchronous listings have completed.
func (m *MockDatabase) Wait() {
	m.wg.Wait()
}

// DefaultCollectionMethods returns a method set including names completion must hide.
func DefaultCollectionMethods() []string {
	return []string{"find", "findOne", "insert", "toString", "__proto__", "__invoke", "count", "remove", "update"}
}

// MockCollection is a collection handle with a fixed method set.
type MockCollection struct {
	CollName    string
	DBName      string
	MethodNames []string
}

// Name implements shelltypes.Collection.
func (m *MockCollection) Name() string {
	return m.CollName
}

// FullName implements shelltypes.Collection.
func (m *MockCollection) FullName() string {
	return m.DBName + "." + m.CollName
}

// Methods implements shelltypes.Collection.
func (m *MockCollection) Methods() []string {
	return append([]string(nil), m.MethodNames...)
}

// MockView records everything the renderer does to the response widget.
type MockView struct {
	mu sync.Mutex

	lines       []string
	classes     map[int][]string
	Visible     bool
	Nudged      int
	Refreshes   int
	Scrolls     int
	ScrollCalls []int
}

// NewMockView creates an empty view with one blank line, like a fresh editor.
func NewMockView() *MockView {
	return &MockView{lines: []string{""}, classes: make(map[int][]string)}
}

// LineCount implements shelltypes.ResponseView.
func (m *MockView) LineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

// Line implements shelltypes.ResponseView.
func (m *MockView) Line(n int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= len(m.lines) {
		return ""
	}
	return m.lines[n]
}

// ReplaceRange implements shelltypes.ResponseView by inserting text at pos.
func (m *MockView) ReplaceRange(text string, pos shelltypes.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := m.lines[pos.Line]
	head, tail := line[:pos.Ch], line[pos.Ch:]
	inserted := strings.Split(head+text+tail, "\n")
	lines := append([]string(nil), m.lines[:pos.Line]...)
	lines = append(lines, inserted...)
	m.lines = append(lines, m.lines[pos.Line+1:]...)
}

// AddLineClass implements shelltypes.ResponseView.
func (m *MockView) AddLineClass(line int, class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[line] = append(m.classes[line], class)
}

// Refresh implements shelltypes.ResponseView.
func (m *MockView) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refreshes++
}

// Show implements shelltypes.ResponseView.
func (m *MockView) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Visible = true
}

// NudgeInput implements shelltypes.ResponseView.
func (m *MockView) NudgeInput() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nudged++
}

// ScrollToBottom implements shelltypes.ResponseView.
func (m *MockView) ScrollToBottom() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scrolls++
	m.ScrollCalls = append(m.ScrollCalls, len(m.lines))
}

// Text returns the whole rendered text.
func (m *MockView) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.lines, "\n")
}

// Classes returns the classes added to line n.
func (m *MockView) Classes(n int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.classes[n]...)
}

// MockInput records input area state changes.
type MockInput struct {
	ReadOnly      bool
	PromptVisible bool
	Changes       int
}

// SetReadOnly implements shelltypes.InputArea.
func (m *MockInput) SetReadOnly(readOnly bool) {
	m.ReadOnly = readOnly
	m.Changes++
}

// ShowPrompt implements shelltypes.InputArea.
func (m *MockInput) ShowPrompt(show bool) {
	m.PromptVisible = show
}

// CompletionRecorder collects completion deliveries.
type CompletionRecorder struct {
	mu      sync.Mutex
	results []shelltypes.CompletionResult
	done    chan struct{}
}

// NewCompletionRecorder creates a recorder.
func NewCompletionRecorder() *CompletionRecorder {
	return &CompletionRecorder{done: make(chan struct{}, 16)}
}

// Deliver is a shelltypes.DeliverFunc.
func (r *CompletionRecorder) Deliver(result shelltypes.CompletionResult) {
	r.mu.Lock()
	r.results = append(r.results, result)
	r.mu.Unlock()
	r.done <- struct{}{}
}

// Done is signalled after every delivery.
func (r *CompletionRecorder) Done() <-chan struct{} {
	return r.done
}

// Results returns all deliveries so far.
func (r *CompletionRecorder) Results() []shelltypes.CompletionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shelltypes.CompletionResult(nil), r.results...)
}
