package shell

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

const helpText = `Statements are expressions, assignments or method calls, one per line or
separated by ";". Strings use double quotes.

  db.getCollectionNames()           list collections
  db.<coll>.find({k = "v"})          query a collection
  db.<coll>.insert({k = "v"})        insert a document
  db.<coll>.update(query, update)    update documents
  db.<coll>.remove(query)            remove documents
  it                                 print the next batch of the last cursor
  show collections                   list collections
  DBQuery.shellBatchSize = 10        set the cursor batch size`

// HandleInput processes one submitted statement. It echoes the input,
// dispatches keywords and otherwise evaluates the rewritten statement.
// Input is disabled until the outcome has been rendered.
func (s *Shell) HandleInput(input string) error {
	s.mu.Lock()
	if !s.state.InputEnabled {
		s.mu.Unlock()
		return ErrInputDisabled
	}
	s.mu.Unlock()

	if strings.TrimSpace(input) == "" {
		s.renderer.InsertLine(">", "")
		return nil
	}
	s.renderer.InsertLine(input, "> ")

	if s.keywords.HandleKeywords(strings.TrimSpace(input)) {
		return nil
	}

	s.EnableInput(false)
	var once sync.Once
	done := func() { once.Do(func() { s.EnableInput(true) }) }
	s.evaluate(input, done)
	return nil
}

func (s *Shell) evaluate(input string, done func()) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("Evaluation panicked", "input", input, "panic", p)
			s.InsertError(fmt.Errorf("%v", p))
			done()
		}
	}()

	src, err := s.mutator.Mutate(input)
	if err != nil {
		s.InsertError(err)
		done()
		return
	}

	err = s.evaluator.Eval(src, func(out any, isError bool) {
		defer done()
		s.handleOutcome(out, isError)
	})
	if err != nil {
		s.InsertError(err)
		done()
	}
}

func (s *Shell) handleOutcome(out any, isError bool) {
	if isError {
		s.InsertError(out)
		return
	}
	switch v := out.(type) {
	case nil:
	case shelltypes.Cursor:
		s.printBatch(v)
	default:
		s.renderer.InsertLine(v, "")
	}
}

// printBatch prints the next batch of c. The batch size error has already
// been written by ShellBatchSize.
func (s *Shell) printBatch(c shelltypes.Cursor) {
	if err := c.PrintBatch(); err != nil && !errors.Is(err, ErrInvalidBatchSize) {
		s.InsertError(err)
	}
}

// HandleKeywords implements shelltypes.KeywordHandler for the built-in
// keywords: it, help and show collections.
func (s *Shell) HandleKeywords(input string) bool {
	fields := strings.Fields(input)
	switch {
	case len(fields) == 1 && fields[0] == "it":
		cursor := s.State().LastUsedCursor
		if cursor == nil {
			s.renderer.InsertLine("no cursor", "")
			return true
		}
		s.printBatch(cursor)
		return true
	case len(fields) == 1 && fields[0] == "help":
		s.renderer.InsertLine(helpText, "")
		return true
	case len(fields) == 2 && fields[0] == "show":
		return s.show(fields[1])
	}
	return false
}

func (s *Shell) show(what string) bool {
	switch what {
	case "collections", "tables":
		s.EnableInput(false)
		s.db.GetCollectionNames(func(names []string, err error) {
			defer s.EnableInput(true)
			if err != nil {
				s.InsertError(err)
				return
			}
			if len(names) == 0 {
				return
			}
			rows := make([]any, len(names))
			for i, name := range names {
				rows[i] = name
			}
			s.renderer.InsertArray(rows)
		})
		return true
	case "dbs", "databases":
		s.renderer.InsertLine(s.db.Name(), "")
		return true
	}
	return false
}
