package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/muesli/termenv"

	"webshell/internal/logger"
	"webshell/internal/output"
)

// DefaultPrompt is shown in front of the input line.
const DefaultPrompt = "> "

// Session is the shell a terminal drives.
type Session interface {
	Completer
	HandleInput(input string) error
	// InputReady is closed once the session accepts the next statement.
	InputReady() <-chan struct{}
}

// Config holds the terminal's settings.
type Config struct {
	Prompt            string
	HistoryFile       string
	CompletionTimeout time.Duration
	Theme             string
	Stdin             io.ReadCloser
	Stdout            io.Writer
	Stderr            io.Writer
}

// Terminal is an interactive line-editing front end for a Session.
type Terminal struct {
	rl        *readline.Instance
	view      *View
	prompt    *Prompt
	completer *AutoCompleter
}

// New creates a terminal. The session is attached later by Run, so the
// view and prompt can be handed to the session's constructor first.
func New(cfg Config) (*Terminal, error) {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	completer := NewAutoCompleter(nil, cfg.CompletionTimeout)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cfg.Prompt,
		HistoryFile:       cfg.HistoryFile,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             cfg.Stdin,
		Stdout:            cfg.Stdout,
		Stderr:            cfg.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize readline: %w", err)
	}

	// readline wraps stdout, so the colour profile comes from the real one
	var stdout io.Writer = os.Stdout
	if cfg.Stdout != nil {
		stdout = cfg.Stdout
	}
	profile := termenv.NewOutput(stdout).EnvColorProfile()
	printer, err := output.NewThemedPrinter(rl.Stdout(), cfg.Theme, profile)
	if err != nil {
		_ = rl.Close()
		return nil, err
	}

	return &Terminal{
		rl:        rl,
		view:      NewView(printer),
		prompt:    NewPrompt(rl, cfg.Prompt),
		completer: completer,
	}, nil
}

// View returns the response view the session renders into.
func (t *Terminal) View() *View {
	return t.view
}

// Input returns the input area the session toggles.
func (t *Terminal) Input() *Prompt {
	return t.prompt
}

// Run reads statements until EOF or an exit keyword and hands each to session.
func (t *Terminal) Run(session Session) error {
	t.completer.Attach(session)
	defer func() { _ = t.rl.Close() }()

	for {
		<-session.InputReady()
		line, err := t.rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if isExit(line) {
			return nil
		}
		if err := session.HandleInput(line); err != nil {
			logger.Debug("Input rejected", "input", line, "error", err)
		}
	}
}

// RunScript feeds every non-blank line of r to session, in order. Each line
// waits for the output of the previous one.
func RunScript(r io.Reader, session Session) error {
	defer func() { <-session.InputReady() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isExit(line) {
			return nil
		}
		<-session.InputReady()
		if err := session.HandleInput(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	return scanner.Err()
}

func isExit(line string) bool {
	switch strings.TrimSpace(line) {
	case "exit", "quit":
		return true
	}
	return false
}
