// Package mutate rewrites user statements before they reach the sandbox.
// Member accesses are lowered to helper calls so that host handles, which the
// expression language cannot traverse natively, stay reachable:
//
//	db.users.find({a = 1}).limit(2)
//
// becomes
//
//	__call(__call(__get(db, "users"), "find", {a = 1}), "limit", 2)
package mutate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"

	"webshell/internal/logger"
)

// Helper names the rewritten source calls into.
const (
	GetHelper  = "__get"
	CallHelper = "__call"
)

// Mutator implements shelltypes.SourceMutator.
type Mutator struct{}

// New creates a mutator.
func New() *Mutator {
	return &Mutator{}
}

// Mutate lowers member accesses in src.
func (m *Mutator) Mutate(src string) (string, error) {
	out, err := SwapMemberAccesses(src)
	if err != nil {
		return "", err
	}
	logger.Evaluation(src, out)
	return out, nil
}

type piece struct {
	ws   string
	text string
}

type rewriter struct {
	out          []piece
	// stack holds, per open bracket, the output index where the operand
	// enclosing it started.
	stack        []int
	operandStart int
	afterOperand bool
}

// SwapMemberAccesses rewrites every `.name(args)` into `__call(recv, "name", args)`
// and every other `.name` into `__get(recv, "name")`. Rewriting already
// lowered source returns it unchanged.
func SwapMemberAccesses(src string) (string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return "", err
	}

	w := &rewriter{}
	prevEnd := 0
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Type == hclsyntax.TokenEOF {
			break
		}
		ws := src[prevEnd:tok.Range.Start.Byte]
		prevEnd = tok.Range.End.Byte
		text := string(tok.Bytes)

		switch tok.Type {
		case hclsyntax.TokenDot:
			if !w.afterOperand || i+1 >= len(tokens) || tokens[i+1].Type != hclsyntax.TokenIdent {
				w.push(ws, text, false)
				continue
			}
			name := strconv.Quote(string(tokens[i+1].Bytes))
			prevEnd = tokens[i+1].Range.End.Byte
			i++
			recvWS, recv := w.takeOperand()

			if i+1 < len(tokens) && tokens[i+1].Type == hclsyntax.TokenOParen {
				i++
				prevEnd = tokens[i].Range.End.Byte
				start := len(w.out)
				w.out = append(w.out, piece{ws: recvWS, text: CallHelper + "(" + recv + ", " + name})
				w.stack = append(w.stack, start)
				if i+1 < len(tokens) && tokens[i+1].Type != hclsyntax.TokenCParen {
					w.out = append(w.out, piece{text: ", "})
					prevEnd = tokens[i+1].Range.Start.Byte
				}
				w.afterOperand = false
				continue
			}
			w.operandStart = len(w.out)
			w.out = append(w.out, piece{ws: recvWS, text: GetHelper + "(" + recv + ", " + name + ")"})
			w.afterOperand = true

		case hclsyntax.TokenOParen, hclsyntax.TokenOBrack:
			start := len(w.out)
			if w.afterOperand {
				start = w.operandStart
			}
			w.open(ws, text, start)

		case hclsyntax.TokenOBrace, hclsyntax.TokenOQuote, hclsyntax.TokenOHeredoc:
			w.open(ws, text, len(w.out))

		case hclsyntax.TokenTemplateInterp, hclsyntax.TokenTemplateControl:
			w.open(ws, text, w.operandStart)

		case hclsyntax.TokenCParen, hclsyntax.TokenCBrack, hclsyntax.TokenCBrace,
			hclsyntax.TokenCQuote, hclsyntax.TokenCHeredoc:
			w.close(ws, text, true)

		case hclsyntax.TokenTemplateSeqEnd:
			w.close(ws, text, false)

		case hclsyntax.TokenIdent, hclsyntax.TokenNumberLit:
			w.operandStart = len(w.out)
			w.push(ws, text, true)

		case hclsyntax.TokenComment:
			if strings.HasSuffix(text, "\n") {
				w.push(ws, "\n", false)
			} else {
				w.push(ws, " ", false)
			}

		default:
			if strings.Trim(text, "\t") == "" {
				w.push(ws, strings.Repeat(" ", len(text)), w.afterOperand)
				continue
			}
			w.push(ws, text, false)
		}
	}

	var b strings.Builder
	for _, p := range w.out {
		b.WriteString(p.ws)
		b.WriteString(p.text)
	}
	return b.String(), nil
}

// Lex tokenizes src in expression mode. Statement separators and tab
// indentation, which the native syntax rejects, are accepted.
func Lex(src string) (hclsyntax.Tokens, error) {
	tokens, diags := hclsyntax.LexExpression([]byte(src), "<input>", hcl.InitialPos)
	var errs hcl.Diagnostics
	for _, diag := range diags {
		if diag.Severity == hcl.DiagError && !tolerated(src, diag) {
			errs = append(errs, diag)
		}
	}
	if errs.HasErrors() {
		return nil, errors.New(errs.Error())
	}
	return tokens, nil
}

// IsSeparator reports whether tok ends a statement.
func IsSeparator(tok hclsyntax.Token) bool {
	return tok.Type == hclsyntax.TokenNewline || string(tok.Bytes) == ";"
}

func tolerated(src string, diag *hcl.Diagnostic) bool {
	if diag.Subject == nil || diag.Subject.End.Byte > len(src) {
		return false
	}
	subject := src[diag.Subject.Start.Byte:diag.Subject.End.Byte]
	return subject == ";" || (subject != "" && strings.Trim(subject, "\t") == "")
}

func (w *rewriter) push(ws, text string, operand bool) {
	w.out = append(w.out, piece{ws: ws, text: text})
	w.afterOperand = operand
}

func (w *rewriter) open(ws, text string, operandStart int) {
	w.stack = append(w.stack, operandStart)
	w.push(ws, text, false)
}

func (w *rewriter) close(ws, text string, operand bool) {
	w.push(ws, text, operand)
	if len(w.stack) == 0 {
		w.afterOperand = false
		return
	}
	w.operandStart = w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
}

// takeOperand removes the current operand from the output and returns its
// leading whitespace and its text.
func (w *rewriter) takeOperand() (string, string) {
	pieces := w.out[w.operandStart:]
	w.out = w.out[:w.operandStart]

	var b strings.Builder
	for i, p := range pieces {
		if i > 0 {
			b.WriteString(p.ws)
		}
		b.WriteString(p.text)
	}
	if len(pieces) == 0 {
		return "", ""
	}
	return pieces[0].ws, b.String()
}
