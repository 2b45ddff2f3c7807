package completion

import (
	"errors"
	"fmt"

	"webshell/pkg/shelltypes"
)

// ErrUnsafeExpression is returned for chains that are not bare dotted identifiers.
var ErrUnsafeExpression = errors.New("expression is not a dotted identifier chain")

// Outcome is the result of evaluating a completion chain: a value or an error.
type Outcome struct {
	Value any
	Err   error
}

// Bridge submits resolved access chains to the sandbox. Only bare dotted
// identifiers ever reach the evaluator: calls and indexing could have side
// effects and are never evaluated for completion.
type Bridge struct {
	evaluator shelltypes.Evaluator
}

// NewBridge creates a bridge over the given evaluator.
func NewBridge(evaluator shelltypes.Evaluator) *Bridge {
	return &Bridge{evaluator: evaluator}
}

// Evaluate evaluates the chain and passes the outcome to cb. It returns an
// error, and never invokes cb, when the chain is unsafe or the evaluator
// rejects the expression outright.
func (b *Bridge) Evaluate(chain []shelltypes.Token, cb func(Outcome)) (err error) {
	if len(chain) == 0 {
		return ErrUnsafeExpression
	}
	for _, tok := range chain {
		if tok.Text == "" || !wordToken.MatchString(tok.Text) {
			return ErrUnsafeExpression
		}
	}
	expr := Context{Chain: chain}.Expression()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating %q: %v", expr, r)
		}
	}()

	return b.evaluator.Eval(expr, func(out any, isError bool) {
		if isError {
			cb(Outcome{Err: fmt.Errorf("evaluating %q: %v", expr, out)})
			return
		}
		cb(Outcome{Value: out})
	})
}
