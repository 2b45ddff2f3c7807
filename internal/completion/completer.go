package completion

import (
	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

// Completer runs the resolve → evaluate → compute pipeline for one shell.
type Completer struct {
	bridge *Bridge
	engine *Engine
	env    Environment
}

// NewCompleter creates a completer. A nil engine uses the built-in rules.
func NewCompleter(evaluator shelltypes.Evaluator, engine *Engine, env Environment) *Completer {
	if engine == nil {
		engine = NewEngine()
	}
	return &Completer{
		bridge: NewBridge(evaluator),
		engine: engine,
		env:    env,
	}
}

// Complete computes completions at the editor's cursor. deliver is invoked
// exactly once, possibly after Complete returns, whatever path is taken.
func (c *Completer) Complete(editor shelltypes.Editor, deliver shelltypes.DeliverFunc) {
	d := NewDelivery(deliver)

	d.Guard("resolve", func(handoff func()) {
		ctx, ok := ResolveChain(editor)
		d.SetRange(ctx.Range())
		if !ok {
			logger.CompletionStep("resolve", "input", ctx.Token.Text, "result", "no chain")
			return
		}

		handoff()
		err := c.bridge.Evaluate(ctx.Chain, func(outcome Outcome) {
			c.compute(d, outcome, ctx.Prefix())
		})
		if err != nil {
			logger.CompletionStep("evaluate", "input", ctx.Expression(), "error", err)
			d.Deliver(nil)
		}
	})
}

// compute is the evaluator continuation: it selects a rule and hands it the delivery.
func (c *Completer) compute(d *Delivery, outcome Outcome, prefix string) {
	d.Guard("compute", func(handoff func()) {
		if outcome.Err != nil {
			logger.CompletionStep("evaluate", "error", outcome.Err)
			return
		}
		rule, ok := c.engine.Match(outcome.Value, c.env)
		if !ok {
			logger.CompletionStep("match", "role", Classify(outcome.Value, c.env))
			return
		}
		logger.CompletionStep("match", "rule", rule.ID(), "prefix", prefix)
		handoff()
		rule.Compute(outcome.Value, c.env, prefix, d.Deliver)
	})
}
