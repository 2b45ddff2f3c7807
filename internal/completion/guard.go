package completion

import (
	"fmt"
	"sync"

	"webshell/internal/logger"
	"webshell/pkg/shelltypes"
)

// Delivery is a consume-once token for a completion attempt's callback.
// The editor treats a callback that never fires as a popup still pending,
// so every attempt must end with exactly one delivery.
type Delivery struct {
	once    sync.Once
	deliver shelltypes.DeliverFunc
	from    shelltypes.Position
	to      shelltypes.Position
}

// NewDelivery wraps deliver in a consume-once token.
func NewDelivery(deliver shelltypes.DeliverFunc) *Delivery {
	return &Delivery{deliver: deliver}
}

// SetRange records the editor range reported with the delivered list.
func (d *Delivery) SetRange(from, to shelltypes.Position) {
	d.from = from
	d.to = to
}

// Deliver invokes the callback with list. Only the first call has any effect.
func (d *Delivery) Deliver(list []string) {
	d.once.Do(func() {
		if list == nil {
			list = []string{}
		}
		if d.deliver != nil {
			d.deliver(shelltypes.CompletionResult{List: list, From: d.from, To: d.to})
		}
	})
}

// Guard runs one stage of the completion pipeline. If the stage returns, or
// panics, without calling handoff, an empty list is delivered on exit. A stage
// calls handoff right before passing responsibility for the callback to an
// asynchronous continuation (an evaluator callback or a rule's computation).
func (d *Delivery) Guard(stage string, fn func(handoff func())) {
	handedOff := false
	defer func() {
		if r := recover(); r != nil {
			logger.CompletionStep(stage, "error", fmt.Sprint(r))
			d.Deliver(nil)
			return
		}
		if !handedOff {
			d.Deliver(nil)
		}
	}()
	fn(func() { handedOff = true })
}
