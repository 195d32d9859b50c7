// Package fallback interprets utterances the deterministic recognizers could
// not read. An Interpreter is a one-shot extractor behind a hard deadline;
// whatever it returns is sanitized against the catalog before the applier
// sees it, and any failure degrades to a re-prompt rather than an error.
package fallback

import (
	"context"
	"log/slog"
	"time"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/parse"
)

// Request carries the conversational context an interpreter needs: the
// utterance, the question that was on the table, and a view of the order.
type Request struct {
	Utterance    string
	Question     string
	Scope        string
	OrderSummary string
}

// Interpreter extracts a structured reading from one utterance.
type Interpreter interface {
	Interpret(ctx context.Context, req Request) (*parse.ParsedInput, error)
}

// Adapter wraps an Interpreter with a deadline and output sanitation. The
// engine talks only to the adapter.
type Adapter struct {
	interp   Interpreter
	provider catalog.Provider
	timeout  time.Duration
}

func NewAdapter(interp Interpreter, provider catalog.Provider, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Adapter{interp: interp, provider: provider, timeout: timeout}
}

// Interpret runs the interpreter under the configured deadline. The returned
// error means the turn should degrade to a generic re-prompt; state is never
// touched on that path.
func (a *Adapter) Interpret(ctx context.Context, req Request) (*parse.ParsedInput, error) {
	if a.interp == nil {
		return nil, parse.ErrLowConfidence
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	in, err := a.interp.Interpret(ctx, req)
	if err != nil {
		slog.Warn("fallback interpreter failed", "error", err)
		return nil, err
	}
	a.sanitize(in)
	if in.Empty() {
		return nil, parse.ErrLowConfidence
	}
	return in, nil
}

// sanitize drops hallucinated content: items not on the menu, slot values for
// slots the item does not have, and nonsense quantities. Names are rewritten
// to their canonical catalog form.
func (a *Adapter) sanitize(in *parse.ParsedInput) {
	kept := in.NewItems[:0]
	for _, ni := range in.NewItems {
		cat, ok := a.provider.LookupItem(ni.Name)
		if !ok {
			slog.Debug("dropping unknown item from fallback output", "name", ni.Name)
			continue
		}
		ni.Name = cat.Name
		if ni.Quantity < 1 {
			ni.Quantity = 1
		}
		if ni.Quantity > 48 {
			ni.Quantity = 48
		}
		for slot := range ni.SlotValues {
			if _, ok := cat.Slot(slot); !ok {
				delete(ni.SlotValues, slot)
			}
		}
		for slot := range ni.AmbiguousSlots {
			if _, ok := cat.Slot(slot); !ok {
				delete(ni.AmbiguousSlots, slot)
			}
		}
		kept = append(kept, ni)
	}
	in.NewItems = kept

	switch in.PaymentMethod {
	case "", "in_store", "cash_delivery", "card_link":
	default:
		in.PaymentMethod = ""
	}
	switch in.OrderType {
	case "", "pickup", "delivery":
	default:
		in.OrderType = ""
	}
}
