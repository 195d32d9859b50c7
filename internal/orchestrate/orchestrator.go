// Package orchestrate decides what to say next. It reads the task tree after
// the applier has folded the turn's input in, picks the highest-priority gap,
// phrases the question, and records which question it asked so the next
// turn's bare answers can be scoped.
package orchestrate

import (
	"fmt"
	"strings"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
)

// maxAttempts bounds consecutive invalid answers to one question before the
// conversation is pointed at a human.
const maxAttempts = 3

// Action is the orchestrator's decision for the turn.
type Action struct {
	Reply string
	// Terminal is set once the order is finalized; the session is done.
	Terminal bool
}

type Orchestrator struct {
	provider catalog.Provider
}

func New(provider catalog.Provider) *Orchestrator {
	return &Orchestrator{provider: provider}
}

// NextAction inspects the tree and produces the next prompt, setting
// tree.Asked as a side effect. Priority runs items, delivery, review, name,
// payment, contact, finalize; the first incomplete stage wins.
func (o *Orchestrator) NextAction(tree *order.OrderTask) Action {
	if tree.Pending != nil {
		return Action{Reply: disambiguationQuestion(tree.Pending)}
	}

	// A retained question means the previous answer was invalid; re-ask it
	// rather than recomputing, unless the customer has struggled enough.
	if tree.Asked != nil {
		if tree.Asked.Attempts >= maxAttempts {
			tree.Asked = nil
			return Action{Reply: "I'm having trouble with that. Let me get someone to help you out."}
		}
		return Action{Reply: o.questionFor(tree, tree.Asked)}
	}

	if len(tree.Items.Active()) == 0 {
		return Action{Reply: "What can I get for you?"}
	}

	if item := nextItemNeedingInput(tree); item != nil {
		slot := item.NextQuestionSlot()
		if item.Status() == order.StatusPending {
			item.SetStatus(order.StatusInProgress)
		}
		tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: item.ID(), SlotName: slot.Name}
		return Action{Reply: o.slotQuestion(item, *slot)}
	}

	if !tree.Delivery.Complete() {
		if tree.Delivery.OrderType == "" {
			tree.Asked = &order.PendingSlot{Scope: order.ScopeDelivery}
			return Action{Reply: "Is this for pickup or delivery?"}
		}
		tree.Asked = &order.PendingSlot{Scope: order.ScopeAddress}
		if tree.Delivery.Address.Street == "" {
			return Action{Reply: "What's the delivery address?"}
		}
		return Action{Reply: "What's the zip code for that address?"}
	}

	if !tree.Checkout.Confirmed {
		tree.Checkout.Reviewed = true
		tree.Asked = &order.PendingSlot{Scope: order.ScopeConfirm}
		return Action{Reply: o.reviewText(tree)}
	}

	if tree.Customer.Name == "" {
		tree.Asked = &order.PendingSlot{Scope: order.ScopeName}
		return Action{Reply: "Can I get a name for the order?"}
	}

	if tree.Payment.Method == "" {
		tree.Asked = &order.PendingSlot{Scope: order.ScopePayment}
		return Action{Reply: o.paymentQuestion(tree)}
	}

	if tree.ContactRequired() && !tree.Customer.HasContact() {
		tree.Asked = &order.PendingSlot{Scope: order.ScopeContact}
		return Action{Reply: "What phone number or email should I send the payment link to?"}
	}

	return o.finalize(tree)
}

// nextItemNeedingInput prefers the item already being worked on, then the
// oldest pending one.
func nextItemNeedingInput(tree *order.OrderTask) order.Item {
	for _, it := range tree.Items.Active() {
		if it.Status() == order.StatusInProgress && it.NextQuestionSlot() != nil {
			return it
		}
	}
	for _, it := range tree.Items.Active() {
		if it.Status() == order.StatusPending && it.NextQuestionSlot() != nil {
			return it
		}
	}
	return nil
}

func (o *Orchestrator) questionFor(tree *order.OrderTask, asked *order.PendingSlot) string {
	switch asked.Scope {
	case order.ScopeItem:
		if item, ok := tree.Items.ByID(asked.ItemID); ok {
			if schema, ok := item.SlotSchema(asked.SlotName); ok {
				return o.slotQuestion(item, schema)
			}
		}
	case order.ScopeDelivery:
		return "Is this for pickup or delivery?"
	case order.ScopeAddress:
		return "What's the delivery address?"
	case order.ScopeName:
		return "Can I get a name for the order?"
	case order.ScopeContact:
		return "What phone number or email should I send the payment link to?"
	case order.ScopeConfirm:
		return o.reviewText(tree)
	case order.ScopePayment:
		return o.paymentQuestion(tree)
	}
	return "Sorry, could you say that again?"
}

func (o *Orchestrator) slotQuestion(item order.Item, schema catalog.SlotSchema) string {
	if schema.Question != "" {
		return schema.Question
	}
	switch schema.Type {
	case catalog.SlotFlag:
		return fmt.Sprintf("Would you like the %s %s?", item.Name(), strings.ReplaceAll(schema.Name, "_", " "))
	case catalog.SlotChoice:
		names := make([]string, 0, len(schema.Options))
		for _, opt := range schema.Options {
			names = append(names, opt.DisplayName)
		}
		return fmt.Sprintf("What %s for the %s? We have %s.",
			strings.ReplaceAll(schema.Name, "_", " "), item.Name(), joinOr(names))
	default:
		return fmt.Sprintf("Anything to note for the %s?", item.Name())
	}
}

func (o *Orchestrator) paymentQuestion(tree *order.OrderTask) string {
	if tree.Delivery.OrderType == order.OrderTypeDelivery {
		return "How would you like to pay? Cash on delivery, or I can send you a card payment link."
	}
	return "How would you like to pay? You can pay in store, or I can send you a card payment link."
}

// reviewText renders the running order with totals and asks for confirmation.
func (o *Orchestrator) reviewText(tree *order.OrderTask) string {
	s := o.provider.Settings()
	tree.Checkout.CalculateTotals(tree.Items.Subtotal(),
		tree.Delivery.OrderType == order.OrderTypeDelivery,
		s.CityTaxRate, s.StateTaxRate, s.DeliveryFee)

	var b strings.Builder
	b.WriteString("Here's your order:\n")
	b.WriteString(tree.Summary())
	fmt.Fprintf(&b, "\nSubtotal $%.2f, tax $%.2f", tree.Checkout.Subtotal, tree.Checkout.Tax)
	if tree.Checkout.DeliveryFee > 0 {
		fmt.Fprintf(&b, ", delivery fee $%.2f", tree.Checkout.DeliveryFee)
	}
	fmt.Fprintf(&b, ", total $%.2f.\nDoes everything look right?", tree.Checkout.Total)
	return b.String()
}

// finalize locks totals, assigns the order number, and produces the closing
// message. Totals are recomputed here so a post-review payment choice (the
// delivery fee is the only thing review could not have known) is reflected.
func (o *Orchestrator) finalize(tree *order.OrderTask) Action {
	s := o.provider.Settings()
	tree.Checkout.CalculateTotals(tree.Items.Subtotal(),
		tree.Delivery.OrderType == order.OrderTypeDelivery,
		s.CityTaxRate, s.StateTaxRate, s.DeliveryFee)
	if tree.Checkout.OrderNumber == "" {
		tree.Checkout.GenerateOrderNumber()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You're all set, %s! Order %s, total $%.2f.",
		tree.Customer.Name, tree.Checkout.OrderNumber, tree.Checkout.Total)
	switch tree.Delivery.OrderType {
	case order.OrderTypeDelivery:
		fmt.Fprintf(&b, " We'll deliver to %s.", tree.Delivery.Address.Formatted())
	default:
		b.WriteString(" We'll have it ready for pickup shortly.")
	}
	if tree.Payment.Method == order.PaymentCardLink {
		fmt.Fprintf(&b, " A payment link is on its way to %s.", tree.Payment.LinkDestination)
	}
	return Action{Reply: b.String(), Terminal: true}
}

func disambiguationQuestion(p *order.PendingDisambiguation) string {
	names := make([]string, 0, len(p.Options))
	for _, c := range p.Options {
		names = append(names, c.DisplayName)
	}
	return fmt.Sprintf("Which one did you mean: %s?", joinOr(names))
}

func joinOr(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
	}
}
