// Package apply folds a parsed utterance into the order task tree. It is the
// only place order state mutates during a turn; the orchestrator afterwards
// derives the next question purely from the resulting state.
package apply

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
	"github.com/orderline/orderline/internal/parse"
	"github.com/orderline/orderline/internal/resolve"
)

// Outcome reports what the application did, for the reply builder. Notes are
// short acknowledgements prepended to the next prompt.
type Outcome struct {
	Notes []string
	// InvalidAnswer is set when the reply to the previous question failed
	// validation; the question stays pending with its attempt count bumped.
	InvalidAnswer bool
	InvalidReason string
	// OrderCancelled is set when the whole tree was reset this turn.
	OrderCancelled bool
}

func (o *Outcome) note(format string, args ...any) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

// Applier folds parsed input into the tree. It is stateless and safe to share.
type Applier struct {
	provider catalog.Provider
	pricer   catalog.Pricer
}

func New(provider catalog.Provider, pricer catalog.Pricer) *Applier {
	return &Applier{provider: provider, pricer: pricer}
}

// Apply mutates tree according to in. It never returns an error: invalid
// pieces of input degrade to notes or attempt bumps, because a turn must
// always end in a consistent, saveable state.
func (a *Applier) Apply(tree *order.OrderTask, in *parse.ParsedInput) *Outcome {
	out := &Outcome{}

	if in.Intents.CancelOrder {
		tree.Reset()
		out.OrderCancelled = true
		out.note("No problem, I've cleared the order.")
		return out
	}
	if ref := in.Intents.CancelItemRef; ref != "" {
		a.cancelItem(tree, ref, out)
	}

	changed := false
	for _, mod := range in.Modifications {
		if a.applyModification(tree, mod, out) {
			changed = true
		}
	}
	for _, ni := range in.NewItems {
		if a.addItem(tree, ni, out) {
			changed = true
		}
	}
	for _, ans := range in.SlotAnswers {
		a.applySlotAnswer(tree, ans, out)
	}

	a.applyOrderFields(tree, in)

	// "That's it" declines whatever optional questions are still open, so
	// the flow moves on instead of re-asking them.
	if in.Intents.Checkout {
		a.declineOptionalQuestions(tree)
	}

	if in.Confirmation != nil && tree.Asked != nil && tree.Asked.Scope == order.ScopeConfirm {
		if *in.Confirmation {
			tree.Checkout.Confirmed = true
		}
		tree.Asked = nil
	}

	// Changing the order after review reopens the confirmation step.
	if changed {
		tree.Checkout.Reviewed = false
		tree.Checkout.Confirmed = false
	}

	if !out.InvalidAnswer {
		tree.Asked = nil
	} else if tree.Asked != nil {
		tree.Asked.Attempts++
	}

	a.settleItems(tree)
	return out
}

// cancelItem skips a single order line. The reference is matched against the
// active items newest first, so "remove the bagel" hits the latest bagel.
func (a *Applier) cancelItem(tree *order.OrderTask, ref string, out *Outcome) {
	var target order.Item
	if ref == "last" {
		target = tree.Items.LastActive()
	} else {
		target = findItemByText(tree, ref)
	}
	if target == nil {
		out.note("I don't see that in the order.")
		return
	}
	target.SetStatus(order.StatusSkipped)
	if tree.Asked != nil && tree.Asked.ItemID == target.ID() {
		tree.Asked = nil
	}
	if tree.Pending != nil && tree.Pending.TargetItemID == target.ID() {
		tree.Pending = nil
	}
	out.note("Removed the %s.", target.DisplayName())
}

// declineOptionalQuestions answers every still-open optional slot with its
// "nothing" value. Flags go false; choice slots take a "none" option when the
// catalog offers one.
func (a *Applier) declineOptionalQuestions(tree *order.OrderTask) {
	for _, it := range tree.Items.Active() {
		values := it.SlotValues()
		for _, schema := range it.Schema() {
			if schema.Required || !schema.AskIfMissing || values[schema.Name] != "" {
				continue
			}
			switch schema.Type {
			case catalog.SlotFlag:
				if err := it.ApplySlot(schema.Name, "false"); err != nil {
					slog.Debug("declining flag slot failed", "slot", schema.Name, "error", err)
				}
			case catalog.SlotChoice:
				if _, ok := schema.Option("none"); ok {
					if err := it.ApplySlot(schema.Name, "none"); err != nil {
						slog.Debug("declining choice slot failed", "slot", schema.Name, "error", err)
					}
				}
			}
		}
	}
}

// findItemByText matches a spoken reference against active items, most
// recently added first.
func findItemByText(tree *order.OrderTask, ref string) order.Item {
	ref = strings.ToLower(strings.TrimSpace(ref))
	active := tree.Items.Active()
	for i := len(active) - 1; i >= 0; i-- {
		it := active[i]
		name := strings.ToLower(it.Name())
		display := strings.ToLower(it.DisplayName())
		if strings.Contains(display, ref) || strings.Contains(ref, name) || strings.Contains(name, ref) {
			return it
		}
	}
	return nil
}

func (a *Applier) applyModification(tree *order.OrderTask, mod parse.Modification, out *Outcome) bool {
	var target order.Item
	if mod.TargetText != "" {
		target = findItemByText(tree, mod.TargetText)
	} else {
		target = tree.Items.LastActive()
	}
	if target == nil {
		out.note("I'm not sure which item you meant.")
		return false
	}

	if mod.SlotName != "" && mod.Value != "" {
		if err := target.ApplySlot(mod.SlotName, mod.Value); err != nil {
			out.note("I couldn't set %s to %s.", mod.SlotName, mod.Value)
			return false
		}
		out.note("Changed the %s.", target.Name())
		return true
	}

	// One utterance can touch several slots ("toasted with walnut cream
	// cheese"), so every matching slot is applied and at most one ambiguous
	// choice is deferred.
	raw := strings.ToLower(mod.Raw)
	applied := false
	var deferred *order.PendingDisambiguation
	for _, schema := range target.Schema() {
		switch schema.Type {
		case catalog.SlotFlag:
			if v, ok := flagFromText(raw, schema.Name); ok {
				if err := target.ApplySlot(schema.Name, v); err == nil {
					applied = true
				}
			}
		case catalog.SlotChoice:
			res := resolve.Resolve(raw, schema)
			if res.Resolved() {
				if err := target.ApplySlot(schema.Name, res.Value); err == nil {
					applied = true
				}
				continue
			}
			if res.Ambiguous() && deferred == nil {
				deferred = &order.PendingDisambiguation{
					AttributeSlug:     schema.Name,
					TargetItemID:      target.ID(),
					Options:           res.Candidates,
					BufferedModifiers: bufferModifiers(target, schema.Name, raw),
				}
			}
		}
	}
	if deferred != nil {
		tree.Pending = deferred
		return true
	}
	if applied {
		out.note("Got it, %s.", target.DisplayName())
		return true
	}
	out.note("I couldn't tell what to change about the %s.", target.Name())
	return false
}

// bufferModifiers collects the other slot values spoken in the same
// utterance as the ambiguous one, so they survive the disambiguation turn.
func bufferModifiers(item order.Item, ambiguousSlot, raw string) map[string]string {
	var buffered map[string]string
	for _, schema := range item.Schema() {
		if schema.Name == ambiguousSlot {
			continue
		}
		var value string
		switch schema.Type {
		case catalog.SlotFlag:
			if v, ok := flagFromText(raw, schema.Name); ok {
				value = v
			}
		case catalog.SlotChoice:
			if res := resolve.Resolve(raw, schema); res.Resolved() {
				value = res.Value
			}
		}
		if value == "" {
			continue
		}
		if buffered == nil {
			buffered = map[string]string{}
		}
		buffered[schema.Name] = value
	}
	return buffered
}

func flagFromText(raw, flagName string) (string, bool) {
	if strings.Contains(raw, "not "+flagName) || strings.Contains(raw, "no "+flagName) || strings.Contains(raw, "un"+flagName) {
		return "false", true
	}
	if strings.Contains(raw, flagName) {
		return "true", true
	}
	return "", false
}

func (a *Applier) addItem(tree *order.OrderTask, ni parse.NewItem, out *Outcome) bool {
	cat, ok := a.provider.LookupItem(ni.Name)
	if !ok {
		out.note("Sorry, we don't have %s.", ni.Name)
		return false
	}
	item := order.NewItem(cat, ni.Quantity)
	for slot, value := range ni.SlotValues {
		if err := item.ApplySlot(slot, value); err != nil {
			slog.Debug("dropping inline slot value", "item", cat.Name, "slot", slot, "value", value, "error", err)
		}
	}
	if ni.Special != "" {
		item.AddSpecialInstruction(ni.Special)
	}
	tree.Items.Add(item)

	for slot, descriptor := range ni.AmbiguousSlots {
		schema, ok := item.SlotSchema(slot)
		if !ok {
			continue
		}
		res := resolve.Resolve(descriptor, schema)
		switch {
		case res.Resolved():
			if err := item.ApplySlot(slot, res.Value); err != nil {
				slog.Debug("resolved descriptor failed validation", "slot", slot, "value", res.Value, "error", err)
			}
		case res.Ambiguous():
			tree.Pending = &order.PendingDisambiguation{
				AttributeSlug:    slot,
				TargetItemID:     item.ID(),
				Options:          res.Candidates,
				BufferedQuantity: ni.Quantity,
			}
		}
	}

	if ni.Quantity > 1 {
		out.note("Added %d %ss.", ni.Quantity, cat.Name)
	} else {
		out.note("Added a %s.", cat.Name)
	}
	return true
}

func (a *Applier) applySlotAnswer(tree *order.OrderTask, ans parse.SlotAnswer, out *Outcome) {
	switch ans.Scope {
	case order.ScopeItem:
		a.applyItemAnswer(tree, ans, out)
	case order.ScopeContact:
		// The recognizer already failed to find a phone or email; count the
		// attempt and let the orchestrator re-ask.
		out.InvalidAnswer = true
		out.InvalidReason = "I need a phone number or an email address."
	}
}

func (a *Applier) applyItemAnswer(tree *order.OrderTask, ans parse.SlotAnswer, out *Outcome) {
	item, ok := tree.Items.ByID(ans.ItemID)
	if !ok {
		return
	}
	schema, ok := item.SlotSchema(ans.SlotName)
	if !ok {
		return
	}

	value := ans.Value
	if value == "" {
		switch schema.Type {
		case catalog.SlotText:
			value = strings.TrimSpace(ans.Raw)
		default:
			res := resolve.Resolve(ans.Raw, schema)
			if res.Ambiguous() {
				tree.Pending = &order.PendingDisambiguation{
					AttributeSlug:     ans.SlotName,
					TargetItemID:      item.ID(),
					Options:           res.Candidates,
					BufferedModifiers: bufferModifiers(item, ans.SlotName, strings.ToLower(ans.Raw)),
				}
				return
			}
			value = res.Value
		}
	}
	if value == "" {
		out.InvalidAnswer = true
		out.InvalidReason = fmt.Sprintf("I didn't catch a valid choice for %s.", strings.ReplaceAll(ans.SlotName, "_", " "))
		return
	}
	if err := item.ApplySlot(ans.SlotName, value); err != nil {
		out.InvalidAnswer = true
		out.InvalidReason = fmt.Sprintf("%s isn't an option for %s.", ans.Raw, strings.ReplaceAll(ans.SlotName, "_", " "))
	}
}

// applyOrderFields folds the order-level captures: delivery, address,
// customer identity, payment.
func (a *Applier) applyOrderFields(tree *order.OrderTask, in *parse.ParsedInput) {
	if in.OrderType != "" {
		tree.Delivery.OrderType = in.OrderType
	}
	if in.Address != nil {
		addr := &tree.Delivery.Address
		if in.Address.Street != "" {
			addr.Street = in.Address.Street
		}
		if in.Address.City != "" {
			addr.City = in.Address.City
		}
		if in.Address.State != "" {
			addr.State = in.Address.State
		}
		if in.Address.ZipCode != "" {
			addr.ZipCode = in.Address.ZipCode
		}
		if in.Address.AptUnit != "" {
			addr.AptUnit = in.Address.AptUnit
		}
	}
	if in.CustomerName != "" {
		tree.Customer.Name = in.CustomerName
	}
	if in.Phone != "" {
		tree.Customer.Phone = in.Phone
	}
	if in.Email != "" {
		tree.Customer.Email = in.Email
	}
	if in.PaymentMethod != "" {
		tree.Payment.Method = in.PaymentMethod
	}
	if tree.Payment.Method == order.PaymentCardLink && tree.Payment.LinkDestination == "" {
		if tree.Customer.Phone != "" {
			tree.Payment.LinkDestination = tree.Customer.Phone
		} else if tree.Customer.Email != "" {
			tree.Payment.LinkDestination = tree.Customer.Email
		}
	}
}

// ConsumeDisambiguation tries to settle the pending "which one did you mean"
// question with this turn's utterance. It reports whether the utterance was
// consumed; when it was not consumed twice in a row the pending question is
// dropped and the text flows through normal parsing.
func (a *Applier) ConsumeDisambiguation(tree *order.OrderTask, text string) (bool, *Outcome) {
	pending := tree.Pending
	if pending == nil {
		return false, nil
	}
	out := &Outcome{}

	var chosen string
	if idx, ok := parse.OrdinalIndex(text); ok && idx >= 1 && idx <= len(pending.Options) {
		chosen = pending.Options[idx-1].Slug
	} else {
		res := resolve.ResolveAmong(text, pending.Options)
		if res.Resolved() {
			chosen = res.Value
		}
	}

	if chosen == "" {
		if pending.Reprompted {
			// Second miss: stop insisting and read the utterance normally.
			tree.Pending = nil
			return false, nil
		}
		pending.Reprompted = true
		return true, out
	}

	item, ok := tree.Items.ByID(pending.TargetItemID)
	if ok {
		if err := item.ApplySlot(pending.AttributeSlug, chosen); err != nil {
			slog.Warn("disambiguation choice failed validation", "slot", pending.AttributeSlug, "value", chosen, "error", err)
		}
		for slot, value := range pending.BufferedModifiers {
			if err := item.ApplySlot(slot, value); err != nil {
				slog.Debug("buffered modifier failed validation", "slot", slot, "value", value, "error", err)
			}
		}
		if pending.BufferedQuantity > 1 {
			item.SetQuantity(pending.BufferedQuantity)
		}
	}
	tree.Pending = nil
	tree.Asked = nil
	a.settleItems(tree)
	return true, out
}

// settleItems completes and prices items that have nothing left to ask, and
// reprices previously priced items whose attributes changed.
func (a *Applier) settleItems(tree *order.OrderTask) {
	for _, it := range tree.Items.Active() {
		stillPending := tree.Pending != nil && tree.Pending.TargetItemID == it.ID()
		if it.NextQuestionSlot() == nil && len(it.MissingRequiredSlots()) == 0 && !stillPending {
			if it.Status() != order.StatusComplete {
				it.SetStatus(order.StatusComplete)
			}
		}
		if it.Status() == order.StatusComplete || it.Priced() {
			price, err := a.pricer.UnitPrice(it.Name(), it.SlotValues())
			if err != nil {
				slog.Warn("pricing failed", "item", it.Name(), "error", err)
				continue
			}
			it.SetUnitPrice(price)
		}
	}
}
