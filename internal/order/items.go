package order

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ItemsTask owns the ordered sequence of order lines. Sequence order is
// insertion order; it matters for display and kitchen tickets only.
type ItemsTask struct {
	items []Item
}

func (t *ItemsTask) Add(item Item) {
	t.items = append(t.items, item)
}

func (t *ItemsTask) All() []Item {
	return t.items
}

// Active returns items that have not been skipped/cancelled.
func (t *ItemsTask) Active() []Item {
	var active []Item
	for _, it := range t.items {
		if it.Status() != StatusSkipped {
			active = append(active, it)
		}
	}
	return active
}

func (t *ItemsTask) ByID(id string) (Item, bool) {
	for _, it := range t.items {
		if it.ID() == id {
			return it, true
		}
	}
	return nil, false
}

// Current returns the item being configured (first in_progress), if any.
func (t *ItemsTask) Current() Item {
	for _, it := range t.items {
		if it.Status() == StatusInProgress {
			return it
		}
	}
	return nil
}

// NextPending returns the next item waiting to be configured.
func (t *ItemsTask) NextPending() Item {
	for _, it := range t.items {
		if it.Status() == StatusPending {
			return it
		}
	}
	return nil
}

// Complete reports whether the task is complete: at least one active item,
// all of them complete. Derived from item state, never stored.
func (t *ItemsTask) Complete() bool {
	active := t.Active()
	if len(active) == 0 {
		return false
	}
	for _, it := range active {
		if it.Status() != StatusComplete {
			return false
		}
	}
	return true
}

// Status derives the container status from its items.
func (t *ItemsTask) Status() Status {
	if len(t.items) == 0 {
		return StatusPending
	}
	if t.Complete() {
		return StatusComplete
	}
	return StatusInProgress
}

func (t *ItemsTask) Subtotal() float64 {
	var total float64
	for _, it := range t.Active() {
		total += it.UnitPrice() * float64(it.Quantity())
	}
	return total
}

func (t *ItemsTask) Count() int {
	var n int
	for _, it := range t.Active() {
		n += it.Quantity()
	}
	return n
}

// LastActiveOfKind returns the most recently added active item of the given
// kind. Used as the correction-target tie-break.
func (t *ItemsTask) LastActiveOfKind(kind string) Item {
	for i := len(t.items) - 1; i >= 0; i-- {
		it := t.items[i]
		if it.Status() != StatusSkipped && it.Kind() == kind {
			return it
		}
	}
	return nil
}

// LastActive returns the most recently added active item.
func (t *ItemsTask) LastActive() Item {
	for i := len(t.items) - 1; i >= 0; i-- {
		if t.items[i].Status() != StatusSkipped {
			return t.items[i]
		}
	}
	return nil
}

// itemEnvelope carries the variant discriminator for YAML round-trips.
type itemEnvelope struct {
	Bagel    *BagelItem    `yaml:"bagel,omitempty"`
	Beverage *BeverageItem `yaml:"beverage,omitempty"`
	Catalog  *CatalogItem  `yaml:"catalog,omitempty"`
}

func (t ItemsTask) MarshalYAML() (any, error) {
	envelopes := make([]itemEnvelope, 0, len(t.items))
	for _, it := range t.items {
		var env itemEnvelope
		switch v := it.(type) {
		case *BagelItem:
			env.Bagel = v
		case *BeverageItem:
			env.Beverage = v
		case *CatalogItem:
			env.Catalog = v
		default:
			return nil, fmt.Errorf("unknown item variant %T", it)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

func (t *ItemsTask) UnmarshalYAML(node *yaml.Node) error {
	var envelopes []itemEnvelope
	if err := node.Decode(&envelopes); err != nil {
		return err
	}
	t.items = t.items[:0]
	for _, env := range envelopes {
		switch {
		case env.Bagel != nil:
			t.items = append(t.items, env.Bagel)
		case env.Beverage != nil:
			t.items = append(t.items, env.Beverage)
		case env.Catalog != nil:
			t.items = append(t.items, env.Catalog)
		}
	}
	return nil
}
