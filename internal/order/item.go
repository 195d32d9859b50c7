package order

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/orderline/orderline/internal/catalog"
)

// Item kinds form a closed set; adding a kind means adding a variant here and
// a schema entry in the catalog, not new conditionals across components.
const (
	KindBagel         = "bagel"
	KindSizedBeverage = "sized_beverage"
	KindBeverage      = "beverage"
	KindMenuItem      = "menu_item"
)

// Item is one order line. All variants share the same capability surface so
// no component ever switches on the concrete type.
type Item interface {
	ID() string
	Kind() string
	Name() string
	Status() Status
	SetStatus(Status)
	Quantity() int
	SetQuantity(int)

	// UnitPrice is only meaningful after the first price recalculation;
	// Priced reports whether that has happened.
	UnitPrice() float64
	SetUnitPrice(float64)
	Priced() bool

	SlotValues() map[string]string
	Schema() []catalog.SlotSchema
	SlotSchema(name string) (catalog.SlotSchema, bool)

	// MissingRequiredSlots lists required slots with no value and no default.
	MissingRequiredSlots() []catalog.SlotSchema
	// NextQuestionSlot returns the highest-priority slot that still needs to
	// be asked about, or nil when the item needs no further questions.
	NextQuestionSlot() *catalog.SlotSchema
	// ApplySlot validates and stores a slot value.
	ApplySlot(name, value string) error

	AddSpecialInstruction(text string)
	SpecialInstructions() []string

	DisplayName() string
	Summary() string
}

type itemCore struct {
	ItemID       string               `yaml:"id"`
	ItemKind     string               `yaml:"kind"`
	ItemName     string               `yaml:"name"`
	TaskStatus   Status               `yaml:"status"`
	Qty          int                  `yaml:"quantity"`
	Price        float64              `yaml:"unit_price"`
	PriceSet     bool                 `yaml:"priced"`
	Slots        map[string]string    `yaml:"slots"`
	SlotSchemas  []catalog.SlotSchema `yaml:"schema"`
	Instructions []string             `yaml:"special_instructions,omitempty"`
}

// NewItem creates the variant matching the catalog item's kind. Slots with
// defaults are filled immediately so they never produce a question.
func NewItem(cat *catalog.Item, quantity int) Item {
	if quantity < 1 {
		quantity = 1
	}
	core := itemCore{
		ItemID:      ulid.Make().String(),
		ItemKind:    cat.Kind,
		ItemName:    cat.Name,
		TaskStatus:  StatusPending,
		Qty:         quantity,
		Slots:       map[string]string{},
		SlotSchemas: cat.Slots,
	}
	for _, s := range cat.Slots {
		if s.HasDefault() {
			core.Slots[s.Name] = *s.Default
		}
	}
	return variantFor(core)
}

func variantFor(core itemCore) Item {
	switch core.ItemKind {
	case KindBagel:
		return &BagelItem{itemCore: core}
	case KindSizedBeverage:
		return &BeverageItem{itemCore: core}
	default:
		return &CatalogItem{itemCore: core}
	}
}

func (c *itemCore) ID() string         { return c.ItemID }
func (c *itemCore) Kind() string       { return c.ItemKind }
func (c *itemCore) Name() string       { return c.ItemName }
func (c *itemCore) Status() Status     { return c.TaskStatus }
func (c *itemCore) SetStatus(s Status) { c.TaskStatus = s }
func (c *itemCore) Quantity() int      { return c.Qty }
func (c *itemCore) SetQuantity(q int)  { c.Qty = q }
func (c *itemCore) UnitPrice() float64 { return c.Price }
func (c *itemCore) Priced() bool       { return c.PriceSet }

func (c *itemCore) SetUnitPrice(p float64) {
	c.Price = p
	c.PriceSet = true
}

func (c *itemCore) SlotValues() map[string]string { return c.Slots }
func (c *itemCore) Schema() []catalog.SlotSchema  { return c.SlotSchemas }

func (c *itemCore) SlotSchema(name string) (catalog.SlotSchema, bool) {
	for _, s := range c.SlotSchemas {
		if s.Name == name {
			return s, true
		}
	}
	return catalog.SlotSchema{}, false
}

func (c *itemCore) MissingRequiredSlots() []catalog.SlotSchema {
	var missing []catalog.SlotSchema
	for _, s := range c.SlotSchemas {
		if !s.Required {
			continue
		}
		if _, ok := c.Slots[s.Name]; ok {
			continue
		}
		if s.HasDefault() {
			continue
		}
		missing = append(missing, s)
	}
	return missing
}

func (c *itemCore) NextQuestionSlot() *catalog.SlotSchema {
	for i, s := range c.SlotSchemas {
		if _, ok := c.Slots[s.Name]; ok {
			continue
		}
		if s.HasDefault() {
			continue
		}
		if !s.AskIfMissing {
			continue
		}
		return &c.SlotSchemas[i]
	}
	return nil
}

func (c *itemCore) ApplySlot(name, value string) error {
	schema, ok := c.SlotSchema(name)
	if !ok {
		return fmt.Errorf("%w: item %s has no slot %q", ErrInvalidSlotValue, c.ItemName, name)
	}
	switch schema.Type {
	case catalog.SlotFlag:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: slot %q expects yes or no", ErrInvalidSlotValue, name)
		}
	case catalog.SlotChoice:
		opt, ok := schema.Option(value)
		if !ok {
			// Option aliases count too.
			if o, found := optionByAlias(schema, value); found {
				opt, ok = o, true
			}
		}
		if !ok {
			return fmt.Errorf("%w: %q is not an option for %s", ErrInvalidSlotValue, value, name)
		}
		value = opt.Slug
	}
	c.Slots[name] = value
	return nil
}

func optionByAlias(schema catalog.SlotSchema, value string) (catalog.AttributeOption, bool) {
	needle := strings.ToLower(strings.TrimSpace(value))
	for _, opt := range schema.Options {
		for _, alias := range opt.Aliases {
			if strings.ToLower(alias) == needle {
				return opt, true
			}
		}
	}
	return catalog.AttributeOption{}, false
}

func (c *itemCore) AddSpecialInstruction(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, existing := range c.Instructions {
		if existing == text {
			return
		}
	}
	c.Instructions = append(c.Instructions, text)
}

func (c *itemCore) SpecialInstructions() []string { return c.Instructions }

// optionDisplay maps a stored slug back to its display name for readbacks.
func (c *itemCore) optionDisplay(slot, slug string) string {
	schema, ok := c.SlotSchema(slot)
	if !ok {
		return slug
	}
	if opt, ok := schema.Option(slug); ok {
		return opt.DisplayName
	}
	return strings.ReplaceAll(slug, "_", " ")
}

// BagelItem is a bagel order line: type, toasted, spread, extras.
type BagelItem struct {
	itemCore `yaml:",inline"`
}

func (b *BagelItem) DisplayName() string {
	if t, ok := b.Slots["bagel_type"]; ok && t != "" {
		return b.optionDisplay("bagel_type", t) + " bagel"
	}
	return "bagel"
}

func (b *BagelItem) Summary() string {
	parts := []string{b.DisplayName()}
	if b.Slots["toasted"] == "true" {
		parts = append(parts, "toasted")
	}
	var with []string
	if spread, ok := b.Slots["spread"]; ok && spread != "" && spread != "none" {
		with = append(with, b.optionDisplay("spread", spread))
	}
	if protein, ok := b.Slots["protein"]; ok && protein != "" {
		with = append(with, b.optionDisplay("protein", protein))
	}
	if len(with) > 0 {
		parts = append(parts, "with "+strings.Join(with, ", "))
	} else if b.Slots["spread"] == "none" {
		parts = append(parts, "with nothing on it")
	}
	return joinSummary(parts, b.Instructions)
}

// BeverageItem is a sized drink: size, hot/iced, milk, sweetener.
type BeverageItem struct {
	itemCore `yaml:",inline"`
}

func (d *BeverageItem) DisplayName() string {
	var parts []string
	if size, ok := d.Slots["size"]; ok && size != "" {
		parts = append(parts, d.optionDisplay("size", size))
	}
	switch d.Slots["iced"] {
	case "true":
		parts = append(parts, "iced")
	case "false":
		parts = append(parts, "hot")
	}
	if d.Slots["decaf"] == "true" {
		parts = append(parts, "decaf")
	}
	parts = append(parts, strings.ToLower(d.ItemName))
	return strings.Join(parts, " ")
}

func (d *BeverageItem) Summary() string {
	parts := []string{d.DisplayName()}
	if milk, ok := d.Slots["milk"]; ok && milk != "" {
		if milk == "none" {
			parts = append(parts, "black")
		} else {
			parts = append(parts, "with "+d.optionDisplay("milk", milk))
		}
	}
	if sweetener, ok := d.Slots["sweetener"]; ok && sweetener != "" && sweetener != "none" {
		parts = append(parts, "with "+d.optionDisplay("sweetener", sweetener))
	}
	return joinSummary(parts, d.Instructions)
}

// CatalogItem is any other menu entry ordered by name (cookies, sodas,
// signature sandwiches); its questions come entirely from its slot schema.
type CatalogItem struct {
	itemCore `yaml:",inline"`
}

func (m *CatalogItem) DisplayName() string { return m.ItemName }

func (m *CatalogItem) Summary() string {
	parts := []string{m.ItemName}
	var with []string
	for _, s := range m.SlotSchemas {
		v, ok := m.Slots[s.Name]
		if !ok || v == "" {
			continue
		}
		switch s.Type {
		case catalog.SlotFlag:
			if v == "true" {
				with = append(with, strings.ReplaceAll(s.Name, "_", " "))
			}
		case catalog.SlotChoice:
			if !s.HasDefault() || *s.Default != v {
				with = append(with, m.optionDisplay(s.Name, v))
			}
		}
	}
	if len(with) > 0 {
		parts = append(parts, "with "+strings.Join(with, ", "))
	}
	return joinSummary(parts, m.Instructions)
}

func joinSummary(parts, instructions []string) string {
	s := strings.Join(parts, " ")
	if len(instructions) > 0 {
		s += " (" + strings.Join(instructions, "; ") + ")"
	}
	return s
}
