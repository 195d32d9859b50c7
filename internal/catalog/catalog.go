package catalog

import "strings"

// SlotType describes how a slot value is interpreted.
type SlotType string

const (
	SlotChoice SlotType = "choice" // one of a fixed option list
	SlotFlag   SlotType = "flag"   // yes/no, stored as "true"/"false"
	SlotText   SlotType = "text"   // free text (special instructions etc.)
)

// AttributeOption is one selectable value for a choice slot.
type AttributeOption struct {
	Slug          string   `yaml:"slug"`
	DisplayName   string   `yaml:"display_name"`
	PriceModifier float64  `yaml:"price_modifier"`
	Aliases       []string `yaml:"aliases,omitempty"`
}

// SlotSchema declares a single attribute of an item type: whether it is
// required, whether a default suppresses the question, and what to ask.
type SlotSchema struct {
	Name         string            `yaml:"name"`
	Type         SlotType          `yaml:"type"`
	Required     bool              `yaml:"required"`
	Default      *string           `yaml:"default,omitempty"`
	AskIfMissing bool              `yaml:"ask_if_missing"`
	Question     string            `yaml:"question,omitempty"`
	Options      []AttributeOption `yaml:"options,omitempty"`
	// PriceModifier applies when a flag slot is set true (iced upcharge etc.).
	PriceModifier float64 `yaml:"price_modifier,omitempty"`
}

// HasDefault reports whether the slot is implicitly filled at item creation.
func (s SlotSchema) HasDefault() bool {
	return s.Default != nil
}

// Option returns the option matching slug or display name, if any.
func (s SlotSchema) Option(slugOrName string) (AttributeOption, bool) {
	needle := strings.ToLower(strings.TrimSpace(slugOrName))
	for _, opt := range s.Options {
		if strings.ToLower(opt.Slug) == needle || strings.ToLower(opt.DisplayName) == needle {
			return opt, true
		}
	}
	return AttributeOption{}, false
}

// Item is a catalog entry: a kind of thing a customer can order.
type Item struct {
	ID        string       `yaml:"id"`
	Name      string       `yaml:"name"`
	Slug      string       `yaml:"slug"`
	Kind      string       `yaml:"kind"` // bagel, sized_beverage, beverage, menu_item, ...
	BasePrice float64      `yaml:"base_price"`
	Aliases   []string     `yaml:"aliases,omitempty"`
	Slots     []SlotSchema `yaml:"slots,omitempty"`
}

// Slot returns the schema for the named slot.
func (it *Item) Slot(name string) (SlotSchema, bool) {
	for _, s := range it.Slots {
		if s.Name == name {
			return s, true
		}
	}
	return SlotSchema{}, false
}

// Settings carries store-level pricing configuration.
type Settings struct {
	CityTaxRate  float64 `yaml:"city_tax_rate"`
	StateTaxRate float64 `yaml:"state_tax_rate"`
	DeliveryFee  float64 `yaml:"delivery_fee"`
}

// Provider supplies the menu, alias table, and response patterns. The engine
// treats it as read-only within a turn.
type Provider interface {
	// LookupItem finds an item by canonical name, slug, or alias.
	LookupItem(nameOrAlias string) (*Item, bool)
	// Items returns the full menu in catalog order.
	Items() []*Item
	// MatchItems returns every item whose name or alias occurs in text,
	// longest match first.
	MatchItems(text string) []Match
	// AttributeOptions returns the ordered option list for a slot of an item kind.
	AttributeOptions(kind, slot string) []AttributeOption
	// Aliases returns the phrase normalization table (alias -> canonical text).
	Aliases() map[string]string
	// IsResponse reports whether text matches a response pattern kind
	// (affirmative, negative, cancel).
	IsResponse(kind, text string) bool
	Settings() Settings
}

// Match is one occurrence of a catalog item inside an utterance.
type Match struct {
	Item    *Item
	Matched string // the phrase that matched (canonical name or alias)
	Offset  int    // byte offset of the match in the searched text
}

// Response pattern kinds, mirroring the stored pattern table.
const (
	ResponseAffirmative = "affirmative"
	ResponseNegative    = "negative"
	ResponseCancel      = "cancel"
)
