package parse

import "errors"

// ErrLowConfidence signals that no deterministic recognizer reached the
// confidence threshold. It is the hand-off point to the fallback interpreter,
// never a failure surfaced to the caller.
var ErrLowConfidence = errors.New("no rule parsed the utterance with confidence")

// ParsedInput is the structured reading of one utterance. It is produced
// fresh every turn and read exactly once by the state applier.
type ParsedInput struct {
	NewItems      []NewItem      `json:"new_items,omitempty"`
	SlotAnswers   []SlotAnswer   `json:"slot_answers,omitempty"`
	Modifications []Modification `json:"modifications,omitempty"`
	Intents       Intents        `json:"intents,omitempty"`

	OrderType    string   `json:"order_type,omitempty"` // pickup or delivery
	Address      *Address `json:"address,omitempty"`
	CustomerName string   `json:"customer_name,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Email        string   `json:"email,omitempty"`

	PaymentMethod string `json:"payment_method,omitempty"`

	// Confirmation is set when the utterance answers a yes/no confirmation
	// question (distinct from a yes/no attribute slot).
	Confirmation *bool `json:"confirmation,omitempty"`
}

// Empty reports whether the input carries no information at all.
func (p *ParsedInput) Empty() bool {
	return len(p.NewItems) == 0 &&
		len(p.SlotAnswers) == 0 &&
		len(p.Modifications) == 0 &&
		!p.Intents.Checkout && !p.Intents.CancelOrder && p.Intents.CancelItemRef == "" &&
		p.OrderType == "" && p.Address == nil && p.CustomerName == "" &&
		p.Phone == "" && p.Email == "" && p.PaymentMethod == "" &&
		p.Confirmation == nil
}

// NewItem is a freshly mentioned order line with its inline attributes.
type NewItem struct {
	Name     string `json:"name"` // canonical catalog name
	Quantity int    `json:"quantity"`
	// SlotValues are inline attributes that resolved unambiguously
	// ("toasted", "large", "iced").
	SlotValues map[string]string `json:"slot_values,omitempty"`
	// AmbiguousSlots are attributes the customer mentioned but that match
	// more than one option, keyed by slot name with the raw descriptor text.
	// The resolver decides whether to resolve or defer.
	AmbiguousSlots map[string]string `json:"ambiguous_slots,omitempty"`
	// Special holds free-form instructions that fit no slot.
	Special string `json:"special,omitempty"`
}

// SlotAnswer answers the question asked on the previous turn. Raw is kept as
// text; the resolver matches it against the slot's options.
type SlotAnswer struct {
	Scope    string `json:"scope"`
	ItemID   string `json:"item_id,omitempty"`
	SlotName string `json:"slot_name,omitempty"`
	Raw      string `json:"raw"`
	// Value is the already-normalized value when the recognizer could map
	// the answer directly ("true"/"false" for flags).
	Value string `json:"value,omitempty"`
}

// Modification is a correction to an existing item ("make that iced").
type Modification struct {
	// TargetText describes the item the customer referenced; empty means an
	// implicit target ("it", "that") resolved as most recently added.
	TargetText string `json:"target_text,omitempty"`
	// SlotName is set when the recognizer identified the slot; otherwise the
	// applier infers it from Raw against the target's schema.
	SlotName string `json:"slot_name,omitempty"`
	Value    string `json:"value,omitempty"`
	Raw      string `json:"raw"`
}

// Intents are explicit conversation-control requests.
type Intents struct {
	Checkout    bool `json:"checkout,omitempty"`
	CancelOrder bool `json:"cancel_order,omitempty"`
	// CancelItemRef describes which item to cancel ("the latte"); "last"
	// when the customer cancelled without naming one.
	CancelItemRef string `json:"cancel_item_ref,omitempty"`
}

// Address carries whatever address fragments the utterance contained.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	AptUnit string `json:"apt_unit,omitempty"`
}
