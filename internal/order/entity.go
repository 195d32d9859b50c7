package order

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Order types.
const (
	OrderTypePickup   = "pickup"
	OrderTypeDelivery = "delivery"
)

// Payment methods.
const (
	PaymentInStore      = "in_store"
	PaymentCashDelivery = "cash_delivery"
	PaymentCardLink     = "card_link"
)

// Slot scopes: which part of the tree the last question targeted.
const (
	ScopeItem     = "item"
	ScopeDelivery = "delivery"
	ScopeAddress  = "address"
	ScopeName     = "customer_name"
	ScopeContact  = "contact"
	ScopeConfirm  = "confirm"
	ScopePayment  = "payment"
)

// PendingSlot names the question asked on the previous turn, so the parser
// can scope bare answers ("yes", "large") to the right slot.
type PendingSlot struct {
	Scope    string `yaml:"scope"`
	ItemID   string `yaml:"item_id,omitempty"`
	SlotName string `yaml:"slot_name,omitempty"`
	// Attempts counts consecutive invalid answers to this slot; past the
	// bound the engine suggests a human hand-off.
	Attempts int `yaml:"attempts,omitempty"`
}

// AddressTask captures the delivery address.
type AddressTask struct {
	Street       string `yaml:"street,omitempty"`
	City         string `yaml:"city,omitempty"`
	State        string `yaml:"state,omitempty"`
	ZipCode      string `yaml:"zip_code,omitempty"`
	AptUnit      string `yaml:"apt_unit,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
}

func (a *AddressTask) Complete() bool {
	return a.Street != "" && a.ZipCode != ""
}

func (a *AddressTask) Formatted() string {
	if a.Street == "" {
		return ""
	}
	parts := []string{a.Street}
	if a.AptUnit != "" {
		parts = append(parts, "Apt "+a.AptUnit)
	}
	var csz []string
	for _, p := range []string{a.City, a.State, a.ZipCode} {
		if p != "" {
			csz = append(csz, p)
		}
	}
	if len(csz) > 0 {
		parts = append(parts, strings.Join(csz, " "))
	}
	return strings.Join(parts, ", ")
}

// DeliveryTask captures pickup vs delivery, plus the address when delivering.
type DeliveryTask struct {
	OrderType string      `yaml:"order_type,omitempty"`
	Address   AddressTask `yaml:"address"`
}

func (d *DeliveryTask) Complete() bool {
	switch d.OrderType {
	case OrderTypePickup:
		return true
	case OrderTypeDelivery:
		return d.Address.Complete()
	default:
		return false
	}
}

// CustomerTask captures the customer's name and contact details.
type CustomerTask struct {
	Name  string `yaml:"name,omitempty"`
	Phone string `yaml:"phone,omitempty"`
	Email string `yaml:"email,omitempty"`
}

func (c *CustomerTask) HasContact() bool {
	return c.Phone != "" || c.Email != ""
}

// Complete needs a name; contact is required only on the card-link payment
// path, which the orchestrator checks against the payment task.
func (c *CustomerTask) Complete(requireContact bool) bool {
	if c.Name == "" {
		return false
	}
	if requireContact {
		return c.HasContact()
	}
	return true
}

// CheckoutTask holds the review/confirmation state and order totals.
type CheckoutTask struct {
	Reviewed    bool    `yaml:"reviewed"`
	Confirmed   bool    `yaml:"confirmed"`
	Subtotal    float64 `yaml:"subtotal"`
	CityTax     float64 `yaml:"city_tax"`
	StateTax    float64 `yaml:"state_tax"`
	Tax         float64 `yaml:"tax"`
	DeliveryFee float64 `yaml:"delivery_fee"`
	Total       float64 `yaml:"total"`
	OrderNumber string  `yaml:"order_number,omitempty"`
}

func (c *CheckoutTask) Complete() bool {
	return c.Confirmed
}

// CalculateTotals recomputes all totals from the subtotal and store rates.
func (c *CheckoutTask) CalculateTotals(subtotal float64, isDelivery bool, cityRate, stateRate, deliveryFee float64) {
	c.Subtotal = round2(subtotal)
	c.CityTax = round2(subtotal * cityRate)
	c.StateTax = round2(subtotal * stateRate)
	c.Tax = round2(c.CityTax + c.StateTax)
	if isDelivery {
		c.DeliveryFee = deliveryFee
	} else {
		c.DeliveryFee = 0
	}
	c.Total = round2(c.Subtotal + c.Tax + c.DeliveryFee)
}

// GenerateOrderNumber assigns a short human-readable order number.
func (c *CheckoutTask) GenerateOrderNumber() string {
	id := ulid.Make().String()
	c.OrderNumber = fmt.Sprintf("ORD-%s-%02d", id[len(id)-6:], rand.Intn(100))
	return c.OrderNumber
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PaymentTask captures how the customer will pay.
type PaymentTask struct {
	Method          string `yaml:"method,omitempty"`
	LinkDestination string `yaml:"link_destination,omitempty"` // phone or email
}

func (p *PaymentTask) Complete() bool {
	return p.Method != ""
}

// OrderTask is the root of the task tree for one conversation session. The
// tree is created empty at session start, mutated turn by turn, and owned
// exclusively by the single turn processing it.
type OrderTask struct {
	ID        string    `yaml:"id"`
	SessionID string    `yaml:"session_id"`
	CreatedAt time.Time `yaml:"created_at"`

	Items    ItemsTask    `yaml:"items"`
	Delivery DeliveryTask `yaml:"delivery"`
	Customer CustomerTask `yaml:"customer"`
	Checkout CheckoutTask `yaml:"checkout"`
	Payment  PaymentTask  `yaml:"payment"`

	// Pending is the deferred disambiguation from the previous turn, if any.
	// It is checked and consumed before any other parsing rule runs.
	Pending *PendingDisambiguation `yaml:"pending_disambiguation,omitempty"`
	// Asked is the question put to the customer on the previous turn.
	Asked *PendingSlot `yaml:"asked,omitempty"`
}

func New(sessionID string) *OrderTask {
	return &OrderTask{
		ID:        ulid.Make().String(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
}

// Reset discards all captured state, keeping the session identity. Used for
// order-level cancellation ("start over").
func (o *OrderTask) Reset() {
	fresh := New(o.SessionID)
	fresh.ID = o.ID
	fresh.CreatedAt = o.CreatedAt
	*o = *fresh
}

// ContactRequired reports whether a contact method must be collected, which
// depends on the chosen payment path.
func (o *OrderTask) ContactRequired() bool {
	return o.Payment.Method == PaymentCardLink
}

// Complete derives the terminal condition of the whole order purely from
// owned task state.
func (o *OrderTask) Complete() bool {
	return o.Items.Complete() &&
		o.Delivery.Complete() &&
		o.Checkout.Complete() &&
		o.Customer.Complete(o.ContactRequired()) &&
		o.Payment.Complete()
}

// Summary renders the confirmation readback, consolidating identical lines.
func (o *OrderTask) Summary() string {
	active := o.Items.Active()
	if len(active) == 0 {
		return "No items in the order yet."
	}
	type line struct {
		count int
		total float64
	}
	var keys []string
	lines := map[string]*line{}
	for _, it := range active {
		s := it.Summary()
		l, ok := lines[s]
		if !ok {
			l = &line{}
			lines[s] = l
			keys = append(keys, s)
		}
		l.count += it.Quantity()
		l.total += it.UnitPrice() * float64(it.Quantity())
	}
	var b strings.Builder
	for _, k := range keys {
		l := lines[k]
		if l.count > 1 {
			fmt.Fprintf(&b, "- %dx %s ($%.2f)\n", l.count, k, l.total)
		} else {
			fmt.Fprintf(&b, "- %s ($%.2f)\n", k, l.total)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
