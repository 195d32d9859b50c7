package orchestrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
)

const orchCatalog = `
settings:
  city_tax_rate: 0.045
  state_tax_rate: 0.04
  delivery_fee: 3.50
aliases: {}
responses:
  affirmative: ["yes"]
  negative: ["no"]
  cancel: ["never mind"]
items:
  - id: bagel
    name: bagel
    slug: bagel
    kind: bagel
    base_price: 2.50
    slots:
      - name: bagel_type
        type: choice
        required: true
        ask_if_missing: true
        question: "What kind of bagel would you like?"
        options:
          - {slug: plain, display_name: plain}
          - {slug: everything, display_name: everything}
      - name: toasted
        type: flag
        required: true
        ask_if_missing: true
        question: "Would you like that toasted?"
  - id: cookie
    name: chocolate chip cookie
    slug: cookie
    kind: menu_item
    base_price: 2.00
`

func newOrchestrator(t *testing.T) (*Orchestrator, catalog.Provider) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(orchCatalog), 0o644))
	provider, err := catalog.NewYAMLProvider(path)
	require.NoError(t, err)
	return New(provider), provider
}

func addCookie(t *testing.T, provider catalog.Provider, tree *order.OrderTask) order.Item {
	t.Helper()
	cat, ok := provider.LookupItem("chocolate chip cookie")
	require.True(t, ok)
	it := order.NewItem(cat, 1)
	it.SetStatus(order.StatusComplete)
	it.SetUnitPrice(2.00)
	tree.Items.Add(it)
	return it
}

func TestNextActionEmptyOrder(t *testing.T) {
	o, _ := newOrchestrator(t)
	tree := order.New("sess")

	a := o.NextAction(tree)
	assert.Equal(t, "What can I get for you?", a.Reply)
	assert.False(t, a.Terminal)
	assert.Nil(t, tree.Asked)
}

func TestNextActionAsksItemSlot(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	cat, _ := provider.LookupItem("bagel")
	it := order.NewItem(cat, 1)
	tree.Items.Add(it)

	a := o.NextAction(tree)

	assert.Equal(t, "What kind of bagel would you like?", a.Reply)
	require.NotNil(t, tree.Asked)
	assert.Equal(t, order.ScopeItem, tree.Asked.Scope)
	assert.Equal(t, it.ID(), tree.Asked.ItemID)
	assert.Equal(t, "bagel_type", tree.Asked.SlotName)
	assert.Equal(t, order.StatusInProgress, it.Status())
}

func TestNextActionAsksNextSlotOfSameItem(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	cat, _ := provider.LookupItem("bagel")
	it := order.NewItem(cat, 1)
	require.NoError(t, it.ApplySlot("bagel_type", "plain"))
	it.SetStatus(order.StatusInProgress)
	tree.Items.Add(it)

	a := o.NextAction(tree)
	assert.Equal(t, "Would you like that toasted?", a.Reply)
	assert.Equal(t, "toasted", tree.Asked.SlotName)
}

func TestNextActionDeliveryThenAddress(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)

	a := o.NextAction(tree)
	assert.Equal(t, "Is this for pickup or delivery?", a.Reply)
	assert.Equal(t, order.ScopeDelivery, tree.Asked.Scope)

	tree.Asked = nil
	tree.Delivery.OrderType = order.OrderTypeDelivery

	a = o.NextAction(tree)
	assert.Equal(t, "What's the delivery address?", a.Reply)
	assert.Equal(t, order.ScopeAddress, tree.Asked.Scope)

	tree.Asked = nil
	tree.Delivery.Address.Street = "123 main st"

	a = o.NextAction(tree)
	assert.Equal(t, "What's the zip code for that address?", a.Reply)
}

func TestNextActionReview(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypePickup

	a := o.NextAction(tree)

	assert.Contains(t, a.Reply, "Here's your order:")
	assert.Contains(t, a.Reply, "chocolate chip cookie ($2.00)")
	assert.Contains(t, a.Reply, "Subtotal $2.00, tax $0.17, total $2.17.")
	assert.Contains(t, a.Reply, "Does everything look right?")
	assert.True(t, tree.Checkout.Reviewed)
	assert.Equal(t, order.ScopeConfirm, tree.Asked.Scope)
}

func TestNextActionReviewIncludesDeliveryFee(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypeDelivery
	tree.Delivery.Address = order.AddressTask{Street: "123 main st", ZipCode: "10001"}

	a := o.NextAction(tree)

	assert.Contains(t, a.Reply, "delivery fee $3.50")
	assert.Contains(t, a.Reply, "total $5.67.")
}

func TestNextActionNamePaymentFinalize(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypePickup
	tree.Checkout.Confirmed = true

	a := o.NextAction(tree)
	assert.Equal(t, "Can I get a name for the order?", a.Reply)
	assert.Equal(t, order.ScopeName, tree.Asked.Scope)

	tree.Asked = nil
	tree.Customer.Name = "Jane"

	a = o.NextAction(tree)
	assert.Contains(t, a.Reply, "pay in store")
	assert.Equal(t, order.ScopePayment, tree.Asked.Scope)

	tree.Asked = nil
	tree.Payment.Method = order.PaymentInStore

	a = o.NextAction(tree)
	assert.True(t, a.Terminal)
	assert.Contains(t, a.Reply, "You're all set, Jane! Order ORD-")
	assert.Contains(t, a.Reply, "total $2.17.")
	assert.Contains(t, a.Reply, "ready for pickup")
	assert.NotEmpty(t, tree.Checkout.OrderNumber)
}

func TestNextActionCashWordingOnDelivery(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypeDelivery
	tree.Delivery.Address = order.AddressTask{Street: "123 main st", ZipCode: "10001"}
	tree.Checkout.Confirmed = true
	tree.Customer.Name = "Jane"

	a := o.NextAction(tree)
	assert.Contains(t, a.Reply, "Cash on delivery")
}

func TestNextActionContactForCardLink(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypePickup
	tree.Checkout.Confirmed = true
	tree.Customer.Name = "Jane"
	tree.Payment.Method = order.PaymentCardLink

	a := o.NextAction(tree)
	assert.Equal(t, "What phone number or email should I send the payment link to?", a.Reply)
	assert.Equal(t, order.ScopeContact, tree.Asked.Scope)

	tree.Asked = nil
	tree.Customer.Phone = "555-123-4567"
	tree.Payment.LinkDestination = "555-123-4567"

	a = o.NextAction(tree)
	assert.True(t, a.Terminal)
	assert.Contains(t, a.Reply, "payment link is on its way to 555-123-4567")
}

func TestNextActionFinalizeDeliveryAddress(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Delivery.OrderType = order.OrderTypeDelivery
	tree.Delivery.Address = order.AddressTask{Street: "123 Main St", ZipCode: "10001"}
	tree.Checkout.Confirmed = true
	tree.Customer.Name = "Jane"
	tree.Payment.Method = order.PaymentCashDelivery

	a := o.NextAction(tree)
	assert.True(t, a.Terminal)
	assert.Contains(t, a.Reply, "We'll deliver to 123 Main St, 10001.")
}

func TestNextActionReasksRetainedQuestion(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	cat, _ := provider.LookupItem("bagel")
	it := order.NewItem(cat, 1)
	it.SetStatus(order.StatusInProgress)
	tree.Items.Add(it)
	tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: it.ID(), SlotName: "bagel_type", Attempts: 1}

	a := o.NextAction(tree)
	assert.Equal(t, "What kind of bagel would you like?", a.Reply)
	require.NotNil(t, tree.Asked)
}

func TestNextActionHandsOffAfterTooManyAttempts(t *testing.T) {
	o, _ := newOrchestrator(t)
	tree := order.New("sess")
	tree.Asked = &order.PendingSlot{Scope: order.ScopeName, Attempts: 3}

	a := o.NextAction(tree)
	assert.Equal(t, "I'm having trouble with that. Let me get someone to help you out.", a.Reply)
	assert.Nil(t, tree.Asked)
}

func TestNextActionDisambiguationFirst(t *testing.T) {
	o, provider := newOrchestrator(t)
	tree := order.New("sess")
	addCookie(t, provider, tree)
	tree.Pending = &order.PendingDisambiguation{
		AttributeSlug: "spread",
		Options: []order.Candidate{
			{Slug: "honey_walnut_cream_cheese", DisplayName: "honey walnut cream cheese"},
			{Slug: "maple_walnut_cream_cheese", DisplayName: "maple walnut cream cheese"},
		},
	}

	a := o.NextAction(tree)
	assert.Equal(t, "Which one did you mean: honey walnut cream cheese or maple walnut cream cheese?", a.Reply)
}

func TestJoinOr(t *testing.T) {
	assert.Equal(t, "", joinOr(nil))
	assert.Equal(t, "plain", joinOr([]string{"plain"}))
	assert.Equal(t, "plain or everything", joinOr([]string{"plain", "everything"}))
	assert.Equal(t, "plain, everything, or sesame", joinOr([]string{"plain", "everything", "sesame"}))
}
