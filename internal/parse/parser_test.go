package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
)

const parserCatalog = `
settings:
  city_tax_rate: 0.045
  state_tax_rate: 0.04
  delivery_fee: 3.50
aliases:
  cc: cream cheese
responses:
  affirmative: ["yes", "yeah", "yep", "sure", "sounds good"]
  negative: ["no", "nope", "no thanks"]
  cancel: ["never mind", "nevermind", "forget it", "cancel", "scratch that"]
items:
  - id: bagel
    name: bagel
    slug: bagel
    kind: bagel
    base_price: 2.50
    aliases: [bagels]
    slots:
      - name: bagel_type
        type: choice
        required: true
        ask_if_missing: true
        question: "What kind of bagel?"
        options:
          - {slug: plain, display_name: plain}
          - {slug: everything, display_name: everything}
          - {slug: sesame, display_name: sesame}
      - name: toasted
        type: flag
        required: true
        ask_if_missing: true
        question: "Toasted?"
      - name: spread
        type: choice
        required: false
        ask_if_missing: true
        question: "Anything on that?"
        options:
          - {slug: none, display_name: nothing}
          - {slug: butter, display_name: butter, price_modifier: 0.50}
          - {slug: plain_cream_cheese, display_name: plain cream cheese, price_modifier: 1.00}
          - {slug: honey_walnut_cream_cheese, display_name: honey walnut cream cheese, price_modifier: 1.50}
          - {slug: maple_walnut_cream_cheese, display_name: maple walnut cream cheese, price_modifier: 1.50}
  - id: latte
    name: latte
    slug: latte
    kind: sized_beverage
    base_price: 4.00
    aliases: [lattes]
    slots:
      - name: size
        type: choice
        required: true
        ask_if_missing: true
        question: "What size?"
        options:
          - {slug: small, display_name: small}
          - {slug: large, display_name: large, price_modifier: 1.25}
      - name: iced
        type: flag
        required: true
        default: "false"
        ask_if_missing: false
        price_modifier: 0.50
      - name: milk
        type: choice
        required: false
        ask_if_missing: false
        default: whole
        options:
          - {slug: whole, display_name: whole milk}
          - {slug: oat, display_name: oat milk, price_modifier: 0.75}
          - {slug: none, display_name: no milk}
  - id: cookie
    name: chocolate chip cookie
    slug: cookie
    kind: menu_item
    base_price: 2.00
    aliases: [cookie, cookies]
`

func newParserProvider(t *testing.T) *catalog.YAMLProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(parserCatalog), 0o644))
	p, err := catalog.NewYAMLProvider(path)
	require.NoError(t, err)
	return p
}

func emptyTree() *order.OrderTask {
	return order.New("sess")
}

func TestParseIntents(t *testing.T) {
	p := NewParser(newParserProvider(t))

	tests := []struct {
		name string
		text string
		tree *order.OrderTask
		want Intents
	}{
		{name: "cancel order", text: "cancel my order", tree: emptyTree(), want: Intents{CancelOrder: true}},
		{name: "start over", text: "lets start over", tree: emptyTree(), want: Intents{CancelOrder: true}},
		{name: "cancel named item", text: "remove the latte", tree: emptyTree(), want: Intents{CancelItemRef: "latte"}},
		{name: "bare never mind cancels order", text: "never mind", tree: emptyTree(), want: Intents{CancelOrder: true}},
		{name: "checkout", text: "that's it thanks", tree: emptyTree(), want: Intents{Checkout: true}},
		{name: "nothing else", text: "nothing else for me", tree: emptyTree(), want: Intents{Checkout: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := p.Parse(tt.text, tt.tree)
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Intents)
		})
	}
}

func TestParseBareCancelDuringItemQuestion(t *testing.T) {
	provider := newParserProvider(t)
	p := NewParser(provider)

	tree := emptyTree()
	cat, _ := provider.LookupItem("bagel")
	it := order.NewItem(cat, 1)
	tree.Items.Add(it)
	tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: it.ID(), SlotName: "bagel_type"}

	in, err := p.Parse("never mind", tree)
	require.NoError(t, err)
	assert.Equal(t, "last", in.Intents.CancelItemRef)
	assert.False(t, in.Intents.CancelOrder)
}

func TestParseNewItems(t *testing.T) {
	p := NewParser(newParserProvider(t))

	tests := []struct {
		name string
		text string
		want []NewItem
	}{
		{
			name: "quantity and inline attributes",
			text: "i'd like two plain bagels and a large iced latte",
			want: []NewItem{
				{Name: "bagel", Quantity: 2, SlotValues: map[string]string{"bagel_type": "plain"}},
				{Name: "latte", Quantity: 1, SlotValues: map[string]string{"size": "large", "iced": "true"}},
			},
		},
		{
			name: "trailing attribute attaches to the item before it",
			text: "an everything bagel toasted with butter",
			want: []NewItem{
				{Name: "bagel", Quantity: 1, SlotValues: map[string]string{"bagel_type": "everything", "toasted": "true", "spread": "butter"}},
			},
		},
		{
			name: "negated flag",
			text: "a sesame bagel not toasted",
			want: []NewItem{
				{Name: "bagel", Quantity: 1, SlotValues: map[string]string{"bagel_type": "sesame", "toasted": "false"}},
			},
		},
		{
			name: "ambiguous descriptor deferred",
			text: "a bagel with walnut cream cheese",
			want: []NewItem{
				{Name: "bagel", Quantity: 1, AmbiguousSlots: map[string]string{"spread": "walnut"}},
			},
		},
		{
			name: "alias quantity phrase",
			text: "half a dozen bagels",
			want: []NewItem{{Name: "bagel", Quantity: 6}},
		},
		{
			name: "split quantities with elided noun",
			text: "two plain and one everything bagels",
			want: []NewItem{
				{Name: "bagel", Quantity: 2, SlotValues: map[string]string{"bagel_type": "plain"}},
				{Name: "bagel", Quantity: 1, SlotValues: map[string]string{"bagel_type": "everything"}},
			},
		},
		{
			name: "digit quantity",
			text: "3 cookies",
			want: []NewItem{{Name: "chocolate chip cookie", Quantity: 3}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := p.Parse(tt.text, emptyTree())
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.NewItems)
		})
	}
}

func TestParseFlagAnswer(t *testing.T) {
	provider := newParserProvider(t)
	p := NewParser(provider)

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "affirmative", text: "yes please", want: "true"},
		{name: "negative", text: "no thanks", want: "false"},
		{name: "named flag", text: "toasted", want: "true"},
		{name: "negated flag", text: "not toasted", want: "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := emptyTree()
			cat, _ := provider.LookupItem("bagel")
			it := order.NewItem(cat, 1)
			tree.Items.Add(it)
			tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: it.ID(), SlotName: "toasted"}

			in, err := p.Parse(tt.text, tree)
			require.NoError(t, err)
			require.Len(t, in.SlotAnswers, 1)
			assert.Equal(t, tt.want, in.SlotAnswers[0].Value)
			assert.Equal(t, "toasted", in.SlotAnswers[0].SlotName)
		})
	}
}

func TestParseChoiceAnswer(t *testing.T) {
	provider := newParserProvider(t)
	p := NewParser(provider)

	tree := emptyTree()
	cat, _ := provider.LookupItem("latte")
	it := order.NewItem(cat, 1)
	tree.Items.Add(it)
	tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: it.ID(), SlotName: "size"}

	in, err := p.Parse("large", tree)
	require.NoError(t, err)
	require.Len(t, in.SlotAnswers, 1)
	assert.Equal(t, "large", in.SlotAnswers[0].Raw)
	assert.Equal(t, order.ScopeItem, in.SlotAnswers[0].Scope)
}

func TestParseChoiceAnswerNamingAnotherItem(t *testing.T) {
	provider := newParserProvider(t)
	p := NewParser(provider)

	tree := emptyTree()
	cat, _ := provider.LookupItem("latte")
	it := order.NewItem(cat, 1)
	tree.Items.Add(it)
	tree.Asked = &order.PendingSlot{Scope: order.ScopeItem, ItemID: it.ID(), SlotName: "size"}

	// Ordering something else mid-question is a new line, not an answer.
	in, err := p.Parse("and a cookie", tree)
	require.NoError(t, err)
	assert.Empty(t, in.SlotAnswers)
	require.Len(t, in.NewItems, 1)
	assert.Equal(t, "chocolate chip cookie", in.NewItems[0].Name)
}

func TestParseCorrections(t *testing.T) {
	p := NewParser(newParserProvider(t))

	tests := []struct {
		name string
		text string
		want []Modification
	}{
		{name: "make that", text: "make that iced", want: []Modification{{Raw: "iced"}}},
		{name: "change named target", text: "change the latte to oat milk", want: []Modification{{TargetText: "latte", Raw: "oat milk"}}},
		{name: "put on", text: "put butter on the plain bagel", want: []Modification{{TargetText: "plain bagel", Raw: "butter"}}},
		{name: "actually", text: "actually make it a large", want: []Modification{{Raw: "a large"}}},
		{name: "actually with named target", text: "actually make the latte iced", want: []Modification{{TargetText: "latte", Raw: "iced"}}},
		{name: "actually put on named target", text: "actually put butter on the bagel", want: []Modification{{TargetText: "bagel", Raw: "butter"}}},
		{name: "instead", text: "a sesame bagel instead", want: []Modification{{Raw: "a sesame bagel"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := p.Parse(tt.text, emptyTree())
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Modifications)
		})
	}
}

func TestParseBareCorrectionAgainstOrderedItem(t *testing.T) {
	provider := newParserProvider(t)
	p := NewParser(provider)

	tree := emptyTree()
	cat, _ := provider.LookupItem("bagel")
	it := order.NewItem(cat, 1)
	require.NoError(t, it.ApplySlot("bagel_type", "plain"))
	tree.Items.Add(it)

	in, err := p.Parse("plain cream cheese on the plain bagel", tree)
	require.NoError(t, err)
	require.Len(t, in.Modifications, 1)
	assert.Equal(t, "plain bagel", in.Modifications[0].TargetText)
	assert.Equal(t, "plain cream cheese", in.Modifications[0].Raw)
}

func TestParseActuallyCancelIsAnIntent(t *testing.T) {
	p := NewParser(newParserProvider(t))

	in, err := p.Parse("actually cancel the latte", emptyTree())
	require.NoError(t, err)
	assert.Empty(t, in.Modifications)
	assert.Equal(t, "latte", in.Intents.CancelItemRef)
}

func TestParseConfirmation(t *testing.T) {
	p := NewParser(newParserProvider(t))

	askConfirm := func() *order.OrderTask {
		tree := emptyTree()
		tree.Asked = &order.PendingSlot{Scope: order.ScopeConfirm}
		return tree
	}

	in, err := p.Parse("yes", askConfirm())
	require.NoError(t, err)
	require.NotNil(t, in.Confirmation)
	assert.True(t, *in.Confirmation)

	in, err = p.Parse("nope", askConfirm())
	require.NoError(t, err)
	require.NotNil(t, in.Confirmation)
	assert.False(t, *in.Confirmation)

	in, err = p.Parse("yes and a cookie", askConfirm())
	require.NoError(t, err)
	require.NotNil(t, in.Confirmation)
	assert.True(t, *in.Confirmation)
	require.Len(t, in.NewItems, 1)
	assert.Equal(t, "chocolate chip cookie", in.NewItems[0].Name)
}

func TestParseDeliveryAnswer(t *testing.T) {
	p := NewParser(newParserProvider(t))

	askDelivery := func() *order.OrderTask {
		tree := emptyTree()
		tree.Asked = &order.PendingSlot{Scope: order.ScopeDelivery}
		return tree
	}

	in, err := p.Parse("pickup", askDelivery())
	require.NoError(t, err)
	assert.Equal(t, order.OrderTypePickup, in.OrderType)

	in, err = p.Parse("delivery to 123 main street 10001", askDelivery())
	require.NoError(t, err)
	assert.Equal(t, order.OrderTypeDelivery, in.OrderType)
	require.NotNil(t, in.Address)
	assert.Equal(t, "123 main street", in.Address.Street)
	assert.Equal(t, "10001", in.Address.ZipCode)
}

func TestParseAddressAnswer(t *testing.T) {
	p := NewParser(newParserProvider(t))

	tree := emptyTree()
	tree.Asked = &order.PendingSlot{Scope: order.ScopeAddress}

	in, err := p.Parse("456 oak ave apt 2b 11201", tree)
	require.NoError(t, err)
	require.NotNil(t, in.Address)
	assert.Equal(t, "456 oak ave", in.Address.Street)
	assert.Equal(t, "2b", in.Address.AptUnit)
	assert.Equal(t, "11201", in.Address.ZipCode)
}

func TestParseNameAnswer(t *testing.T) {
	p := NewParser(newParserProvider(t))

	askName := func() *order.OrderTask {
		tree := emptyTree()
		tree.Asked = &order.PendingSlot{Scope: order.ScopeName}
		return tree
	}

	in, err := p.Parse("my name is jane doe", askName())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", in.CustomerName)

	in, err = p.Parse("jane", askName())
	require.NoError(t, err)
	assert.Equal(t, "Jane", in.CustomerName)
}

func TestParseContactAnswer(t *testing.T) {
	p := NewParser(newParserProvider(t))

	askContact := func() *order.OrderTask {
		tree := emptyTree()
		tree.Asked = &order.PendingSlot{Scope: order.ScopeContact}
		return tree
	}

	in, err := p.Parse("555-123-4567", askContact())
	require.NoError(t, err)
	assert.Equal(t, "555-123-4567", in.Phone)

	in, err = p.Parse("jane@example.com", askContact())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", in.Email)

	// Unusable reply still consumes the question so the attempt is counted.
	in, err = p.Parse("whenever works", askContact())
	require.NoError(t, err)
	require.Len(t, in.SlotAnswers, 1)
	assert.Equal(t, order.ScopeContact, in.SlotAnswers[0].Scope)
}

func TestParsePaymentAnswer(t *testing.T) {
	p := NewParser(newParserProvider(t))

	askPayment := func() *order.OrderTask {
		tree := emptyTree()
		tree.Asked = &order.PendingSlot{Scope: order.ScopePayment}
		return tree
	}

	tests := []struct {
		text       string
		wantMethod string
		wantPhone  string
	}{
		{text: "at the counter", wantMethod: order.PaymentInStore},
		{text: "cash", wantMethod: order.PaymentCashDelivery},
		{text: "send me a link", wantMethod: order.PaymentCardLink},
		{text: "text me the link at 555-123-4567", wantMethod: order.PaymentCardLink, wantPhone: "555-123-4567"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, err := p.Parse(tt.text, askPayment())
			require.NoError(t, err)
			assert.Equal(t, tt.wantMethod, in.PaymentMethod)
			assert.Equal(t, tt.wantPhone, in.Phone)
		})
	}
}

func TestParseLowConfidence(t *testing.T) {
	p := NewParser(newParserProvider(t))

	for _, text := range []string{"hello how are you", "what do you recommend", ""} {
		_, err := p.Parse(text, emptyTree())
		assert.ErrorIs(t, err, ErrLowConfidence, "input %q", text)
	}
}
