package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/eventbus"
	"github.com/orderline/orderline/internal/session/repositoryimpl"
	"github.com/orderline/orderline/pkg/cerr"
	"github.com/orderline/orderline/pkg/storage"
)

const engineCatalog = `
settings:
  city_tax_rate: 0.045
  state_tax_rate: 0.04
  delivery_fee: 3.50
aliases:
  cc: cream cheese
responses:
  affirmative: ["yes", "yeah", "yep", "sure"]
  negative: ["no", "nope", "no thanks"]
  cancel: ["never mind", "nevermind", "cancel", "forget it"]
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
        question: "What kind of bagel would you like?"
        options:
          - {slug: plain, display_name: plain}
          - {slug: everything, display_name: everything}
      - name: toasted
        type: flag
        required: true
        ask_if_missing: true
        question: "Would you like that toasted?"
      - name: spread
        type: choice
        required: false
        ask_if_missing: true
        question: "Anything on that? We have butter and a few cream cheeses."
        options:
          - {slug: none, display_name: nothing}
          - {slug: butter, display_name: butter, price_modifier: 0.50}
          - {slug: honey_walnut_cream_cheese, display_name: honey walnut cream cheese, price_modifier: 1.50}
          - {slug: maple_walnut_cream_cheese, display_name: maple walnut cream cheese, price_modifier: 1.50}
  - id: cookie
    name: chocolate chip cookie
    slug: cookie
    kind: menu_item
    base_price: 2.00
    aliases: [cookie, cookies]
`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(engineCatalog), 0o644))
	provider, err := catalog.NewYAMLProvider(catalogPath)
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(filepath.Join(dir, "data"))
	require.NoError(t, err)
	sessions := repositoryimpl.NewYAMLRepository(store)

	// No fallback interpreter: unparseable turns degrade to a re-prompt.
	return New(sessions, provider, nil, eventbus.New())
}

func turn(t *testing.T, e *Engine, sessionID, utterance string) *TurnResult {
	t.Helper()
	res, err := e.Turn(context.Background(), sessionID, utterance)
	require.NoError(t, err, "utterance %q", utterance)
	return res
}

func TestStartSession(t *testing.T) {
	e := newTestEngine(t)

	s, greeting, err := e.StartSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hi! What can I get for you?", greeting)
	require.NotNil(t, s)

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, stored.Closed)
	require.Len(t, stored.Transcript, 1)
	assert.Equal(t, greeting, stored.Transcript[0].Reply)
}

func TestPickupConversationToCompletion(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	res := turn(t, e, s.ID, "can i get a plain bagel")
	assert.Contains(t, res.Reply, "Added a bagel.")
	assert.Contains(t, res.Reply, "Would you like that toasted?")

	res = turn(t, e, s.ID, "yes please")
	assert.Contains(t, res.Reply, "Anything on that?")

	res = turn(t, e, s.ID, "butter")
	assert.Contains(t, res.Reply, "pickup or delivery")

	res = turn(t, e, s.ID, "pickup")
	assert.Contains(t, res.Reply, "Here's your order:")
	assert.Contains(t, res.Reply, "plain bagel toasted with butter ($3.00)")
	assert.Contains(t, res.Reply, "Does everything look right?")

	res = turn(t, e, s.ID, "yes")
	assert.Contains(t, res.Reply, "Can I get a name for the order?")

	res = turn(t, e, s.ID, "jane")
	assert.Contains(t, res.Reply, "How would you like to pay?")

	res = turn(t, e, s.ID, "i'll pay in store")
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Reply, "You're all set, Jane! Order ORD-")
	assert.Contains(t, res.Reply, "ready for pickup")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)
}

func TestTurnOnClosedSession(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "a cookie")
	turn(t, e, s.ID, "pickup")
	turn(t, e, s.ID, "yes")
	turn(t, e, s.ID, "jane")
	res := turn(t, e, s.ID, "in store")
	require.True(t, res.Terminal)

	_, err = e.Turn(context.Background(), s.ID, "one more cookie")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestResetSessionStartsOver(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "a cookie")
	turn(t, e, s.ID, "pickup")

	res, err := e.ResetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "start over")
	assert.Empty(t, res.Tree.Items.All())

	res2 := turn(t, e, s.ID, "a cookie")
	assert.Contains(t, res2.Reply, "Added")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Tree.Items.All(), 1)
}

func TestUnparseableTurnLeavesStateUntouched(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "a plain bagel")

	res := turn(t, e, s.ID, "blorp fizzle")
	assert.Contains(t, res.Reply, "Sorry, I didn't quite catch that.")
	assert.Contains(t, res.Reply, "Would you like that toasted?", "same question re-asked")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	require.Len(t, stored.Tree.Items.All(), 1)
	assert.Empty(t, stored.Tree.Items.All()[0].SlotValues()["toasted"])
}

func TestDisambiguationRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	res := turn(t, e, s.ID, "a plain bagel toasted with walnut cream cheese")
	assert.Contains(t, res.Reply, "Which one did you mean:")
	assert.Contains(t, res.Reply, "honey walnut cream cheese")
	assert.Contains(t, res.Reply, "maple walnut cream cheese")

	res = turn(t, e, s.ID, "the honey one")
	assert.NotContains(t, res.Reply, "Which one did you mean:")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	it := stored.Tree.Items.All()[0]
	assert.Equal(t, "honey_walnut_cream_cheese", it.SlotValues()["spread"])
}

func TestDisambiguationDoubleMissFallsThrough(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "a plain bagel toasted with walnut cream cheese")

	res := turn(t, e, s.ID, "um whichever")
	assert.Contains(t, res.Reply, "Which one did you mean:", "first miss re-asks")

	// Second miss drops the question; the utterance orders a new item instead.
	res = turn(t, e, s.ID, "a cookie")
	assert.Contains(t, res.Reply, "Added a chocolate chip cookie.")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Tree.Pending)
	assert.Len(t, stored.Tree.Items.All(), 2)
}

func TestCancelOrderClosesSession(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "two cookies")
	res := turn(t, e, s.ID, "cancel my order")

	assert.True(t, res.Terminal)
	assert.Contains(t, res.Reply, "cleared the order")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, stored.Closed)
	assert.Empty(t, stored.Tree.Items.All())
}

func TestAliasNormalizationInTurn(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "an everything bagel not toasted")
	res := turn(t, e, s.ID, "the honey walnut cc")

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	it := stored.Tree.Items.All()[0]
	assert.Equal(t, "honey_walnut_cream_cheese", it.SlotValues()["spread"], "reply was %q", res.Reply)
}

func TestConcurrentTurnsSerialize(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = e.Turn(context.Background(), s.ID, "a cookie")
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Tree.Items.All(), 4)
}

func TestEventsPublished(t *testing.T) {
	e := newTestEngine(t)
	id, ch := e.bus.Subscribe(16)
	defer e.bus.Unsubscribe(id)

	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "a cookie")
	turn(t, e, s.ID, "pickup")
	turn(t, e, s.ID, "yes")
	turn(t, e, s.ID, "jane")
	res := turn(t, e, s.ID, "in store")
	require.True(t, res.Terminal)

	var types []string
	for len(ch) > 0 {
		ev := <-ch
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, eventbus.TypeSessionStarted)
	assert.Contains(t, types, eventbus.TypeItemAdded)
	assert.Contains(t, types, eventbus.TypeOrderConfirmed)
	assert.Contains(t, types, eventbus.TypeOrderFinalized)

	finalized := 0
	for _, ty := range types {
		if ty == eventbus.TypeOrderFinalized {
			finalized++
		}
	}
	assert.Equal(t, 1, finalized, "finalized exactly once")
}

func TestCheckoutIntentSkipsOptionalQuestions(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	turn(t, e, s.ID, "can i get a plain bagel")
	res := turn(t, e, s.ID, "yes please")
	assert.Contains(t, res.Reply, "Anything on that?")

	res = turn(t, e, s.ID, "that's it")
	assert.Contains(t, res.Reply, "pickup or delivery", "declining the open question moves the flow forward")
}

func TestTurnResultCarriesOrderSnapshot(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.StartSession(context.Background())
	require.NoError(t, err)

	res := turn(t, e, s.ID, "two cookies")
	require.NotNil(t, res.Order)
	assert.Equal(t, 2, res.Order.ItemCount)
	assert.InDelta(t, 4.00, res.Order.Subtotal, 1e-9)
	assert.Contains(t, res.Order.Summary, "chocolate chip cookie")

	turn(t, e, s.ID, "pickup")
	turn(t, e, s.ID, "yes")
	turn(t, e, s.ID, "jane")
	res = turn(t, e, s.ID, "in store")
	require.True(t, res.Terminal)
	require.NotNil(t, res.Order)
	assert.True(t, strings.HasPrefix(res.Order.OrderNumber, "ORD-"), "order number %q", res.Order.OrderNumber)
	assert.Greater(t, res.Order.Total, res.Order.Subtotal, "total carries the tax")
}
