package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
settings:
  city_tax_rate: 0.045
  state_tax_rate: 0.04
  delivery_fee: 3.50

aliases:
  cc: cream cheese
  expresso: espresso

responses:
  affirmative: ["yes", "yeah", "sure"]
  negative: ["no", "no thanks"]
  cancel: ["never mind", "forget it"]

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
        options:
          - slug: plain
            display_name: plain
          - slug: everything
            display_name: everything
      - name: toasted
        type: flag
        required: true
        ask_if_missing: true
      - name: spread
        type: choice
        required: false
        ask_if_missing: true
        options:
          - slug: none
            display_name: nothing
          - slug: butter
            display_name: butter
            price_modifier: 0.50
          - slug: honey_walnut_cream_cheese
            display_name: honey walnut cream cheese
            price_modifier: 1.50

  - id: latte
    name: latte
    slug: latte
    kind: sized_beverage
    base_price: 4.00
    slots:
      - name: size
        type: choice
        required: true
        ask_if_missing: true
        options:
          - slug: small
            display_name: small
          - slug: large
            display_name: large
            price_modifier: 1.25
      - name: iced
        type: flag
        required: true
        default: "false"
        ask_if_missing: false
        price_modifier: 0.50
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestProvider(t *testing.T) *YAMLProvider {
	t.Helper()
	p, err := NewYAMLProvider(writeCatalog(t, testCatalog))
	require.NoError(t, err)
	return p
}

func TestLookupItem(t *testing.T) {
	p := newTestProvider(t)

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"canonical name", "bagel", "bagel", true},
		{"alias", "bagels", "bagel", true},
		{"case insensitive", "LATTE", "latte", true},
		{"unknown", "pizza", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, ok := p.LookupItem(tt.query)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, it.Name)
			}
		})
	}
}

func TestMatchItems(t *testing.T) {
	p := newTestProvider(t)

	matches := p.MatchItems("two plain bagels and a latte")
	require.Len(t, matches, 2)
	assert.Equal(t, "bagel", matches[0].Item.Name)
	assert.Equal(t, "latte", matches[1].Item.Name)
	assert.Less(t, matches[0].Offset, matches[1].Offset)
}

func TestMatchItemsWordBoundary(t *testing.T) {
	p := newTestProvider(t)

	// "bagel" must not match inside another word.
	assert.Empty(t, p.MatchItems("bagelry"))
}

func TestMatchItemsNoOverlap(t *testing.T) {
	p := newTestProvider(t)

	// One mention produces one match even though both the name and the
	// plural alias cover overlapping text.
	matches := p.MatchItems("bagels")
	require.Len(t, matches, 1)
	assert.Equal(t, "bagel", matches[0].Item.Name)
}

func TestIsResponse(t *testing.T) {
	p := newTestProvider(t)

	assert.True(t, p.IsResponse(ResponseAffirmative, "yes"))
	assert.True(t, p.IsResponse(ResponseAffirmative, " Yeah "))
	assert.True(t, p.IsResponse(ResponseNegative, "no thanks"))
	assert.True(t, p.IsResponse(ResponseCancel, "never mind"))
	assert.False(t, p.IsResponse(ResponseAffirmative, "yes give me a bagel"))
	assert.False(t, p.IsResponse("unknown-kind", "yes"))
}

func TestSettings(t *testing.T) {
	p := newTestProvider(t)

	s := p.Settings()
	assert.InDelta(t, 0.045, s.CityTaxRate, 1e-9)
	assert.InDelta(t, 0.04, s.StateTaxRate, 1e-9)
	assert.InDelta(t, 3.50, s.DeliveryFee, 1e-9)
}

func TestReloadKeepsStateOnParseError(t *testing.T) {
	path := writeCatalog(t, testCatalog)
	p, err := NewYAMLProvider(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(":::not yaml"), 0o644))
	require.Error(t, p.Reload())

	_, ok := p.LookupItem("bagel")
	assert.True(t, ok, "previous catalog should survive a bad reload")
}

func TestCatalogPricer(t *testing.T) {
	p := newTestProvider(t)
	pricer := NewCatalogPricer(p)

	tests := []struct {
		name  string
		item  string
		slots map[string]string
		want  float64
	}{
		{"base price only", "bagel", nil, 2.50},
		{"choice modifier", "bagel", map[string]string{"spread": "butter"}, 3.00},
		{"larger modifier", "bagel", map[string]string{"spread": "honey_walnut_cream_cheese"}, 4.00},
		{"flag modifier applies when true", "latte", map[string]string{"size": "large", "iced": "true"}, 5.75},
		{"flag modifier skipped when false", "latte", map[string]string{"size": "large", "iced": "false"}, 5.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pricer.UnitPrice(tt.item, tt.slots)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCatalogPricerUnknownItem(t *testing.T) {
	p := newTestProvider(t)
	pricer := NewCatalogPricer(p)

	_, err := pricer.UnitPrice("pizza", nil)
	require.Error(t, err)
}
