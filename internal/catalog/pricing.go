package catalog

import (
	"fmt"
	"math"
)

// Pricer computes the unit price of an order line. The engine calls it at the
// transition points where price-affecting state has just stabilized; it never
// reads a price it has not computed.
type Pricer interface {
	UnitPrice(itemName string, slotValues map[string]string) (float64, error)
}

// CatalogPricer prices items from their catalog base price plus the price
// modifiers of every chosen choice-slot option.
type CatalogPricer struct {
	provider Provider
}

func NewCatalogPricer(provider Provider) *CatalogPricer {
	return &CatalogPricer{provider: provider}
}

func (p *CatalogPricer) UnitPrice(itemName string, slotValues map[string]string) (float64, error) {
	it, ok := p.provider.LookupItem(itemName)
	if !ok {
		return 0, fmt.Errorf("unknown catalog item %q", itemName)
	}
	price := it.BasePrice
	for _, schema := range it.Slots {
		value, ok := slotValues[schema.Name]
		if !ok || value == "" {
			continue
		}
		switch schema.Type {
		case SlotChoice:
			if opt, ok := schema.Option(value); ok {
				price += opt.PriceModifier
			}
		case SlotFlag:
			if value == "true" {
				price += schema.PriceModifier
			}
		}
	}
	return round2(price), nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
