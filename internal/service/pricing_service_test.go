package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type resolverFunc func(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error)

func (f resolverFunc) VariantPrice(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error) {
	return f(ctx, productID, combination)
}

func giftBox() domain.Product {
	return domain.Product{
		ID:        "gift",
		Title:     "Gift box",
		SKU:       "GB-1",
		Type:      domain.ProductTypeGroup,
		BasePrice: dec("5"),
		Addons: []domain.Addon{
			{ID: "card", Title: "Card", Price: dec("2")},
			{ID: "ribbon", Title: "Ribbon", Price: dec("1.5")},
		},
	}
}

func TestComputeUnitPrice(t *testing.T) {
	variable := shirt()
	variable.ID = "shirt"

	lookups := 0
	resolver := resolverFunc(func(_ context.Context, id string, c map[string]string) (decimal.Decimal, error) {
		lookups++
		if id == "shirt" && c["Color"] == "Red" && c["Size"] == "M" {
			return dec("22.50"), nil
		}
		return decimal.Zero, errors.New("catalog unavailable")
	})
	ps := NewPricingService(resolver, zap.NewNop())

	cases := []struct {
		name    string
		product domain.Product
		sel     Selections
		price   string
		addons  string
		ready   bool
	}{
		{"simple", domain.Product{Type: domain.ProductTypeSimple, BasePrice: dec("10")}, Selections{}, "10", "0", true},
		{"variable incomplete", variable, Selections{Variations: map[string]string{"Color": "Red"}}, "20", "0", false},
		{"variable undeclared value", variable, Selections{Variations: map[string]string{"Color": "Green", "Size": "M"}}, "20", "0", false},
		{"variable complete", variable, Selections{Variations: map[string]string{"Size": "M", "Color": "Red"}}, "22.5", "0", true},
		{"variable lookup fails soft", variable, Selections{Variations: map[string]string{"Color": "Blue", "Size": "M"}}, "20", "0", true},
		{"group nothing chosen", giftBox(), Selections{}, "5", "0", false},
		{"group zero qty", giftBox(), Selections{Addons: map[string]int{"card": 0}}, "5", "0", false},
		{"group chosen", giftBox(), Selections{Addons: map[string]int{"card": 2, "ribbon": 1, "ghost": 3}}, "10.5", "5.5", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := ps.ComputeUnitPrice(context.Background(), tc.product, tc.sel)
			if !q.Price.Equal(dec(tc.price)) {
				t.Fatalf("price: expected %s, got %s", tc.price, q.Price)
			}
			if !q.AddonsTotal.Equal(dec(tc.addons)) {
				t.Fatalf("addons total: expected %s, got %s", tc.addons, q.AddonsTotal)
			}
			if q.Ready != tc.ready {
				t.Fatalf("ready: expected %v, got %v", tc.ready, q.Ready)
			}
		})
	}

	if lookups != 2 {
		t.Fatalf("resolver must only be consulted for complete selections, got %d calls", lookups)
	}
}
