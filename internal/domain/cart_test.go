package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestVariationsKey_OrderIndependent(t *testing.T) {
	a := map[string]string{"Color": "Red", "Size": "M"}
	b := map[string]string{"Size": "M", "Color": "Red"}
	assert.Equal(t, VariationsKey(a), VariationsKey(b))
	assert.Equal(t, `{"Color":"Red","Size":"M"}`, VariationsKey(a))
	assert.Equal(t, "{}", VariationsKey(nil))
	assert.Equal(t, "{}", VariationsKey(map[string]string{}))
}

func TestAddonsKey_CanonicalAndIgnoresTitle(t *testing.T) {
	x := []SelectedAddon{
		{AddonID: "b", Title: "Bow", Price: d("1.50"), Quantity: 1},
		{AddonID: "a", Title: "Card", Price: d("2"), Quantity: 2},
	}
	y := []SelectedAddon{
		{AddonID: "a", Title: "Greeting card", Price: d("2.00"), Quantity: 2},
		{AddonID: "b", Title: "Ribbon", Price: d("1.5"), Quantity: 1},
	}
	assert.Equal(t, AddonsKey(x), AddonsKey(y))
	assert.Equal(t, "[]", AddonsKey(nil))

	z := []SelectedAddon{{AddonID: "a", Price: d("2"), Quantity: 3}}
	assert.NotEqual(t, AddonsKey(x), AddonsKey(z))
}

func TestMergeLine_SameIdentitySumsQuantity(t *testing.T) {
	item := CartLineItem{
		ProductID:          "p1",
		ProductPrice:       d("10"),
		Quantity:           1,
		SelectedVariations: map[string]string{"Color": "Red", "Size": "L"},
	}
	again := item
	again.Quantity = 2
	again.SelectedVariations = map[string]string{"Size": "L", "Color": "Red"}

	items := MergeLine(nil, item)
	items = MergeLine(items, again)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	other := item
	other.SelectedVariations = map[string]string{"Color": "Blue", "Size": "L"}
	items = MergeLine(items, other)
	assert.Len(t, items, 2)
}

func TestMergeLine_DoesNotMutateInput(t *testing.T) {
	items := []CartLineItem{{ProductID: "p1", ProductPrice: d("1"), Quantity: 1}}
	_ = MergeLine(items, CartLineItem{ProductID: "p1", ProductPrice: d("1"), Quantity: 4})
	assert.Equal(t, 1, items[0].Quantity)
}

func TestSetLineQuantity(t *testing.T) {
	items := []CartLineItem{
		{ProductID: "p1", ProductPrice: d("10"), Quantity: 1},
		{ProductID: "p2", ProductPrice: d("5"), Quantity: 1},
	}

	items = SetLineQuantity(items, "p1", "{}", "[]", 7)
	assert.Equal(t, 7, items[0].Quantity)

	// absent line is a no-op
	same := SetLineQuantity(items, "p9", "{}", "[]", 3)
	assert.Equal(t, items, same)

	for _, q := range []int{0, -1} {
		out := SetLineQuantity(items, "p1", "{}", "[]", q)
		require.Len(t, out, 1)
		assert.Equal(t, "p2", out[0].ProductID)
	}
}

func TestNewCart_ExampleScenario(t *testing.T) {
	var items []CartLineItem
	c := NewCart(items, 0)
	assert.True(t, c.Total.IsZero())
	assert.Equal(t, 0, c.ItemCount)
	assert.NotNil(t, c.Items)

	items = MergeLine(items, CartLineItem{ProductID: "p1", ProductPrice: d("10"), Quantity: 1})
	c = NewCart(items, 1)
	assert.True(t, c.Total.Equal(d("10")))
	assert.Equal(t, 1, c.ItemCount)

	items = MergeLine(items, CartLineItem{ProductID: "p1", ProductPrice: d("10"), Quantity: 2})
	c = NewCart(items, 2)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.True(t, c.Total.Equal(d("30")))

	addonLine := CartLineItem{
		ProductID:      "p2",
		ProductPrice:   d("5"),
		Quantity:       1,
		SelectedAddons: []SelectedAddon{{AddonID: "a1", Price: d("2"), Quantity: 2}},
	}
	assert.True(t, addonLine.LineTotal().Equal(d("9")))
	items = MergeLine(items, addonLine)
	c = NewCart(items, 3)
	assert.True(t, c.Total.Equal(d("39")), c.Total.String())
	assert.Equal(t, 4, c.ItemCount)

	items = RemoveLine(items, "p1", "{}", "[]")
	c = NewCart(items, 4)
	assert.True(t, c.Total.Equal(d("9")))
	assert.Equal(t, 1, c.ItemCount)
}

func TestLineTotal_AddonQuantityNotMultipliedByLineQuantity(t *testing.T) {
	it := CartLineItem{
		ProductPrice:   d("4.25"),
		Quantity:       3,
		SelectedAddons: []SelectedAddon{{AddonID: "x", Price: d("0.50"), Quantity: 2}},
	}
	assert.True(t, it.LineTotal().Equal(d("13.75")))
}

func TestProduct_VariantFor(t *testing.T) {
	p := Product{
		Variants: []Variant{
			{Attributes: map[string]string{"Size": "S", "Color": "Red"}, Price: d("11")},
			{Attributes: map[string]string{"Size": "L", "Color": "Red"}, Price: d("13")},
		},
	}
	v, ok := p.VariantFor(map[string]string{"Color": "Red", "Size": "L"})
	require.True(t, ok)
	assert.True(t, v.Price.Equal(d("13")))

	_, ok = p.VariantFor(map[string]string{"Color": "Blue", "Size": "L"})
	assert.False(t, ok)
}

func TestCustomerDetails_MissingFields(t *testing.T) {
	c := CustomerDetails{Email: "a@b.c", FirstName: "Ann", LastName: " ", City: "Oslo"}
	assert.Equal(t, []string{"lastName", "address", "state", "country", "postalCode"}, c.MissingFields())

	full := CustomerDetails{
		Email: "a@b.c", FirstName: "Ann", LastName: "Lee", Address: "1 Main",
		City: "Oslo", State: "Oslo", Country: "NO", PostalCode: "0150",
	}
	assert.Empty(t, full.MissingFields())
}
