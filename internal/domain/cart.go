package domain

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// CartSchemaVersion тег формата сохранённой корзины
const CartSchemaVersion = 1

// SelectedAddon выбранное дополнение в позиции корзины
type SelectedAddon struct {
	AddonID  string          `json:"addonId"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// CartLineItem позиция корзины: товар + выбранные вариации и дополнения
type CartLineItem struct {
	ProductID          string            `json:"productId"`
	ProductTitle       string            `json:"productTitle"`
	ProductImage       string            `json:"productImage,omitempty"`
	ProductSKU         string            `json:"productSku,omitempty"`
	ProductPrice       decimal.Decimal   `json:"productPrice"`
	Quantity           int               `json:"quantity"`
	SelectedVariations map[string]string `json:"selectedVariations"`
	SelectedAddons     []SelectedAddon   `json:"selectedAddons"`
}

func (it CartLineItem) VariationsKey() string { return VariationsKey(it.SelectedVariations) }

func (it CartLineItem) AddonsKey() string { return AddonsKey(it.SelectedAddons) }

// Matches сравнивает позицию с тройкой идентичности
func (it CartLineItem) Matches(productID, variationsKey, addonsKey string) bool {
	return it.ProductID == productID &&
		it.VariationsKey() == variationsKey &&
		it.AddonsKey() == addonsKey
}

// SameLine true, если позиции должны быть объединены
func (it CartLineItem) SameLine(other CartLineItem) bool {
	return other.Matches(it.ProductID, it.VariationsKey(), it.AddonsKey())
}

// AddonsTotal сумма price*quantity по дополнениям позиции
func (it CartLineItem) AddonsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range it.SelectedAddons {
		total = total.Add(a.Price.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total
}

// LineTotal productPrice*quantity + сумма дополнений.
// Количество дополнений не умножается на количество позиции.
func (it CartLineItem) LineTotal() decimal.Decimal {
	return it.ProductPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Add(it.AddonsTotal())
}

// Cart корзина; Total и ItemCount всегда вычисляются заново из позиций
type Cart struct {
	Items     []CartLineItem  `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	Version   int64           `json:"version"`
}

func NewCart(items []CartLineItem, version int64) Cart {
	if items == nil {
		items = []CartLineItem{}
	}
	c := Cart{Items: items, Total: decimal.Zero, Version: version}
	for _, it := range items {
		c.Total = c.Total.Add(it.LineTotal())
		c.ItemCount += it.Quantity
	}
	return c
}

// Subtotal та же формула, что и Cart.Total, для произвольного набора позиций
func Subtotal(items []CartLineItem) decimal.Decimal {
	return NewCart(items, 0).Total
}

// MergeLine увеличивает количество совпадающей позиции или добавляет новую в конец
func MergeLine(items []CartLineItem, item CartLineItem) []CartLineItem {
	out := cloneItems(items)
	for i := range out {
		if out[i].SameLine(item) {
			out[i].Quantity += item.Quantity
			return out
		}
	}
	return append(out, item)
}

// SetLineQuantity quantity <= 0 удаляет позицию, иначе задаёт абсолютное значение
func SetLineQuantity(items []CartLineItem, productID, variationsKey, addonsKey string, quantity int) []CartLineItem {
	if quantity <= 0 {
		return RemoveLine(items, productID, variationsKey, addonsKey)
	}
	out := cloneItems(items)
	for i := range out {
		if out[i].Matches(productID, variationsKey, addonsKey) {
			out[i].Quantity = quantity
			break
		}
	}
	return out
}

func RemoveLine(items []CartLineItem, productID, variationsKey, addonsKey string) []CartLineItem {
	out := make([]CartLineItem, 0, len(items))
	for _, it := range items {
		if it.Matches(productID, variationsKey, addonsKey) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// VariationsKey каноническая форма выбранных вариаций: JSON-объект с отсортированными ключами
func VariationsKey(variations map[string]string) string {
	if len(variations) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(variations))
	for name := range variations {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(jsonString(name))
		b.WriteByte(':')
		b.Write(jsonString(variations[name]))
	}
	b.WriteByte('}')
	return b.String()
}

type addonKeyEntry struct {
	AddonID  string `json:"addonId"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// AddonsKey каноническая форма дополнений: массив, отсортированный по addonId.
// Title в ключ не входит.
func AddonsKey(addons []SelectedAddon) string {
	if len(addons) == 0 {
		return "[]"
	}
	entries := make([]addonKeyEntry, 0, len(addons))
	for _, a := range addons {
		entries = append(entries, addonKeyEntry{AddonID: a.AddonID, Price: a.Price.String(), Quantity: a.Quantity})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AddonID != entries[j].AddonID {
			return entries[i].AddonID < entries[j].AddonID
		}
		if entries[i].Price != entries[j].Price {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Quantity < entries[j].Quantity
	})
	data, _ := json.Marshal(entries)
	return string(data)
}

func jsonString(s string) []byte {
	data, _ := json.Marshal(s)
	return data
}

func cloneItems(items []CartLineItem) []CartLineItem {
	out := make([]CartLineItem, len(items), len(items)+1)
	copy(out, items)
	return out
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
