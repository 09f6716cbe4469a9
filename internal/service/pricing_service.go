package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

// VariantPriceResolver внешний поиск цены по точной комбинации атрибутов
type VariantPriceResolver interface {
	VariantPrice(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error)
}

// Selections выбор покупателя: значения вариаций и количество дополнений по id
type Selections struct {
	Variations map[string]string `json:"variations"`
	Addons     map[string]int    `json:"addons"`
}

// Quote цена за единицу и признак готовности к добавлению в корзину
type Quote struct {
	Price       decimal.Decimal `json:"price"`
	AddonsTotal decimal.Decimal `json:"addonsTotal"`
	Ready       bool            `json:"ready"`
}

type PricingService struct {
	resolver VariantPriceResolver
	log      *zap.Logger
}

func NewPricingService(resolver VariantPriceResolver, log *zap.Logger) *PricingService {
	return &PricingService{resolver: resolver, log: log}
}

// ComputeUnitPrice never fails: an incomplete selection is reported through
// Ready, and a failed variant lookup falls back to the base price.
func (s *PricingService) ComputeUnitPrice(ctx context.Context, p domain.Product, sel Selections) Quote {
	addonsTotal, chosen := addonsTotal(p, sel.Addons)
	q := Quote{Price: p.BasePrice, AddonsTotal: addonsTotal}

	switch p.Type {
	case domain.ProductTypeVariable:
		combination, complete := completeSelection(p, sel.Variations)
		if !complete {
			return q
		}
		q.Ready = true
		price, err := s.resolver.VariantPrice(ctx, p.ID, combination)
		if err == nil && price.IsNegative() {
			err = fmt.Errorf("negative variant price %s", price)
		}
		if err != nil {
			s.log.Warn("variant price lookup failed, using base price",
				zap.String("product_id", p.ID),
				zap.String("combination", domain.VariationsKey(combination)),
				zap.Error(err))
			return q
		}
		q.Price = price.Round(domain.MoneyScale)
	case domain.ProductTypeGroup:
		q.Price = p.BasePrice.Add(addonsTotal)
		q.Ready = chosen > 0
	default:
		q.Ready = true
	}
	return q
}

// PriceLine собирает позицию корзины по каталогу. У группового товара
// ProductPrice равна базовой цене, дополнения входят в итог отдельно,
// поэтому базовая цена может быть нулевой при положительном итоге позиции.
func (s *PricingService) PriceLine(ctx context.Context, p domain.Product, quantity int, sel Selections) (domain.CartLineItem, error) {
	if quantity < 1 {
		return domain.CartLineItem{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	quote := s.ComputeUnitPrice(ctx, p, sel)
	if !quote.Ready {
		return domain.CartLineItem{}, ErrSelectionIncomplete
	}

	line := domain.CartLineItem{
		ProductID:          p.ID,
		ProductTitle:       p.Title,
		ProductImage:       p.Image,
		ProductSKU:         p.SKU,
		ProductPrice:       quote.Price,
		Quantity:           quantity,
		SelectedVariations: map[string]string{},
	}
	switch p.Type {
	case domain.ProductTypeVariable:
		combination, _ := completeSelection(p, sel.Variations)
		line.SelectedVariations = combination
		if v, ok := p.VariantFor(combination); ok && v.SKU != "" {
			line.ProductSKU = v.SKU
		}
	case domain.ProductTypeGroup:
		line.ProductPrice = p.BasePrice
	}

	ids := make([]string, 0, len(sel.Addons))
	for id, qty := range sel.Addons {
		if qty >= 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		a, ok := p.Addon(id)
		if !ok {
			return domain.CartLineItem{}, fmt.Errorf("%w: unknown addon %s", ErrInvalidInput, id)
		}
		line.SelectedAddons = append(line.SelectedAddons, domain.SelectedAddon{
			AddonID:  a.ID,
			Title:    a.Title,
			Price:    a.Price,
			Quantity: sel.Addons[id],
		})
	}
	if !line.LineTotal().IsPositive() {
		return domain.CartLineItem{}, fmt.Errorf("%w: product %s has no price for this selection", ErrInvalidInput, p.ID)
	}
	return line, nil
}

// completeSelection keeps only declared attributes and reports whether every
// one of them has an allowed value.
func completeSelection(p domain.Product, chosen map[string]string) (map[string]string, bool) {
	combination := make(map[string]string, len(p.Variations))
	for _, attr := range p.Variations {
		v, ok := chosen[attr.Name]
		if !ok || !attr.Allows(v) {
			return nil, false
		}
		combination[attr.Name] = v
	}
	return combination, len(p.Variations) > 0
}

func addonsTotal(p domain.Product, quantities map[string]int) (decimal.Decimal, int) {
	total := decimal.Zero
	chosen := 0
	for id, qty := range quantities {
		if qty < 1 {
			continue
		}
		a, ok := p.Addon(id)
		if !ok {
			continue
		}
		total = total.Add(a.Price.Mul(decimal.NewFromInt(int64(qty))))
		chosen++
	}
	return total, chosen
}
