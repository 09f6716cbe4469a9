package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// ProductService инкапсулирует бизнес-логику каталога и локальный поиск цены варианта
type ProductService struct {
	repo repository.ProductRepository
}

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

var ErrInvalidInput = errors.New("invalid input")

var _ VariantPriceResolver = (*ProductService)(nil)

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	cp := p
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, ErrInvalidInput
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	cp := p
	if err := s.repo.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.repo.List(ctx, f)
}

// VariantPrice цена варианта, атрибуты которого в точности совпадают с комбинацией
func (s *ProductService) VariantPrice(ctx context.Context, productID string, combination map[string]string) (decimal.Decimal, error) {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	v, ok := p.VariantFor(combination)
	if !ok {
		return decimal.Zero, fmt.Errorf("variant of %s: %w", productID, repository.ErrNotFound)
	}
	return v.Price, nil
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: title and sku are required", ErrInvalidInput)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown product type %q", ErrInvalidInput, p.Type)
	}
	if !validPrice(p.BasePrice) {
		return fmt.Errorf("%w: base price %s is not a valid amount", ErrInvalidInput, p.BasePrice)
	}

	attrs := make(map[string]domain.VariationAttribute, len(p.Variations))
	for _, a := range p.Variations {
		if strings.TrimSpace(a.Name) == "" || len(a.Values) == 0 {
			return fmt.Errorf("%w: variation %q has no values", ErrInvalidInput, a.Name)
		}
		attrs[a.Name] = a
	}
	if p.Type == domain.ProductTypeVariable && len(attrs) == 0 {
		return fmt.Errorf("%w: variable product needs variation attributes", ErrInvalidInput)
	}
	for _, v := range p.Variants {
		if !validPrice(v.Price) {
			return fmt.Errorf("%w: variant price %s is not a valid amount", ErrInvalidInput, v.Price)
		}
		if len(v.Attributes) != len(attrs) {
			return fmt.Errorf("%w: variant must set every attribute", ErrInvalidInput)
		}
		for name, value := range v.Attributes {
			a, ok := attrs[name]
			if !ok || !a.Allows(value) {
				return fmt.Errorf("%w: variant value %s=%s is not declared", ErrInvalidInput, name, value)
			}
		}
	}

	seen := make(map[string]bool, len(p.Addons))
	for _, a := range p.Addons {
		if strings.TrimSpace(a.ID) == "" || seen[a.ID] {
			return fmt.Errorf("%w: addon ids must be unique and non-empty", ErrInvalidInput)
		}
		if !validPrice(a.Price) {
			return fmt.Errorf("%w: addon price %s is not a valid amount", ErrInvalidInput, a.Price)
		}
		seen[a.ID] = true
	}
	return nil
}

// validPrice неотрицательная сумма не точнее копейки
func validPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && domain.IsMoney(d)
}
