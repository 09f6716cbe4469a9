package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type ShippingService struct {
	repo repository.ShippingRepository
}

func NewShippingService(repo repository.ShippingRepository) *ShippingService {
	return &ShippingService{repo: repo}
}

func (s *ShippingService) List(ctx context.Context) ([]domain.ShippingMethod, error) {
	return s.repo.ListShippingMethods(ctx)
}

func (s *ShippingService) Get(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrShippingMethodRequired
	}
	return s.repo.GetShippingMethod(ctx, id)
}

// Save создаёт способ доставки или заменяет существующий с тем же id
func (s *ShippingService) Save(ctx context.Context, m domain.ShippingMethod) (*domain.ShippingMethod, error) {
	if strings.TrimSpace(m.ID) == "" || strings.TrimSpace(m.Name) == "" {
		return nil, fmt.Errorf("%w: id and name are required", ErrInvalidInput)
	}
	if !validPrice(m.Cost) {
		return nil, fmt.Errorf("%w: shipping cost %s is not a valid amount", ErrInvalidInput, m.Cost)
	}
	cp := m
	if err := s.repo.CreateShippingMethod(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
