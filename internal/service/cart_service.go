package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"
)

const maxCartAttempts = 5

var (
	// ErrSelectionIncomplete товар нельзя положить в корзину с текущим выбором
	ErrSelectionIncomplete = errors.New("product selection is incomplete")
	// ErrCartBusy корзину не удалось сохранить за maxCartAttempts попыток
	ErrCartBusy = errors.New("cart is busy, retry")
)

// MutateOption параметры отдельной операции над корзиной
type MutateOption func(*mutateOptions)

type mutateOptions struct {
	expectedVersion *int64
}

// IfVersion применяет изменение только к корзине указанной версии,
// иначе операция завершается repository.ErrVersionConflict без повторов
func IfVersion(v int64) MutateOption {
	return func(o *mutateOptions) { o.expectedVersion = &v }
}

// CartService операции над корзиной: слияние по идентичности позиции,
// запись сразу после изменения, оптимистичные повторы при гонке
type CartService struct {
	store    repository.CartStore
	products repository.ProductRepository
	pricing  *PricingService
	hub      *events.CartHub
	log      *zap.Logger
	reads    singleflight.Group
}

func NewCartService(store repository.CartStore, products repository.ProductRepository, pricing *PricingService, hub *events.CartHub, log *zap.Logger) *CartService {
	return &CartService{store: store, products: products, pricing: pricing, hub: hub, log: log}
}

// GetCart пересчитывает итоги из позиций; повреждённое состояние даёт пустую корзину
func (s *CartService) GetCart(ctx context.Context, cartID string) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, ErrInvalidInput
	}
	// the shared load must outlive the first caller's cancellation
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.reads.Do(cartID, func() (any, error) {
		st, err := s.load(loadCtx, cartID)
		if err != nil {
			return nil, err
		}
		return domain.NewCart(st.Items, st.Version), nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return v.(domain.Cart), nil
}

// AddToCart увеличивает количество совпадающей позиции или добавляет новую
func (s *CartService) AddToCart(ctx context.Context, cartID string, item domain.CartLineItem, opts ...MutateOption) (domain.Cart, error) {
	line, err := normalizeLine(item)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.mutate(ctx, cartID, opts, func(items []domain.CartLineItem) []domain.CartLineItem {
		return domain.MergeLine(items, line)
	})
}

// AddProduct собирает позицию из каталога: цена считается на сервере, а не берётся у клиента
func (s *CartService) AddProduct(ctx context.Context, cartID, productID string, quantity int, sel Selections, opts ...MutateOption) (domain.Cart, error) {
	if quantity < 1 {
		return domain.Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return domain.Cart{}, err
	}
	line, err := s.pricing.PriceLine(ctx, *p, quantity, sel)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.AddToCart(ctx, cartID, line, opts...)
}

// UpdateCartItemQuantity: quantity <= 0 удаляет позицию, без совпадения корзина не меняется
func (s *CartService) UpdateCartItemQuantity(ctx context.Context, cartID, productID, variationsKey, addonsKey string, quantity int, opts ...MutateOption) (domain.Cart, error) {
	vk, ak := canonicalVariationsKey(variationsKey), canonicalAddonsKey(addonsKey)
	return s.mutate(ctx, cartID, opts, func(items []domain.CartLineItem) []domain.CartLineItem {
		return domain.SetLineQuantity(items, productID, vk, ak, quantity)
	})
}

func (s *CartService) RemoveFromCart(ctx context.Context, cartID, productID, variationsKey, addonsKey string, opts ...MutateOption) (domain.Cart, error) {
	vk, ak := canonicalVariationsKey(variationsKey), canonicalAddonsKey(addonsKey)
	return s.mutate(ctx, cartID, opts, func(items []domain.CartLineItem) []domain.CartLineItem {
		return domain.RemoveLine(items, productID, vk, ak)
	})
}

func (s *CartService) ClearCart(ctx context.Context, cartID string, opts ...MutateOption) (domain.Cart, error) {
	return s.mutate(ctx, cartID, opts, func([]domain.CartLineItem) []domain.CartLineItem {
		return nil
	})
}

// Adopt переносит позиции корзины fromID в toID по обычным правилам идентичности.
// Гостевая корзина сначала очищается по прочитанной версии, поэтому повторный
// вызов не может добавить те же позиции дважды.
func (s *CartService) Adopt(ctx context.Context, fromID, toID string) (domain.Cart, error) {
	if fromID == toID {
		return s.GetCart(ctx, toID)
	}
	from, err := s.load(ctx, fromID)
	if err != nil {
		return domain.Cart{}, err
	}
	if len(from.Items) == 0 {
		return s.GetCart(ctx, toID)
	}

	_, err = s.mutate(ctx, fromID, []MutateOption{IfVersion(from.Version)}, func([]domain.CartLineItem) []domain.CartLineItem {
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		// guest cart changed meanwhile; the next request adopts the fresh state
		return s.GetCart(ctx, toID)
	}
	if err != nil {
		return domain.Cart{}, err
	}

	merge := func(items []domain.CartLineItem) []domain.CartLineItem {
		for _, it := range from.Items {
			items = domain.MergeLine(items, it)
		}
		return items
	}
	cart, err := s.mutate(ctx, toID, nil, merge)
	if err != nil {
		if _, rerr := s.mutate(ctx, fromID, nil, merge); rerr != nil {
			s.log.Error("guest cart lines lost during adoption",
				zap.String("from", fromID), zap.String("to", toID), zap.Error(rerr))
		}
		return domain.Cart{}, err
	}
	return cart, nil
}

// Subscribe снимки корзины после каждого сохранённого изменения
func (s *CartService) Subscribe(cartID string) (<-chan domain.Cart, func()) {
	return s.hub.Subscribe(cartID)
}

func (s *CartService) mutate(ctx context.Context, cartID string, opts []MutateOption, fn func([]domain.CartLineItem) []domain.CartLineItem) (domain.Cart, error) {
	if cartID == "" {
		return domain.Cart{}, ErrInvalidInput
	}
	var o mutateOptions
	for _, opt := range opts {
		opt(&o)
	}

	for attempt := 1; attempt <= maxCartAttempts; attempt++ {
		st, err := s.load(ctx, cartID)
		if err != nil {
			return domain.Cart{}, err
		}
		if o.expectedVersion != nil && *o.expectedVersion != st.Version {
			return domain.Cart{}, repository.ErrVersionConflict
		}

		saved, err := s.store.Save(ctx, cartID, st.Version, fn(st.Items))
		if errors.Is(err, repository.ErrVersionConflict) && o.expectedVersion == nil {
			s.log.Debug("cart changed concurrently, retrying",
				zap.String("cart_id", cartID), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return domain.Cart{}, fmt.Errorf("save cart: %w", err)
		}

		cart := domain.NewCart(saved.Items, saved.Version)
		s.hub.Publish(cartID, cart)
		return cart, nil
	}
	return domain.Cart{}, ErrCartBusy
}

func (s *CartService) load(ctx context.Context, cartID string) (repository.CartState, error) {
	st, err := s.store.Load(ctx, cartID)
	if errors.Is(err, repository.ErrCorruptState) {
		s.log.Warn("stored cart is unreadable, starting empty",
			zap.String("cart_id", cartID), zap.Error(err))
		return st, nil
	}
	if err != nil {
		return repository.CartState{}, fmt.Errorf("load cart: %w", err)
	}
	return st, nil
}

func normalizeLine(item domain.CartLineItem) (domain.CartLineItem, error) {
	if strings.TrimSpace(item.ProductID) == "" {
		return item, fmt.Errorf("%w: productId is required", ErrInvalidInput)
	}
	if item.Quantity < 1 {
		return item, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if !validPrice(item.ProductPrice) {
		return item, fmt.Errorf("%w: price %s is not a valid amount", ErrInvalidInput, item.ProductPrice)
	}
	if item.SelectedVariations == nil {
		item.SelectedVariations = map[string]string{}
	}
	addons := make([]domain.SelectedAddon, 0, len(item.SelectedAddons))
	for _, a := range item.SelectedAddons {
		if a.Quantity < 1 {
			continue
		}
		if !validPrice(a.Price) || a.AddonID == "" {
			return item, fmt.Errorf("%w: malformed addon", ErrInvalidInput)
		}
		addons = append(addons, a)
	}
	item.SelectedAddons = addons
	if !item.LineTotal().IsPositive() {
		return item, fmt.Errorf("%w: line total must be positive", ErrInvalidInput)
	}
	return item, nil
}

// canonicalVariationsKey accepts keys built by clients in any attribute order.
func canonicalVariationsKey(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return domain.VariationsKey(nil)
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return raw
	}
	return domain.VariationsKey(m)
}

func canonicalAddonsKey(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return domain.AddonsKey(nil)
	}
	var addons []domain.SelectedAddon
	if err := json.Unmarshal([]byte(raw), &addons); err != nil {
		return raw
	}
	return domain.AddonsKey(addons)
}
