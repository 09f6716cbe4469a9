package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/repository"
)

var (
	ErrInvalidState           = errors.New("invalid state")
	ErrValidation             = errors.New("validation failed")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrShippingMethodRequired = errors.New("shipping method is required")
	ErrInvalidItem            = errors.New("invalid order item")
	ErrTotalsMismatch         = errors.New("totals do not match")
)

// ValidationError перечисляет незаполненные обязательные поля оформления
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.MissingFields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// CheckoutRequest данные оформления заказа. Если Items пусты, берётся корзина сессии.
// Позиции запроса переоцениваются по каталогу; ненулевые цены клиента,
// как и Subtotal/ShippingCost/Total, сверяются с расчётом сервера.
type CheckoutRequest struct {
	domain.CustomerDetails
	Items            []domain.CartLineItem
	ShippingMethodID string
	Subtotal         decimal.Decimal
	ShippingCost     decimal.Decimal
	Total            decimal.Decimal
}

// OrderService оформление заказа из корзины и чтение истории заказов
type OrderService struct {
	products repository.ProductRepository
	shipping repository.ShippingRepository
	orders   repository.OrderRepository
	outbox   repository.OutboxRepository
	tx       repository.TxManager
	carts    *CartService
	pricing  *PricingService
	log      *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	products repository.ProductRepository,
	shipping repository.ShippingRepository,
	orders repository.OrderRepository,
	outbox repository.OutboxRepository,
	tx repository.TxManager,
	carts *CartService,
	pricing *PricingService,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		products: products,
		shipping: shipping,
		orders:   orders,
		outbox:   outbox,
		tx:       tx,
		carts:    carts,
		pricing:  pricing,
		log:      log,
		now:      time.Now,
	}
}

// PlaceOrder проверяет данные целиком до первой записи, атомарно сохраняет
// заказ со всеми позициями и событием order.placed и только после фиксации
// очищает корзину
func (s *OrderService) PlaceOrder(ctx context.Context, customerID, cartID string, req CheckoutRequest) (*domain.Order, error) {
	if customerID == "" {
		return nil, ErrInvalidInput
	}
	if missing := req.CustomerDetails.MissingFields(); len(missing) > 0 {
		return nil, &ValidationError{MissingFields: missing}
	}
	if strings.TrimSpace(req.ShippingMethodID) == "" {
		return nil, ErrShippingMethodRequired
	}

	var items []domain.CartLineItem
	switch {
	case len(req.Items) > 0:
		priced, err := s.priceItems(ctx, req.Items)
		if err != nil {
			return nil, err
		}
		items = priced
	case cartID != "":
		cart, err := s.carts.GetCart(ctx, cartID)
		if err != nil {
			return nil, err
		}
		items = cart.Items
		if err := s.validateItems(ctx, items); err != nil {
			return nil, err
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	method, err := s.shipping.GetShippingMethod(ctx, req.ShippingMethodID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown shipping method %s", ErrInvalidInput, req.ShippingMethodID)
	}
	if err != nil {
		return nil, err
	}

	subtotal := domain.Subtotal(items)
	total := subtotal.Add(method.Cost)
	if mismatch(req.Subtotal, subtotal) || mismatch(req.ShippingCost, method.Cost) || mismatch(req.Total, total) {
		return nil, fmt.Errorf("%w: expected subtotal %s, shipping %s, total %s",
			ErrTotalsMismatch, subtotal, method.Cost, total)
	}

	now := s.now().UTC()
	number, err := domain.NewOrderNumber(now)
	if err != nil {
		return nil, err
	}
	o := domain.Order{
		ID:                 uuid.NewString(),
		OrderNumber:        number,
		CustomerID:         customerID,
		CustomerDetails:    trimDetails(req.CustomerDetails),
		ShippingMethodID:   method.ID,
		ShippingMethodName: method.Name,
		Subtotal:           subtotal,
		ShippingCost:       method.Cost,
		Total:              total,
		Status:             domain.OrderStatusPending,
		PaymentStatus:      domain.PaymentStatusPending,
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, &o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		o.Items = make([]domain.OrderItem, 0, len(items))
		for _, it := range items {
			row := orderItemFrom(o.ID, it)
			if err := s.orders.AddItem(ctx, &row); err != nil {
				return fmt.Errorf("add order item %s: %w", it.ProductID, err)
			}
			o.Items = append(o.Items, row)
		}
		ev, err := events.OrderPlacedEvent(o)
		if err != nil {
			return err
		}
		if err := s.outbox.Add(ctx, &ev); err != nil {
			return fmt.Errorf("add order event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("customer_id", customerID),
		zap.String("total", o.Total.String()))

	if cartID != "" {
		if _, err := s.carts.ClearCart(ctx, cartID); err != nil {
			s.log.Error("clear cart after order", zap.String("cart_id", cartID), zap.Error(err))
		}
	}
	return &o, nil
}

// ListOrders заказы покупателя, новые первыми
func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	if customerID == "" {
		return nil, ErrInvalidInput
	}
	return s.orders.ListByCustomer(ctx, customerID)
}

// GetOrder чужой заказ неотличим от отсутствующего
func (s *OrderService) GetOrder(ctx context.Context, customerID, id string) (*domain.Order, error) {
	if customerID == "" || id == "" {
		return nil, ErrInvalidInput
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != customerID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

// CancelOrder pending/confirmed → cancelled; оплаченный заказ помечается к возврату
func (s *OrderService) CancelOrder(ctx context.Context, customerID, id string) (*domain.Order, error) {
	if customerID == "" || id == "" {
		return nil, ErrInvalidInput
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.GetOrder(ctx, customerID, id)
		if err != nil {
			return err
		}
		if o.Status != domain.OrderStatusPending && o.Status != domain.OrderStatusConfirmed {
			return ErrInvalidState
		}
		payment := o.PaymentStatus
		if payment == domain.PaymentStatusPaid {
			payment = domain.PaymentStatusRefunded
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled, payment); err != nil {
			return err
		}
		updated, err = s.orders.GetByID(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// priceItems строит позиции запроса заново по каталогу; клиентская цена
// принимается только если совпадает с серверной
func (s *OrderService) priceItems(ctx context.Context, items []domain.CartLineItem) ([]domain.CartLineItem, error) {
	priced := make([]domain.CartLineItem, 0, len(items))
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, fmt.Errorf("%w: item %d has no product", ErrInvalidItem, i)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidItem, i)
		}
		p, err := s.product(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}

		sel := Selections{Variations: it.SelectedVariations, Addons: map[string]int{}}
		for _, a := range it.SelectedAddons {
			if a.AddonID == "" || a.Quantity < 1 {
				return nil, fmt.Errorf("%w: item %d has a malformed addon", ErrInvalidItem, i)
			}
			sel.Addons[a.AddonID] += a.Quantity
		}
		line, err := s.pricing.PriceLine(ctx, *p, it.Quantity, sel)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}

		if mismatch(it.ProductPrice, line.ProductPrice) {
			return nil, fmt.Errorf("%w: item %d price %s, expected %s", ErrInvalidItem, i, it.ProductPrice, line.ProductPrice)
		}
		for _, a := range it.SelectedAddons {
			catalog, _ := p.Addon(a.AddonID)
			if mismatch(a.Price, catalog.Price) {
				return nil, fmt.Errorf("%w: item %d addon %s price %s, expected %s",
					ErrInvalidItem, i, a.AddonID, a.Price, catalog.Price)
			}
		}
		priced = append(priced, line)
	}
	return priced, nil
}

// validateItems проверяет позиции корзины сессии: они уже оценены сервером
func (s *OrderService) validateItems(ctx context.Context, items []domain.CartLineItem) error {
	for i, it := range items {
		if err := checkLine(i, it); err != nil {
			return err
		}
		if _, err := s.product(ctx, it.ProductID); err != nil {
			return err
		}
	}
	return nil
}

func checkLine(i int, it domain.CartLineItem) error {
	if strings.TrimSpace(it.ProductID) == "" {
		return fmt.Errorf("%w: item %d has no product", ErrInvalidItem, i)
	}
	if it.Quantity < 1 {
		return fmt.Errorf("%w: item %d quantity must be at least 1", ErrInvalidItem, i)
	}
	if !validPrice(it.ProductPrice) {
		return fmt.Errorf("%w: item %d price %s is not a valid amount", ErrInvalidItem, i, it.ProductPrice)
	}
	for _, a := range it.SelectedAddons {
		if a.AddonID == "" || a.Quantity < 1 || !validPrice(a.Price) {
			return fmt.Errorf("%w: item %d has a malformed addon", ErrInvalidItem, i)
		}
	}
	// group lines may carry a zero base price, the addons pay for them
	if !it.LineTotal().IsPositive() {
		return fmt.Errorf("%w: item %d total must be positive", ErrInvalidItem, i)
	}
	return nil
}

func (s *OrderService) product(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: product %s does not exist", ErrInvalidItem, id)
	}
	return p, err
}

func orderItemFrom(orderID string, it domain.CartLineItem) domain.OrderItem {
	addons := make([]domain.SelectedAddon, len(it.SelectedAddons))
	copy(addons, it.SelectedAddons)
	variations := make(map[string]string, len(it.SelectedVariations))
	for k, v := range it.SelectedVariations {
		variations[k] = v
	}
	return domain.OrderItem{
		OrderID:            orderID,
		ProductID:          it.ProductID,
		ProductName:        it.ProductTitle,
		ProductSKU:         it.ProductSKU,
		ProductImage:       it.ProductImage,
		Price:              it.ProductPrice,
		Quantity:           it.Quantity,
		SelectedVariations: variations,
		Addons:             addons,
		TotalPrice:         it.LineTotal(),
	}
}

// mismatch zero means the client did not send the value
func mismatch(client, server decimal.Decimal) bool {
	return !client.IsZero() && !client.Equal(server)
}

func trimDetails(d domain.CustomerDetails) domain.CustomerDetails {
	d.Email = strings.TrimSpace(d.Email)
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Address = strings.TrimSpace(d.Address)
	d.City = strings.TrimSpace(d.City)
	d.State = strings.TrimSpace(d.State)
	d.Country = strings.TrimSpace(d.Country)
	d.PostalCode = strings.TrimSpace(d.PostalCode)
	return d
}
