package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict сохранённая корзина изменилась после чтения
	ErrVersionConflict = errors.New("cart version conflict")
	// ErrCorruptState сохранённое состояние корзины не удалось разобрать
	ErrCorruptState = errors.New("corrupt cart state")
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	Type          domain.ProductType
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

func (f ProductFilter) Match(p domain.Product) bool {
	if !containsIgnoreCase(p.Title, f.NameSubstring) {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.MinPrice != nil && p.BasePrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.BasePrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

// ProductRepository интерфейс репозитория каталога
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
}

// ShippingRepository интерфейс репозитория способов доставки
type ShippingRepository interface {
	CreateShippingMethod(ctx context.Context, m *domain.ShippingMethod) error
	GetShippingMethod(ctx context.Context, id string) (*domain.ShippingMethod, error)
	ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error)
}

// OrderRepository интерфейс репозитория заказов.
// Create пишет только строку заказа, позиции добавляются через AddItem;
// атомарность обеспечивает вызывающий код через TxManager.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	AddItem(ctx context.Context, item *domain.OrderItem) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus) error
}

// OutboxEvent событие, записанное в одной транзакции с заказом
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// OutboxRepository очередь неотправленных событий. Add вызывается внутри
// транзакции заказа, Unpublished отдаёт события в порядке записи.
type OutboxRepository interface {
	Add(ctx context.Context, e *OutboxEvent) error
	Unpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
}

// TxManager абстракция транзакции
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartState сохранённый документ корзины
type CartState struct {
	Schema  int                   `json:"schema"`
	Version int64                 `json:"version"`
	Items   []domain.CartLineItem `json:"items"`
}

// CartStore хранилище корзин с оптимистической блокировкой по версии.
// Load для отсутствующей корзины возвращает пустое состояние с версией 0.
// Save завершается ErrVersionConflict, если сохранённая версия != expectedVersion.
type CartStore interface {
	Load(ctx context.Context, cartID string) (CartState, error)
	Save(ctx context.Context, cartID string, expectedVersion int64, items []domain.CartLineItem) (CartState, error)
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
